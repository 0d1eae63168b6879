// Package httpapi exposes the pipeline over HTTP: job submission, status,
// cancellation, and artifact retrieval.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/ctxlog"
	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/fingerprint"
	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/pipeline"
	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/product"
	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/raster"
)

// Handler routes API requests to one pipeline engine.
type Handler struct {
	engine   *pipeline.Engine
	defaults product.Params
}

// NewHandler builds the API handler. defaults fill parameter fields a
// submission omits.
func NewHandler(engine *pipeline.Engine, defaults product.Params) *Handler {
	return &Handler{engine: engine, defaults: defaults}
}

// Router returns the configured mux router.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/jobs", h.submitJob).Methods(http.MethodPost)
	r.HandleFunc("/api/jobs/{id}", h.jobStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/jobs/{id}", h.cancelJob).Methods(http.MethodDelete)
	r.HandleFunc("/api/artifacts/{fp}", h.artifactGrid).Methods(http.MethodGet)
	r.HandleFunc("/api/artifacts/{fp}/meta", h.artifactMeta).Methods(http.MethodGet)
	r.HandleFunc("/api/products", h.listProducts).Methods(http.MethodGet)
	return r
}

// ProductRequest is one requested product in a job submission. Omitted
// parameters fall back to the server defaults.
type ProductRequest struct {
	Kind           string    `json:"kind"`
	Azimuth        *float64  `json:"azimuth,omitempty"`
	Altitude       *float64  `json:"altitude,omitempty"`
	RampStops      []string  `json:"ramp_stops,omitempty"`
	BlendFactor    *float64  `json:"blend_factor,omitempty"`
	Archaeological *bool     `json:"archaeological,omitempty"`
	LegacyMaxSlope *float64  `json:"legacy_max_slope,omitempty"`
}

// SubmitRequest is the body of POST /api/jobs.
type SubmitRequest struct {
	Source   string           `json:"source"`
	Products []ProductRequest `json:"products"`
}

// SubmitResponse is the body returned on accepted submission.
type SubmitResponse struct {
	JobID string `json:"job_id"`
}

func (h *Handler) submitJob(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	specs := make([]product.Spec, 0, len(req.Products))
	for _, pr := range req.Products {
		spec, err := h.toSpec(pr)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		specs = append(specs, spec)
	}

	jobID, err := h.engine.Submit(r.Context(), req.Source, specs)
	if err != nil {
		var ve *product.ValidationError
		if errors.As(err, &ve) {
			http.Error(w, ve.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	ctxlog.FromContext(r.Context()).Info("Job accepted via API.", "jobID", jobID, "source", req.Source)
	writeJSON(w, http.StatusAccepted, SubmitResponse{JobID: jobID})
}

// toSpec merges a product request over the server defaults.
func (h *Handler) toSpec(pr ProductRequest) (product.Spec, error) {
	kind, err := product.ParseKind(pr.Kind)
	if err != nil {
		return product.Spec{}, fmt.Errorf("products: %w", err)
	}
	p := h.defaults
	p.RampStops = append([]string(nil), h.defaults.RampStops...)
	if pr.Azimuth != nil {
		p.Azimuth = *pr.Azimuth
	}
	if pr.Altitude != nil {
		p.Altitude = *pr.Altitude
	}
	if len(pr.RampStops) > 0 {
		p.RampStops = pr.RampStops
	}
	if pr.BlendFactor != nil {
		p.BlendFactor = *pr.BlendFactor
	}
	if pr.Archaeological != nil {
		p.Archaeological = *pr.Archaeological
	}
	if pr.LegacyMaxSlope != nil {
		p.LegacyMaxSlope = *pr.LegacyMaxSlope
	}
	return product.Spec{Kind: kind, Params: p}, nil
}

func (h *Handler) jobStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.engine.Status(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) cancelJob(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Cancel(mux.Vars(r)["id"]); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) artifactMeta(w http.ResponseWriter, r *http.Request) {
	fp := mux.Vars(r)["fp"]
	if !fingerprint.Valid(fp) {
		http.Error(w, "malformed fingerprint", http.StatusBadRequest)
		return
	}
	meta, ok := h.engine.ArtifactMeta(fp)
	if !ok {
		http.Error(w, "artifact not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (h *Handler) artifactGrid(w http.ResponseWriter, r *http.Request) {
	fp := mux.Vars(r)["fp"]
	if !fingerprint.Valid(fp) {
		http.Error(w, "malformed fingerprint", http.StatusBadRequest)
		return
	}
	a, ok := h.engine.Artifact(fp)
	if !ok {
		http.Error(w, "artifact not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", a.Kind+".asc"))
	if err := raster.WriteASC(w, a.Grid); err != nil {
		ctxlog.FromContext(r.Context()).Error("Failed streaming artifact.", "fingerprint", fp, "error", err)
	}
}

// productInfo describes one requestable product kind for UI listings.
type productInfo struct {
	Kind        string `json:"kind"`
	DisplayName string `json:"display_name"`
}

func (h *Handler) listProducts(w http.ResponseWriter, _ *http.Request) {
	var out []productInfo
	for _, k := range product.Kinds() {
		out = append(out, productInfo{Kind: k.String(), DisplayName: k.DisplayName()})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
