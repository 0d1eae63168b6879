package pipeline

import (
	"github.com/google/uuid"

	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/fingerprint"
	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/product"
)

// expandGraph resolves the requested products into a deduplicated step
// graph. Dependency shape is static per kind (product.Spec.Dependencies);
// nodes are deduplicated by fingerprint, so two requested products sharing
// a dependency get one shared node and both wait on it. Returned nodes are
// in deterministic depth-first submission order, dependencies before
// dependents, which is also the tie-break order for scheduling.
func expandGraph(source string, requested []product.Spec) (nodes []*stepNode, requestedNodes []*stepNode) {
	byFP := make(map[fingerprint.Fingerprint]*stepNode)

	var resolve func(spec product.Spec) *stepNode
	resolve = func(spec product.Spec) *stepNode {
		depSpecs := spec.Dependencies()
		deps := make([]*stepNode, 0, len(depSpecs))
		depFPs := make([]fingerprint.Fingerprint, 0, len(depSpecs))
		for _, ds := range depSpecs {
			dn := resolve(ds)
			deps = append(deps, dn)
			depFPs = append(depFPs, dn.fingerprint)
		}

		fp := fingerprint.Compute(source, spec, depFPs)
		if existing, ok := byFP[fp]; ok {
			return existing
		}

		n := &stepNode{
			id:          uuid.NewString(),
			fingerprint: fp,
			spec:        spec,
			deps:        deps,
		}
		n.depCount.Store(int32(len(deps)))
		for _, d := range deps {
			d.dependents = append(d.dependents, n)
		}
		byFP[fp] = n
		nodes = append(nodes, n)
		return n
	}

	for _, spec := range requested {
		n := resolve(spec)
		n.requested = true
		requestedNodes = append(requestedNodes, n)
	}
	return nodes, requestedNodes
}
