// Package socketio streams pipeline progress events to the UI bridge over
// a socket.io connection. The emitter is an events.Sink: the pipeline
// publishes into an in-memory buffer and a single goroutine forwards to the
// wire, so a slow or reconnecting transport never blocks a worker.
package socketio

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/ctxlog"
	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/events"
	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/retry"
)

// Config locates the bridge and names the event to emit.
type Config struct {
	URL                string
	Namespace          string
	Event              string
	Retry              retry.Policy
	InsecureSkipVerify bool
	// Buffer is the number of events held while the connection is down.
	// Oldest events drop first once it fills; progress is advisory, state
	// of record lives in job status.
	Buffer int
}

// Emitter forwards progress events to the bridge.
type Emitter struct {
	cfg       Config
	io        *socket.Socket
	queue     chan events.ProgressEvent
	done      chan struct{}
	connected atomic.Bool
	dropped   atomic.Int64
}

// NewEmitter connects to the bridge, retrying the initial handshake under
// the configured policy, and starts the forwarding loop. After the initial
// connect, reconnects are handled by the socket.io manager.
func NewEmitter(ctx context.Context, cfg Config) (*Emitter, error) {
	logger := ctxlog.FromContext(ctx).With("transport", "socketio", "url", cfg.URL)
	if cfg.Event == "" {
		cfg.Event = "job_progress"
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 1024
	}

	parsed, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("socketio: parsing URL: %w", err)
	}
	baseURL := fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)

	opts := socket.DefaultOptions()
	opts.SetTransports(types.NewSet(transports.WebSocket))
	if parsed.Path != "" {
		opts.SetPath(parsed.Path)
	}
	if cfg.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}

	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(cfg.Namespace, opts)

	e := &Emitter{
		cfg:   cfg,
		io:    io,
		queue: make(chan events.ProgressEvent, cfg.Buffer),
		done:  make(chan struct{}),
	}

	io.On(types.EventName("connect"), func(...any) {
		e.connected.Store(true)
		logger.Info("Progress stream connected.", "namespace", cfg.Namespace, "sid", io.Id())
	})
	io.On(types.EventName("disconnect"), func(...any) {
		e.connected.Store(false)
		logger.Warn("Progress stream disconnected.")
	})

	err = cfg.Retry.Do(ctx, "socketio connect", func(ctx context.Context) error {
		return e.connectOnce(ctx)
	})
	if err != nil {
		io.Disconnect()
		return nil, err
	}

	go e.forward(ctxlog.WithLogger(context.Background(), logger))
	return e, nil
}

// connectOnce attempts one handshake and waits for the connect event.
func (e *Emitter) connectOnce(ctx context.Context) error {
	if e.connected.Load() {
		return nil
	}
	connectErr := make(chan error, 1)
	e.io.Once(types.EventName("connect"), func(...any) {
		connectErr <- nil
	})
	e.io.Once(types.EventName("connect_error"), func(errs ...any) {
		if len(errs) > 0 {
			if err, ok := errs[0].(error); ok {
				connectErr <- err
				return
			}
		}
		connectErr <- fmt.Errorf("connect_error")
	})
	e.io.Connect()

	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	select {
	case err := <-connectErr:
		return err
	case <-waitCtx.Done():
		return fmt.Errorf("socketio: handshake timed out")
	}
}

// Publish implements events.Sink. It never blocks: when the buffer is full
// the oldest queued event is discarded to make room.
func (e *Emitter) Publish(ev events.ProgressEvent) {
	for {
		select {
		case e.queue <- ev:
			return
		default:
			select {
			case <-e.queue:
				e.dropped.Add(1)
			default:
			}
		}
	}
}

// Dropped reports how many events were discarded due to backpressure.
func (e *Emitter) Dropped() int64 { return e.dropped.Load() }

// Close stops forwarding and disconnects.
func (e *Emitter) Close() {
	close(e.done)
	e.io.Disconnect()
}

func (e *Emitter) forward(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	for {
		select {
		case <-e.done:
			return
		case ev := <-e.queue:
			if !e.connected.Load() {
				logger.Debug("Emitting while disconnected; manager will flush on reconnect.", "stepID", ev.StepID)
			}
			e.io.Emit(e.cfg.Event, ev)
		}
	}
}
