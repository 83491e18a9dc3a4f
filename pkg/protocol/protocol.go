// Package protocol implements the broker's framed request pipeline (C2):
// per-connection reading of newline-delimited JSON frames, dispatch to the
// value store, lease allocator, and observability surface, and writing
// back exactly one response line per request.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/statebroker/internal/logger"
	"github.com/marmos91/statebroker/pkg/auth"
	"github.com/marmos91/statebroker/pkg/broker"
	"github.com/marmos91/statebroker/pkg/bufpool"
	"github.com/marmos91/statebroker/pkg/lease"
	"github.com/marmos91/statebroker/pkg/metrics"
	"github.com/marmos91/statebroker/pkg/store"
)

// Config carries the pipeline's policy knobs beyond its dependencies: the
// per-connection read buffer cap and the configured item cap echoed back in
// stats/health/metrics capacity snapshots.
type Config struct {
	MaxRequestBytes int
	MaxItems        int
}

// State is the subset of broker runtime state (spec.md §3) the pipeline
// reads and mutates on every request: in-flight count, last-activity
// timestamp, and the draining flag the lifecycle controller flips.
type State struct {
	InFlight   atomic.Uint64
	LastActive atomic.Int64 // unix ms
	Draining   atomic.Bool

	stats *metrics.Registry // set by New; mirrors Draining into the draining gauge
}

func (s *State) touch() { s.LastActive.Store(time.Now().UnixMilli()) }

// InFlightCount, LastActiveUnixMs, and SetDraining implement
// pkg/lifecycle.ConnState, letting the lifecycle controller judge
// idleness and flip draining without importing pkg/protocol's internals.
func (s *State) InFlightCount() uint64   { return s.InFlight.Load() }
func (s *State) LastActiveUnixMs() int64 { return s.LastActive.Load() }

func (s *State) SetDraining(draining bool) {
	s.Draining.Store(draining)
	if s.stats != nil {
		s.stats.SetDraining(draining)
	}
}

// Pipeline owns the dependencies every connection's handler loop dispatches
// into. Construct with New; Accept serves each accepted connection to
// completion on its own goroutine.
type Pipeline struct {
	cfg   Config
	store *store.Store
	lease *lease.Table
	auth  *auth.Authenticator
	stats *metrics.Registry
	state *State

	seq atomic.Uint64 // correlation id monotonic suffix

	healthMu     sync.Mutex
	healthStatus string // last status Health() observed, for crossing detection
}

// New constructs a Pipeline. auth may have an empty secret (Enabled()
// false), in which case HMAC verification is skipped.
func New(cfg Config, st *store.Store, lt *lease.Table, a *auth.Authenticator, reg *metrics.Registry, state *State) *Pipeline {
	if cfg.MaxRequestBytes <= 0 {
		cfg.MaxRequestBytes = 1 << 20
	}
	state.stats = reg
	return &Pipeline{cfg: cfg, store: st, lease: lt, auth: a, stats: reg, state: state}
}

func (p *Pipeline) nextCorrelationID() string {
	return fmt.Sprintf("%d-%d", time.Now().UnixMilli(), p.seq.Add(1))
}

// Accept runs the accept loop on ln until it returns an error (the caller
// is expected to close ln to unblock it, e.g. from Stop). Draining is
// re-checked per accepted connection, not per frame, so in-flight frames
// on already-accepted connections are unaffected.
func (p *Pipeline) Accept(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go p.handleConn(conn)
	}
}

func (p *Pipeline) handleConn(conn net.Conn) {
	defer conn.Close()

	connID := uuid.NewString()
	lc := logger.NewLogContext(connID)

	if p.state.Draining.Load() {
		p.writeLine(conn, broker.ErrResponse(broker.ErrDraining))
		return
	}

	chunk := bufpool.Get()
	defer bufpool.Put(chunk)

	var pending []byte
	for {
		n, err := conn.Read(chunk)
		if n > 0 {
			pending = append(pending, chunk[:n]...)

			for {
				idx := bytes.IndexByte(pending, '\n')
				if idx < 0 {
					break
				}
				frame := bytes.TrimRight(pending[:idx], "\r")
				pending = pending[idx+1:]
				if len(frame) > p.cfg.MaxRequestBytes {
					p.writeLine(conn, broker.ErrResponse(broker.ErrTooLarge))
					return
				}
				if len(frame) > 0 {
					p.handleFrame(conn, lc, frame)
				}
			}

			if len(pending) > p.cfg.MaxRequestBytes {
				p.writeLine(conn, broker.ErrResponse(broker.ErrTooLarge))
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				logger.Debug("connection read error", logger.ConnectionID(connID), logger.Err(err))
			}
			return
		}
	}
}

func (p *Pipeline) handleFrame(conn net.Conn, lc *logger.LogContext, raw []byte) {
	p.state.InFlight.Add(1)
	p.state.touch()
	if p.stats != nil {
		p.stats.SetInFlight(p.state.InFlight.Load())
	}
	defer func() {
		p.state.InFlight.Add(^uint64(0))
		if p.stats != nil {
			p.stats.SetInFlight(p.state.InFlight.Load())
		}
	}()

	corrID := p.nextCorrelationID()
	reqLC := lc.WithCorrelation(corrID)

	var req broker.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		p.writeLine(conn, broker.ErrResponse(broker.ErrInvalidJSON))
		return
	}
	reqLC = reqLC.WithAction(req.Action)

	if p.auth.Enabled() {
		if err := p.auth.Verify(raw); err != nil {
			logger.Warn("auth rejected", logger.CorrelationID(corrID), logger.Action(req.Action), logger.ErrorToken(broker.TokenOf(err)))
			p.writeLine(conn, broker.ErrResponse(broker.ErrAuthFailed))
			if p.stats != nil {
				p.stats.ObserveOp(req.Action, false)
			}
			return
		}
	}

	resp := p.dispatch(reqLC, req)
	if p.stats != nil {
		p.stats.ObserveOp(req.Action, resp.OK)
	}
	logger.Debug("request handled", logger.CorrelationID(corrID), logger.Action(req.Action), logger.Result(resp.OK))
	p.writeLine(conn, resp)
}

func (p *Pipeline) writeLine(conn net.Conn, resp broker.Response) {
	b, err := json.Marshal(resp)
	if err != nil {
		logger.Error("failed to marshal response", logger.Err(err))
		return
	}
	b = append(b, '\n')
	if _, err := conn.Write(b); err != nil {
		logger.Debug("failed to write response", logger.Err(err))
	}
}
