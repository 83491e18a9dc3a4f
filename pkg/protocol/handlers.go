package protocol

import (
	"runtime"
	"time"

	"github.com/marmos91/statebroker/internal/logger"
	"github.com/marmos91/statebroker/pkg/broker"
	"github.com/marmos91/statebroker/pkg/metrics"
	"github.com/marmos91/statebroker/pkg/store"
)

var processStart = time.Now()

// dispatch routes req to its handler by action. Handlers never panic and
// never return a Go error to the transport; every outcome is a Response.
func (p *Pipeline) dispatch(lc *logger.LogContext, req broker.Request) broker.Response {
	switch req.Action {
	case "get":
		return p.handleGet(req)
	case "set":
		return p.handleSet(req)
	case "del":
		return p.handleDel(req)
	case "list":
		return p.handleList()
	case "ping":
		return p.handlePing()
	case "stats":
		return p.handleStats()
	case "health":
		return p.handleHealth()
	case "metrics":
		return p.handleMetrics()
	case "lease":
		return p.handleLease(req)
	case "release":
		return p.handleRelease(req)
	default:
		return broker.ErrResponse(broker.ErrUnknownAction)
	}
}

func (p *Pipeline) handleGet(req broker.Request) broker.Response {
	e, err := p.store.Get(req.Key)
	if err != nil {
		return errResponseFrom(err)
	}
	return broker.Response{OK: true, Value: e.Value, Compressed: broker.BoolPtr(e.Compressed)}
}

func (p *Pipeline) handleSet(req broker.Request) broker.Response {
	err := p.store.Set(req.Key, store.SetInput{
		Value:      req.Value,
		TTLMs:      req.TTL,
		Compressed: req.Compressed != nil && *req.Compressed,
		BeforeSize: req.BeforeSize,
		AfterSize:  req.AfterSize,
	})
	if err != nil {
		return errResponseFrom(err)
	}
	if p.stats != nil {
		p.stats.SetCapacity(p.store.Count(), p.cfg.MaxItems)
	}
	return broker.OKResponse()
}

func (p *Pipeline) handleDel(req broker.Request) broker.Response {
	p.store.Del(req.Key)
	return broker.OKResponse()
}

func (p *Pipeline) handleList() broker.Response {
	items := make(map[string]broker.ListItem)
	for k, v := range p.store.List() {
		items[k] = broker.ListItem{Expires: v.ExpiresAt, HasValue: v.HasValue}
	}
	return broker.Response{OK: true, Items: items}
}

func (p *Pipeline) handlePing() broker.Response {
	return broker.Response{OK: true, Pong: broker.Int64Ptr(time.Now().UnixMilli())}
}

func (p *Pipeline) handleLease(req broker.Request) broker.Response {
	if req.Key == "" || req.WorkerID == "" {
		return broker.ErrResponse(broker.ErrKeyAndWorkerRequired)
	}
	v, err := p.lease.Lease(req.Key, req.WorkerID, req.TTL)
	if err != nil {
		return errResponseFrom(err)
	}
	return broker.Response{OK: true, Value: []byte(jsonInt(v))}
}

func (p *Pipeline) handleRelease(req broker.Request) broker.Response {
	if req.WorkerID == "" {
		return broker.ErrResponse(broker.ErrWorkerRequired)
	}
	released, err := p.lease.Release(req.WorkerID)
	if err != nil {
		return errResponseFrom(err)
	}
	return broker.Response{OK: true, Released: broker.BoolPtr(released)}
}

func (p *Pipeline) handleStats() broker.Response {
	items := p.store.Count()
	leases := p.lease.Count()
	cap := metrics.Capacity(items, p.cfg.MaxItems)

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	snap := broker.StatsSnapshot{
		Items:    items,
		Leases:   leases,
		Capacity: cap,
		Memory: broker.MemorySnapshot{
			ResidentBytes: mem.Sys,
			HeapBytes:     mem.HeapAlloc,
		},
		UptimeMs: time.Since(processStart).Milliseconds(),
	}
	return broker.Response{OK: true, Stats: &snap}
}

func (p *Pipeline) handleHealth() broker.Response {
	snap := p.Health()
	return broker.Response{OK: true, HealthSnapshot: &snap}
}

// Health builds a health snapshot outside the socket protocol, for the
// optional debug HTTP surface to expose the same data the "health" wire
// action returns.
func (p *Pipeline) Health() broker.HealthSnapshot {
	items := p.store.Count()
	cap := metrics.Capacity(items, p.cfg.MaxItems)

	status := "healthy"
	if cap.AtCapacity {
		status = "degraded"
	}
	p.noteHealthTransition(status)

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return broker.HealthSnapshot{
		OK:          true,
		Status:      status,
		UptimeMs:    time.Since(processStart).Milliseconds(),
		TimestampMs: time.Now().UnixMilli(),
		Capacity:    cap,
		Memory: broker.MemorySnapshot{
			ResidentBytes: mem.Sys,
			HeapBytes:     mem.HeapAlloc,
		},
		InFlight: p.state.InFlight.Load(),
		Draining: p.state.Draining.Load(),
	}
}

// noteHealthTransition logs once whenever status differs from the last
// status Health() observed (a healthy<->degraded crossing), and is a no-op
// on every call in between.
func (p *Pipeline) noteHealthTransition(status string) {
	p.healthMu.Lock()
	defer p.healthMu.Unlock()

	prev := p.healthStatus
	p.healthStatus = status
	if prev != "" && prev != status {
		logger.Warn("health status changed", logger.PrevHealthStatus(prev), logger.HealthStatus(status))
	}
}

func (p *Pipeline) handleMetrics() broker.Response {
	if p.stats == nil {
		return broker.Response{OK: true, Metrics: "", Format: "prometheus"}
	}
	p.stats.SetCapacity(p.store.Count(), p.cfg.MaxItems)
	text, err := p.stats.Render()
	if err != nil {
		return broker.ErrResponse(broker.Token("metrics_render_failed"))
	}
	return broker.Response{OK: true, Metrics: text, Format: "prometheus"}
}

// errResponseFrom converts a broker.Token error into a failure response.
// Handlers only ever return broker.Token values or nil.
func errResponseFrom(err error) broker.Response {
	if tok, ok := err.(broker.Token); ok {
		return broker.ErrResponse(tok)
	}
	return broker.ErrResponse(broker.Token("internal_error"))
}

func jsonInt(v int) string {
	// small integers never need quoting or escaping; format directly to
	// avoid round-tripping through encoding/json for a single int.
	return itoa(v)
}

func itoa(v int) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
