package broker

import "encoding/json"

// Request is the decoded shape of one newline-delimited JSON frame. Every
// frame carries action; the remaining fields are populated per-action (see
// the action table in the wire contract) and left at their zero value
// otherwise.
type Request struct {
	Action string `json:"action"`

	// get, set, del
	Key string `json:"key,omitempty"`

	// set
	Value       json.RawMessage `json:"value,omitempty"`
	TTL         *int64          `json:"ttl,omitempty"`
	Compressed  *bool           `json:"compressed,omitempty"`
	BeforeSize  *int64          `json:"beforeSize,omitempty"`
	AfterSize   *int64          `json:"afterSize,omitempty"`

	// lease, release
	WorkerID string `json:"workerId,omitempty"`

	// authentication
	HMAC string `json:"hmac,omitempty"`
}

// ListItem describes one non-expired value-store entry as returned by list.
// Values themselves are never included.
type ListItem struct {
	Expires  int64 `json:"expires"`
	HasValue bool  `json:"hasValue"`
}

// CapacitySnapshot is the shared capacity assessment block embedded in both
// the stats and health responses.
type CapacitySnapshot struct {
	Items        int     `json:"items"`
	MaxItems     int     `json:"maxItems"`
	Utilization  float64 `json:"utilization"`
	NearCapacity bool    `json:"nearCapacity"`
	AtCapacity   bool    `json:"atCapacity"`
	Warning      string  `json:"warning"`
}

// MemorySnapshot reports process memory at the moment of the snapshot.
type MemorySnapshot struct {
	ResidentBytes uint64 `json:"residentBytes"`
	HeapBytes     uint64 `json:"heapBytes"`
}

// StatsSnapshot is the payload of a successful stats response.
type StatsSnapshot struct {
	Items      int              `json:"items"`
	Leases     int              `json:"leases"`
	Capacity   CapacitySnapshot `json:"capacity"`
	Memory     MemorySnapshot   `json:"memory"`
	UptimeMs   int64            `json:"uptimeMs"`
}

// HealthSnapshot is the flat payload of a successful health response; its
// fields are spread directly into the response, not nested under a key.
type HealthSnapshot struct {
	OK         bool             `json:"ok"`
	Status     string           `json:"status"`
	UptimeMs   int64            `json:"uptimeMs"`
	TimestampMs int64           `json:"timestampMs"`
	Capacity   CapacitySnapshot `json:"capacity"`
	Memory     MemorySnapshot   `json:"memory"`
	InFlight   uint64           `json:"inFlight"`
	Draining   bool             `json:"draining"`
}

// Response is the encoded shape of one response line. Only the fields
// relevant to the request's action are populated; all others are omitted.
type Response struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`

	// get / lease
	Value      json.RawMessage `json:"value,omitempty"`
	Compressed *bool           `json:"compressed,omitempty"`

	// list
	Items map[string]ListItem `json:"items,omitempty"`

	// ping
	Pong *int64 `json:"pong,omitempty"`

	// stats
	Stats *StatsSnapshot `json:"stats,omitempty"`

	// health (encoding/json spreads the embedded snapshot's fields into the
	// response object; its own "ok" is shadowed by OK above)
	*HealthSnapshot `json:",omitempty"`

	// metrics
	Metrics string `json:"metrics,omitempty"`
	Format  string `json:"format,omitempty"`

	// release
	Released *bool `json:"released,omitempty"`
}

// OKResponse builds a bare success response.
func OKResponse() Response { return Response{OK: true} }

// ErrResponse builds a failure response carrying tok's wire token.
func ErrResponse(tok Token) Response { return Response{OK: false, Error: string(tok)} }

// BoolPtr is a small helper for building optional bool fields.
func BoolPtr(b bool) *bool { return &b }

// Int64Ptr is a small helper for building optional int64 fields.
func Int64Ptr(n int64) *int64 { return &n }
