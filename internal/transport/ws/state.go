package ws

import "sync/atomic"

// State is the lifecycle of a Channel: idle → connecting → open → closed.
// A closed channel may connect again.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Stats counts frames over the channel's lifetime.
type Stats struct {
	Received   uint64
	Dispatched uint64
	Malformed  uint64
	Anomalies  uint64
	Sent       uint64
	Dropped    uint64
}

type counters struct {
	received   atomic.Uint64
	dispatched atomic.Uint64
	malformed  atomic.Uint64
	anomalies  atomic.Uint64
	sent       atomic.Uint64
	dropped    atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Received:   c.received.Load(),
		Dispatched: c.dispatched.Load(),
		Malformed:  c.malformed.Load(),
		Anomalies:  c.anomalies.Load(),
		Sent:       c.sent.Load(),
		Dropped:    c.dropped.Load(),
	}
}
