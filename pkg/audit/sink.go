package audit

import (
	"sync"
	"time"
)

// Event records a state-changing operation for the audit trail. Certificates
// are never physically deleted, so the trail plus the stores reconstruct the
// full history.
type Event struct {
	Action    string    `json:"action"`
	Actor     string    `json:"actor"`
	Subject   string    `json:"subject"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	ActionCertificateRegistered = "certificate.registered"
	ActionCertificateRevoked    = "certificate.revoked"
	ActionRoleGranted           = "role.granted"
	ActionRoleRevoked           = "role.revoked"
	ActionLogin                 = "auth.login"
)

// Sink receives audit events. Emit must not block the caller on failure.
type Sink interface {
	Emit(event Event)
}

// MemorySink keeps a bounded in-memory ring of recent events.
type MemorySink struct {
	mu     sync.RWMutex
	events []Event
	limit  int
}

func NewMemorySink(limit int) *MemorySink {
	if limit <= 0 {
		limit = 1000
	}
	return &MemorySink{limit: limit}
}

func (s *MemorySink) Emit(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event)
	if len(s.events) > s.limit {
		s.events = s.events[len(s.events)-s.limit:]
	}
}

// Recent returns a copy of the buffered events, oldest first.
func (s *MemorySink) Recent() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}
