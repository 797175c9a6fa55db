package remote

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultLogCap = 50

// CallEntry is an immutable audit record of one remote call, success or
// failure.
type CallEntry struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Endpoint     string    `json:"endpoint"`
	Method       string    `json:"method"`
	RequestBody  string    `json:"request_body"`
	ResponseBody string    `json:"response_body"`
}

// CallLog keeps the most recent remote calls, newest first, evicting the
// oldest entries beyond the cap.
type CallLog struct {
	mu      sync.Mutex
	max     int
	entries []CallEntry
}

// NewCallLog creates a CallLog holding at most max entries.
// If max <= 0, the default cap (50) is used.
func NewCallLog(max int) *CallLog {
	if max <= 0 {
		max = defaultLogCap
	}
	return &CallLog{max: max}
}

// Record appends one audit entry.
func (l *CallLog) Record(endpoint, method, requestBody, responseBody string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := CallEntry{
		ID:           uuid.New().String(),
		Timestamp:    time.Now().UTC(),
		Endpoint:     endpoint,
		Method:       method,
		RequestBody:  requestBody,
		ResponseBody: responseBody,
	}
	l.entries = append([]CallEntry{e}, l.entries...)
	if len(l.entries) > l.max {
		l.entries = l.entries[:l.max]
	}
}

// Entries returns a copy of the log, newest first.
func (l *CallLog) Entries() []CallEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]CallEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of retained entries.
func (l *CallLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
