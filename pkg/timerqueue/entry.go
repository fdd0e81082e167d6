package timerqueue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// PayloadVersion is written into every serialized entry. Decoders accept any
// version: unknown fields are ignored and a missing version means 1.
const PayloadVersion = 1

type Kind string

const (
	KindReminder   Kind = "reminder"
	KindEscalation Kind = "escalation"
)

// Entry is a pending wake-up. At most one entry per Identity lives in a queue.
type Entry struct {
	Kind       Kind
	EventID    string
	WorkerID   string
	Label      string
	CheckDelay time.Duration
	FireAt     time.Time
	// Escalation entries only
	NotificationID string
	Cycle          int
}

// Identity is the dedup key: one live entry per (kind, event, worker, label)
func (e Entry) Identity() string {
	return strings.Join([]string{string(e.kind()), e.EventID, e.WorkerID, e.Label}, "|")
}

// PairKey groups every entry of one (event, worker) pair
func (e Entry) PairKey() string {
	return PairKey(e.EventID, e.WorkerID)
}

func PairKey(eventID, workerID string) string {
	return eventID + "|" + workerID
}

func (e Entry) kind() Kind {
	if e.Kind == "" {
		return KindReminder
	}
	return e.Kind
}

type wirePayload struct {
	Version        int    `json:"v"`
	Kind           Kind   `json:"kind,omitempty"`
	EventID        string `json:"event_id"`
	WorkerID       string `json:"worker_id"`
	Label          string `json:"label"`
	CheckDelay     int64  `json:"check_delay"`
	FireAt         int64  `json:"fire_at,omitempty"`
	NotificationID string `json:"notification_id,omitempty"`
	Cycle          int    `json:"cycle,omitempty"`
}

// Encode serializes an entry into the stable queue payload.
// CheckDelay and FireAt are stored as whole seconds.
func Encode(e Entry) ([]byte, error) {
	if e.EventID == "" || e.WorkerID == "" || e.Label == "" {
		return nil, fmt.Errorf("entry needs event, worker and label: %+v", e)
	}
	p := wirePayload{
		Version:        PayloadVersion,
		Kind:           e.kind(),
		EventID:        e.EventID,
		WorkerID:       e.WorkerID,
		Label:          e.Label,
		CheckDelay:     int64(e.CheckDelay / time.Second),
		NotificationID: e.NotificationID,
		Cycle:          e.Cycle,
	}
	if !e.FireAt.IsZero() {
		p.FireAt = e.FireAt.Unix()
	}
	return json.Marshal(p)
}

// Decode parses a queue payload written by any version of Encode
func Decode(data []byte) (Entry, error) {
	var p wirePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return Entry{}, fmt.Errorf("failed to decode timer queue payload: %w", err)
	}
	if p.EventID == "" || p.WorkerID == "" || p.Label == "" {
		return Entry{}, fmt.Errorf("timer queue payload missing identity fields: %s", data)
	}
	e := Entry{
		Kind:           p.Kind,
		EventID:        p.EventID,
		WorkerID:       p.WorkerID,
		Label:          p.Label,
		CheckDelay:     time.Duration(p.CheckDelay) * time.Second,
		NotificationID: p.NotificationID,
		Cycle:          p.Cycle,
	}
	if e.Kind == "" {
		e.Kind = KindReminder
	}
	if p.FireAt != 0 {
		e.FireAt = time.Unix(p.FireAt, 0).UTC()
	}
	return e, nil
}

// normalize puts the entry on the second-resolution UTC grid used as score
func normalize(e Entry) Entry {
	e.Kind = e.kind()
	e.FireAt = e.FireAt.UTC().Truncate(time.Second)
	e.CheckDelay = e.CheckDelay.Truncate(time.Second)
	return e
}
