package presence

import (
	"sync"
	"time"
)

type Status string

const (
	StatusOnline  Status = "online"
	StatusAway    Status = "away"
	StatusOffline Status = "offline"
)

// Record is a user's process-wide presence, independent of any room.
type Record struct {
	UserID       string    `json:"user_id"`
	Status       Status    `json:"status"`
	LastActivity time.Time `json:"last_activity"`
	Activity     string    `json:"activity,omitempty"`
}

// Tracker keeps one record per user. Any room interaction promotes toward
// online; only Decay (driven by the sweeper) demotes.
type Tracker struct {
	mu      sync.RWMutex
	records map[string]*Record
}

func NewTracker() *Tracker {
	return &Tracker{records: make(map[string]*Record)}
}

// Touch marks the user online and refreshes last activity.
func (t *Tracker) Touch(userID, activity string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[userID]
	if !ok {
		rec = &Record{UserID: userID}
		t.records[userID] = rec
	}
	rec.Status = StatusOnline
	rec.LastActivity = time.Now()
	if activity != "" {
		rec.Activity = activity
	}
}

// SetOffline records an explicit disconnect of the user's last connection.
func (t *Tracker) SetOffline(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok := t.records[userID]; ok {
		rec.Status = StatusOffline
	}
}

func (t *Tracker) StatusOf(userID string) Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if rec, ok := t.records[userID]; ok {
		return rec.Status
	}
	return StatusOffline
}

func (t *Tracker) Get(userID string) (Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if rec, ok := t.records[userID]; ok {
		return *rec, true
	}
	return Record{}, false
}

// Decay demotes stale records at now: online past awayAfter becomes away,
// away past offlineAfter becomes offline. Returns the records that
// changed so the caller can announce them.
func (t *Tracker) Decay(now time.Time, awayAfter, offlineAfter time.Duration) []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	var changed []Record
	for _, rec := range t.records {
		idle := now.Sub(rec.LastActivity)
		switch rec.Status {
		case StatusOnline:
			if idle > awayAfter {
				rec.Status = StatusAway
				changed = append(changed, *rec)
			}
		case StatusAway:
			if idle > offlineAfter {
				rec.Status = StatusOffline
				changed = append(changed, *rec)
			}
		}
	}
	return changed
}

// Counts returns the number of records per status.
func (t *Tracker) Counts() map[Status]int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	counts := map[Status]int{StatusOnline: 0, StatusAway: 0, StatusOffline: 0}
	for _, rec := range t.records {
		counts[rec.Status]++
	}
	return counts
}
