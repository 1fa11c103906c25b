// Package realtime keeps the in-memory live-dashboard state: a bounded
// recent-activity window per student and a most-recent-wins broadcast channel
// per subscription. Everything here is reconstructible from the performance
// records, so the package holds no durable state.
package realtime

import (
	"sync"
	"time"

	"github.com/learnpulse/mastery-engine/internal/domain/performance"
	"github.com/learnpulse/mastery-engine/internal/domain/taxonomy"
)

// DefaultWindowSize is how many recent records a student's window retains.
const DefaultWindowSize = 20

// Activity is one entry of a student's recent-activity window.
type Activity struct {
	SubmissionID      string         `json:"submission_id"`
	ActivityID        string         `json:"activity_id"`
	TopicID           string         `json:"topic_id"`
	Percentage        float64        `json:"percentage"`
	DemonstratedLevel taxonomy.Level `json:"demonstrated_level"`
	GradedAt          time.Time      `json:"graded_at"`
}

// RecentWindow tracks the newest graded records per student in a bounded
// ring. A re-grade of a submission already in the window replaces that entry
// in place instead of consuming a slot.
type RecentWindow struct {
	mu      sync.RWMutex
	size    int
	entries map[string][]Activity // student id -> newest first
}

// NewRecentWindow creates a window retaining size entries per student.
func NewRecentWindow(size int) *RecentWindow {
	if size <= 0 {
		size = DefaultWindowSize
	}
	return &RecentWindow{
		size:    size,
		entries: make(map[string][]Activity),
	}
}

// Push records a graded submission into the student's window.
func (w *RecentWindow) Push(rec *performance.Record) {
	activity := Activity{
		SubmissionID:      rec.SubmissionID,
		ActivityID:        rec.ActivityID,
		TopicID:           rec.TopicID,
		Percentage:        rec.Percentage,
		DemonstratedLevel: rec.DemonstratedLevel,
		GradedAt:          rec.GradedAt,
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	window := w.entries[rec.StudentID]
	for i := range window {
		if window[i].SubmissionID == activity.SubmissionID {
			window[i] = activity
			w.entries[rec.StudentID] = window
			return
		}
	}

	window = append([]Activity{activity}, window...)
	if len(window) > w.size {
		window = window[:w.size]
	}
	w.entries[rec.StudentID] = window
}

// Snapshot returns a copy of the student's window, newest first.
func (w *RecentWindow) Snapshot(studentID string) []Activity {
	w.mu.RLock()
	defer w.mu.RUnlock()

	window := w.entries[studentID]
	out := make([]Activity, len(window))
	copy(out, window)
	return out
}

// CurrentLevel returns the demonstrated level of the student's newest record,
// or the lowest taxonomy level when the window is empty.
func (w *RecentWindow) CurrentLevel(studentID string) taxonomy.Level {
	w.mu.RLock()
	defer w.mu.RUnlock()

	window := w.entries[studentID]
	if len(window) == 0 {
		return taxonomy.Lowest()
	}
	return window[0].DemonstratedLevel
}

// Size returns how many entries the window retains per student.
func (w *RecentWindow) Size() int {
	return w.size
}

// Seed preloads a window from persisted records, as on the first push for a
// student after a restart. Records are expected newest first, as
// ListRecentByStudent returns them.
func (w *RecentWindow) Seed(records []*performance.Record) {
	for i := len(records) - 1; i >= 0; i-- {
		w.Push(records[i])
	}
}

// Len returns the number of students with a non-empty window.
func (w *RecentWindow) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.entries)
}
