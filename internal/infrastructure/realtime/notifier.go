package realtime

import (
	"context"
	"log/slog"
	"sync"

	"github.com/learnpulse/mastery-engine/internal/domain/performance"
	"github.com/learnpulse/mastery-engine/internal/domain/shared"
)

// RecordSource loads a student's persisted recent records. Satisfied by the
// performance repository; used to rebuild windows lost on restart.
type RecordSource interface {
	ListRecentByStudent(ctx context.Context, studentID string, limit int) ([]*performance.Record, error)
}

// Notifier is the pipeline-facing entry point of the realtime layer. On each
// graded record it refreshes the student's recent-activity window and pushes
// the full updated view to student and class subscribers.
type Notifier struct {
	window      *RecentWindow
	broadcaster *Broadcaster
	records     RecordSource
	seeded      sync.Map // student id -> struct{}
	logger      *slog.Logger
}

// NewNotifier creates a Notifier over a window and broadcaster. When records
// is non-nil, each student's window is seeded from persisted records on the
// first push after process start.
func NewNotifier(window *RecentWindow, broadcaster *Broadcaster, records RecordSource, logger *slog.Logger) *Notifier {
	if window == nil {
		window = NewRecentWindow(DefaultWindowSize)
	}
	if broadcaster == nil {
		broadcaster = NewBroadcaster()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{window: window, broadcaster: broadcaster, records: records, logger: logger}
}

// Window exposes the recent-activity window for queries and seeding.
func (n *Notifier) Window() *RecentWindow {
	return n.window
}

// Broadcaster exposes the broadcast channel for subscription endpoints.
func (n *Notifier) Broadcaster() *Broadcaster {
	return n.broadcaster
}

// RecordGraded refreshes the window and broadcasts the updated realtime view.
// Always succeeds from the caller's perspective; broadcast delivery is
// most-recent-wins and inherently lossy.
func (n *Notifier) RecordGraded(ctx context.Context, rec *performance.Record) error {
	n.ensureSeeded(ctx, rec.StudentID)
	n.window.Push(rec)

	activities := n.window.Snapshot(rec.StudentID)
	payload := make([]map[string]interface{}, 0, len(activities))
	for _, a := range activities {
		payload = append(payload, map[string]interface{}{
			"submission_id":      a.SubmissionID,
			"activity_id":        a.ActivityID,
			"topic_id":           a.TopicID,
			"percentage":         a.Percentage,
			"demonstrated_level": a.DemonstratedLevel.String(),
			"graded_at":          a.GradedAt,
		})
	}

	event := shared.NewRealtimeMetricsUpdatedEvent(
		rec.StudentID,
		rec.ClassID,
		n.window.CurrentLevel(rec.StudentID).String(),
		payload,
	)

	n.broadcaster.Publish(StudentTopic(rec.StudentID), event)
	n.broadcaster.Publish(ClassTopic(rec.ClassID), event)

	n.logger.Debug("realtime view pushed",
		"student_id", rec.StudentID,
		"class_id", rec.ClassID,
		"window_entries", len(activities),
	)
	return nil
}

// ensureSeeded backfills the student's window from persisted records before
// the first push of this process. A failed load degrades to an unseeded
// window and is retried on the next push.
func (n *Notifier) ensureSeeded(ctx context.Context, studentID string) {
	if n.records == nil {
		return
	}
	if _, ok := n.seeded.Load(studentID); ok {
		return
	}

	recent, err := n.records.ListRecentByStudent(ctx, studentID, n.window.Size())
	if err != nil {
		n.logger.Warn("recent window seed failed",
			"student_id", studentID, "error", err)
		return
	}
	n.window.Seed(recent)
	n.seeded.Store(studentID, struct{}{})
}
