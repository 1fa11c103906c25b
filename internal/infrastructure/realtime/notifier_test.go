package realtime

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnpulse/mastery-engine/internal/domain/performance"
	"github.com/learnpulse/mastery-engine/internal/domain/shared"
	"github.com/learnpulse/mastery-engine/internal/domain/taxonomy"
)

type fakeRecordSource struct {
	records []*performance.Record
	calls   int
	err     error
}

func (f *fakeRecordSource) ListRecentByStudent(_ context.Context, studentID string, limit int) ([]*performance.Record, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []*performance.Record
	for _, rec := range f.records {
		if rec.StudentID == studentID && len(out) < limit {
			out = append(out, rec)
		}
	}
	return out, nil
}

func newTestNotifier(source RecordSource) *Notifier {
	return NewNotifier(
		NewRecentWindow(5),
		NewBroadcaster(),
		source,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func TestNotifier_SeedsWindowOnFirstPush(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	source := &fakeRecordSource{records: []*performance.Record{
		// Newest first, mirroring the repository's recent-records ordering.
		gradedRecord("sub-2", 85, taxonomy.LevelAnalyze, base.Add(time.Hour)),
		gradedRecord("sub-1", 70, taxonomy.LevelApply, base),
	}}
	n := newTestNotifier(source)

	require.NoError(t, n.RecordGraded(context.Background(),
		gradedRecord("sub-3", 92, taxonomy.LevelEvaluate, base.Add(2*time.Hour))))

	// The first push backfills the persisted history behind the new record.
	snap := n.Window().Snapshot("student-1")
	require.Len(t, snap, 3)
	assert.Equal(t, "sub-3", snap[0].SubmissionID)
	assert.Equal(t, "sub-2", snap[1].SubmissionID)
	assert.Equal(t, "sub-1", snap[2].SubmissionID)
	assert.Equal(t, taxonomy.LevelEvaluate, n.Window().CurrentLevel("student-1"))
	assert.Equal(t, 1, source.calls)

	// Later pushes do not reload.
	require.NoError(t, n.RecordGraded(context.Background(),
		gradedRecord("sub-4", 60, taxonomy.LevelApply, base.Add(3*time.Hour))))
	assert.Equal(t, 1, source.calls)
	assert.Len(t, n.Window().Snapshot("student-1"), 4)
}

func TestNotifier_SeededViewReachesSubscribers(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	source := &fakeRecordSource{records: []*performance.Record{
		gradedRecord("sub-1", 70, taxonomy.LevelApply, base),
	}}
	n := newTestNotifier(source)

	updates, cancel := n.Broadcaster().Subscribe(StudentTopic("student-1"))
	defer cancel()

	require.NoError(t, n.RecordGraded(context.Background(),
		gradedRecord("sub-2", 85, taxonomy.LevelAnalyze, base.Add(time.Hour))))

	select {
	case event := <-updates:
		metrics, ok := event.(shared.RealtimeMetricsUpdatedEvent)
		require.True(t, ok)
		assert.Equal(t, taxonomy.LevelAnalyze.String(), metrics.CurrentLevel)
		assert.Len(t, metrics.RecentWindow, 2)
	case <-time.After(time.Second):
		t.Fatal("no realtime update delivered")
	}
}

func TestNotifier_SeedFailureDegradesAndRetries(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	source := &fakeRecordSource{
		records: []*performance.Record{gradedRecord("sub-1", 70, taxonomy.LevelApply, base)},
		err:     errors.New("connection refused"),
	}
	n := newTestNotifier(source)

	require.NoError(t, n.RecordGraded(context.Background(),
		gradedRecord("sub-2", 85, taxonomy.LevelAnalyze, base.Add(time.Hour))))
	assert.Len(t, n.Window().Snapshot("student-1"), 1)
	assert.Equal(t, 1, source.calls)

	// Once the store recovers, the next push backfills the history.
	source.err = nil
	require.NoError(t, n.RecordGraded(context.Background(),
		gradedRecord("sub-3", 92, taxonomy.LevelEvaluate, base.Add(2*time.Hour))))
	assert.Equal(t, 2, source.calls)
	assert.Len(t, n.Window().Snapshot("student-1"), 3)
}

func TestNotifier_NoSourceStaysPushOnly(t *testing.T) {
	n := newTestNotifier(nil)
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	require.NoError(t, n.RecordGraded(context.Background(),
		gradedRecord("sub-1", 70, taxonomy.LevelApply, base)))
	assert.Len(t, n.Window().Snapshot("student-1"), 1)
}
