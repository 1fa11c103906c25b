// Package saga contains complex business processes that orchestrate multiple
// domain operations.
package saga

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/learnpulse/mastery-engine/internal/application/command"
	"github.com/learnpulse/mastery-engine/internal/domain/performance"
	"github.com/learnpulse/mastery-engine/internal/domain/roster"
	"github.com/learnpulse/mastery-engine/internal/domain/shared"
	"github.com/learnpulse/mastery-engine/pkg/keymutex"
	"github.com/learnpulse/mastery-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// GRADING PIPELINE SAGA
//
// Flow for one graded submission:
//   Received → RecordUpserted → AggregatesRefreshed → PointsRefreshed
//            → Notified → Succeeded
//
// A malformed submission terminates at FailedGraded and leaves no engine
// state; the grade itself already succeeded upstream. Exhausted lock retries
// terminate at Delayed with an AnalyticsDelayed event, and the next event for
// the same student heals the gap because every stage is a full recompute.
// Notification failures never fail the pipeline: updates are logged, dropped,
// and superseded by the next recomputation.
//
// Locking discipline:
//   - per-student lock around mastery, progression, and aggregate writes
//   - per-class lock (inside the rerank command) around leaderboard writes
//   - no lock is ever held across a notification send
// ══════════════════════════════════════════════════════════════════════════════

// Stage names the pipeline checkpoints, in order.
type Stage string

const (
	StageReceived            Stage = "received"
	StageRecordUpserted      Stage = "record_upserted"
	StageAggregatesRefreshed Stage = "aggregates_refreshed"
	StagePointsRefreshed     Stage = "points_refreshed"
	StageNotified            Stage = "notified"
	StageSucceeded           Stage = "succeeded"
	StageFailedGraded        Stage = "failed_graded"
	StageDelayed             Stage = "delayed"
)

// DashboardNotifier pushes live updates toward connected dashboards. The
// realtime implementation keeps a per-student recent-activity window and a
// most-recent-wins broadcast channel behind this interface.
type DashboardNotifier interface {
	// RecordGraded publishes the refreshed realtime view for the student a
	// record belongs to.
	RecordGraded(ctx context.Context, rec *performance.Record) error
}

// Result reports how far one submission travelled through the pipeline.
// History lists every checkpoint reached, in order; Stage is the last one.
type Result struct {
	SubmissionID string
	StudentID    string
	Stage        Stage
	History      []Stage
	PointsEarned int
	TotalPoints  int
	Elapsed      time.Duration
}

func (r *Result) advance(stage Stage) {
	r.Stage = stage
	r.History = append(r.History, stage)
}

func newResult(submissionID, studentID string) *Result {
	r := &Result{SubmissionID: submissionID, StudentID: studentID}
	r.advance(StageReceived)
	return r
}

// Metrics holds pipeline counters, exposed for logging and tests.
type Metrics struct {
	Processed       atomic.Int64
	Malformed       atomic.Int64
	Delayed         atomic.Int64
	NotifyFailures  atomic.Int64
	RerankFailures  atomic.Int64
	AchievementRuns atomic.Int64
}

// GradingPipeline is the real-time dispatcher reacting to grading and
// achievement events.
type GradingPipeline struct {
	ingest      *command.IngestSubmissionHandler
	mastery     *command.RecomputeMasteryHandler
	progression *command.RecomputeProgressionHandler
	awards      *command.AwardPointsHandler
	rerank      *command.RerankClassHandler

	students roster.Repository
	bus      shared.EventPublisher
	notifier DashboardNotifier

	studentLocks *keymutex.Map
	lockWait     time.Duration
	storeRetry   *retry.Retrier
	lockRetry    *retry.Retrier
	notifyRetry  *retry.Retrier

	validate *validator.Validate
	logger   *slog.Logger
	metrics  Metrics
}

// Config wires a GradingPipeline. Bus and Notifier may be nil; the pipeline
// then skips the corresponding sends.
type Config struct {
	Ingest      *command.IngestSubmissionHandler
	Mastery     *command.RecomputeMasteryHandler
	Progression *command.RecomputeProgressionHandler
	Awards      *command.AwardPointsHandler
	Rerank      *command.RerankClassHandler

	Students roster.Repository
	Bus      shared.EventPublisher
	Notifier DashboardNotifier

	StudentLocks *keymutex.Map
	LockWait     time.Duration
	Logger       *slog.Logger
}

// New creates a GradingPipeline from its wiring.
func New(cfg Config) *GradingPipeline {
	if cfg.StudentLocks == nil {
		cfg.StudentLocks = keymutex.New()
	}
	if cfg.LockWait <= 0 {
		cfg.LockWait = 3 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &GradingPipeline{
		ingest:       cfg.Ingest,
		mastery:      cfg.Mastery,
		progression:  cfg.Progression,
		awards:       cfg.Awards,
		rerank:       cfg.Rerank,
		students:     cfg.Students,
		bus:          cfg.Bus,
		notifier:     cfg.Notifier,
		studentLocks: cfg.StudentLocks,
		lockWait:     cfg.LockWait,
		storeRetry:   retry.StoreRetrier(),
		lockRetry:    retry.LockRetrier(),
		notifyRetry:  retry.NotifyRetrier(),
		validate:     validator.New(),
		logger:       cfg.Logger,
	}
}

// Metrics exposes the pipeline counters.
func (p *GradingPipeline) Metrics() *Metrics {
	return &p.metrics
}

// ProcessSubmission runs one graded submission through the full pipeline.
func (p *GradingPipeline) ProcessSubmission(ctx context.Context, sub performance.GradedSubmission) (*Result, error) {
	start := time.Now()
	result := newResult(sub.SubmissionID, sub.StudentID)

	// Stage: RecordUpserted. Structural validation failures are terminal and
	// retry-free; store failures retry with backoff.
	rec, err := retry.DoWithData(ctx, func(ctx context.Context) (*performance.Record, error) {
		r, err := p.ingest.Handle(ctx, sub)
		if err != nil && shared.IsRetryable(err) {
			return nil, retry.Retryable(err)
		}
		return r, err
	})
	if err != nil {
		if shared.IsMalformed(err) {
			p.metrics.Malformed.Add(1)
			result.advance(StageFailedGraded)
			result.Elapsed = time.Since(start)
			return result, err
		}
		return p.fail(result, start, err)
	}
	result.advance(StageRecordUpserted)

	recordEvent := shared.NewRecordUpsertedEvent(rec.StudentID, rec.SubmissionID,
		rec.TopicID, rec.Percentage, rec.DemonstratedLevel.String())
	recordEvent.BaseEvent = recordEvent.WithCorrelationID(rec.SubmissionID)
	p.publish(recordEvent)

	// Stage: AggregatesRefreshed + PointsRefreshed, inside the per-student
	// critical section.
	var entryPoints, totalPoints, subjectRecords int
	var masteryPct float64
	var masteryLabel, lastLevel string
	err = p.withStudentLock(ctx, rec.StudentID, func(ctx context.Context) error {
		tm, err := p.mastery.Handle(ctx, rec.StudentID, rec.TopicID)
		if err != nil {
			return err
		}
		if tm != nil {
			masteryPct = tm.MasteryPercentage
			masteryLabel = string(tm.MasteryLabel)
		}
		sp, err := p.progression.Handle(ctx, rec.StudentID, rec.SubjectID)
		if err != nil {
			return err
		}
		if sp != nil {
			lastLevel = sp.LastDemonstratedLevel.String()
			subjectRecords = sp.TotalRecords()
		}
		result.advance(StageAggregatesRefreshed)

		entry, err := p.awards.AwardForRecord(ctx, rec)
		if err != nil {
			return err
		}
		agg, err := p.awards.RecomputeAggregate(ctx, rec.StudentID)
		if err != nil {
			return err
		}
		entryPoints = entry.Points
		totalPoints = agg.TotalPoints
		result.advance(StagePointsRefreshed)
		return nil
	})
	if err != nil {
		return p.delayOrFail(ctx, result, start, rec.StudentID, rec.SubmissionID, err)
	}
	result.PointsEarned = entryPoints
	result.TotalPoints = totalPoints

	// Leaderboards, outside the student lock. The rerank command serializes
	// per class internally.
	p.rerankScopes(ctx, rec.StudentID, rec.ClassID)

	// Stage: Notified, outside every lock.
	masteryEvent := shared.NewMasteryUpdatedEvent(rec.StudentID, rec.TopicID, masteryPct, masteryLabel)
	masteryEvent.BaseEvent = masteryEvent.WithCorrelationID(rec.SubmissionID)
	p.publish(masteryEvent)

	progressionEvent := shared.NewProgressionUpdatedEvent(rec.StudentID, rec.SubjectID, lastLevel, subjectRecords)
	progressionEvent.BaseEvent = progressionEvent.WithCorrelationID(rec.SubmissionID)
	p.publish(progressionEvent)

	p.notifyAfterGrade(ctx, rec, entryPoints, totalPoints)
	result.advance(StageNotified)

	result.advance(StageSucceeded)
	result.Elapsed = time.Since(start)
	p.metrics.Processed.Add(1)

	p.logger.Info("submission processed",
		"submission_id", rec.SubmissionID,
		"student_id", rec.StudentID,
		"points_earned", entryPoints,
		"total_points", totalPoints,
		"elapsed", result.Elapsed,
	)
	return result, nil
}

// ProcessAchievement awards the flat points for an unlocked achievement and
// refreshes the student's aggregate and leaderboards.
func (p *GradingPipeline) ProcessAchievement(ctx context.Context, unlock performance.AchievementUnlocked) (*Result, error) {
	start := time.Now()
	result := newResult("", unlock.StudentID)

	if err := p.validate.Struct(unlock); err != nil {
		p.metrics.Malformed.Add(1)
		result.advance(StageFailedGraded)
		result.Elapsed = time.Since(start)
		return result, shared.WrapError("points", "ProcessAchievement", shared.ErrMalformedSubmission,
			"achievement event failed structural validation", err)
	}

	var entryPoints, totalPoints int
	err := p.withStudentLock(ctx, unlock.StudentID, func(ctx context.Context) error {
		entry, err := p.awards.AwardForAchievement(ctx, unlock)
		if err != nil {
			return err
		}
		agg, err := p.awards.RecomputeAggregate(ctx, unlock.StudentID)
		if err != nil {
			return err
		}
		entryPoints = entry.Points
		totalPoints = agg.TotalPoints
		result.advance(StagePointsRefreshed)
		return nil
	})
	if err != nil {
		return p.delayOrFail(ctx, result, start, unlock.StudentID, unlock.AchievementID, err)
	}
	result.PointsEarned = entryPoints
	result.TotalPoints = totalPoints

	student, err := p.students.Get(ctx, unlock.StudentID)
	if err == nil {
		p.rerankScopes(ctx, student.ID, student.ClassID)
		p.publish(shared.NewPointsAwardedEvent(unlock.StudentID, entryPoints, totalPoints,
			string(shared.EventAchievementUnlocked), unlock.AchievementID))
		p.notifyDashboard(ctx, student.ID, student.ClassID, "")
	} else {
		p.logger.Warn("achievement processed for unknown enrollment",
			"student_id", unlock.StudentID, "error", err)
	}

	result.advance(StageSucceeded)
	result.Elapsed = time.Since(start)
	p.metrics.AchievementRuns.Add(1)
	return result, nil
}

// withStudentLock runs fn inside the per-student critical section, retrying
// acquisition with jittered backoff and retrying transient store failures of
// fn itself.
func (p *GradingPipeline) withStudentLock(ctx context.Context, studentID string, fn func(ctx context.Context) error) error {
	return p.lockRetry.Do(ctx, func(ctx context.Context) error {
		unlock, err := p.studentLocks.LockWithTimeout(ctx, studentID, p.lockWait)
		if err != nil {
			return retry.Retryable(shared.WrapError("pipeline", "StudentLock",
				shared.ErrLockTimeout, "student lock busy", err))
		}
		defer unlock()

		err = p.storeRetry.Do(ctx, func(ctx context.Context) error {
			err := fn(ctx)
			if err != nil && shared.IsRetryable(err) {
				return retry.Retryable(err)
			}
			return err
		})
		if err != nil {
			return retry.Permanent(err)
		}
		return nil
	})
}

// rerankScopes refreshes the class and campus leaderboards touched by a
// student's points change. Rerank failures degrade the boards to slightly
// stale, never the pipeline to failed.
func (p *GradingPipeline) rerankScopes(ctx context.Context, studentID, classID string) {
	standings, err := p.rerank.Handle(ctx, classID)
	if err != nil {
		p.metrics.RerankFailures.Add(1)
		p.logger.Error("class rerank failed", "class_id", classID, "error", err)
	} else {
		p.publish(shared.NewClassRerankedEvent(classID, len(standings)))
	}

	student, err := p.students.Get(ctx, studentID)
	if err != nil {
		p.logger.Warn("campus rerank skipped, enrollment lookup failed",
			"student_id", studentID, "error", err)
		return
	}
	if _, err := p.rerank.HandleCampus(ctx, student.CampusID); err != nil {
		p.metrics.RerankFailures.Add(1)
		p.logger.Error("campus rerank failed", "campus_id", student.CampusID, "error", err)
	}
}

// notifyAfterGrade emits the aggregate events and dashboard pushes for a
// processed submission. All sends are best effort.
func (p *GradingPipeline) notifyAfterGrade(ctx context.Context, rec *performance.Record, entryPoints, totalPoints int) {
	p.publish(shared.NewPointsAwardedEvent(rec.StudentID, entryPoints, totalPoints,
		string(shared.EventSubmissionGraded), rec.SubmissionID))
	p.notifyDashboard(ctx, rec.StudentID, rec.ClassID, rec.SubjectID)

	if p.notifier != nil {
		err := p.notifyRetry.Do(ctx, func(ctx context.Context) error {
			if err := p.notifier.RecordGraded(ctx, rec); err != nil {
				return retry.Retryable(err)
			}
			return nil
		})
		if err != nil {
			p.metrics.NotifyFailures.Add(1)
			p.logger.Warn("realtime push failed, update dropped",
				"student_id", rec.StudentID,
				"submission_id", rec.SubmissionID,
				"error", shared.WrapError("pipeline", "Notify", shared.ErrNotificationDelivery,
					"realtime push exhausted retries", err),
			)
		}
	}
}

// notifyDashboard resolves the account id and publishes the dashboard
// refresh event.
func (p *GradingPipeline) notifyDashboard(ctx context.Context, studentID, classID, subjectID string) {
	accountID, err := p.students.ResolveAccountID(ctx, studentID)
	if err != nil {
		p.metrics.NotifyFailures.Add(1)
		p.logger.Warn("dashboard notify skipped, account lookup failed",
			"student_id", studentID, "error", err)
		return
	}
	p.publish(shared.NewDashboardUpdateRequiredEvent(accountID, classID, subjectID))
}

// publish sends an event on the bus, logging delivery failures.
func (p *GradingPipeline) publish(event shared.Event) {
	if p.bus == nil {
		return
	}
	if err := p.bus.Publish(event); err != nil {
		p.metrics.NotifyFailures.Add(1)
		p.logger.Warn("event publish failed",
			"event_type", string(event.EventType()),
			"aggregate_id", event.AggregateID(),
			"error", err,
		)
	}
}

// delayOrFail classifies a student-section failure: exhausted lock retries
// become a Delayed terminal with an AnalyticsDelayed event, everything else
// fails the run.
func (p *GradingPipeline) delayOrFail(ctx context.Context, result *Result, start time.Time, studentID, sourceID string, err error) (*Result, error) {
	if shared.IsLockTimeout(err) {
		p.metrics.Delayed.Add(1)
		result.advance(StageDelayed)
		result.Elapsed = time.Since(start)
		p.publish(shared.NewAnalyticsDelayedEvent(studentID, sourceID, string(result.Stage),
			"student lock retries exhausted"))
		p.logger.Warn("analytics delayed, lock retries exhausted",
			"student_id", studentID, "source_id", sourceID)
		return result, shared.WrapError("pipeline", "Process", shared.ErrAnalyticsDelayed,
			"student section could not acquire lock", err)
	}
	return p.fail(result, start, err)
}

func (p *GradingPipeline) fail(result *Result, start time.Time, err error) (*Result, error) {
	result.Elapsed = time.Since(start)
	p.logger.Error("pipeline run failed",
		"submission_id", result.SubmissionID,
		"student_id", result.StudentID,
		"stage", string(result.Stage),
		"error", err,
	)
	return result, err
}
