package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/learnpulse/mastery-engine/internal/application/saga"
	"github.com/learnpulse/mastery-engine/internal/domain/performance"
	"github.com/learnpulse/mastery-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// INBOUND EVENT DISPATCHER
// Subscribes the grading pipeline to the inbound event types and decodes
// their map payloads into typed DTOs. Remote events arrive as generic maps;
// a JSON round trip restores the typed shape before the pipeline sees them.
// ══════════════════════════════════════════════════════════════════════════════

// Dispatcher routes inbound grading and achievement events to the pipeline.
type Dispatcher struct {
	pipeline *saga.GradingPipeline
	timeout  time.Duration
	logger   *slog.Logger
}

// NewDispatcher creates a new Dispatcher. timeout bounds each pipeline run;
// zero means 30 seconds.
func NewDispatcher(pipeline *saga.GradingPipeline, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{pipeline: pipeline, timeout: timeout, logger: logger}
}

// Register subscribes the dispatcher's handlers on the bus.
func (d *Dispatcher) Register(bus shared.EventSubscriber) error {
	if err := bus.Subscribe(shared.EventSubmissionGraded, d.onSubmissionGraded); err != nil {
		return fmt.Errorf("subscribe submission graded: %w", err)
	}
	if err := bus.Subscribe(shared.EventAchievementUnlocked, d.onAchievementUnlocked); err != nil {
		return fmt.Errorf("subscribe achievement unlocked: %w", err)
	}
	return nil
}

func (d *Dispatcher) onSubmissionGraded(event shared.Event) error {
	var sub performance.GradedSubmission
	if err := decodePayload(event.Payload(), &sub); err != nil {
		d.logger.Error("undecodable submission graded event",
			"aggregate_id", event.AggregateID(), "error", err)
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	_, err := d.pipeline.ProcessSubmission(ctx, sub)
	if shared.IsMalformed(err) {
		// Already logged and counted; a malformed event must not be redelivered.
		return nil
	}
	return err
}

func (d *Dispatcher) onAchievementUnlocked(event shared.Event) error {
	var unlock performance.AchievementUnlocked
	if err := decodePayload(event.Payload(), &unlock); err != nil {
		d.logger.Error("undecodable achievement unlocked event",
			"aggregate_id", event.AggregateID(), "error", err)
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	_, err := d.pipeline.ProcessAchievement(ctx, unlock)
	if shared.IsMalformed(err) {
		return nil
	}
	return err
}

// decodePayload converts a generic event payload into a typed DTO.
func decodePayload(payload map[string]interface{}, dst interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	return nil
}
