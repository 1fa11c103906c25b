package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the domain.
const (
	// Inbound events (from the grading and achievement collaborators)
	EventSubmissionGraded    EventType = "grading.submission_graded"
	EventAchievementUnlocked EventType = "achievement.unlocked"

	// Aggregate events
	EventRecordUpserted     EventType = "performance.record_upserted"
	EventMasteryUpdated     EventType = "mastery.topic_updated"
	EventProgressionUpdated EventType = "progression.subject_updated"
	EventPointsAwarded      EventType = "points.awarded"
	EventClassReranked      EventType = "points.class_reranked"

	// Outbound notifications (to dashboard collaborators)
	EventDashboardUpdateRequired EventType = "dashboard.update_required"
	EventRealtimeMetricsUpdated  EventType = "realtime.metrics_updated"

	// System events
	EventAnalyticsDelayed EventType = "system.analytics_delayed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// Correlation returns the correlation ID, empty when unset.
func (e BaseEvent) Correlation() string {
	return e.CorrelationID
}

// ═══════════════════════════════════════════════════════════════════════════
// Aggregate Events
// ═══════════════════════════════════════════════════════════════════════════

// RecordUpsertedEvent is emitted after a performance record is written,
// before any aggregate refresh.
type RecordUpsertedEvent struct {
	BaseEvent
	StudentID         string  `json:"student_id"`
	SubmissionID      string  `json:"submission_id"`
	TopicID           string  `json:"topic_id"`
	Percentage        float64 `json:"percentage"`
	DemonstratedLevel string  `json:"demonstrated_level"`
}

// Payload implements Event interface.
func (e RecordUpsertedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":         e.StudentID,
		"submission_id":      e.SubmissionID,
		"topic_id":           e.TopicID,
		"percentage":         e.Percentage,
		"demonstrated_level": e.DemonstratedLevel,
	}
}

// NewRecordUpsertedEvent creates a new RecordUpsertedEvent.
func NewRecordUpsertedEvent(studentID, submissionID, topicID string, pct float64, level string) RecordUpsertedEvent {
	return RecordUpsertedEvent{
		BaseEvent:         NewBaseEvent(EventRecordUpserted, studentID),
		StudentID:         studentID,
		SubmissionID:      submissionID,
		TopicID:           topicID,
		Percentage:        pct,
		DemonstratedLevel: level,
	}
}

// MasteryUpdatedEvent is emitted after a topic mastery row is recomputed.
type MasteryUpdatedEvent struct {
	BaseEvent
	StudentID         string  `json:"student_id"`
	TopicID           string  `json:"topic_id"`
	MasteryPercentage float64 `json:"mastery_percentage"`
	MasteryLabel      string  `json:"mastery_label"`
}

// Payload implements Event interface.
func (e MasteryUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":         e.StudentID,
		"topic_id":           e.TopicID,
		"mastery_percentage": e.MasteryPercentage,
		"mastery_label":      e.MasteryLabel,
	}
}

// NewMasteryUpdatedEvent creates a new MasteryUpdatedEvent.
func NewMasteryUpdatedEvent(studentID, topicID string, pct float64, label string) MasteryUpdatedEvent {
	return MasteryUpdatedEvent{
		BaseEvent:         NewBaseEvent(EventMasteryUpdated, studentID),
		StudentID:         studentID,
		TopicID:           topicID,
		MasteryPercentage: pct,
		MasteryLabel:      label,
	}
}

// ProgressionUpdatedEvent is emitted after a subject progression row is
// recomputed.
type ProgressionUpdatedEvent struct {
	BaseEvent
	StudentID             string `json:"student_id"`
	SubjectID             string `json:"subject_id"`
	LastDemonstratedLevel string `json:"last_demonstrated_level"`
	TotalRecords          int    `json:"total_records"`
}

// Payload implements Event interface.
func (e ProgressionUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":              e.StudentID,
		"subject_id":              e.SubjectID,
		"last_demonstrated_level": e.LastDemonstratedLevel,
		"total_records":           e.TotalRecords,
	}
}

// NewProgressionUpdatedEvent creates a new ProgressionUpdatedEvent.
func NewProgressionUpdatedEvent(studentID, subjectID, lastLevel string, totalRecords int) ProgressionUpdatedEvent {
	return ProgressionUpdatedEvent{
		BaseEvent:             NewBaseEvent(EventProgressionUpdated, studentID),
		StudentID:             studentID,
		SubjectID:             subjectID,
		LastDemonstratedLevel: lastLevel,
		TotalRecords:          totalRecords,
	}
}

// PointsAwardedEvent is emitted when a points entry is written for a student.
type PointsAwardedEvent struct {
	BaseEvent
	StudentID  string `json:"student_id"`
	Points     int    `json:"points"`
	NewTotal   int    `json:"new_total"`
	SourceType string `json:"source_type"` // "activity_grade" or "achievement"
	SourceID   string `json:"source_id"`
}

// Payload implements Event interface.
func (e PointsAwardedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":  e.StudentID,
		"points":      e.Points,
		"new_total":   e.NewTotal,
		"source_type": e.SourceType,
		"source_id":   e.SourceID,
	}
}

// NewPointsAwardedEvent creates a new PointsAwardedEvent.
func NewPointsAwardedEvent(studentID string, points, newTotal int, sourceType, sourceID string) PointsAwardedEvent {
	return PointsAwardedEvent{
		BaseEvent:  NewBaseEvent(EventPointsAwarded, studentID),
		StudentID:  studentID,
		Points:     points,
		NewTotal:   newTotal,
		SourceType: sourceType,
		SourceID:   sourceID,
	}
}

// ClassRerankedEvent is emitted after a full class reranking completes.
type ClassRerankedEvent struct {
	BaseEvent
	ClassID       string `json:"class_id"`
	TotalStudents int    `json:"total_students"`
}

// Payload implements Event interface.
func (e ClassRerankedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"class_id":       e.ClassID,
		"total_students": e.TotalStudents,
	}
}

// NewClassRerankedEvent creates a new ClassRerankedEvent.
func NewClassRerankedEvent(classID string, totalStudents int) ClassRerankedEvent {
	return ClassRerankedEvent{
		BaseEvent:     NewBaseEvent(EventClassReranked, classID),
		ClassID:       classID,
		TotalStudents: totalStudents,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Outbound Notifications
// ═══════════════════════════════════════════════════════════════════════════

// DashboardUpdateRequiredEvent tells dashboard collaborators to refresh the
// views for an account. Carries the account identifier, not the student id,
// because dashboards are keyed by login account.
type DashboardUpdateRequiredEvent struct {
	BaseEvent
	AccountID string `json:"account_id"`
	ClassID   string `json:"class_id"`
	SubjectID string `json:"subject_id,omitempty"`
}

// Payload implements Event interface.
func (e DashboardUpdateRequiredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"account_id": e.AccountID,
		"class_id":   e.ClassID,
		"subject_id": e.SubjectID,
	}
}

// NewDashboardUpdateRequiredEvent creates a new DashboardUpdateRequiredEvent.
func NewDashboardUpdateRequiredEvent(accountID, classID, subjectID string) DashboardUpdateRequiredEvent {
	return DashboardUpdateRequiredEvent{
		BaseEvent: NewBaseEvent(EventDashboardUpdateRequired, accountID),
		AccountID: accountID,
		ClassID:   classID,
		SubjectID: subjectID,
	}
}

// RealtimeMetricsUpdatedEvent is pushed to live dashboard connections
// subscribed to a student or class.
type RealtimeMetricsUpdatedEvent struct {
	BaseEvent
	StudentID    string                   `json:"student_id"`
	ClassID      string                   `json:"class_id"`
	CurrentLevel string                   `json:"current_level"`
	RecentWindow []map[string]interface{} `json:"recent_activity_window"`
}

// Payload implements Event interface.
func (e RealtimeMetricsUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":             e.StudentID,
		"class_id":               e.ClassID,
		"current_level":          e.CurrentLevel,
		"recent_activity_window": e.RecentWindow,
	}
}

// NewRealtimeMetricsUpdatedEvent creates a new RealtimeMetricsUpdatedEvent.
func NewRealtimeMetricsUpdatedEvent(studentID, classID, currentLevel string, window []map[string]interface{}) RealtimeMetricsUpdatedEvent {
	return RealtimeMetricsUpdatedEvent{
		BaseEvent:    NewBaseEvent(EventRealtimeMetricsUpdated, studentID),
		StudentID:    studentID,
		ClassID:      classID,
		CurrentLevel: currentLevel,
		RecentWindow: window,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// System Events
// ═══════════════════════════════════════════════════════════════════════════

// AnalyticsDelayedEvent is emitted when lock retries are exhausted and the
// pipeline gives up for now. The grade itself remains correct and durable.
type AnalyticsDelayedEvent struct {
	BaseEvent
	StudentID    string `json:"student_id"`
	SubmissionID string `json:"submission_id"`
	Stage        string `json:"stage"`
	Reason       string `json:"reason"`
}

// Payload implements Event interface.
func (e AnalyticsDelayedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":    e.StudentID,
		"submission_id": e.SubmissionID,
		"stage":         e.Stage,
		"reason":        e.Reason,
	}
}

// NewAnalyticsDelayedEvent creates a new AnalyticsDelayedEvent.
func NewAnalyticsDelayedEvent(studentID, submissionID, stage, reason string) AnalyticsDelayedEvent {
	return AnalyticsDelayedEvent{
		BaseEvent:    NewBaseEvent(EventAnalyticsDelayed, studentID),
		StudentID:    studentID,
		SubmissionID: submissionID,
		Stage:        stage,
		Reason:       reason,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
