package saga

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/learnpulse/mastery-engine/internal/domain/mastery"
	"github.com/learnpulse/mastery-engine/internal/domain/performance"
	"github.com/learnpulse/mastery-engine/internal/domain/points"
	"github.com/learnpulse/mastery-engine/internal/domain/progression"
	"github.com/learnpulse/mastery-engine/internal/domain/roster"
	"github.com/learnpulse/mastery-engine/internal/domain/shared"
)

// In-memory repository fakes backing the pipeline tests. They honor the same
// contracts as the PostgreSQL implementations: upserts replace by key, reads
// of absent rows return shared.ErrNotFound.

// ──────────────────────────────────────────────────────────────────────────────

type memRecords struct {
	mu   sync.Mutex
	rows map[string]*performance.Record
}

func newMemRecords() *memRecords {
	return &memRecords{rows: make(map[string]*performance.Record)}
}

func (m *memRecords) Upsert(_ context.Context, record *performance.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *record
	m.rows[record.SubmissionID] = &cp
	return nil
}

func (m *memRecords) GetBySubmissionID(_ context.Context, submissionID string) (*performance.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.rows[submissionID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *memRecords) ListByStudentTopic(_ context.Context, studentID, topicID string) ([]*performance.Record, error) {
	return m.list(func(r *performance.Record) bool {
		return r.StudentID == studentID && r.TopicID == topicID
	}, false, 0), nil
}

func (m *memRecords) ListByStudentSubject(_ context.Context, studentID, subjectID string) ([]*performance.Record, error) {
	return m.list(func(r *performance.Record) bool {
		return r.StudentID == studentID && r.SubjectID == subjectID
	}, false, 0), nil
}

func (m *memRecords) ListRecentByStudent(_ context.Context, studentID string, limit int) ([]*performance.Record, error) {
	return m.list(func(r *performance.Record) bool {
		return r.StudentID == studentID
	}, true, limit), nil
}

func (m *memRecords) list(match func(*performance.Record) bool, newestFirst bool, limit int) []*performance.Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*performance.Record
	for _, rec := range m.rows {
		if match(rec) {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if newestFirst {
			return out[i].GradedAt.After(out[j].GradedAt)
		}
		return out[i].GradedAt.Before(out[j].GradedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (m *memRecords) DistinctStudentTopics(_ context.Context) ([]performance.StudentTopic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[performance.StudentTopic]bool)
	var out []performance.StudentTopic
	for _, rec := range m.rows {
		key := performance.StudentTopic{StudentID: rec.StudentID, TopicID: rec.TopicID}
		if !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	return out, nil
}

func (m *memRecords) DistinctStudentSubjects(_ context.Context) ([]performance.StudentSubject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[performance.StudentSubject]bool)
	var out []performance.StudentSubject
	for _, rec := range m.rows {
		key := performance.StudentSubject{StudentID: rec.StudentID, SubjectID: rec.SubjectID}
		if !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	return out, nil
}

func (m *memRecords) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// ──────────────────────────────────────────────────────────────────────────────

type memMastery struct {
	mu   sync.Mutex
	rows map[string]*mastery.TopicMastery
}

func newMemMastery() *memMastery {
	return &memMastery{rows: make(map[string]*mastery.TopicMastery)}
}

func masteryKey(studentID, topicID string) string { return studentID + "/" + topicID }

func (m *memMastery) Replace(_ context.Context, tm *mastery.TopicMastery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *tm
	m.rows[masteryKey(tm.StudentID, tm.TopicID)] = &cp
	return nil
}

func (m *memMastery) Get(_ context.Context, studentID, topicID string) (*mastery.TopicMastery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tm, ok := m.rows[masteryKey(studentID, topicID)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *tm
	return &cp, nil
}

func (m *memMastery) ListByStudent(_ context.Context, studentID string) ([]*mastery.TopicMastery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*mastery.TopicMastery
	for _, tm := range m.rows {
		if tm.StudentID == studentID {
			cp := *tm
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memMastery) Delete(_ context.Context, studentID, topicID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := masteryKey(studentID, topicID)
	if _, ok := m.rows[key]; !ok {
		return shared.ErrNotFound
	}
	delete(m.rows, key)
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────

type memProgression struct {
	mu   sync.Mutex
	rows map[string]*progression.SubjectProgression
}

func newMemProgression() *memProgression {
	return &memProgression{rows: make(map[string]*progression.SubjectProgression)}
}

func (m *memProgression) Replace(_ context.Context, sp *progression.SubjectProgression) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sp
	m.rows[sp.StudentID+"/"+sp.SubjectID] = &cp
	return nil
}

func (m *memProgression) Get(_ context.Context, studentID, subjectID string) (*progression.SubjectProgression, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sp, ok := m.rows[studentID+"/"+subjectID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *sp
	return &cp, nil
}

func (m *memProgression) ListByStudent(_ context.Context, studentID string) ([]*progression.SubjectProgression, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*progression.SubjectProgression
	for _, sp := range m.rows {
		if sp.StudentID == studentID {
			cp := *sp
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ──────────────────────────────────────────────────────────────────────────────

type memLedger struct {
	mu      sync.Mutex
	entries map[string]points.Entry
}

func newMemLedger() *memLedger {
	return &memLedger{entries: make(map[string]points.Entry)}
}

func ledgerKey(e points.Entry) string {
	return e.StudentID + "/" + string(e.SourceType) + "/" + e.SourceID
}

func (m *memLedger) Upsert(_ context.Context, entry points.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[ledgerKey(entry)] = entry
	return nil
}

func (m *memLedger) ListByStudent(_ context.Context, studentID string) ([]points.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []points.Entry
	for _, e := range m.entries {
		if e.StudentID == studentID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EarnedAt.Before(out[j].EarnedAt) })
	return out, nil
}

func (m *memLedger) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// ──────────────────────────────────────────────────────────────────────────────

type memAggregates struct {
	mu   sync.Mutex
	rows map[string]*points.Aggregate
}

func newMemAggregates() *memAggregates {
	return &memAggregates{rows: make(map[string]*points.Aggregate)}
}

func (m *memAggregates) Replace(_ context.Context, agg *points.Aggregate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *agg
	m.rows[agg.StudentID] = &cp
	return nil
}

func (m *memAggregates) Get(_ context.Context, studentID string) (*points.Aggregate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	agg, ok := m.rows[studentID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *agg
	return &cp, nil
}

func (m *memAggregates) ListByClass(_ context.Context, classID string) ([]*points.Aggregate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*points.Aggregate
	for _, agg := range m.rows {
		if agg.ClassID == classID {
			cp := *agg
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memAggregates) ListByStudentIDs(_ context.Context, studentIDs []string) ([]*points.Aggregate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*points.Aggregate
	for _, id := range studentIDs {
		if agg, ok := m.rows[id]; ok {
			cp := *agg
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memAggregates) UpdateClassRanks(_ context.Context, _ string, standings []points.Standing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range standings {
		if agg, ok := m.rows[s.StudentID]; ok {
			agg.ClassRank = s.Rank
			agg.ClassPercentile = s.Percentile
		}
	}
	return nil
}

func (m *memAggregates) UpdateCampusRanks(_ context.Context, _ string, standings []points.Standing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range standings {
		if agg, ok := m.rows[s.StudentID]; ok {
			agg.CampusRank = s.Rank
			agg.CampusPercentile = s.Percentile
		}
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────

type memSnapshots struct {
	mu     sync.Mutex
	latest map[string]*points.Snapshot
}

func newMemSnapshots() *memSnapshots {
	return &memSnapshots{latest: make(map[string]*points.Snapshot)}
}

func (m *memSnapshots) Save(_ context.Context, snapshot *points.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latest[snapshot.ClassID] = snapshot
	return nil
}

func (m *memSnapshots) GetLatest(_ context.Context, classID string) (*points.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.latest[classID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return snap, nil
}

func (m *memSnapshots) DeleteOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pruned := 0
	for classID, snap := range m.latest {
		if snap.CreatedAt.Before(cutoff) {
			delete(m.latest, classID)
			pruned++
		}
	}
	return pruned, nil
}

// ──────────────────────────────────────────────────────────────────────────────

type memRoster struct {
	mu       sync.Mutex
	students map[string]*roster.Student
}

func newMemRoster(students ...*roster.Student) *memRoster {
	m := &memRoster{students: make(map[string]*roster.Student)}
	for _, s := range students {
		m.students[s.ID] = s
	}
	return m
}

func (m *memRoster) Get(_ context.Context, studentID string) (*roster.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.students[studentID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memRoster) ListActiveByClass(_ context.Context, classID string) ([]*roster.Student, error) {
	return m.listActive(func(s *roster.Student) bool { return s.ClassID == classID }), nil
}

func (m *memRoster) ListActiveByCampus(_ context.Context, campusID string) ([]*roster.Student, error) {
	return m.listActive(func(s *roster.Student) bool { return s.CampusID == campusID }), nil
}

func (m *memRoster) listActive(match func(*roster.Student) bool) []*roster.Student {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*roster.Student
	for _, s := range m.students {
		if match(s) && s.Status.IsRanked() {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memRoster) ResolveAccountID(_ context.Context, studentID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.students[studentID]
	if !ok {
		return "", shared.ErrNotFound
	}
	return s.AccountID, nil
}

func (m *memRoster) ListClassIDs(_ context.Context) ([]string, error) {
	return m.distinct(func(s *roster.Student) string { return s.ClassID }), nil
}

func (m *memRoster) ListCampusIDs(_ context.Context) ([]string, error) {
	return m.distinct(func(s *roster.Student) string { return s.CampusID }), nil
}

func (m *memRoster) distinct(key func(*roster.Student) string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, s := range m.students {
		if s.Status.IsRanked() && !seen[key(s)] {
			seen[key(s)] = true
			out = append(out, key(s))
		}
	}
	sort.Strings(out)
	return out
}

// ──────────────────────────────────────────────────────────────────────────────

// captureBus records published events for assertions.
type captureBus struct {
	mu     sync.Mutex
	events []shared.Event
}

func (b *captureBus) Publish(event shared.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *captureBus) ofType(eventType shared.EventType) []shared.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []shared.Event
	for _, e := range b.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (b *captureBus) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

// captureNotifier records the submissions pushed toward dashboards.
type captureNotifier struct {
	mu     sync.Mutex
	graded []string
	calls  int
	err    error
}

func (n *captureNotifier) RecordGraded(_ context.Context, rec *performance.Record) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	if n.err != nil {
		return n.err
	}
	n.graded = append(n.graded, rec.SubmissionID)
	return nil
}

func (n *captureNotifier) callCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

func (n *captureNotifier) gradedSubmissions() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.graded))
	copy(out, n.graded)
	return out
}
