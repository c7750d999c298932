package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"kycflow/internal/domain"
)

// In-memory stores keep the initial implementation lightweight and testable.
// They intentionally favor clarity over performance.
type InMemoryAuditStore struct {
	mu     sync.RWMutex
	events []domain.AuditEvent
}

func NewInMemoryAuditStore() *InMemoryAuditStore {
	return &InMemoryAuditStore{}
}

func (s *InMemoryAuditStore) Append(_ context.Context, event domain.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *InMemoryAuditStore) ListByUser(_ context.Context, userID string) ([]domain.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.AuditEvent
	for _, e := range s.events {
		if e.Actor == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *InMemoryAuditStore) ListRecent(_ context.Context, since time.Time, limit int) ([]domain.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.AuditEvent
	for _, e := range s.events {
		if !e.Timestamp.Before(since) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type InMemoryEntryStore struct {
	mu      sync.RWMutex
	entries map[string]domain.Entry
	byList  map[string][]string
}

func NewInMemoryEntryStore() *InMemoryEntryStore {
	return &InMemoryEntryStore{
		entries: make(map[string]domain.Entry),
		byList:  make(map[string][]string),
	}
}

func (s *InMemoryEntryStore) Save(_ context.Context, entry domain.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[entry.ID]; !exists {
		s.byList[entry.ListID] = append(s.byList[entry.ListID], entry.ID)
	}
	s.entries[entry.ID] = entry
	return nil
}

func (s *InMemoryEntryStore) FindByID(_ context.Context, id string) (domain.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if entry, ok := s.entries[id]; ok {
		return entry, nil
	}
	return domain.Entry{}, ErrNotFound
}

func (s *InMemoryEntryStore) ListByList(_ context.Context, listID string) ([]domain.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byList[listID]
	out := make([]domain.Entry, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.entries[id])
	}
	return out, nil
}

type InMemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]domain.BulkJob
}

func NewInMemoryJobStore() *InMemoryJobStore {
	return &InMemoryJobStore{jobs: make(map[string]domain.BulkJob)}
}

func (s *InMemoryJobStore) Save(_ context.Context, job domain.BulkJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return nil
}

func (s *InMemoryJobStore) FindByID(_ context.Context, id string) (domain.BulkJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if job, ok := s.jobs[id]; ok {
		return job, nil
	}
	return domain.BulkJob{}, ErrNotFound
}

type InMemoryAlertStore struct {
	mu     sync.RWMutex
	alerts map[string]domain.Alert
	order  []string
}

func NewInMemoryAlertStore() *InMemoryAlertStore {
	return &InMemoryAlertStore{alerts: make(map[string]domain.Alert)}
}

func (s *InMemoryAlertStore) Save(_ context.Context, alert domain.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.alerts[alert.ID]; !exists {
		s.order = append(s.order, alert.ID)
	}
	s.alerts[alert.ID] = alert
	return nil
}

func (s *InMemoryAlertStore) FindByID(_ context.Context, id string) (domain.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if alert, ok := s.alerts[id]; ok {
		return alert, nil
	}
	return domain.Alert{}, ErrNotFound
}

func (s *InMemoryAlertStore) ListUnacknowledged(_ context.Context) ([]domain.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Alert
	for _, id := range s.order {
		if alert := s.alerts[id]; !alert.Acknowledged {
			out = append(out, alert)
		}
	}
	return out, nil
}

type InMemoryHealthStore struct {
	mu      sync.RWMutex
	records map[string]domain.HealthRecord
}

func NewInMemoryHealthStore() *InMemoryHealthStore {
	return &InMemoryHealthStore{records: make(map[string]domain.HealthRecord)}
}

func (s *InMemoryHealthStore) Save(_ context.Context, record domain.HealthRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.Service] = record
	return nil
}

func (s *InMemoryHealthStore) Find(_ context.Context, provider string) (domain.HealthRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if record, ok := s.records[provider]; ok {
		return record, nil
	}
	return domain.HealthRecord{}, ErrNotFound
}

func (s *InMemoryHealthStore) List(_ context.Context) ([]domain.HealthRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.HealthRecord, 0, len(s.records))
	for _, record := range s.records {
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Service < out[j].Service })
	return out, nil
}

type InMemoryUsageStore struct {
	mu      sync.RWMutex
	records map[string]domain.UsageRecord
}

func NewInMemoryUsageStore() *InMemoryUsageStore {
	return &InMemoryUsageStore{records: make(map[string]domain.UsageRecord)}
}

func usageKey(provider, period, key string) string {
	return provider + ":" + period + ":" + key
}

func (s *InMemoryUsageStore) Save(_ context.Context, record domain.UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[usageKey(record.Provider, record.Period, record.Key)] = record
	return nil
}

func (s *InMemoryUsageStore) Find(_ context.Context, provider, period, key string) (domain.UsageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if record, ok := s.records[usageKey(provider, period, key)]; ok {
		return record, nil
	}
	return domain.UsageRecord{}, ErrNotFound
}

type InMemoryNotificationStore struct {
	mu    sync.RWMutex
	notes map[string][]domain.Notification
}

func NewInMemoryNotificationStore() *InMemoryNotificationStore {
	return &InMemoryNotificationStore{notes: make(map[string][]domain.Notification)}
}

func (s *InMemoryNotificationStore) Save(_ context.Context, note domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes[note.UserID] = append(s.notes[note.UserID], note)
	return nil
}

func (s *InMemoryNotificationStore) ListByUser(_ context.Context, userID string) ([]domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Notification{}, s.notes[userID]...), nil
}
