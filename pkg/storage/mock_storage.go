package storage

import (
	"sync"
	"time"

	"github.com/bizflow/autopilot/pkg/models"
	"github.com/google/uuid"
)

// mockStore implements Store with in-memory storage. It enforces the same
// guarded-transition semantics as the postgres implementation so unit tests
// exercise the real concurrency contract.
type mockStore struct {
	mu       sync.Mutex
	tasks    map[string]models.FollowUpTask
	actions  map[string]models.AutomationAction
	settings models.AutomationSettings
	logs     []models.DecisionLog
}

// NewMockStore returns an in-memory store seeded with the settings
// singleton (enabled).
func NewMockStore() Store {
	return &mockStore{
		tasks:   make(map[string]models.FollowUpTask),
		actions: make(map[string]models.AutomationAction),
		settings: models.AutomationSettings{
			ID:        1,
			Enabled:   true,
			Version:   1,
			UpdatedAt: time.Now(),
		},
	}
}

func (m *mockStore) Begin() (Store, error) { return m, nil }
func (m *mockStore) Commit() error         { return nil }
func (m *mockStore) Rollback() error       { return nil }
func (m *mockStore) Close() error          { return nil }

func (m *mockStore) SaveFollowUpTask(t models.FollowUpTask) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	m.tasks[t.ID] = t
	return t.ID, nil
}

func (m *mockStore) GetFollowUpTask(id string) (models.FollowUpTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return models.FollowUpTask{}, ErrNotFound
	}
	return t, nil
}

func (m *mockStore) ListFollowUpTasks(status models.FollowUpStatus) ([]models.FollowUpTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tasks := []models.FollowUpTask{}
	for _, t := range m.tasks {
		if status == "" || t.Status == status {
			tasks = append(tasks, t)
		}
	}
	return tasks, nil
}

func (m *mockStore) ListDueFollowUpTasks(now time.Time) ([]models.FollowUpTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tasks := []models.FollowUpTask{}
	for _, t := range m.tasks {
		if t.Due(now) && (t.Status == models.PendingFollowUpStatus || t.Status == models.InProgressFollowUpStatus) {
			tasks = append(tasks, t)
		}
	}
	return tasks, nil
}

func (m *mockStore) UpdateFollowUpStatus(id string, from, to models.FollowUpStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return ErrNotFound
	}
	if t.Status != from {
		return ErrInvalidState
	}
	t.Status = to
	t.UpdatedAt = time.Now()
	m.tasks[id] = t
	return nil
}

func (m *mockStore) SaveAction(a models.AutomationAction) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now
	m.actions[a.ID] = a
	return a.ID, nil
}

func (m *mockStore) GetAction(id string) (models.AutomationAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.actions[id]
	if !ok {
		return models.AutomationAction{}, ErrNotFound
	}
	return a, nil
}

func (m *mockStore) ListActions(status models.ActionStatus) ([]models.AutomationAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	actions := []models.AutomationAction{}
	for _, a := range m.actions {
		if status == "" || a.Status == status {
			actions = append(actions, a)
		}
	}
	return actions, nil
}

func (m *mockStore) ActiveActionExists(taskID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.actions {
		if a.TaskID == taskID && !a.Status.Terminal() {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStore) UpdateActionStatus(id string, to models.ActionStatus, rejectionReason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.actions[id]
	if !ok {
		return ErrNotFound
	}
	if a.Status != models.PendingActionStatus {
		return ErrInvalidState
	}
	a.Status = to
	a.RejectionReason = rejectionReason
	a.UpdatedAt = time.Now()
	m.actions[id] = a
	return nil
}

func (m *mockStore) GetSettings() (models.AutomationSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings, nil
}

func (m *mockStore) UpdateSettings(enabled bool, expectedVersion int64) (models.AutomationSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings.Version != expectedVersion {
		return models.AutomationSettings{}, ErrInvalidState
	}
	m.settings.Enabled = enabled
	m.settings.Version++
	m.settings.UpdatedAt = time.Now()
	return m.settings, nil
}

func (m *mockStore) SaveDecisionLog(l models.DecisionLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.LoggedAt.IsZero() {
		l.LoggedAt = time.Now()
	}
	m.logs = append(m.logs, l)
	return nil
}

func (m *mockStore) ListDecisionLogs(refID string) ([]models.DecisionLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	logs := []models.DecisionLog{}
	for _, l := range m.logs {
		if refID == "" || l.RefID == refID {
			logs = append(logs, l)
		}
	}
	return logs, nil
}
