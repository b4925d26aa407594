package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/bizflow/autopilot/pkg/models"
	"github.com/bizflow/autopilot/pkg/storage"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type DBInterface interface {
	Get(dest interface{}, query string, args ...interface{}) error
	Select(dest interface{}, query string, args ...interface{}) error
	QueryRowx(query string, args ...interface{}) *sqlx.Row
	Exec(query string, args ...interface{}) (sql.Result, error)
}

type PostgresStore struct {
	db DBInterface
}

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Begin() (storage.Store, error) {
	if db, ok := s.db.(*sqlx.DB); ok {
		tx, err := db.Beginx()
		if err != nil {
			return nil, err
		}
		return &PostgresStore{db: tx}, nil
	}
	return nil, fmt.Errorf("cannot begin transaction on unknown type")
}

func (s *PostgresStore) Commit() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Commit()
	}
	return fmt.Errorf("cannot commit: not a transaction")
}

func (s *PostgresStore) Rollback() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Rollback()
	}
	return fmt.Errorf("cannot rollback: not a transaction")
}

func (s *PostgresStore) Close() error {
	if db, ok := s.db.(*sqlx.DB); ok {
		return db.Close()
	}
	return nil // No-op for *sqlx.Tx
}

const taskColumns = "id, contact_ref, task_type, priority, scheduled_for, status, created_at, updated_at"

// SaveFollowUpTask creates a new follow-up task and returns its ID.
func (s *PostgresStore) SaveFollowUpTask(t models.FollowUpTask) (string, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	_, err := s.db.Exec(`INSERT INTO follow_up_tasks (id, contact_ref, task_type, priority, scheduled_for, status)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.ContactRef, t.Type, t.Priority, t.ScheduledFor, t.Status)
	if err != nil {
		return "", fmt.Errorf("save follow-up task: %w", err)
	}
	return t.ID, nil
}

// GetFollowUpTask retrieves a task by ID.
func (s *PostgresStore) GetFollowUpTask(id string) (models.FollowUpTask, error) {
	var t models.FollowUpTask
	err := s.db.Get(&t, "SELECT "+taskColumns+" FROM follow_up_tasks WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.FollowUpTask{}, storage.ErrNotFound
	}
	if err != nil {
		return models.FollowUpTask{}, err
	}
	return t, nil
}

func (s *PostgresStore) ListFollowUpTasks(status models.FollowUpStatus) ([]models.FollowUpTask, error) {
	tasks := []models.FollowUpTask{}
	if status == "" {
		err := s.db.Select(&tasks, "SELECT "+taskColumns+" FROM follow_up_tasks ORDER BY scheduled_for")
		return tasks, err
	}
	err := s.db.Select(&tasks, "SELECT "+taskColumns+" FROM follow_up_tasks WHERE status = $1 ORDER BY scheduled_for", status)
	return tasks, err
}

// ListDueFollowUpTasks returns processable tasks whose schedule has
// arrived.
func (s *PostgresStore) ListDueFollowUpTasks(now time.Time) ([]models.FollowUpTask, error) {
	tasks := []models.FollowUpTask{}
	err := s.db.Select(&tasks, `SELECT `+taskColumns+` FROM follow_up_tasks
		WHERE scheduled_for <= $1 AND status IN ('pending', 'in_progress')
		ORDER BY scheduled_for`, now)
	return tasks, err
}

// UpdateFollowUpStatus transitions a task between statuses with a guarded
// update; the guard makes concurrent transitions first-committer-wins.
func (s *PostgresStore) UpdateFollowUpStatus(id string, from, to models.FollowUpStatus) error {
	res, err := s.db.Exec(`UPDATE follow_up_tasks SET status = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2 AND status = $3`, to, id, from)
	if err != nil {
		return fmt.Errorf("update follow-up status: %w", err)
	}
	return s.checkGuarded(res, "SELECT count(*) FROM follow_up_tasks WHERE id = $1", id)
}

const actionColumns = `id, task_id, client_ref, subject AS "proposed.subject", body AS "proposed.body",
	confidence_score, status, rejection_reason, created_at, updated_at`

// SaveAction persists a drafted action and returns its ID.
func (s *PostgresStore) SaveAction(a models.AutomationAction) (string, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	_, err := s.db.Exec(`INSERT INTO automation_actions (id, task_id, client_ref, subject, body, confidence_score, status, rejection_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.TaskID, a.ClientRef, a.Proposed.Subject, a.Proposed.Body, a.Confidence, a.Status, a.RejectionReason)
	if err != nil {
		return "", fmt.Errorf("save action: %w", err)
	}
	return a.ID, nil
}

// GetAction retrieves an action by ID.
func (s *PostgresStore) GetAction(id string) (models.AutomationAction, error) {
	var a models.AutomationAction
	err := s.db.Get(&a, "SELECT "+actionColumns+" FROM automation_actions WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.AutomationAction{}, storage.ErrNotFound
	}
	if err != nil {
		return models.AutomationAction{}, err
	}
	return a, nil
}

func (s *PostgresStore) ListActions(status models.ActionStatus) ([]models.AutomationAction, error) {
	actions := []models.AutomationAction{}
	if status == "" {
		err := s.db.Select(&actions, "SELECT "+actionColumns+" FROM automation_actions ORDER BY created_at DESC")
		return actions, err
	}
	err := s.db.Select(&actions, "SELECT "+actionColumns+" FROM automation_actions WHERE status = $1 ORDER BY created_at DESC", status)
	return actions, err
}

// ActiveActionExists reports whether a non-terminal action already
// references the task.
func (s *PostgresStore) ActiveActionExists(taskID string) (bool, error) {
	var count int
	err := s.db.Get(&count, "SELECT count(*) FROM automation_actions WHERE task_id = $1 AND status = 'pending'", taskID)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateActionStatus commits a terminal review decision. The status guard
// serializes concurrent approve/reject calls: whichever commits first wins
// and the loser observes ErrInvalidState.
func (s *PostgresStore) UpdateActionStatus(id string, to models.ActionStatus, rejectionReason string) error {
	res, err := s.db.Exec(`UPDATE automation_actions SET status = $1, rejection_reason = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $3 AND status = 'pending'`, to, rejectionReason, id)
	if err != nil {
		return fmt.Errorf("update action status: %w", err)
	}
	return s.checkGuarded(res, "SELECT count(*) FROM automation_actions WHERE id = $1", id)
}

func (s *PostgresStore) GetSettings() (models.AutomationSettings, error) {
	var settings models.AutomationSettings
	err := s.db.Get(&settings, "SELECT id, enabled, version, updated_at FROM automation_settings WHERE id = 1")
	if err == sql.ErrNoRows {
		return models.AutomationSettings{}, storage.ErrNotFound
	}
	if err != nil {
		return models.AutomationSettings{}, err
	}
	return settings, nil
}

// UpdateSettings performs the versioned compare-and-set toggle.
func (s *PostgresStore) UpdateSettings(enabled bool, expectedVersion int64) (models.AutomationSettings, error) {
	var settings models.AutomationSettings
	err := s.db.QueryRowx(`UPDATE automation_settings SET enabled = $1, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = 1 AND version = $2
		RETURNING id, enabled, version, updated_at`, enabled, expectedVersion).
		StructScan(&settings)
	if err == sql.ErrNoRows {
		return models.AutomationSettings{}, storage.ErrInvalidState
	}
	if err != nil {
		return models.AutomationSettings{}, fmt.Errorf("update settings: %w", err)
	}
	return settings, nil
}

func (s *PostgresStore) SaveDecisionLog(l models.DecisionLog) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.LoggedAt.IsZero() {
		l.LoggedAt = time.Now()
	}
	_, err := s.db.Exec(`INSERT INTO decision_logs (id, kind, ref_id, source, message, logged_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		l.ID, l.Kind, l.RefID, l.Source, l.Message, l.LoggedAt)
	return err
}

func (s *PostgresStore) ListDecisionLogs(refID string) ([]models.DecisionLog, error) {
	logs := []models.DecisionLog{}
	if refID == "" {
		err := s.db.Select(&logs, "SELECT id, kind, ref_id, source, message, logged_at FROM decision_logs ORDER BY logged_at DESC")
		return logs, err
	}
	err := s.db.Select(&logs, "SELECT id, kind, ref_id, source, message, logged_at FROM decision_logs WHERE ref_id = $1 ORDER BY logged_at DESC", refID)
	return logs, err
}

// checkGuarded distinguishes a missing record from a lost transition race
// after a guarded update touched zero rows.
func (s *PostgresStore) checkGuarded(res sql.Result, existsQuery string, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}
	var count int
	if err := s.db.Get(&count, existsQuery, id); err != nil {
		return err
	}
	if count == 0 {
		return storage.ErrNotFound
	}
	return storage.ErrInvalidState
}
