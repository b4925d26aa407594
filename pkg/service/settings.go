package service

import (
	"github.com/bizflow/autopilot/pkg/models"
	"github.com/bizflow/autopilot/pkg/storage"
	"github.com/pkg/errors"
)

// How many times Toggle retries a lost compare-and-set race before giving
// up.
const toggleRetries = 3

// SettingsService manages the global automation switch. The flag gates only
// the creation of new actions; already-pending actions and scheduled tasks
// are unaffected by a toggle.
type SettingsService struct {
	store  storage.Store
	logger Logger
}

func NewSettingsService(store storage.Store, logger Logger) *SettingsService {
	return &SettingsService{store: store, logger: logger}
}

// Get returns the current settings record.
func (s *SettingsService) Get() (models.AutomationSettings, error) {
	return s.store.GetSettings()
}

// Toggle flips the enabled flag using versioned compare-and-set writes so a
// concurrent toggle cannot be silently overwritten.
func (s *SettingsService) Toggle(enabled bool) (models.AutomationSettings, error) {
	var lastErr error
	for attempt := 0; attempt < toggleRetries; attempt++ {
		current, err := s.store.GetSettings()
		if err != nil {
			return models.AutomationSettings{}, errors.Wrap(err, "failed to read settings")
		}
		updated, err := s.store.UpdateSettings(enabled, current.Version)
		if err == nil {
			s.logger.Infof("Automation switched to enabled=%t (version %d)", enabled, updated.Version)
			return updated, nil
		}
		if !errors.Is(err, storage.ErrInvalidState) {
			return models.AutomationSettings{}, errors.Wrap(err, "failed to update settings")
		}
		lastErr = err
	}
	return models.AutomationSettings{}, errors.Wrapf(lastErr, "failed to toggle settings after %d attempts", toggleRetries)
}
