package schedule

import (
	"context"
	"errors"
	"sync"

	"barberbook/internal/domain"
)

var ErrInvalidConfig = errors.New("invalid schedule config")

// ConfigStore persists the singleton working-hours row.
type ConfigStore interface {
	Load(ctx context.Context) (domain.ScheduleConfig, bool, error)
	Save(ctx context.Context, cfg domain.ScheduleConfig) error
}

// Settings holds the working-hours configuration in force. Only the provider
// mutates it; bookings made under an earlier config stay valid.
type Settings struct {
	mu   sync.RWMutex
	cfg  domain.ScheduleConfig
	repo ConfigStore
}

func NewSettings(repo ConfigStore) *Settings {
	return &Settings{cfg: domain.DefaultScheduleConfig(), repo: repo}
}

// Init loads the persisted config, keeping defaults when none exists yet.
func (s *Settings) Init(ctx context.Context) error {
	cfg, ok, err := s.repo.Load(ctx)
	if err != nil {
		return err
	}
	if ok {
		s.mu.Lock()
		s.cfg = cfg
		s.mu.Unlock()
	}
	return nil
}

func (s *Settings) Current() domain.ScheduleConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Update validates, persists, then swaps the in-memory config. A failed
// durable write leaves the previous config in force.
func (s *Settings) Update(ctx context.Context, cfg domain.ScheduleConfig) error {
	if !cfg.Validate() {
		return ErrInvalidConfig
	}
	if err := s.repo.Save(ctx, cfg); err != nil {
		return err
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	return nil
}
