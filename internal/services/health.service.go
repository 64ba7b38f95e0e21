package services

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/wasend/campaign-runner/internal/store"
)

// HealthService answers liveness probes by touching the campaign store.
type HealthService struct {
	store store.Store
}

func NewHealthService(st store.Store) *HealthService {
	return &HealthService{store: st}
}

func (s *HealthService) Get() error {
	if s.store == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := s.store.Get(ctx, "health-probe")
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}
