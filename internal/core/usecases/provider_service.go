package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samirrijal/ridepass/internal/core/domain"
	"github.com/samirrijal/ridepass/internal/core/ports"
)

// ProviderService reads providers and owns the single location write path.
// Every write is followed by a change notification on the providers table,
// so live feeds observe simulated and real moves the same way.
type ProviderService struct {
	providers ports.ProviderRepository
	changes   ports.ChangeFeed
	logger    *slog.Logger
	now       func() time.Time
}

// NewProviderService creates a new ProviderService.
func NewProviderService(providers ports.ProviderRepository, changes ports.ChangeFeed, logger *slog.Logger) *ProviderService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProviderService{providers: providers, changes: changes, logger: logger, now: time.Now}
}

// ListOnline returns providers with is_online = true.
func (s *ProviderService) ListOnline(ctx context.Context) ([]domain.Provider, error) {
	providers, err := s.providers.ListOnline(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list online providers: %v", domain.ErrFetchFailed, err)
	}
	return providers, nil
}

// GetByID returns a single provider.
func (s *ProviderService) GetByID(ctx context.Context, id string) (*domain.Provider, error) {
	p, err := s.providers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("provider %s: %w", id, domain.ErrNotFound)
	}
	return p, nil
}

// UpdateLocation stores a new position for the provider and notifies subscribers.
func (s *ProviderService) UpdateLocation(ctx context.Context, id string, loc domain.Coordinate) error {
	if err := loc.Validate(); err != nil {
		return err
	}
	if err := s.providers.UpdateLocation(ctx, id, loc); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: update provider %s location: %v", domain.ErrWriteFailed, id, err)
	}
	s.notify(ctx, id, domain.ChangeUpdate)
	return nil
}

// SetOnline toggles provider availability and notifies subscribers.
func (s *ProviderService) SetOnline(ctx context.Context, id string, online bool) error {
	if err := s.providers.SetOnline(ctx, id, online); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: set provider %s online=%t: %v", domain.ErrWriteFailed, id, online, err)
	}
	s.notify(ctx, id, domain.ChangeUpdate)
	return nil
}

// notify is best-effort: the row is already written.
func (s *ProviderService) notify(ctx context.Context, id string, op domain.ChangeOp) {
	if s.changes == nil {
		return
	}
	ev := domain.ChangeEvent{Table: domain.TableProviders, Op: op, RowID: id, At: s.now()}
	if err := s.changes.Publish(ctx, ev); err != nil {
		s.logger.Warn("publish provider change failed", "provider_id", id, "error", err)
	}
}
