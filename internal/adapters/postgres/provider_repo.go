package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/ridepass/internal/core/domain"
)

// ProviderRepo implements ports.ProviderRepository with pgx.
type ProviderRepo struct {
	db *DB
}

// NewProviderRepo creates a new ProviderRepo.
func NewProviderRepo(db *DB) *ProviderRepo {
	return &ProviderRepo{db: db}
}

const providerColumns = `
	id::text, name, vehicle_label,
	ST_Y(location::geometry) AS lat,
	ST_X(location::geometry) AS lon,
	seats_available, rating, is_online, current_route, updated_at`

func scanProvider(row pgx.Row) (domain.Provider, error) {
	var (
		p     domain.Provider
		route []byte
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.VehicleLabel,
		&p.Location.Lat, &p.Location.Lon,
		&p.SeatsAvailable, &p.Rating, &p.IsOnline, &route, &p.UpdatedAt,
	)
	if err != nil {
		return p, err
	}
	if len(route) > 0 {
		var rt domain.Route
		if err := json.Unmarshal(route, &rt); err != nil {
			return p, fmt.Errorf("decode current_route: %w", err)
		}
		p.CurrentRoute = &rt
	}
	return p, nil
}

// ListOnline returns providers with is_online = true.
func (r *ProviderRepo) ListOnline(ctx context.Context) ([]domain.Provider, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+providerColumns+`
		FROM providers
		WHERE is_online
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	providers := make([]domain.Provider, 0)
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, fmt.Errorf("scan provider: %w", err)
		}
		providers = append(providers, p)
	}
	return providers, rows.Err()
}

// GetByID returns a provider by UUID.
func (r *ProviderRepo) GetByID(ctx context.Context, id string) (*domain.Provider, error) {
	p, err := scanProvider(r.db.Pool.QueryRow(ctx, `SELECT `+providerColumns+` FROM providers WHERE id::text = $1`, id))
	if err != nil {
		return nil, notFound(err, "provider "+id)
	}
	return &p, nil
}

// UpdateLocation moves a provider.
func (r *ProviderRepo) UpdateLocation(ctx context.Context, id string, loc domain.Coordinate) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE providers
		SET location = ST_SetSRID(ST_MakePoint($2, $3), 4326)::geography,
		    updated_at = NOW()
		WHERE id::text = $1
	`, id, loc.Lon, loc.Lat)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("provider %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// SetOnline toggles provider availability.
func (r *ProviderRepo) SetOnline(ctx context.Context, id string, online bool) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE providers SET is_online = $2, updated_at = NOW() WHERE id::text = $1
	`, id, online)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("provider %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
