package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/ridepass/internal/core/domain"
)

// HotspotRepo implements ports.HotspotRepository with pgx.
type HotspotRepo struct {
	db *DB
}

// NewHotspotRepo creates a new HotspotRepo.
func NewHotspotRepo(db *DB) *HotspotRepo {
	return &HotspotRepo{db: db}
}

const hotspotColumns = `
	id, name,
	ST_Y(location::geometry) AS lat,
	ST_X(location::geometry) AS lon,
	provider_count, status`

func scanHotspot(row pgx.Row) (domain.Hotspot, error) {
	var h domain.Hotspot
	err := row.Scan(&h.ID, &h.Name, &h.Location.Lat, &h.Location.Lon, &h.ProviderCount, &h.Status)
	return h, err
}

// List returns all hotspots ordered by name.
func (r *HotspotRepo) List(ctx context.Context) ([]domain.Hotspot, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+hotspotColumns+` FROM hotspots ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hotspots := make([]domain.Hotspot, 0)
	for rows.Next() {
		h, err := scanHotspot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan hotspot: %w", err)
		}
		hotspots = append(hotspots, h)
	}
	return hotspots, rows.Err()
}

// GetByID returns a single hotspot.
func (r *HotspotRepo) GetByID(ctx context.Context, id int64) (*domain.Hotspot, error) {
	h, err := scanHotspot(r.db.Pool.QueryRow(ctx, `SELECT `+hotspotColumns+` FROM hotspots WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("hotspot %d", id))
	}
	return &h, nil
}
