package domain

import "time"

// HotspotStatus grades how busy a hotspot is.
type HotspotStatus string

const (
	HotspotHigh   HotspotStatus = "high"
	HotspotMedium HotspotStatus = "medium"
	HotspotLow    HotspotStatus = "low"
)

// Valid reports whether s is one of the known statuses.
func (s HotspotStatus) Valid() bool {
	switch s {
	case HotspotHigh, HotspotMedium, HotspotLow:
		return true
	}
	return false
}

// Hotspot is a named map location advertising how many providers are nearby.
type Hotspot struct {
	ID            int64         `json:"id"`
	Name          string        `json:"name"`
	Location      Coordinate    `json:"location"`
	ProviderCount int           `json:"provider_count"`
	Status        HotspotStatus `json:"status"`
}

// Route is the trip a provider is currently serving.
type Route struct {
	Pickup NamedPlace `json:"pickup"`
	Drop   NamedPlace `json:"drop"`
}

// Provider is a driver/vehicle with a live location.
type Provider struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	VehicleLabel   string     `json:"vehicle_label"`
	Location       Coordinate `json:"location"`
	SeatsAvailable int        `json:"seats_available"`
	Rating         float64    `json:"rating"`
	IsOnline       bool       `json:"is_online"`
	CurrentRoute   *Route     `json:"current_route,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Table names used for change notifications.
const (
	TableHotspots  = "hotspots"
	TableProviders = "providers"
)

// ChangeOp is the kind of row change carried by a ChangeEvent.
type ChangeOp string

const (
	ChangeInsert ChangeOp = "insert"
	ChangeUpdate ChangeOp = "update"
	ChangeDelete ChangeOp = "delete"
)

// ChangeEvent signals that a row in a table changed.
type ChangeEvent struct {
	Table string    `json:"table"`
	Op    ChangeOp  `json:"op"`
	RowID string    `json:"row_id"`
	At    time.Time `json:"at"`
}
