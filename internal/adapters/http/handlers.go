package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/ridepass/internal/core/domain"
)

// ListHotspotsHandler returns every hotspot, paginated.
func ListHotspotsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		hotspots, err := deps.Hotspots.List(c.UserContext())
		if err != nil {
			return mapError(c, err)
		}
		return paginate(c, hotspots)
	}
}

// GetHotspotHandler returns a single hotspot by numeric id.
func GetHotspotHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := strconv.ParseInt(c.Params("id"), 10, 64)
		if err != nil || id <= 0 {
			return errBadRequest(c, "id must be a positive integer")
		}

		h, err := deps.Hotspots.GetByID(c.UserContext(), id)
		if err != nil {
			return mapError(c, err)
		}
		return c.JSON(h)
	}
}

// ListProvidersHandler returns online providers, paginated.
func ListProvidersHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		providers, err := deps.Providers.ListOnline(c.UserContext())
		if err != nil {
			return mapError(c, err)
		}
		return paginate(c, providers)
	}
}

// GetProviderHandler returns a provider whether or not it is online.
func GetProviderHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := deps.Providers.GetByID(c.UserContext(), c.Params("id"))
		if err != nil {
			return mapError(c, err)
		}
		return c.JSON(p)
	}
}

type locationRequest struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

// UpdateProviderLocationHandler is the driver-app write path. It goes
// through the same service call as the movement simulator, so every
// rider watching the map sees the change.
func UpdateProviderLocationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req locationRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		if req.Lat == nil || req.Lon == nil {
			return errBadRequest(c, "lat and lon are required")
		}

		id := c.Params("id")
		loc := domain.Coordinate{Lat: *req.Lat, Lon: *req.Lon}
		if err := deps.Providers.UpdateLocation(c.UserContext(), id, loc); err != nil {
			return mapError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

type onlineRequest struct {
	Online *bool `json:"online"`
}

// SetProviderOnlineHandler toggles whether a provider shows on riders' maps.
func SetProviderOnlineHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req onlineRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		if req.Online == nil {
			return errBadRequest(c, "online is required")
		}

		if err := deps.Providers.SetOnline(c.UserContext(), c.Params("id"), *req.Online); err != nil {
			return mapError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
