package http

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/ridepass/internal/core/domain"
	"github.com/samirrijal/ridepass/internal/core/usecases"
)

type createSessionRequest struct {
	ClientID string `json:"client_id"`
	Demo     bool   `json:"demo"`
}

// eventRequest is a navigation input from the rider front-end. Only the
// field matching the event is read.
type eventRequest struct {
	Event       string `json:"event"`
	HotspotID   int64  `json:"hotspot_id,omitempty"`
	ProviderID  string `json:"provider_id,omitempty"`
	Destination string `json:"destination,omitempty"`
}

type destinationRequest struct {
	Destination string `json:"destination"`
}

// dispatchEvent routes an event to the session call that carries its payload.
func dispatchEvent(ctx context.Context, sess *usecases.Session, req eventRequest) (usecases.SessionView, error) {
	switch ev := domain.Event(strings.TrimSpace(req.Event)); ev {
	case domain.EventTapHotspot:
		return sess.TapHotspot(ctx, req.HotspotID)
	case domain.EventTapProvider:
		return sess.TapProvider(ctx, req.ProviderID)
	case domain.EventSelectProvider:
		return sess.SelectProvider(ctx, req.ProviderID)
	case domain.EventConfirmDest:
		return sess.ChooseDestination(ctx, req.Destination)
	case domain.EventDemoOptIn:
		return sess.EnableDemo(ctx)
	default:
		return sess.Navigate(ctx, ev)
	}
}

// CreateSessionHandler opens a rider session. The access check starts in
// the background; the first view is usually still on the checking screen.
// ?demo=true has the same effect as "demo": true in the body.
func CreateSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req createSessionRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return errBadRequest(c, "invalid JSON body")
			}
		}

		sess := deps.Sessions.Create(c.UserContext(), usecases.SessionOptions{
			ClientID: req.ClientID,
			Demo:     req.Demo || c.QueryBool("demo", false),
			RemoteIP: c.IP(),
		})

		c.Location("/v1/sessions/" + sess.ID())
		return c.Status(fiber.StatusCreated).JSON(sess.View())
	}
}

// sessionHandler resolves :id and hands the session to fn.
func sessionHandler(deps *Dependencies, fn func(c *fiber.Ctx, sess *usecases.Session) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := deps.Sessions.Get(c.Params("id"))
		if err != nil {
			return mapError(c, err)
		}
		return fn(c, sess)
	}
}

// respondView writes the session view, or the mapped error if the
// operation was rejected.
func respondView(c *fiber.Ctx, v usecases.SessionView, err error) error {
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(v)
}

// GetSessionHandler returns the full session state.
func GetSessionHandler(deps *Dependencies) fiber.Handler {
	return sessionHandler(deps, func(c *fiber.Ctx, sess *usecases.Session) error {
		return c.JSON(sess.View())
	})
}

// DeleteSessionHandler ends a session and releases its feed and timers.
func DeleteSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Sessions.Close(c.Params("id")); err != nil {
			return mapError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// EnableDemoHandler is the demo opt-in from the blocked screen.
func EnableDemoHandler(deps *Dependencies) fiber.Handler {
	return sessionHandler(deps, func(c *fiber.Ctx, sess *usecases.Session) error {
		v, err := sess.EnableDemo(c.UserContext())
		return respondView(c, v, err)
	})
}

// ExitDemoHandler leaves demo mode and re-checks the rider's location.
func ExitDemoHandler(deps *Dependencies) fiber.Handler {
	return sessionHandler(deps, func(c *fiber.Ctx, sess *usecases.Session) error {
		v, err := sess.ExitDemo(c.UserContext())
		return respondView(c, v, err)
	})
}

// RetryHandler re-runs the location check from the blocked screen.
func RetryHandler(deps *Dependencies) fiber.Handler {
	return sessionHandler(deps, func(c *fiber.Ctx, sess *usecases.Session) error {
		v, err := sess.Retry(c.UserContext())
		return respondView(c, v, err)
	})
}

// SessionEventHandler applies one navigation event.
func SessionEventHandler(deps *Dependencies) fiber.Handler {
	return sessionHandler(deps, func(c *fiber.Ctx, sess *usecases.Session) error {
		var req eventRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		if strings.TrimSpace(req.Event) == "" {
			return errBadRequest(c, "event is required")
		}
		v, err := dispatchEvent(c.UserContext(), sess, req)
		return respondView(c, v, err)
	})
}

// ChooseDestinationHandler confirms the destination typed on the destination screen.
func ChooseDestinationHandler(deps *Dependencies) fiber.Handler {
	return sessionHandler(deps, func(c *fiber.Ctx, sess *usecases.Session) error {
		var req destinationRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		if strings.TrimSpace(req.Destination) == "" {
			return errBadRequest(c, "destination is required")
		}
		v, err := sess.ChooseDestination(c.UserContext(), req.Destination)
		return respondView(c, v, err)
	})
}
