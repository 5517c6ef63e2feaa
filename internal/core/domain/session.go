package domain

// AccessPhase is the outcome of the location gate.
type AccessPhase string

const (
	AccessChecking AccessPhase = "checking"
	AccessBlocked  AccessPhase = "blocked"
	AccessGranted  AccessPhase = "granted"
)

// AccessState is the location gate verdict. Demo is only meaningful when Granted.
type AccessState struct {
	Phase AccessPhase `json:"phase"`
	Demo  bool        `json:"demo"`
}

func (s AccessState) Granted() bool { return s.Phase == AccessGranted }

// Screen identifies the single active screen of a rider session.
type Screen string

const (
	ScreenChecking     Screen = "checking"
	ScreenBlocked      Screen = "blocked"
	ScreenSplash       Screen = "splash"
	ScreenOnboarding   Screen = "onboarding"
	ScreenMap          Screen = "map"
	ScreenDestination  Screen = "destination"
	ScreenProviders    Screen = "providers"
	ScreenConfirmation Screen = "confirmation"
)

// Screens lists every screen, gating pseudo-screens first.
var Screens = []Screen{
	ScreenChecking, ScreenBlocked, ScreenSplash, ScreenOnboarding,
	ScreenMap, ScreenDestination, ScreenProviders, ScreenConfirmation,
}

// Gated reports whether s is one of the location-gate pseudo-screens.
func (s Screen) Gated() bool {
	return s == ScreenChecking || s == ScreenBlocked
}

// Event is a navigation input to the screen state machine.
type Event string

const (
	EventSplashElapsed   Event = "splash_elapsed"
	EventSkip            Event = "skip"
	EventGetStarted      Event = "get_started"
	EventOpenDestination Event = "open_destination"
	EventBack            Event = "back"
	EventConfirmDest     Event = "confirm_destination"
	EventTapHotspot      Event = "tap_hotspot"
	EventTapProvider     Event = "tap_provider"
	EventSelectProvider  Event = "select_provider"
	EventBookAnother     Event = "book_another"
	EventDemoOptIn       Event = "demo_opt_in"
)

// Booking is the ephemeral confirmation shown after a provider is selected.
// It has no identifier and is never persisted.
type Booking struct {
	Provider    Provider `json:"provider"`
	Destination string   `json:"destination,omitempty"`
	Pickup      *Hotspot `json:"pickup,omitempty"`
}
