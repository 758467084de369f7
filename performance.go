package tabletop

import "github.com/hajimehoshi/ebiten/v2"

// Tier is a coarse device-capability-derived bucket controlling
// animation, anti-aliasing, and frame-rate defaults.
type Tier uint8

const (
	TierLow  Tier = iota // minimal: capped frame rate, no animations
	TierMed              // mid-range: mipmaps, animations, no AA
	TierHigh             // full feature set at display rate
	TierMax              // uncapped frame rate
)

// String returns the tier's persisted name.
func (t Tier) String() string {
	switch t {
	case TierLow:
		return "low"
	case TierMed:
		return "med"
	case TierHigh:
		return "high"
	case TierMax:
		return "max"
	default:
		return "unknown"
	}
}

// TierFromName parses a persisted tier name. The second return value is
// false for unrecognized names (including the empty "auto" preference).
func TierFromName(name string) (Tier, bool) {
	switch name {
	case "low":
		return TierLow, true
	case "med":
		return TierMed, true
	case "high":
		return TierHigh, true
	case "max":
		return TierMax, true
	default:
		return TierLow, false
	}
}

// PerformanceSettings are the derived settings a tier controls. Computed
// once per session (or on explicit user change) and read-only afterwards:
// groups and drawables read these values but never mutate them.
type PerformanceSettings struct {
	Tier       Tier
	FrameCapHz int // 0 = sync with display refresh
	Mipmap     bool
	Antialias  bool
	SoftEdges  bool
	Animations bool
}

// PreferenceStore supplies the process-wide user preferences the engine
// consumes. Implementations are external; a zero-value NullPreferences can
// be used when no store exists.
type PreferenceStore interface {
	// PerformanceTier returns the stored tier name, or "" for automatic
	// selection from device capability.
	PerformanceTier() string
	// FrameCap returns a frame-rate cap override in Hz, or 0 for the
	// tier default.
	FrameCap() int
	// ReducedMotion reports the reduced-motion / photosensitive flag.
	// When set, animation toggles are forced off regardless of tier.
	ReducedMotion() bool
	// LastTool returns the name of the last active interaction tool.
	LastTool() string
	// SetLastTool persists the last active interaction tool.
	SetLastTool(name string)
}

// NullPreferences is a PreferenceStore with no stored state.
type NullPreferences struct{}

func (NullPreferences) PerformanceTier() string { return "" }
func (NullPreferences) FrameCap() int           { return 0 }
func (NullPreferences) ReducedMotion() bool     { return false }
func (NullPreferences) LastTool() string        { return "" }
func (NullPreferences) SetLastTool(string)      {}

// DerivePerformance computes the performance settings for a session from
// probed capability and stored preference. A stored tier name overrides the
// capability-derived tier; a stored frame cap overrides the tier default.
func DerivePerformance(caps Capabilities, prefs PreferenceStore) PerformanceSettings {
	tier := tierForCapabilities(caps)
	if override, ok := TierFromName(prefs.PerformanceTier()); ok {
		tier = override
	}

	s := settingsForTier(tier)
	if cap := prefs.FrameCap(); cap > 0 {
		s.FrameCapHz = cap
	}
	if prefs.ReducedMotion() {
		s.Animations = false
	}
	return s
}

// tierForCapabilities picks the automatic tier for a device.
func tierForCapabilities(caps Capabilities) Tier {
	switch {
	case !caps.OffscreenSurfaces:
		return TierLow
	case !caps.PixelReadback:
		return TierMed
	default:
		return TierHigh
	}
}

// settingsForTier returns the per-tier defaults.
func settingsForTier(tier Tier) PerformanceSettings {
	switch tier {
	case TierLow:
		return PerformanceSettings{Tier: tier, FrameCapHz: 30}
	case TierMed:
		return PerformanceSettings{Tier: tier, FrameCapHz: 60, Mipmap: true, Animations: true}
	case TierHigh:
		return PerformanceSettings{Tier: tier, FrameCapHz: 60, Mipmap: true, Antialias: true, SoftEdges: true, Animations: true}
	default: // TierMax
		return PerformanceSettings{Tier: tier, FrameCapHz: 0, Mipmap: true, Antialias: true, SoftEdges: true, Animations: true}
	}
}

// Apply pushes the frame-rate cap to the host game loop.
func (s PerformanceSettings) Apply() {
	if s.FrameCapHz <= 0 {
		ebiten.SetTPS(ebiten.SyncWithFPS)
		return
	}
	ebiten.SetTPS(s.FrameCapHz)
}

// TextureFilter returns the sampling filter drawables should use under
// these settings.
func (s PerformanceSettings) TextureFilter() ebiten.Filter {
	if s.Antialias {
		return ebiten.FilterLinear
	}
	return ebiten.FilterNearest
}
