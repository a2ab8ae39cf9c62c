package align

// ------------------------ TUNABLES ------------------------
const (
	// BaseWindow is the reference half-second window, in the track time unit.
	BaseWindow = 500

	// The tolerance never shrinks below MinPercent nor grows above
	// MaxPercent of BaseWindow.
	MinPercent = 60
	MaxPercent = 100

	// GlobalTimeOffset is added to every target instant. It is always zero.
	GlobalTimeOffset = 0
)

// Window is the dynamic tolerance model. The factor is
// clamp(duration/Base, MinPercent/100, MaxPercent/100) and the tolerance is
// Base*factor, evaluated in integer arithmetic.
type Window struct {
	Base       int64
	MinPercent int64
	MaxPercent int64
}

// DefaultWindow returns the 500-unit window clamped to [60%, 100%].
func DefaultWindow() Window {
	return Window{Base: BaseWindow, MinPercent: MinPercent, MaxPercent: MaxPercent}
}

func (w Window) lower() int64 { return w.Base * w.MinPercent / 100 }
func (w Window) upper() int64 { return w.Base * w.MaxPercent / 100 }

// Tolerance returns the allowed key-on error for a target of the given
// duration. Callers must reject non-positive durations before asking.
func (w Window) Tolerance(duration int64) int64 {
	// Base * clamp(d/Base, lo, hi) == clamp(d, Base*lo, Base*hi)
	switch {
	case duration <= w.lower():
		return w.lower()
	case duration >= w.upper():
		return w.upper()
	default:
		return duration
	}
}

// Factor returns the duration factor behind Tolerance, for display.
func (w Window) Factor(duration int64) float64 {
	if w.Base == 0 {
		return 0
	}
	return float64(w.Tolerance(duration)) / float64(w.Base)
}

func (w Window) valid() bool {
	return w.Base > 0 && w.MinPercent > 0 && w.MinPercent <= w.MaxPercent
}
