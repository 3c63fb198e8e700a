package onboard

import "time"

type rampValue interface {
	~uint8 | ~uint16 | ~int16 | ~int
}

// BoundedRamp moves a current value toward a target by at most Step per tick.
type BoundedRamp[T rampValue] struct {
	current, target T
	step            T
}

func NewBoundedRamp[T rampValue](initial T, step T) BoundedRamp[T] {
	if step <= 0 {
		step = 1
	}
	return BoundedRamp[T]{current: initial, target: initial, step: step}
}

// SetTarget changes the goal. Progress already made is kept.
func (r *BoundedRamp[T]) SetTarget(v T) {
	r.target = v
}

func (r *BoundedRamp[T]) Target() T  { return r.target }
func (r *BoundedRamp[T]) Current() T { return r.current }
func (r *BoundedRamp[T]) Done() bool { return r.current == r.target }

// Tick advances current one step toward target and reports whether they are equal.
func (r *BoundedRamp[T]) Tick() bool {
	switch {
	case r.current < r.target:
		if r.target-r.current <= r.step {
			r.current = r.target
		} else {
			r.current += r.step
		}
	case r.current > r.target:
		if r.current-r.target <= r.step {
			r.current = r.target
		} else {
			r.current -= r.step
		}
	}
	return r.current == r.target
}

// Headlights fades between power levels and optionally blinks.
type Headlights struct {
	ramp   BoundedRamp[uint16]
	power  uint16
	blink  bool
	period time.Duration
	lit    bool
	toggle time.Time
}

func NewHeadlights(step uint16, blinkPeriod time.Duration) *Headlights {
	return &Headlights{
		ramp:   NewBoundedRamp[uint16](0, step),
		period: blinkPeriod,
		lit:    true,
	}
}

// Set stores the explicit power level.
func (h *Headlights) Set(pwr uint16) {
	h.power = pwr
	if !h.blink || h.lit {
		h.ramp.SetTarget(pwr)
	}
}

func (h *Headlights) SetBlink(on bool) {
	if h.blink == on {
		return
	}
	h.blink = on
	h.lit = true
	h.toggle = time.Time{}
	h.ramp.SetTarget(h.power)
}

func (h *Headlights) Blinks() bool    { return h.blink }
func (h *Headlights) Power() uint16   { return h.power }
func (h *Headlights) Current() uint16 { return h.ramp.Current() }
func (h *Headlights) Target() uint16  { return h.ramp.Target() }

// force sets the ramp target without touching the stored power, used on shutdown.
func (h *Headlights) force(pwr uint16) {
	h.ramp.SetTarget(pwr)
}

// Tick runs the blink phase for now and advances the ramp.
func (h *Headlights) Tick(now time.Time) bool {
	if h.blink && h.period > 0 {
		if h.toggle.IsZero() {
			h.toggle = now
		}
		if now.Sub(h.toggle) >= h.period/2 {
			h.lit = !h.lit
			h.toggle = now
			if h.lit {
				h.ramp.SetTarget(h.power)
			} else {
				h.ramp.SetTarget(0)
			}
		}
	}
	return h.ramp.Tick()
}

// Color is an RGB triple.
type Color [3]uint8

var (
	ColorOff     = Color{0, 0, 0}
	ColorMagenta = Color{255, 0, 255}
)

// Rearlight crossfades each color channel independently.
type Rearlight struct {
	channels [3]BoundedRamp[uint8]
	set      Color
}

func NewRearlight(step uint8, initial Color) *Rearlight {
	r := new(Rearlight)
	for i := range r.channels {
		r.channels[i] = NewBoundedRamp[uint8](0, step)
	}
	r.Set(initial)
	return r
}

func (r *Rearlight) Set(c Color) {
	r.set = c
	r.force(c)
}

func (r *Rearlight) force(c Color) {
	for i := range r.channels {
		r.channels[i].SetTarget(c[i])
	}
}

// Color returns the last requested color.
func (r *Rearlight) Color() Color {
	return r.set
}

// Displayed returns the color currently shown.
func (r *Rearlight) Displayed() (c Color) {
	for i := range r.channels {
		c[i] = r.channels[i].Current()
	}
	return
}

func (r *Rearlight) Tick() bool {
	done := true
	for i := range r.channels {
		if !r.channels[i].Tick() {
			done = false
		}
	}
	return done
}
