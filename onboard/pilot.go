package onboard

import (
	"math"

	"github.com/CodedInternet/carnode/calcs"
)

const (
	LOGICAL_MAX = math.MaxInt16
	LOGICAL_MIN = -math.MaxInt16
)

// PilotLimits parameterise the pilot state machine. They come from the calibration file and
// the persisted config.
type PilotLimits struct {
	SteeringLeft   uint16 // pulse width at full left (+LOGICAL_MAX)
	SteeringRight  uint16 // pulse width at full right (LOGICAL_MIN)
	ThrottleCenter uint16 // neutral throttle pulse
	ThrottleRange  uint16 // max pulse offset from neutral
	SpeedMaxPos    int16
	SpeedMaxNeg    int16
	DecelStep      int16 // speed units per tick while forcing a reversal through zero
	NeutralHold    int   // ticks to hold zero before the new direction is accepted
	InvertThrottle bool
	InvertSteering bool
}

// Pilot converts speed/angle commands into safe throttle and steering setpoints.
//
// A command that reverses the direction of a moving vehicle is not applied directly: the
// applied speed is first stepped down to zero and held there for NeutralHold ticks, which is
// what hobby ESCs need before they accept reverse. Any arrival at zero from motion starts the
// hold, so stopping first does not shorten it.
type Pilot struct {
	limits PilotLimits

	trim    int16
	fwStart uint16
	bwStart uint16

	targetSpeed int16
	targetAngle int16

	speed     int16
	angle     int16
	dir       int16 // sign of the last non zero applied speed
	speedDown bool
	hold      int
	started   bool
}

func NewPilot(limits PilotLimits) *Pilot {
	p := &Pilot{}
	p.SetLimits(limits)
	return p
}

func (p *Pilot) SetLimits(limits PilotLimits) {
	if limits.DecelStep <= 0 {
		limits.DecelStep = 1
	}
	if limits.NeutralHold < 0 {
		limits.NeutralHold = 0
	}
	p.limits = limits
	p.LimitSpeed(limits.SpeedMaxPos, limits.SpeedMaxNeg)
}

func (p *Pilot) Limits() PilotLimits { return p.limits }

// Start arms or disarms pilot mode. Disarming drops the applied setpoints to neutral at once;
// targets are kept so re-arming resumes from the last command.
func (p *Pilot) Start(on bool) {
	if p.started == on {
		return
	}
	p.started = on
	if !on {
		if p.speed != 0 {
			p.hold = p.limits.NeutralHold
		}
		p.speed = 0
		p.angle = 0
		p.speedDown = false
	}
}

func (p *Pilot) InvertSteering(on bool) { p.limits.InvertSteering = on }
func (p *Pilot) InvertThrottle(on bool) { p.limits.InvertThrottle = on }

// LimitSpeed sets the speed clamp. pos is forced non negative and neg non positive.
func (p *Pilot) LimitSpeed(pos, neg int16) {
	hi, lo := int(pos), int(neg)
	if hi < 0 {
		hi = -hi
	}
	if lo > 0 {
		lo = -lo
	}
	p.limits.SpeedMaxPos = int16(calcs.Clamp(hi, 0, LOGICAL_MAX))
	p.limits.SpeedMaxNeg = int16(calcs.Clamp(lo, LOGICAL_MIN, 0))
	p.targetSpeed = int16(calcs.Clamp(int(p.targetSpeed), lo, hi))
}

func (p *Pilot) SetTrim(trim int16) { p.trim = trim }

func (p *Pilot) SetThrottleStart(fw, bw uint16) {
	p.fwStart = fw
	p.bwStart = bw
}

// Command accepts a raw speed/angle request. Out of range values are clamped, never rejected.
func (p *Pilot) Command(speed, angle int16) {
	s, a := int(speed), int(angle)
	if p.limits.InvertThrottle {
		s = -s
	}
	if p.limits.InvertSteering {
		a = -a
	}
	a += int(p.trim)

	p.targetSpeed = int16(calcs.Clamp(s, int(p.limits.SpeedMaxNeg), int(p.limits.SpeedMaxPos)))
	p.targetAngle = int16(calcs.Clamp(a, LOGICAL_MIN, LOGICAL_MAX))
}

func sign(v int16) int16 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// stepToZero moves the applied speed toward zero and starts the neutral hold once reached.
func (p *Pilot) stepToZero() {
	step := p.limits.DecelStep
	switch {
	case p.speed > step:
		p.speed -= step
	case p.speed < -step:
		p.speed += step
	default:
		p.speed = 0
		p.hold = p.limits.NeutralHold
	}
}

// Step advances the state machine by one tick. It does nothing while disarmed.
func (p *Pilot) Step() {
	if !p.started {
		return
	}
	p.angle = p.targetAngle

	if p.speedDown {
		if p.speed != 0 {
			p.stepToZero()
			return
		}
		if p.hold > 0 {
			p.hold--
			return
		}
		p.speedDown = false
	}

	if p.speed == 0 && p.hold > 0 {
		p.hold--
		if sign(p.targetSpeed) == -p.dir {
			p.speedDown = true
			return
		}
	}

	if p.speed != 0 && sign(p.targetSpeed) != 0 && sign(p.targetSpeed) != sign(p.speed) {
		p.speedDown = true
		p.stepToZero()
		return
	}

	moving := p.speed != 0
	p.speed = p.targetSpeed
	switch {
	case p.speed != 0:
		p.dir = sign(p.speed)
	case moving:
		p.hold = p.limits.NeutralHold
	}
}

func (p *Pilot) Speed() int16        { return p.speed }
func (p *Pilot) Angle() int16        { return p.angle }
func (p *Pilot) TargetSpeed() int16  { return p.targetSpeed }
func (p *Pilot) TargetAngle() int16  { return p.targetAngle }
func (p *Pilot) SpeedDown() bool     { return p.speedDown }
func (p *Pilot) PilotStarted() bool  { return p.started }
func (p *Pilot) SteeringTrim() int16 { return p.trim }

// SteeringPulse maps the applied angle onto the calibrated pulse range.
func (p *Pilot) SteeringPulse() uint16 {
	l, r := int(p.limits.SteeringLeft), int(p.limits.SteeringRight)
	pulse := calcs.Translate(int(p.angle), LOGICAL_MIN, LOGICAL_MAX, r, l)
	return uint16(calcs.Clamp(pulse, r, l))
}

// SteeringCenter is the pulse for a zero angle.
func (p *Pilot) SteeringCenter() uint16 {
	return uint16((int(p.limits.SteeringLeft) + int(p.limits.SteeringRight)) / 2)
}

// ThrottlePulse maps the applied speed onto the ESC pulse, skipping the dead band given by
// the throttle start offsets.
func (p *Pilot) ThrottlePulse() uint16 {
	center := int(p.limits.ThrottleCenter)
	rng := int(p.limits.ThrottleRange)
	s := int(p.speed)

	var pulse int
	switch {
	case s > 0:
		start := calcs.Clamp(int(p.fwStart), 0, rng)
		pulse = center + start + s*(rng-start)/LOGICAL_MAX
	case s < 0:
		start := calcs.Clamp(int(p.bwStart), 0, rng)
		pulse = center - start + s*(rng-start)/LOGICAL_MAX
	default:
		pulse = center
	}
	return uint16(calcs.Clamp(pulse, center-rng, center+rng))
}

func (p *Pilot) ThrottleNeutral() uint16 {
	return p.limits.ThrottleCenter
}
