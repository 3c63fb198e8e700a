package onboard

import (
	. "github.com/smartystreets/goconvey/convey"
	"math"
	"testing"
)

func testLimits() PilotLimits {
	return PilotLimits{
		SteeringLeft:   2000,
		SteeringRight:  1000,
		ThrottleCenter: 1500,
		ThrottleRange:  500,
		SpeedMaxPos:    8192,
		SpeedMaxNeg:    -8192,
		DecelStep:      100,
		NeutralHold:    0,
	}
}

func TestPilotSteering(t *testing.T) {
	Convey("steering pulse stays inside the calibrated range", t, func() {
		inputs := []int16{math.MinInt16, -20000, -1, 0, 1, 20000, math.MaxInt16}
		trims := []int16{math.MinInt16, -500, 0, 500, math.MaxInt16}

		for _, invert := range []bool{false, true} {
			for _, trim := range trims {
				p := NewPilot(testLimits())
				p.InvertSteering(invert)
				p.SetTrim(trim)
				p.Start(true)
				for _, a := range inputs {
					p.Command(0, a)
					p.Step()
					So(p.SteeringPulse(), ShouldBeBetweenOrEqual, 1000, 2000)
				}
			}
		}
	})

	Convey("full deflection maps to the calibrated ends", t, func() {
		p := NewPilot(testLimits())
		p.Start(true)

		p.Command(0, math.MaxInt16)
		p.Step()
		So(p.SteeringPulse(), ShouldEqual, 2000)

		p.Command(0, -math.MaxInt16)
		p.Step()
		So(p.SteeringPulse(), ShouldEqual, 1000)

		p.Command(0, 0)
		p.Step()
		So(p.SteeringPulse(), ShouldEqual, p.SteeringCenter())
		So(p.SteeringCenter(), ShouldEqual, 1500)
	})

	Convey("inversion is applied before trim", t, func() {
		p := NewPilot(testLimits())
		p.InvertSteering(true)
		p.SetTrim(100)
		p.Command(0, 1000)
		So(p.TargetAngle(), ShouldEqual, -900)
	})

	Convey("swapped calibration still clamps", t, func() {
		limits := testLimits()
		limits.SteeringLeft, limits.SteeringRight = 1100, 1900
		p := NewPilot(limits)
		p.Start(true)
		p.Command(0, math.MaxInt16)
		p.Step()
		So(p.SteeringPulse(), ShouldEqual, 1100)
	})
}

func TestPilotSpeed(t *testing.T) {
	Convey("speed is clamped to the configured limits", t, func() {
		p := NewPilot(testLimits())
		p.Start(true)
		p.Command(20000, 0)
		p.Step()
		So(p.Speed(), ShouldEqual, 8192)

		p.Command(0, 0)
		p.Step()
		p.Command(math.MinInt16, 0)
		p.Step()
		So(p.Speed(), ShouldEqual, -8192)

		Convey("limits are normalised", func() {
			p.LimitSpeed(-1000, 2000)
			So(p.Limits().SpeedMaxPos, ShouldEqual, 1000)
			So(p.Limits().SpeedMaxNeg, ShouldEqual, -2000)
			So(p.TargetSpeed(), ShouldEqual, -2000)
		})
	})

	Convey("throttle inversion flips the direction", t, func() {
		p := NewPilot(testLimits())
		p.InvertThrottle(true)
		p.Command(500, 0)
		So(p.TargetSpeed(), ShouldEqual, -500)
	})

	Convey("throttle pulse honours start offsets and range", t, func() {
		p := NewPilot(testLimits())
		p.LimitSpeed(math.MaxInt16, -math.MaxInt16)
		p.SetThrottleStart(120, 90)
		p.Start(true)

		p.Step()
		So(p.ThrottlePulse(), ShouldEqual, 1500)

		p.Command(1, 0)
		p.Step()
		So(p.ThrottlePulse(), ShouldEqual, 1620)

		p.Command(math.MaxInt16, 0)
		p.Step()
		So(p.ThrottlePulse(), ShouldEqual, 2000)

		p.Command(0, 0)
		p.Step()
		p.Command(-1, 0)
		p.Step()
		So(p.ThrottlePulse(), ShouldEqual, 1410)

		p.Command(-math.MaxInt16, 0)
		p.Step()
		So(p.ThrottlePulse(), ShouldEqual, 1000)
	})
}

func TestPilotReversal(t *testing.T) {
	Convey("a reversal passes through zero with decreasing magnitude", t, func() {
		p := NewPilot(testLimits())
		p.Start(true)
		p.Command(500, 0)
		p.Step()
		So(p.Speed(), ShouldEqual, 500)
		So(p.SpeedDown(), ShouldBeFalse)

		p.Command(-500, 0)
		var seq []int16
		for i := 0; i < 100 && p.Speed() >= 0; i++ {
			p.Step()
			if p.Speed() >= 0 {
				So(p.SpeedDown(), ShouldBeTrue)
				seq = append(seq, p.Speed())
			}
		}

		So(seq, ShouldResemble, []int16{400, 300, 200, 100, 0})
		So(p.Speed(), ShouldEqual, -500)
		So(p.SpeedDown(), ShouldBeFalse)
	})

	Convey("neutral hold keeps zero for the configured ticks", t, func() {
		limits := testLimits()
		limits.DecelStep = 1000
		limits.NeutralHold = 3
		p := NewPilot(limits)
		p.Start(true)
		p.Command(500, 0)
		p.Step()

		p.Command(-500, 0)
		p.Step()
		So(p.Speed(), ShouldEqual, 0)
		for i := 0; i < 3; i++ {
			p.Step()
			So(p.Speed(), ShouldEqual, 0)
			So(p.SpeedDown(), ShouldBeTrue)
		}
		p.Step()
		So(p.Speed(), ShouldEqual, -500)
		So(p.SpeedDown(), ShouldBeFalse)
	})

	Convey("returning to the old direction does not cancel the deceleration", t, func() {
		p := NewPilot(testLimits())
		p.Start(true)
		p.Command(300, 0)
		p.Step()
		p.Command(-300, 0)
		p.Step()
		So(p.Speed(), ShouldEqual, 200)

		p.Command(300, 0)
		p.Step()
		So(p.Speed(), ShouldEqual, 100)
		So(p.SpeedDown(), ShouldBeTrue)
		p.Step()
		So(p.Speed(), ShouldEqual, 0)
		p.Step()
		So(p.Speed(), ShouldEqual, 300)
		So(p.SpeedDown(), ShouldBeFalse)
	})

	Convey("stopping is applied at once", t, func() {
		p := NewPilot(testLimits())
		p.Start(true)
		p.Command(500, 0)
		p.Step()
		p.Command(0, 0)
		p.Step()
		So(p.Speed(), ShouldEqual, 0)
		So(p.SpeedDown(), ShouldBeFalse)
	})

	Convey("a stop between opposite commands still holds neutral", t, func() {
		limits := testLimits()
		limits.NeutralHold = 3
		p := NewPilot(limits)
		p.Start(true)
		p.Command(500, 0)
		p.Step()
		p.Command(0, 0)
		p.Step()
		So(p.Speed(), ShouldEqual, 0)
		So(p.SpeedDown(), ShouldBeFalse)

		p.Command(-500, 0)
		for i := 0; i < 3; i++ {
			p.Step()
			So(p.Speed(), ShouldEqual, 0)
			So(p.SpeedDown(), ShouldBeTrue)
		}
		p.Step()
		So(p.Speed(), ShouldEqual, -500)
		So(p.SpeedDown(), ShouldBeFalse)

		Convey("resuming the same direction is not held", func() {
			p.Command(0, 0)
			p.Step()
			p.Command(-400, 0)
			p.Step()
			So(p.Speed(), ShouldEqual, -400)
		})

		Convey("time spent stopped counts toward the hold", func() {
			p.Command(0, 0)
			for i := 0; i < 4; i++ {
				p.Step()
			}
			p.Command(500, 0)
			p.Step()
			So(p.Speed(), ShouldEqual, 500)
		})
	})

	Convey("disarming a moving pilot starts the hold", t, func() {
		limits := testLimits()
		limits.NeutralHold = 2
		p := NewPilot(limits)
		p.Start(true)
		p.Command(500, 0)
		p.Step()
		p.Start(false)
		p.Command(-500, 0)
		p.Start(true)
		p.Step()
		p.Step()
		So(p.Speed(), ShouldEqual, 0)
		p.Step()
		So(p.Speed(), ShouldEqual, -500)
	})
}

func TestPilotArming(t *testing.T) {
	Convey("disarmed pilot stores commands without applying them", t, func() {
		p := NewPilot(testLimits())
		p.Command(500, 1000)
		p.Step()
		So(p.PilotStarted(), ShouldBeFalse)
		So(p.Speed(), ShouldEqual, 0)
		So(p.Angle(), ShouldEqual, 0)
		So(p.TargetSpeed(), ShouldEqual, 500)

		Convey("arming resumes from the stored command", func() {
			p.Start(true)
			p.Step()
			So(p.Speed(), ShouldEqual, 500)
			So(p.Angle(), ShouldEqual, 1000)
		})

		Convey("disarming drops to neutral", func() {
			p.Start(true)
			p.Step()
			p.Start(false)
			So(p.Speed(), ShouldEqual, 0)
			So(p.ThrottlePulse(), ShouldEqual, 1500)
		})
	})
}
