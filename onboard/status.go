package onboard

import (
	"time"

	"github.com/CodedInternet/carnode/onboard/hardware"
)

// Status is a copy of the car state taken at the end of a tick.
type Status struct {
	Time     time.Time `json:"time"`
	Name     string    `json:"name"`
	Hostname string    `json:"hostname"`

	PilotStarted  bool   `json:"pilot_started"`
	SpeedDown     bool   `json:"speed_down"`
	Shutdown      bool   `json:"shutdown"`
	Speed         int16  `json:"speed"`
	Angle         int16  `json:"angle"`
	TargetSpeed   int16  `json:"target_speed"`
	TargetAngle   int16  `json:"target_angle"`
	ThrottlePulse uint16 `json:"throttle_pulse"`
	SteeringPulse uint16 `json:"steering_pulse"`

	Headlights    uint16 `json:"headlights"`
	HeadlightsSet uint16 `json:"headlights_set"`
	Blink         bool   `json:"blink"`
	Color         Color  `json:"color"`
	ColorSet      Color  `json:"color_set"`

	SteeringTrim    int16  `json:"steering_trim"`
	ThrottleStartFw uint16 `json:"throttle_start_fw"`
	ThrottleStartBw uint16 `json:"throttle_start_bw"`

	IMUPresent     bool          `json:"imu_present"`
	BatteryPresent bool          `json:"battery_present"`
	IRPresent      bool          `json:"ir_present"`
	Accelerometer  hardware.Axes `json:"accelerometer"`
	Gyroscope      hardware.Axes `json:"gyroscope"`
	AccelG         [3]float64    `json:"accel_g"`
	GyroDPS        [3]float64    `json:"gyro_dps"`
	BatteryADC     uint16        `json:"battery_adc"`
	BatterySOC     int16         `json:"battery_soc"`
	IR             uint8         `json:"ir"`
}

func (c *Car) snapshot(now time.Time) Status {
	sample := c.sampler.Sample()
	fw, bw := c.config.ThrottleStart()

	var throttle, steering uint16
	if c.pilot.PilotStarted() {
		throttle, steering = c.pilot.ThrottlePulse(), c.pilot.SteeringPulse()
	} else {
		throttle, steering = c.pilot.ThrottleNeutral(), c.pilot.SteeringCenter()
	}

	return Status{
		Time:     now,
		Name:     c.config.Name(),
		Hostname: c.config.Hostname(),

		PilotStarted:  c.pilot.PilotStarted(),
		SpeedDown:     c.pilot.SpeedDown(),
		Shutdown:      c.shutdown,
		Speed:         c.pilot.Speed(),
		Angle:         c.pilot.Angle(),
		TargetSpeed:   c.pilot.TargetSpeed(),
		TargetAngle:   c.pilot.TargetAngle(),
		ThrottlePulse: throttle,
		SteeringPulse: steering,

		Headlights:    c.headlights.Current(),
		HeadlightsSet: c.headlights.Power(),
		Blink:         c.headlights.Blinks() && !c.shutdown,
		Color:         c.rearlight.Displayed(),
		ColorSet:      c.rearlight.Color(),

		SteeringTrim:    c.config.SteeringTrim(),
		ThrottleStartFw: fw,
		ThrottleStartBw: bw,

		IMUPresent:     c.sampler.IMUPresent(),
		BatteryPresent: c.sampler.BatteryPresent(),
		IRPresent:      c.sampler.IRPresent(),
		Accelerometer:  sample.Accelerometer,
		Gyroscope:      sample.Gyroscope,
		AccelG:         [3]float64(sample.Acceleration()),
		GyroDPS:        [3]float64(sample.AngularRate()),
		BatteryADC:     sample.BatteryADC,
		BatterySOC:     sample.BatterySOC,
		IR:             sample.IR,
	}
}
