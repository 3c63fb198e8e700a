package onboard

import (
	"log"
	"time"

	"github.com/CodedInternet/carnode/calcs"
	carerrors "github.com/CodedInternet/carnode/onboard/errors"
	"github.com/CodedInternet/carnode/onboard/hardware"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	SOC_UNKNOWN = -1

	// LSM6DS3 defaults: +-2 g and +-245 dps full scale
	ACCEL_G_PER_LSB  = 0.061e-3
	GYRO_DPS_PER_LSB = 8.75e-3
)

// SamplerIntervals are the per sensor class sample periods.
type SamplerIntervals struct {
	IMU     time.Duration
	Battery time.Duration
	IR      time.Duration
}

// SensorSample is the last known state of every sensor. Each group carries the time of its
// last successful read; a zero time means it has never been sampled.
type SensorSample struct {
	Accelerometer hardware.Axes
	Gyroscope     hardware.Axes
	IMUTime       time.Time

	BatteryADC  uint16
	BatterySOC  int16
	BatteryTime time.Time

	IR     uint8
	IRTime time.Time
}

// Acceleration converts the raw accelerometer reading to g.
func (s SensorSample) Acceleration() mgl64.Vec3 {
	return scaleAxes(s.Accelerometer, ACCEL_G_PER_LSB)
}

// AngularRate converts the raw gyroscope reading to degrees per second.
func (s SensorSample) AngularRate() mgl64.Vec3 {
	return scaleAxes(s.Gyroscope, GYRO_DPS_PER_LSB)
}

func scaleAxes(a hardware.Axes, scale float64) mgl64.Vec3 {
	return mgl64.Vec3{float64(a[0]), float64(a[1]), float64(a[2])}.Mul(scale)
}

type sensorSlot struct {
	present  bool
	interval time.Duration
	attempt  time.Time
	polled   bool
}

// due reports whether the slot should be read at now and marks the attempt.
func (s *sensorSlot) due(now time.Time) bool {
	if !s.present {
		return false
	}
	if s.polled && now.Sub(s.attempt) < s.interval {
		return false
	}
	s.polled = true
	s.attempt = now
	return true
}

// Sampler polls the sensors at independent cadences. Reads never wait: a sensor that is not
// due is skipped and a failed read keeps the previous value.
type Sampler struct {
	imu     hardware.IMU
	battery hardware.ADC
	ir      hardware.IRReceiver
	curve   calcs.Curve
	logger  *log.Logger

	imuSlot, batterySlot, irSlot sensorSlot

	sample SensorSample
}

// NewSampler probes every sensor once. A sensor that is nil or fails Init is marked absent
// and never read again.
func NewSampler(board hardware.Board, intervals SamplerIntervals, curve calcs.Curve, logger *log.Logger) *Sampler {
	s := &Sampler{
		imu:     board.IMU,
		battery: board.Battery,
		ir:      board.IR,
		curve:   curve,
		logger:  logger,
	}
	s.sample.BatterySOC = SOC_UNKNOWN

	s.imuSlot = s.probe("imu", board.IMU, intervals.IMU)
	s.batterySlot = s.probe("battery", board.Battery, intervals.Battery)
	s.irSlot = s.probe("ir", board.IR, intervals.IR)
	return s
}

func (s *Sampler) probe(name string, sensor hardware.Sensor, interval time.Duration) sensorSlot {
	slot := sensorSlot{interval: interval}
	if sensor == nil {
		s.logger.Println(carerrors.SensorError{Sensor: name})
		return slot
	}
	if err := sensor.Init(); err != nil {
		s.logger.Println(carerrors.SensorError{Sensor: name, Err: err})
		return slot
	}
	slot.present = true
	return slot
}

// Tick samples every sensor whose interval has elapsed.
func (s *Sampler) Tick(now time.Time) {
	if s.imuSlot.due(now) {
		xl, errXL := s.imu.ReadAccelerometer()
		g, errG := s.imu.ReadGyroscope()
		if errXL == nil && errG == nil {
			s.sample.Accelerometer = xl
			s.sample.Gyroscope = g
			s.sample.IMUTime = now
		}
	}

	if s.batterySlot.due(now) {
		if raw, err := s.battery.ReadADC(); err == nil {
			s.sample.BatteryADC = raw
			s.sample.BatterySOC = s.SOC(raw)
			s.sample.BatteryTime = now
		}
	}

	if s.irSlot.due(now) {
		if v, err := s.ir.ReadIR(); err == nil {
			s.sample.IR = v
			s.sample.IRTime = now
		}
	}
}

// SOC maps a raw battery reading through the calibration curve, clamped to 0-100.
func (s *Sampler) SOC(raw uint16) int16 {
	if len(s.curve) == 0 {
		return SOC_UNKNOWN
	}
	return int16(calcs.Clamp(s.curve.Eval(int(raw)), 0, 100))
}

func (s *Sampler) Sample() SensorSample { return s.sample }

func (s *Sampler) IMUPresent() bool     { return s.imuSlot.present }
func (s *Sampler) BatteryPresent() bool { return s.batterySlot.present }
func (s *Sampler) IRPresent() bool      { return s.irSlot.present }

func (s *Sampler) BatteryLevelADC() uint16          { return s.sample.BatteryADC }
func (s *Sampler) BatterySOC() int16                { return s.sample.BatterySOC }
func (s *Sampler) AccelerometerData() hardware.Axes { return s.sample.Accelerometer }
func (s *Sampler) GyroscopeData() hardware.Axes     { return s.sample.Gyroscope }
func (s *Sampler) IRValue() uint8                   { return s.sample.IR }
