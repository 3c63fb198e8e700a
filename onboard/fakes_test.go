package onboard

import (
	"bytes"
	"errors"
	"log"

	"github.com/CodedInternet/carnode/onboard/hardware"
)

var errFake = errors.New("this is a simulated error")

type fakePulse struct {
	writes []uint16
	err    error
}

func (p *fakePulse) SetPulse(us uint16) error {
	p.writes = append(p.writes, us)
	return p.err
}

func (p *fakePulse) last() uint16 {
	if len(p.writes) == 0 {
		return 0
	}
	return p.writes[len(p.writes)-1]
}

type fakeLights struct {
	power  []uint16
	colors [][3]uint8
}

func (l *fakeLights) SetPower(pwr uint16) error {
	l.power = append(l.power, pwr)
	return nil
}

func (l *fakeLights) SetColor(r, g, b uint8) error {
	l.colors = append(l.colors, [3]uint8{r, g, b})
	return nil
}

type fakeSensors struct {
	missing  bool
	readErr  bool
	imuReads int
	adcReads int
	irReads  int
	accel    hardware.Axes
	adc      uint16
	ir       uint8
}

func (s *fakeSensors) Init() error {
	if s.missing {
		return errFake
	}
	return nil
}

func (s *fakeSensors) ReadAccelerometer() (hardware.Axes, error) {
	s.imuReads++
	if s.readErr {
		return hardware.Axes{}, errFake
	}
	return s.accel, nil
}

func (s *fakeSensors) ReadGyroscope() (hardware.Axes, error) {
	return hardware.Axes{1, 2, 3}, nil
}

func (s *fakeSensors) ReadADC() (uint16, error) {
	s.adcReads++
	if s.readErr {
		return 0, errFake
	}
	return s.adc, nil
}

func (s *fakeSensors) ReadIR() (uint8, error) {
	s.irReads++
	return s.ir, nil
}

type testRig struct {
	throttle, steering *fakePulse
	lights             *fakeLights
	sensors            *fakeSensors
	board              hardware.Board
	logs               *bytes.Buffer
	logger             *log.Logger
}

func newTestRig() *testRig {
	r := &testRig{
		throttle: new(fakePulse),
		steering: new(fakePulse),
		lights:   new(fakeLights),
		sensors:  &fakeSensors{adc: 770, accel: hardware.Axes{0, 0, 16384}},
		logs:     new(bytes.Buffer),
	}
	r.logger = log.New(r.logs, "", 0)
	r.board = hardware.Board{
		Throttle:   r.throttle,
		Steering:   r.steering,
		Headlights: r.lights,
		Rearlight:  r.lights,
		IMU:        r.sensors,
		Battery:    r.sensors,
		IR:         r.sensors,
		Identity:   hardware.StaticIdentity{0x5c, 0xcf, 0x7f, 0x12, 0x34, 0x56},
	}
	return r
}
