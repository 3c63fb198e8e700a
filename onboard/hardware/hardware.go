package hardware

import (
	"errors"
	"net"
)

var (
	ErrNoHardwareAddr = errors.New("no interface with a hardware address")
)

// Axes holds a raw three axis reading (X, Y, Z).
type Axes [3]int16

// PulseOutput drives a servo style output with a pulse width in microseconds.
type PulseOutput interface {
	SetPulse(us uint16) error
}

// LightOutput drives a dimmable light.
type LightOutput interface {
	SetPower(pwr uint16) error
}

// ColorOutput drives an RGB light.
type ColorOutput interface {
	SetColor(r, g, b uint8) error
}

// Sensor is probed once at startup. A non nil error from Init marks the sensor as not found.
type Sensor interface {
	Init() error
}

type IMU interface {
	Sensor
	ReadAccelerometer() (Axes, error)
	ReadGyroscope() (Axes, error)
}

type ADC interface {
	Sensor
	ReadADC() (uint16, error)
}

type IRReceiver interface {
	Sensor
	ReadIR() (uint8, error)
}

// Identity provides a stable hardware identifier used for default naming.
type Identity interface {
	HardwareAddr() (net.HardwareAddr, error)
}

// Board groups every actuator and sensor of the vehicle.
type Board struct {
	Throttle   PulseOutput
	Steering   PulseOutput
	Headlights LightOutput
	Rearlight  ColorOutput
	IMU        IMU
	Battery    ADC
	IR         IRReceiver
	Identity   Identity
}

// InterfaceIdentity reads the hardware address of the first non loopback network interface.
// Name selects a specific interface when set.
type InterfaceIdentity struct {
	Name string
}

func (i InterfaceIdentity) HardwareAddr() (net.HardwareAddr, error) {
	if i.Name != "" {
		iface, err := net.InterfaceByName(i.Name)
		if err != nil {
			return nil, err
		}
		return iface.HardwareAddr, nil
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || len(iface.HardwareAddr) < 6 {
			continue
		}
		return iface.HardwareAddr, nil
	}
	return nil, ErrNoHardwareAddr
}

// StaticIdentity is a fixed hardware address, used by the simulator and tests.
type StaticIdentity net.HardwareAddr

func (s StaticIdentity) HardwareAddr() (net.HardwareAddr, error) {
	return net.HardwareAddr(s), nil
}
