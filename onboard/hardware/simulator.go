package hardware

import (
	"math/rand"
)

const (
	SIM_NOISE         = 40
	SIM_BATTERY_START = 850
	SIM_BATTERY_FLOOR = 600
	SIM_GRAVITY       = 16384 // 1 g at the default accelerometer range
)

// SimulatedBoard stands in for the real board in simulator mode. Outputs are recorded and
// sensors return plausible noisy readings.
type SimulatedBoard struct {
	ThrottlePulse uint16
	SteeringPulse uint16
	Power         uint16
	Color         [3]uint8

	battery uint16
	reads   int
	ir      uint8
	rnd     *rand.Rand
}

func NewSimulatedBoard(seed int64) *SimulatedBoard {
	return &SimulatedBoard{
		battery: SIM_BATTERY_START,
		rnd:     rand.New(rand.NewSource(seed)),
	}
}

// Board wires the simulator into every slot of a Board.
func (s *SimulatedBoard) Board() Board {
	return Board{
		Throttle:   simPulse{&s.ThrottlePulse},
		Steering:   simPulse{&s.SteeringPulse},
		Headlights: s,
		Rearlight:  s,
		IMU:        s,
		Battery:    s,
		IR:         s,
		Identity:   StaticIdentity{0x02, 0x00, 0x00, 0xca, 0xfe, 0x42},
	}
}

// PressIR sets the byte the infrared receiver reports next.
func (s *SimulatedBoard) PressIR(code uint8) {
	s.ir = code
}

func (s *SimulatedBoard) noise() int16 {
	return int16(s.rnd.Intn(SIM_NOISE*2) - SIM_NOISE)
}

func (s *SimulatedBoard) Init() error {
	return nil
}

func (s *SimulatedBoard) SetPower(pwr uint16) error {
	s.Power = pwr
	return nil
}

func (s *SimulatedBoard) SetColor(r, g, b uint8) error {
	s.Color = [3]uint8{r, g, b}
	return nil
}

func (s *SimulatedBoard) ReadAccelerometer() (Axes, error) {
	return Axes{s.noise(), s.noise(), SIM_GRAVITY + s.noise()}, nil
}

func (s *SimulatedBoard) ReadGyroscope() (Axes, error) {
	return Axes{s.noise(), s.noise(), s.noise()}, nil
}

// ReadADC drains the simulated battery by one count every 64 reads.
func (s *SimulatedBoard) ReadADC() (uint16, error) {
	s.reads++
	if s.reads%64 == 0 && s.battery > SIM_BATTERY_FLOOR {
		s.battery--
	}
	return s.battery, nil
}

func (s *SimulatedBoard) ReadIR() (uint8, error) {
	return s.ir, nil
}

type simPulse struct {
	out *uint16
}

func (p simPulse) SetPulse(us uint16) error {
	*p.out = us
	return nil
}
