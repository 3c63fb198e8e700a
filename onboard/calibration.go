package onboard

import (
	"errors"
	"fmt"
	"io/ioutil"
	"math"
	"os"
	"time"

	"github.com/CodedInternet/carnode/calcs"
	"github.com/Masterminds/semver"
	"gopkg.in/yaml.v2"
)

const (
	CALIBRATION_VERSION = "^1.0.0"
)

// Calibration holds the vehicle specific constants loaded from a YAML file at startup.
type Calibration struct {
	Version  string `yaml:"version"`
	Steering struct {
		Left  uint16 `yaml:"left"`
		Right uint16 `yaml:"right"`
	} `yaml:"steering"`
	Throttle struct {
		Neutral uint16 `yaml:"neutral"`
		Range   uint16 `yaml:"range"`
	} `yaml:"throttle"`
	Speed struct {
		MaxPos      int16 `yaml:"max_pos"`
		MaxNeg      int16 `yaml:"max_neg"`
		DecelStep   int16 `yaml:"decel_step"`
		NeutralHold int   `yaml:"neutral_hold"`
	} `yaml:"speed"`
	Invert struct {
		Throttle bool `yaml:"throttle"`
		Steering bool `yaml:"steering"`
	} `yaml:"invert"`
	Lights struct {
		HeadlightStep uint16        `yaml:"headlight_step"`
		ColorStep     uint8         `yaml:"color_step"`
		BlinkPeriod   time.Duration `yaml:"blink_period"`
	} `yaml:"lights"`
	Sensors struct {
		IMU     time.Duration `yaml:"imu_interval"`
		Battery time.Duration `yaml:"battery_interval"`
		IR      time.Duration `yaml:"ir_interval"`
	} `yaml:"sensors"`
	Battery   BatteryCurve  `yaml:"battery"`
	Tick      time.Duration `yaml:"tick"`
	Broadcast time.Duration `yaml:"broadcast_interval"`
	Debug     time.Duration `yaml:"debug_interval"`
}

// BatteryCurve is written in YAML as a list of [raw, percent] pairs.
type BatteryCurve calcs.Curve

func (bc BatteryCurve) MarshalYAML() (interface{}, error) {
	pairs := make([][]int, len(bc))
	for i, p := range bc {
		pairs[i] = []int{p.Raw, p.Value}
	}
	return pairs, nil
}

func (bc *BatteryCurve) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var pairs [][]int
	if err := unmarshal(&pairs); err != nil {
		return err
	}
	curve := make(BatteryCurve, len(pairs))
	for i, p := range pairs {
		if len(p) != 2 {
			return fmt.Errorf("battery point %d needs [raw, percent], got %v", i, p)
		}
		curve[i] = calcs.Point{Raw: p[0], Value: p[1]}
	}
	*bc = curve
	return nil
}

// DefaultCalibration suits the stock 1:10 chassis with a 1S LiPo.
func DefaultCalibration() *Calibration {
	c := new(Calibration)
	c.Version = "1.0.0"
	c.Steering.Left = 2000
	c.Steering.Right = 1000
	c.Throttle.Neutral = 1500
	c.Throttle.Range = 500
	c.Speed.MaxPos = 8192
	c.Speed.MaxNeg = -8192
	c.Speed.DecelStep = 256
	c.Speed.NeutralHold = 5
	c.Lights.HeadlightStep = 50
	c.Lights.ColorStep = 5
	c.Lights.BlinkPeriod = 500 * time.Millisecond
	c.Sensors.IMU = 20 * time.Millisecond
	c.Sensors.Battery = time.Second
	c.Sensors.IR = 50 * time.Millisecond
	c.Battery = BatteryCurve{{Raw: 630, Value: 0}, {Raw: 690, Value: 10}, {Raw: 730, Value: 40}, {Raw: 770, Value: 70}, {Raw: 810, Value: 90}, {Raw: 850, Value: 100}}
	c.Tick = 10 * time.Millisecond
	c.Broadcast = 100 * time.Millisecond
	c.Debug = time.Second
	return c
}

// ParseCalibration reads YAML over the defaults, so a file only needs the values it changes.
func ParseCalibration(data []byte) (*Calibration, error) {
	c := DefaultCalibration()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadCalibration reads filename. A missing file yields the defaults.
func LoadCalibration(filename string) (*Calibration, error) {
	data, err := ioutil.ReadFile(filename)
	if os.IsNotExist(err) {
		return DefaultCalibration(), nil
	}
	if err != nil {
		return nil, err
	}
	return ParseCalibration(data)
}

func (c *Calibration) Validate() error {
	v, err := semver.NewVersion(c.Version)
	if err != nil {
		return fmt.Errorf("calibration version %q: %v", c.Version, err)
	}
	constraint, err := semver.NewConstraint(CALIBRATION_VERSION)
	if err != nil {
		return err
	}
	if !constraint.Check(v) {
		return fmt.Errorf("unable to use calibration version %s - require %s", c.Version, CALIBRATION_VERSION)
	}

	switch {
	case c.Steering.Left == c.Steering.Right:
		return errors.New("steering left and right pulses must differ")
	case c.Throttle.Range == 0 || c.Throttle.Range > c.Throttle.Neutral:
		return errors.New("throttle range must be non zero and not exceed neutral")
	case int(c.Throttle.Neutral)+int(c.Throttle.Range) > math.MaxUint16:
		return errors.New("throttle neutral plus range exceeds the pulse width limit")
	case c.Speed.DecelStep <= 0:
		return errors.New("decel_step must be positive")
	case c.Speed.NeutralHold < 0:
		return errors.New("neutral_hold must not be negative")
	case c.Lights.HeadlightStep == 0 || c.Lights.ColorStep == 0:
		return errors.New("light steps must be positive")
	case c.Tick <= 0:
		return errors.New("tick must be positive")
	case !calcs.Curve(c.Battery).Sorted():
		return errors.New("battery curve must be sorted by raw value")
	}
	return nil
}

func (c *Calibration) PilotLimits() PilotLimits {
	return PilotLimits{
		SteeringLeft:   c.Steering.Left,
		SteeringRight:  c.Steering.Right,
		ThrottleCenter: c.Throttle.Neutral,
		ThrottleRange:  c.Throttle.Range,
		SpeedMaxPos:    c.Speed.MaxPos,
		SpeedMaxNeg:    c.Speed.MaxNeg,
		DecelStep:      c.Speed.DecelStep,
		NeutralHold:    c.Speed.NeutralHold,
		InvertThrottle: c.Invert.Throttle,
		InvertSteering: c.Invert.Steering,
	}
}

func (c *Calibration) SamplerIntervals() SamplerIntervals {
	return SamplerIntervals{
		IMU:     c.Sensors.IMU,
		Battery: c.Sensors.Battery,
		IR:      c.Sensors.IR,
	}
}
