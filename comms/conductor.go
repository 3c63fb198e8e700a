package comms

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/CodedInternet/carnode/calcs"
	"github.com/CodedInternet/carnode/onboard"
)

const (
	SAVE_TIMEOUT = time.Second
)

var (
	ErrQueueFull      = errors.New("command queue full")
	ErrTimeout        = errors.New("timed out waiting for the control loop")
	ErrUnknownCommand = errors.New("unknown command")
)

// ArgError reports a command with missing or unusable arguments.
type ArgError struct {
	Cmd  string
	Want string
}

func (err ArgError) Error() string {
	return fmt.Sprintf("%s expects %s", err.Cmd, err.Want)
}

// Vehicle is the part of onboard.Car the conductor needs. Both methods are safe from any
// goroutine.
type Vehicle interface {
	Submit(cmd onboard.Command) bool
	Status() onboard.Status
}

// Conductor turns remote commands into control loop commands.
type Conductor struct {
	Vehicle     Vehicle
	SaveTimeout time.Duration

	// OnAdminPass, when set, sees every accepted admin credential change. Its error is
	// returned to the caller.
	OnAdminPass func(pass [onboard.ADMINPASS_LEN]byte) error
}

func NewConductor(v Vehicle) *Conductor {
	return &Conductor{Vehicle: v, SaveTimeout: SAVE_TIMEOUT}
}

func (c *Conductor) submit(cmd onboard.Command) error {
	if !c.Vehicle.Submit(cmd) {
		return ErrQueueFull
	}
	return nil
}

func (c *Conductor) ProcessCommand(cmd Cmd) error {
	name := strings.ToLower(strings.TrimSpace(cmd.Cmd))

	switch name {
	case "pilot":
		return c.submit(onboard.StartPilot(cmd.Value != 0))

	case "drive":
		if len(cmd.Values) != 2 {
			return ArgError{name, "[speed, angle]"}
		}
		return c.submit(onboard.Drive(toInt16(cmd.Values[0]), toInt16(cmd.Values[1])))

	case "headlights":
		return c.submit(onboard.SetHeadlights(toUint16(cmd.Value)))

	case "blink":
		return c.submit(onboard.SetBlink(cmd.Value != 0))

	case "color":
		if len(cmd.Values) != 3 {
			return ArgError{name, "[r, g, b]"}
		}
		var color onboard.Color
		for i, v := range cmd.Values {
			color[i] = uint8(calcs.Clamp(int(math.Round(v)), 0, math.MaxUint8))
		}
		return c.submit(onboard.SetColor(color))

	case "trim":
		return c.submit(onboard.SetSteeringTrim(toInt16(cmd.Value)))

	case "throttle":
		if len(cmd.Values) != 2 {
			return ArgError{name, "[forward, backward]"}
		}
		return c.submit(onboard.SetThrottleStart(toUint16(cmd.Values[0]), toUint16(cmd.Values[1])))

	case "limit":
		if len(cmd.Values) != 2 {
			return ArgError{name, "[max forward, max backward]"}
		}
		return c.submit(onboard.LimitSpeed(toInt16(cmd.Values[0]), toInt16(cmd.Values[1])))

	case "invert":
		switch strings.ToLower(cmd.Name) {
		case "steering":
			return c.submit(onboard.InvertSteering(cmd.Value != 0))
		case "throttle":
			return c.submit(onboard.InvertThrottle(cmd.Value != 0))
		}
		return ArgError{name, `name "steering" or "throttle"`}

	case "name":
		if cmd.Name == "" || len(cmd.Name) > onboard.NAME_LEN {
			return ArgError{name, fmt.Sprintf("a name of 1 to %d bytes", onboard.NAME_LEN)}
		}
		return c.submit(onboard.SetName(cmd.Name))

	case "adminpass":
		pass, err := AdminPass(cmd.Name)
		if err != nil {
			return err
		}
		if err := c.submit(onboard.SetAdminPass(pass)); err != nil {
			return err
		}
		if c.OnAdminPass != nil {
			return c.OnAdminPass(pass)
		}
		return nil

	case "save":
		return c.Save()

	case "shutdown":
		return c.submit(onboard.Shutdown())
	}

	return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Cmd)
}

// Save persists the config and waits for the control loop to report the result.
func (c *Conductor) Save() error {
	reply := make(chan error, 1)
	if err := c.submit(onboard.SaveConfig(reply)); err != nil {
		return err
	}

	timeout := c.SaveTimeout
	if timeout <= 0 {
		timeout = SAVE_TIMEOUT
	}
	select {
	case err := <-reply:
		return err
	case <-time.After(timeout):
		return ErrTimeout
	}
}

// AdminPass converts s to the fixed width credential, NUL padded.
func AdminPass(s string) (pass [onboard.ADMINPASS_LEN]byte, err error) {
	if len(s) > onboard.ADMINPASS_LEN {
		return pass, ArgError{"adminpass", fmt.Sprintf("at most %d bytes", onboard.ADMINPASS_LEN)}
	}
	copy(pass[:], s)
	return pass, nil
}

func toInt16(v float64) int16 {
	return int16(calcs.Clamp(int(math.Round(v)), math.MinInt16, math.MaxInt16))
}

func toUint16(v float64) uint16 {
	return uint16(calcs.Clamp(int(math.Round(v)), 0, math.MaxUint16))
}
