package onboard

import (
	"context"
	"io/ioutil"
	"log"
	"sync"
	"time"

	"github.com/CodedInternet/carnode/calcs"
	"github.com/CodedInternet/carnode/onboard/hardware"
	"github.com/CodedInternet/carnode/onboard/nvm"
)

const (
	COMMAND_QUEUE = 64
)

// StatusPublisher receives a status snapshot at the end of every tick. It must not block.
type StatusPublisher interface {
	Publish(now time.Time, status Status)
}

type CarOptions struct {
	Board       hardware.Board
	Calibration *Calibration
	Storage     nvm.Storage
	Telemetry   *Telemetry      // optional
	Publisher   StatusPublisher // optional
	Logger      *log.Logger
}

// Car owns one instance of each control component and runs them in a fixed order once per
// tick. Every method except Submit and Status must be called from the goroutine running the
// loop.
type Car struct {
	board     hardware.Board
	calib     *Calibration
	logger    *log.Logger
	telemetry *Telemetry
	publisher StatusPublisher

	config     *ConfigStore
	pilot      *Pilot
	headlights *Headlights
	rearlight  *Rearlight
	sampler    *Sampler

	commands chan Command
	shutdown bool
	halted   bool // shutdown has been applied to the outputs

	neutral   bool // neutral pulses have been written since the pilot was last active
	lightsOut bool // light outputs have been written at least once
	lastPower uint16
	lastColor Color
	pulseErr  bool
	powerErr  bool
	colorErr  bool
	lastDebug time.Time
	ticks     uint64

	statusLock sync.RWMutex
	status     Status
}

func NewCar(opts CarOptions) *Car {
	if opts.Calibration == nil {
		opts.Calibration = DefaultCalibration()
	}
	if opts.Storage == nil {
		opts.Storage = nvm.NewMemoryStorage(nvm.DEFAULT_SIZE)
	}
	if opts.Logger == nil {
		opts.Logger = log.New(ioutil.Discard, "", 0)
	}
	calib := opts.Calibration

	c := &Car{
		board:     opts.Board,
		calib:     calib,
		logger:    opts.Logger,
		telemetry: opts.Telemetry,
		publisher: opts.Publisher,
		commands:  make(chan Command, COMMAND_QUEUE),
	}

	c.config = NewConfigStore(opts.Storage, opts.Board.Identity, c.logger)
	if c.config.Load() {
		c.logger.Printf("loaded config for %s", c.config.Name())
	} else {
		c.logger.Printf("no valid config, using defaults for %s", c.config.Name())
	}

	c.pilot = NewPilot(calib.PilotLimits())
	c.pilot.SetTrim(c.config.SteeringTrim())
	c.pilot.SetThrottleStart(c.config.ThrottleStart())

	c.headlights = NewHeadlights(calib.Lights.HeadlightStep, calib.Lights.BlinkPeriod)
	c.rearlight = NewRearlight(calib.Lights.ColorStep, ColorMagenta)
	c.sampler = NewSampler(opts.Board, calib.SamplerIntervals(), calcs.Curve(calib.Battery), c.logger)

	c.status = c.snapshot(time.Time{})
	return c
}

// Run ticks the car every calibration tick until ctx is done.
func (c *Car) Run(ctx context.Context) {
	ticker := time.NewTicker(c.calib.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.Tick(now)
		}
	}
}

// Tick runs one iteration of the control loop.
func (c *Car) Tick(now time.Time) {
	c.ticks++

	c.sampler.Tick(now)
	c.drainCommands()
	c.stepPilot()
	c.stepLights(now)
	c.checkShutdown()
	c.serviceTelemetry(now)

	status := c.snapshot(now)
	c.statusLock.Lock()
	c.status = status
	c.statusLock.Unlock()

	if c.publisher != nil {
		c.publisher.Publish(now, status)
	}
}

// Submit queues cmd for the next tick. It is safe to call from any goroutine and reports
// false when the queue is full.
func (c *Car) Submit(cmd Command) bool {
	select {
	case c.commands <- cmd:
		return true
	default:
		return false
	}
}

func (c *Car) drainCommands() {
	for {
		select {
		case cmd := <-c.commands:
			cmd(c)
		default:
			return
		}
	}
}

func (c *Car) stepPilot() {
	if c.shutdown {
		return
	}
	if !c.pilot.PilotStarted() {
		if !c.neutral {
			c.writeNeutral()
		}
		return
	}

	c.pilot.Step()
	c.writePulses(c.pilot.ThrottlePulse(), c.pilot.SteeringPulse())
	c.neutral = false
}

func (c *Car) writeNeutral() {
	c.writePulses(c.pilot.ThrottleNeutral(), c.pilot.SteeringCenter())
	c.neutral = true
}

func (c *Car) writePulses(throttle, steering uint16) {
	var err error
	if c.board.Throttle != nil {
		err = c.board.Throttle.SetPulse(throttle)
	}
	if c.board.Steering != nil {
		if serr := c.board.Steering.SetPulse(steering); err == nil {
			err = serr
		}
	}
	c.outputFailed(&c.pulseErr, err)
}

// outputFailed logs output errors once per failure streak of one output.
func (c *Car) outputFailed(streak *bool, err error) {
	if err != nil && !*streak {
		c.logger.Printf("actuator output failed: %v", err)
	}
	*streak = err != nil
}

func (c *Car) stepLights(now time.Time) {
	if c.shutdown {
		c.headlights.force(0)
		c.rearlight.force(ColorOff)
		c.headlights.ramp.Tick()
	} else {
		c.headlights.Tick(now)
	}
	c.rearlight.Tick()

	power := c.headlights.Current()
	if c.board.Headlights != nil && (!c.lightsOut || power != c.lastPower) {
		c.outputFailed(&c.powerErr, c.board.Headlights.SetPower(power))
		c.lastPower = power
	}
	color := c.rearlight.Displayed()
	if c.board.Rearlight != nil && (!c.lightsOut || color != c.lastColor) {
		c.outputFailed(&c.colorErr, c.board.Rearlight.SetColor(color[0], color[1], color[2]))
		c.lastColor = color
	}
	c.lightsOut = true
}

func (c *Car) checkShutdown() {
	if !c.shutdown || c.halted {
		return
	}
	c.pilot.Start(false)
	c.headlights.force(0)
	c.rearlight.force(ColorOff)
	c.writeNeutral()
	c.halted = true
	c.logger.Println("shutdown: pilot disarmed, outputs neutral")
}

func (c *Car) serviceTelemetry(now time.Time) {
	if c.telemetry != nil {
		c.telemetry.Tick()
	}
	if c.calib.Debug <= 0 || (!c.lastDebug.IsZero() && now.Sub(c.lastDebug) < c.calib.Debug) {
		return
	}
	c.lastDebug = now

	s := c.sampler.Sample()
	xl := s.Acceleration()
	c.logger.Printf("speed=%d angle=%d pilot=%t down=%t soc=%d ir=%d accel=%.2f,%.2f,%.2f",
		c.pilot.Speed(), c.pilot.Angle(), c.pilot.PilotStarted(), c.pilot.SpeedDown(),
		s.BatterySOC, s.IR, xl.X(), xl.Y(), xl.Z())
}

// Shutdown permanently disarms the pilot and fades the outputs to neutral on the next tick.
func (c *Car) Shutdown() {
	if c.shutdown {
		return
	}
	c.shutdown = true
	c.logger.Println("shutdown requested")
}

func (c *Car) IsShutdown() bool { return c.shutdown }

// StartPilot arms or disarms pilot mode. It has no effect after shutdown.
func (c *Car) StartPilot(on bool) {
	if c.shutdown {
		return
	}
	if on != c.pilot.PilotStarted() {
		c.logger.Printf("pilot started=%t", on)
	}
	c.pilot.Start(on)
}

// Drive stores a speed/angle command. It only reaches the outputs while the pilot is armed.
func (c *Car) Drive(speed, angle int16) {
	c.pilot.Command(speed, angle)
}

func (c *Car) SetHeadlights(pwr uint16)  { c.headlights.Set(pwr) }
func (c *Car) SetBlink(on bool)          { c.headlights.SetBlink(on) }
func (c *Car) SetColor(color Color)      { c.rearlight.Set(color) }
func (c *Car) InvertSteering(on bool)    { c.pilot.InvertSteering(on) }
func (c *Car) InvertThrottle(on bool)    { c.pilot.InvertThrottle(on) }
func (c *Car) LimitSpeed(pos, neg int16) { c.pilot.LimitSpeed(pos, neg) }

func (c *Car) SetSteeringTrim(v int16) {
	c.config.SetSteeringTrim(v)
	c.pilot.SetTrim(v)
}

func (c *Car) SetThrottleStart(fw, bw uint16) {
	c.config.SetThrottleStart(fw, bw)
	c.pilot.SetThrottleStart(fw, bw)
}

func (c *Car) SetName(name string)                   { c.config.SetName(name) }
func (c *Car) SetAdminPass(pass [ADMINPASS_LEN]byte) { c.config.SetAdminPass(pass) }

// SaveConfig persists the current config. A failure leaves the in-memory config untouched.
func (c *Car) SaveConfig() error {
	err := c.config.Save()
	if err != nil {
		c.logger.Printf("saving config failed: %v", err)
	} else {
		c.logger.Printf("config saved for %s", c.config.Name())
	}
	return err
}

func (c *Car) Pilot() *Pilot             { return c.pilot }
func (c *Car) Headlights() *Headlights   { return c.headlights }
func (c *Car) Rearlight() *Rearlight     { return c.rearlight }
func (c *Car) Sampler() *Sampler         { return c.sampler }
func (c *Car) ConfigStore() *ConfigStore { return c.config }
func (c *Car) Calibration() *Calibration { return c.calib }
func (c *Car) Ticks() uint64             { return c.ticks }

// Status returns the snapshot taken at the end of the last tick. Safe from any goroutine.
func (c *Car) Status() Status {
	c.statusLock.RLock()
	defer c.statusLock.RUnlock()
	return c.status
}
