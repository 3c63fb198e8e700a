package onboard

// Command is applied to the car inside a tick, on the loop goroutine.
type Command func(c *Car)

func StartPilot(on bool) Command {
	return func(c *Car) { c.StartPilot(on) }
}

func Drive(speed, angle int16) Command {
	return func(c *Car) { c.Drive(speed, angle) }
}

func SetHeadlights(pwr uint16) Command {
	return func(c *Car) { c.SetHeadlights(pwr) }
}

func SetBlink(on bool) Command {
	return func(c *Car) { c.SetBlink(on) }
}

func SetColor(color Color) Command {
	return func(c *Car) { c.SetColor(color) }
}

func SetSteeringTrim(v int16) Command {
	return func(c *Car) { c.SetSteeringTrim(v) }
}

func SetThrottleStart(fw, bw uint16) Command {
	return func(c *Car) { c.SetThrottleStart(fw, bw) }
}

func SetName(name string) Command {
	return func(c *Car) { c.SetName(name) }
}

func SetAdminPass(pass [ADMINPASS_LEN]byte) Command {
	return func(c *Car) { c.SetAdminPass(pass) }
}

func InvertSteering(on bool) Command {
	return func(c *Car) { c.InvertSteering(on) }
}

func InvertThrottle(on bool) Command {
	return func(c *Car) { c.InvertThrottle(on) }
}

func LimitSpeed(pos, neg int16) Command {
	return func(c *Car) { c.LimitSpeed(pos, neg) }
}

// SaveConfig persists the config. The result is sent on reply when it is not nil; reply
// should be buffered so the loop never waits on it.
func SaveConfig(reply chan<- error) Command {
	return func(c *Car) {
		err := c.SaveConfig()
		if reply != nil {
			select {
			case reply <- err:
			default:
			}
		}
	}
}

func Shutdown() Command {
	return func(c *Car) { c.Shutdown() }
}
