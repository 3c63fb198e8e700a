package comms

import (
	"math"

	"github.com/CodedInternet/carnode/onboard"
	"github.com/go-gl/mathgl/mgl64"
)

// Cmd is a single remote command. Scalar arguments travel in Value, lists in Values and
// strings in Name.
type Cmd struct {
	Cmd    string    `json:"cmd"`
	Name   string    `json:"name,omitempty"`
	Value  float64   `json:"value,omitempty"`
	Values []float64 `json:"values,omitempty"`
}

type Reply struct {
	Ok    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func replyFor(err error) Reply {
	if err != nil {
		return Reply{Error: err.Error()}
	}
	return Reply{Ok: true}
}

// Tilt is the chassis attitude derived from gravity, in degrees.
type Tilt struct {
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
}

type StatePayload struct {
	onboard.Status
	Tilt Tilt `json:"tilt"`
}

func NewStatePayload(s onboard.Status) StatePayload {
	return StatePayload{
		Status: s,
		Tilt:   tilt(mgl64.Vec3(s.AccelG)),
	}
}

// tilt is only meaningful while the car is not accelerating.
func tilt(g mgl64.Vec3) (t Tilt) {
	if g.Len() == 0 {
		return
	}
	t.Pitch = mgl64.RadToDeg(math.Atan2(-g.X(), math.Hypot(g.Y(), g.Z())))
	t.Roll = mgl64.RadToDeg(math.Atan2(g.Y(), g.Z()))
	return
}
