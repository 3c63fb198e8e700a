package main

import (
	"errors"
	"net/http"

	"github.com/CodedInternet/carnode/comms"
	"github.com/go-chi/render"
)

//---
// Control payloads
//---

type PilotPayload struct {
	On bool `json:"on"`
}

func (p *PilotPayload) Bind(r *http.Request) error { return nil }

type DrivePayload struct {
	Speed int16 `json:"speed"`
	Angle int16 `json:"angle"`
}

func (p *DrivePayload) Bind(r *http.Request) error { return nil }

type HeadlightsPayload struct {
	Power uint16 `json:"power"`
	Blink bool   `json:"blink"`
}

func (p *HeadlightsPayload) Bind(r *http.Request) error { return nil }

type ColorPayload struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

func (p *ColorPayload) Bind(r *http.Request) error { return nil }

type TrimPayload struct {
	Trim int16 `json:"trim"`
}

func (p *TrimPayload) Bind(r *http.Request) error { return nil }

type ThrottlePayload struct {
	Forward  uint16 `json:"forward"`
	Backward uint16 `json:"backward"`
}

func (p *ThrottlePayload) Bind(r *http.Request) error { return nil }

type NamePayload struct {
	Name string `json:"name"`
}

func (p *NamePayload) Bind(r *http.Request) error {
	if p.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

type AdminPassPayload struct {
	Pass string `json:"pass"`
}

func (p *AdminPassPayload) Bind(r *http.Request) error { return nil }

type CmdPayload struct {
	comms.Cmd
}

func (p *CmdPayload) Bind(r *http.Request) error {
	if p.Cmd.Cmd == "" {
		return errors.New("cmd is required")
	}
	return nil
}

//---
// Views
//---

// runCmds passes cmds to the conductor in order, stopping at the first failure.
func runCmds(w http.ResponseWriter, r *http.Request, cmds ...comms.Cmd) {
	for _, cmd := range cmds {
		if err := ENV.Conductor.ProcessCommand(cmd); err != nil {
			render.Render(w, r, ErrCommand(err))
			return
		}
	}
	render.JSON(w, r, comms.Reply{Ok: true})
}

// bind decodes the request body into data, rendering the error when it fails.
func bind(w http.ResponseWriter, r *http.Request, data render.Binder) bool {
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return false
	}
	return true
}

func boolValue(on bool) float64 {
	if on {
		return 1
	}
	return 0
}

func StatusView(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, comms.NewStatePayload(ENV.Conductor.Vehicle.Status()))
}

func CommandView(w http.ResponseWriter, r *http.Request) {
	data := &CmdPayload{}
	if bind(w, r, data) {
		runCmds(w, r, data.Cmd)
	}
}

func PilotView(w http.ResponseWriter, r *http.Request) {
	data := &PilotPayload{}
	if bind(w, r, data) {
		runCmds(w, r, comms.Cmd{Cmd: "pilot", Value: boolValue(data.On)})
	}
}

func DriveView(w http.ResponseWriter, r *http.Request) {
	data := &DrivePayload{}
	if bind(w, r, data) {
		runCmds(w, r, comms.Cmd{Cmd: "drive", Values: []float64{float64(data.Speed), float64(data.Angle)}})
	}
}

func HeadlightsView(w http.ResponseWriter, r *http.Request) {
	data := &HeadlightsPayload{}
	if bind(w, r, data) {
		runCmds(w, r,
			comms.Cmd{Cmd: "headlights", Value: float64(data.Power)},
			comms.Cmd{Cmd: "blink", Value: boolValue(data.Blink)},
		)
	}
}

func ColorView(w http.ResponseWriter, r *http.Request) {
	data := &ColorPayload{}
	if bind(w, r, data) {
		runCmds(w, r, comms.Cmd{Cmd: "color", Values: []float64{float64(data.R), float64(data.G), float64(data.B)}})
	}
}

func TrimView(w http.ResponseWriter, r *http.Request) {
	data := &TrimPayload{}
	if bind(w, r, data) {
		runCmds(w, r, comms.Cmd{Cmd: "trim", Value: float64(data.Trim)})
	}
}

func ThrottleView(w http.ResponseWriter, r *http.Request) {
	data := &ThrottlePayload{}
	if bind(w, r, data) {
		runCmds(w, r, comms.Cmd{Cmd: "throttle", Values: []float64{float64(data.Forward), float64(data.Backward)}})
	}
}

func NameView(w http.ResponseWriter, r *http.Request) {
	data := &NamePayload{}
	if bind(w, r, data) {
		runCmds(w, r, comms.Cmd{Cmd: "name", Name: data.Name})
	}
}

func AdminPassView(w http.ResponseWriter, r *http.Request) {
	data := &AdminPassPayload{}
	if bind(w, r, data) {
		runCmds(w, r, comms.Cmd{Cmd: "adminpass", Name: data.Pass})
	}
}

func SaveView(w http.ResponseWriter, r *http.Request) {
	runCmds(w, r, comms.Cmd{Cmd: "save"})
}

func ShutdownView(w http.ResponseWriter, r *http.Request) {
	runCmds(w, r, comms.Cmd{Cmd: "shutdown"})
}
