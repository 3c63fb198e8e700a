package main

import (
	"testing"

	"github.com/CodedInternet/carnode/comms"
	. "github.com/smartystreets/goconvey/convey"
)

func verb(name string) shellVerb {
	for _, v := range shellVerbs {
		if v.name == name {
			return v
		}
	}
	panic("no shell verb " + name)
}

func TestShellCmd(t *testing.T) {
	Convey("shell arguments become conductor commands", t, func() {
		cmd, err := shellCmd(verb("drive"), []string{"100", "-200"})
		So(err, ShouldBeNil)
		So(cmd, ShouldResemble, comms.Cmd{Cmd: "drive", Values: []float64{100, -200}})

		cmd, err = shellCmd(verb("pilot"), []string{"on"})
		So(err, ShouldBeNil)
		So(cmd, ShouldResemble, comms.Cmd{Cmd: "pilot", Value: 1})

		cmd, err = shellCmd(verb("invert"), []string{"throttle", "off"})
		So(err, ShouldBeNil)
		So(cmd, ShouldResemble, comms.Cmd{Cmd: "invert", Name: "throttle"})

		cmd, err = shellCmd(verb("name"), []string{"Car42"})
		So(err, ShouldBeNil)
		So(cmd, ShouldResemble, comms.Cmd{Cmd: "name", Name: "Car42"})

		cmd, err = shellCmd(verb("save"), nil)
		So(err, ShouldBeNil)
		So(cmd.Cmd, ShouldEqual, "save")
	})

	Convey("bad shell arguments are reported with usage", t, func() {
		_, err := shellCmd(verb("color"), []string{"1", "2"})
		So(err.Error(), ShouldContainSubstring, "usage: color")

		_, err = shellCmd(verb("trim"), []string{"left"})
		So(err, ShouldNotBeNil)
	})

	Convey("every verb is understood by the conductor", t, func() {
		v := &recordingVehicle{}
		c := comms.NewConductor(v)
		for _, sv := range shellVerbs {
			if sv.name == "save" {
				continue
			}
			args := make([]string, sv.numbers)
			for i := range args {
				args[i] = "1"
			}
			switch {
			case sv.name == "invert":
				args = append([]string{"steering"}, args...)
			case sv.named:
				args = append([]string{"abc"}, args...)
			}
			cmd, err := shellCmd(sv, args)
			So(err, ShouldBeNil)
			So(c.ProcessCommand(cmd), ShouldBeNil)
		}
	})
}
