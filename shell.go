package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/CodedInternet/carnode/comms"
	"github.com/abiosoft/ishell"
)

// shellVerb maps a shell command onto a conductor command. Numeric arguments fill
// Value/Values; anything before them fills Name.
type shellVerb struct {
	name    string
	help    string
	named   bool
	numbers int
}

var shellVerbs = []shellVerb{
	{"pilot", "pilot <on|off>", false, 1},
	{"drive", "drive <speed> <angle>", false, 2},
	{"headlights", "headlights <power>", false, 1},
	{"blink", "blink <on|off>", false, 1},
	{"color", "color <r> <g> <b>", false, 3},
	{"trim", "trim <steering trim>", false, 1},
	{"throttle", "throttle <forward start> <backward start>", false, 2},
	{"limit", "limit <max forward> <max backward>", false, 2},
	{"invert", "invert <steering|throttle> <on|off>", true, 1},
	{"name", "name <car name>", true, 0},
	{"adminpass", "adminpass <credential>", true, 0},
	{"save", "save the config to storage", false, 0},
	{"shutdown", "shutdown the car until restarted", false, 0},
}

func parseNumber(s string) (float64, error) {
	switch strings.ToLower(s) {
	case "on", "true":
		return 1, nil
	case "off", "false":
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// shellCmd builds the conductor command for verb from the shell arguments.
func shellCmd(verb shellVerb, args []string) (cmd comms.Cmd, err error) {
	cmd.Cmd = verb.name
	want := verb.numbers
	if verb.named {
		want++
	}
	if len(args) != want {
		return cmd, fmt.Errorf("usage: %s", verb.help)
	}

	if verb.named {
		cmd.Name = args[0]
		args = args[1:]
	}
	for _, arg := range args {
		v, err := parseNumber(arg)
		if err != nil {
			return cmd, fmt.Errorf("%s: %v", arg, err)
		}
		cmd.Values = append(cmd.Values, v)
	}
	if len(cmd.Values) == 1 {
		cmd.Value = cmd.Values[0]
		cmd.Values = nil
	}
	return cmd, nil
}

func newShell() *ishell.Shell {
	shell := ishell.New()
	shell.Println("CarNode development shell")
	shell.ShowPrompt(true)

	for _, verb := range shellVerbs {
		verb := verb
		shell.AddCmd(&ishell.Cmd{
			Name: verb.name,
			Help: verb.help,
			Func: func(c *ishell.Context) {
				cmd, err := shellCmd(verb, c.Args)
				if err == nil {
					err = ENV.Conductor.ProcessCommand(cmd)
				}
				if err != nil {
					c.Err(err)
				}
			},
		})
	}

	shell.AddCmd(&ishell.Cmd{
		Name: "status",
		Help: "print the last status snapshot",
		Func: func(c *ishell.Context) {
			out, err := json.MarshalIndent(comms.NewStatePayload(ENV.Conductor.Vehicle.Status()), "", "  ")
			if err != nil {
				c.Err(err)
				return
			}
			c.Println(string(out))
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "createsuperuser",
		Help: "createsuperuser <email> <password>",
		Func: func(c *ishell.Context) {
			// disable the '>>>' for cleaner same line input.
			c.ShowPrompt(false)
			defer c.ShowPrompt(true)

			var email string
			if len(c.Args) >= 1 {
				email = c.Args[0]
			} else {
				c.Print("Email: ")
				email = c.ReadLine()
			}

			var password string
			if len(c.Args) >= 2 {
				password = c.Args[1]
			} else {
				c.Print("Password: ")
				password = c.ReadPassword()
			}

			user := &User{
				Email: email,
				Name:  email,
				Admin: true,
			}
			user.SetPassword([]byte(password))
			if err := ENV.DB.Save(user); err != nil {
				c.Err(err)
				return
			}
			c.Println("Superuser created")
		},
	})

	return shell
}
