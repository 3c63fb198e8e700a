package hardware

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver"
	"github.com/goburrow/serial"
)

const (
	MCU_VERSION  = "~0.2.0"
	MCU_BAUDRATE = 115200
	MCU_TIMEOUT  = 20 * time.Millisecond

	// commands
	mcu_CMD_VERSION = 'V'
	mcu_CMD_FOUND   = 'F'
	mcu_CMD_GET     = 'G'
	mcu_CMD_PULSE   = 'P'
	mcu_CMD_LIGHT   = 'L'
	mcu_CMD_COLOR   = 'C'

	// pulse channels
	mcu_CH_THROTTLE = 0
	mcu_CH_STEERING = 1

	// sensor registers
	mcu_REG_ACCEL   = 1
	mcu_REG_GYRO    = 2
	mcu_REG_BATTERY = 3
	mcu_REG_IR      = 4
)

var (
	ERR_MCU_ERROR    = errors.New("mcu reported an error")
	ERR_SHORT_REPLY  = errors.New("mcu reply has too few values")
	ERR_NOT_DETECTED = errors.New("mcu reports sensor as absent")
)

// MCU talks to the board microcontroller over a line based serial protocol.
// Requests are "<cmd> <arg>...\n". Get style requests are answered by a single line that
// echoes the request followed by space separated values or "ERR", e.g. "G 1 12 -34 16384".
type MCU struct {
	port io.ReadWriteCloser
	rd   *bufio.Reader
	lock sync.Mutex
}

func OpenMCU(ttyName string) (*MCU, error) {
	port, err := serial.Open(&serial.Config{
		Address:  ttyName,
		BaudRate: MCU_BAUDRATE,
		Timeout:  MCU_TIMEOUT,
	})
	if err != nil {
		return nil, err
	}

	return NewMCU(port), nil
}

func NewMCU(port io.ReadWriteCloser) *MCU {
	return &MCU{
		port: port,
		rd:   bufio.NewReader(port),
	}
}

func (mcu *MCU) Close() error {
	return mcu.port.Close()
}

func formatRequest(cmd byte, args []int) []byte {
	var sb strings.Builder
	sb.WriteByte(cmd)
	for _, a := range args {
		sb.WriteByte(' ')
		sb.WriteString(strconv.Itoa(a))
	}
	sb.WriteByte('\n')
	return []byte(sb.String())
}

// Put sends a command that has no reply.
func (mcu *MCU) Put(cmd byte, args ...int) error {
	buf := formatRequest(cmd, args)

	mcu.lock.Lock()
	defer mcu.lock.Unlock()
	_, err := mcu.port.Write(buf)
	return err
}

// Get sends a command and returns the reply with the echoed request stripped.
// Lines answering an earlier request are skipped.
func (mcu *MCU) Get(cmd byte, args ...int) (string, error) {
	// build outside the critical section
	buf := formatRequest(cmd, args)
	tag := string(buf[:len(buf)-1]) + " "

	mcu.lock.Lock()
	defer mcu.lock.Unlock()

	if _, err := mcu.port.Write(buf); err != nil {
		return "", err
	}
	for {
		line, err := mcu.rd.ReadString('\n')
		if err != nil {
			// drop any partial line so it cannot prefix the next reply
			mcu.rd.Reset(mcu.port)
			return "", err
		}

		line = strings.TrimSpace(line) + " "
		if !strings.HasPrefix(line, tag) {
			continue
		}
		reply := strings.TrimSpace(line[len(tag):])
		if reply == "ERR" {
			return "", ERR_MCU_ERROR
		}
		return reply, nil
	}
}

// GetInts sends a command and parses n integers from the reply.
func (mcu *MCU) GetInts(n int, cmd byte, args ...int) ([]int, error) {
	line, err := mcu.Get(cmd, args...)
	if err != nil {
		return nil, err
	}

	fields := strings.Fields(line)
	if len(fields) < n {
		return nil, ERR_SHORT_REPLY
	}
	values := make([]int, n)
	for i := 0; i < n; i++ {
		values[i], err = strconv.Atoi(fields[i])
		if err != nil {
			return nil, fmt.Errorf("bad mcu value %q: %v", fields[i], err)
		}
	}
	return values, nil
}

// CheckVersion reads the firmware version and verifies it against MCU_VERSION.
func (mcu *MCU) CheckVersion() (version string, err error) {
	version, err = mcu.Get(mcu_CMD_VERSION)
	if err != nil {
		return
	}

	semVer, err := semver.NewVersion(version)
	if err != nil {
		if version == "DEV" {
			// bench builds flashed straight from the workstation
			return version, nil
		}
		return
	}

	constraint, err := semver.NewConstraint(MCU_VERSION)
	if err != nil {
		return
	}
	if !constraint.Check(semVer) {
		err = fmt.Errorf("unable to use mcu: received version %s - require %s", version, MCU_VERSION)
	}
	return
}

// Board exposes the MCU peripherals through the hardware interfaces.
func (mcu *MCU) Board(identity Identity) Board {
	return Board{
		Throttle:   mcuPulse{mcu, mcu_CH_THROTTLE},
		Steering:   mcuPulse{mcu, mcu_CH_STEERING},
		Headlights: mcuLight{mcu},
		Rearlight:  mcuColor{mcu},
		IMU:        mcuIMU{mcu},
		Battery:    mcuADC{mcu},
		IR:         mcuIR{mcu},
		Identity:   identity,
	}
}

func (mcu *MCU) probe(reg int) error {
	v, err := mcu.GetInts(1, mcu_CMD_FOUND, reg)
	if err != nil {
		return err
	}
	if v[0] == 0 {
		return ERR_NOT_DETECTED
	}
	return nil
}

func (mcu *MCU) axes(reg int) (a Axes, err error) {
	v, err := mcu.GetInts(3, mcu_CMD_GET, reg)
	if err != nil {
		return
	}
	for i := range a {
		a[i] = int16(v[i])
	}
	return
}

type mcuPulse struct {
	mcu     *MCU
	channel int
}

func (p mcuPulse) SetPulse(us uint16) error {
	return p.mcu.Put(mcu_CMD_PULSE, p.channel, int(us))
}

type mcuLight struct{ mcu *MCU }

func (l mcuLight) SetPower(pwr uint16) error {
	return l.mcu.Put(mcu_CMD_LIGHT, int(pwr))
}

type mcuColor struct{ mcu *MCU }

func (c mcuColor) SetColor(r, g, b uint8) error {
	return c.mcu.Put(mcu_CMD_COLOR, int(r), int(g), int(b))
}

type mcuIMU struct{ mcu *MCU }

func (i mcuIMU) Init() error {
	return i.mcu.probe(mcu_REG_ACCEL)
}

func (i mcuIMU) ReadAccelerometer() (Axes, error) {
	return i.mcu.axes(mcu_REG_ACCEL)
}

func (i mcuIMU) ReadGyroscope() (Axes, error) {
	return i.mcu.axes(mcu_REG_GYRO)
}

type mcuADC struct{ mcu *MCU }

func (a mcuADC) Init() error {
	return a.mcu.probe(mcu_REG_BATTERY)
}

func (a mcuADC) ReadADC() (uint16, error) {
	v, err := a.mcu.GetInts(1, mcu_CMD_GET, mcu_REG_BATTERY)
	if err != nil {
		return 0, err
	}
	return uint16(v[0]), nil
}

type mcuIR struct{ mcu *MCU }

func (r mcuIR) Init() error {
	return r.mcu.probe(mcu_REG_IR)
}

func (r mcuIR) ReadIR() (uint8, error) {
	v, err := r.mcu.GetInts(1, mcu_CMD_GET, mcu_REG_IR)
	if err != nil {
		return 0, err
	}
	return uint8(v[0]), nil
}
