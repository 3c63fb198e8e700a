// Package broadcast publishes the car status as a small binary datagram on a multicast group.
package broadcast

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"net"
	"syscall"
	"time"

	"github.com/CodedInternet/carnode/onboard"
	"golang.org/x/sys/unix"
)

const (
	MCAST_GROUP   = "239.255.0.1:4211"
	MCAST_TTL     = 1
	WRITE_TIMEOUT = 2 * time.Millisecond

	PACKET_VERSION = 1

	FLAG_PILOT     = 1 << 0
	FLAG_SPEEDDOWN = 1 << 1
	FLAG_SHUTDOWN  = 1 << 2
	FLAG_IMU       = 1 << 3
	FLAG_BLINK     = 1 << 4
)

var (
	ErrShortPacket = errors.New("status packet too short")
	ErrBadMagic    = errors.New("not a status packet")
	ErrBadVersion  = errors.New("unsupported status packet version")

	magic = [2]byte{'C', 'N'}
)

// packet is the little endian wire layout, 41 bytes. Flags sit at offset 3 and IR at
// offset 9, where the desktop listener reads them.
type packet struct {
	Magic      [2]byte
	Version    uint8
	Flags      uint8
	SOC        int8
	Speed      int16
	Angle      int16
	IR         uint8
	Accel      [3]int16
	Gyro       [3]int16
	BatteryADC uint16
	Name       [onboard.NAME_LEN + 1]byte
}

var PACKET_SIZE = binary.Size(packet{})

// Packet is the decoded content of a status datagram.
type Packet struct {
	PilotStarted bool
	SpeedDown    bool
	Shutdown     bool
	IMUPresent   bool
	Blink        bool
	SOC          int8
	IR           uint8
	Speed        int16
	Angle        int16
	Accel        [3]int16
	Gyro         [3]int16
	BatteryADC   uint16
	Name         string
}

func flag(on bool, bit uint8) uint8 {
	if on {
		return bit
	}
	return 0
}

func Encode(s onboard.Status) []byte {
	p := packet{
		Magic:      magic,
		Version:    PACKET_VERSION,
		SOC:        int8(s.BatterySOC),
		IR:         s.IR,
		Speed:      s.Speed,
		Angle:      s.Angle,
		Accel:      s.Accelerometer,
		Gyro:       s.Gyroscope,
		BatteryADC: s.BatteryADC,
	}
	p.Flags = flag(s.PilotStarted, FLAG_PILOT) |
		flag(s.SpeedDown, FLAG_SPEEDDOWN) |
		flag(s.Shutdown, FLAG_SHUTDOWN) |
		flag(s.IMUPresent, FLAG_IMU) |
		flag(s.Blink, FLAG_BLINK)
	copy(p.Name[:onboard.NAME_LEN], s.Name)

	var buf bytes.Buffer
	buf.Grow(PACKET_SIZE)
	binary.Write(&buf, binary.LittleEndian, p)
	return buf.Bytes()
}

func Decode(raw []byte) (out Packet, err error) {
	if len(raw) < PACKET_SIZE {
		return out, ErrShortPacket
	}
	var p packet
	if err = binary.Read(bytes.NewReader(raw), binary.LittleEndian, &p); err != nil {
		return
	}
	if p.Magic != magic {
		return out, ErrBadMagic
	}
	if p.Version != PACKET_VERSION {
		return out, ErrBadVersion
	}

	name := p.Name[:]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return Packet{
		PilotStarted: p.Flags&FLAG_PILOT != 0,
		SpeedDown:    p.Flags&FLAG_SPEEDDOWN != 0,
		Shutdown:     p.Flags&FLAG_SHUTDOWN != 0,
		IMUPresent:   p.Flags&FLAG_IMU != 0,
		Blink:        p.Flags&FLAG_BLINK != 0,
		SOC:          p.SOC,
		IR:           p.IR,
		Speed:        p.Speed,
		Angle:        p.Angle,
		Accel:        p.Accel,
		Gyro:         p.Gyro,
		BatteryADC:   p.BatteryADC,
		Name:         string(name),
	}, nil
}

// Publisher sends a status datagram at most once per interval. Send failures are counted and
// otherwise ignored.
type Publisher struct {
	conn     net.PacketConn
	dest     net.Addr
	interval time.Duration
	last     time.Time
	Sent     int
	Failed   int
}

// Dial opens a UDP socket for sending to group.
func Dial(group string, interval time.Duration) (*Publisher, error) {
	dest, err := net.ResolveUDPAddr("udp4", group)
	if err != nil {
		return nil, err
	}

	lc := net.ListenConfig{Control: socketOptions}
	conn, err := lc.ListenPacket(context.Background(), "udp4", ":0")
	if err != nil {
		return nil, err
	}
	return NewPublisher(conn, dest, interval), nil
}

func NewPublisher(conn net.PacketConn, dest net.Addr, interval time.Duration) *Publisher {
	return &Publisher{
		conn:     conn,
		dest:     dest,
		interval: interval,
	}
}

func socketOptions(network, address string, c syscall.RawConn) error {
	var opErr error
	err := c.Control(func(fd uintptr) {
		if opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); opErr != nil {
			return
		}
		opErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_MULTICAST_TTL, MCAST_TTL)
	})
	if err != nil {
		return err
	}
	return opErr
}

func (p *Publisher) Publish(now time.Time, s onboard.Status) {
	if !p.last.IsZero() && now.Sub(p.last) < p.interval {
		return
	}
	p.last = now

	p.conn.SetWriteDeadline(time.Now().Add(WRITE_TIMEOUT))
	if _, err := p.conn.WriteTo(Encode(s), p.dest); err != nil {
		p.Failed++
		return
	}
	p.Sent++
}

func (p *Publisher) Close() error {
	return p.conn.Close()
}
