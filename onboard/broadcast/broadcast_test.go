package broadcast

import (
	. "github.com/smartystreets/goconvey/convey"
	"net"
	"testing"
	"time"

	"github.com/CodedInternet/carnode/onboard"
	"github.com/CodedInternet/carnode/onboard/hardware"
)

func testStatus() onboard.Status {
	return onboard.Status{
		Name:          "Car42",
		PilotStarted:  true,
		SpeedDown:     true,
		Blink:         true,
		Speed:         -1200,
		Angle:         300,
		IMUPresent:    true,
		Accelerometer: hardware.Axes{-1, 2, 16384},
		Gyroscope:     hardware.Axes{4, -5, 6},
		BatteryADC:    770,
		BatterySOC:    70,
		IR:            9,
	}
}

func TestPacket(t *testing.T) {
	Convey("packets have a fixed size", t, func() {
		So(PACKET_SIZE, ShouldEqual, 41)
		So(Encode(testStatus()), ShouldHaveLength, PACKET_SIZE)
	})

	Convey("an encoded status decodes to the same values", t, func() {
		p, err := Decode(Encode(testStatus()))
		So(err, ShouldBeNil)
		So(p.Name, ShouldEqual, "Car42")
		So(p.PilotStarted, ShouldBeTrue)
		So(p.SpeedDown, ShouldBeTrue)
		So(p.Shutdown, ShouldBeFalse)
		So(p.IMUPresent, ShouldBeTrue)
		So(p.Blink, ShouldBeTrue)
		So(p.Speed, ShouldEqual, -1200)
		So(p.Angle, ShouldEqual, 300)
		So(p.Accel, ShouldResemble, [3]int16{-1, 2, 16384})
		So(p.Gyro, ShouldResemble, [3]int16{4, -5, 6})
		So(p.BatteryADC, ShouldEqual, 770)
		So(p.SOC, ShouldEqual, 70)
		So(p.IR, ShouldEqual, 9)
	})

	Convey("the wire layout is little endian", t, func() {
		raw := Encode(testStatus())
		So(raw[0:2], ShouldResemble, []byte("CN"))
		So(raw[2], ShouldEqual, PACKET_VERSION)
		So(raw[3], ShouldEqual, FLAG_PILOT|FLAG_SPEEDDOWN|FLAG_IMU|FLAG_BLINK)
		So(raw[4], ShouldEqual, 70)
		So(raw[5:7], ShouldResemble, []byte{0x50, 0xfb})
		So(raw[7:9], ShouldResemble, []byte{0x2c, 0x01})
		So(raw[9], ShouldEqual, 9)
		So(raw[24:29], ShouldResemble, []byte("Car42"))
	})

	Convey("unknown SOC survives the round trip", t, func() {
		s := testStatus()
		s.BatterySOC = onboard.SOC_UNKNOWN
		p, err := Decode(Encode(s))
		So(err, ShouldBeNil)
		So(p.SOC, ShouldEqual, -1)
	})

	Convey("invalid packets are rejected", t, func() {
		raw := Encode(testStatus())

		_, err := Decode(raw[:PACKET_SIZE-1])
		So(err, ShouldEqual, ErrShortPacket)

		bad := append([]byte(nil), raw...)
		bad[0] = 'X'
		_, err = Decode(bad)
		So(err, ShouldEqual, ErrBadMagic)

		bad = append([]byte(nil), raw...)
		bad[2] = PACKET_VERSION + 1
		_, err = Decode(bad)
		So(err, ShouldEqual, ErrBadVersion)
	})
}

func TestPublisher(t *testing.T) {
	Convey("Given a publisher sending to a loopback listener", t, func() {
		rx, err := net.ListenPacket("udp4", "127.0.0.1:0")
		So(err, ShouldBeNil)
		defer rx.Close()
		tx, err := net.ListenPacket("udp4", "127.0.0.1:0")
		So(err, ShouldBeNil)

		pub := NewPublisher(tx, rx.LocalAddr(), 100*time.Millisecond)
		defer pub.Close()
		t0 := time.Unix(1000, 0)

		Convey("packets are limited to one per interval", func() {
			pub.Publish(t0, testStatus())
			pub.Publish(t0.Add(50*time.Millisecond), testStatus())
			pub.Publish(t0.Add(100*time.Millisecond), testStatus())
			So(pub.Sent, ShouldEqual, 2)
			So(pub.Failed, ShouldEqual, 0)

			buf := make([]byte, 128)
			rx.SetReadDeadline(time.Now().Add(time.Second))
			n, _, err := rx.ReadFrom(buf)
			So(err, ShouldBeNil)
			p, err := Decode(buf[:n])
			So(err, ShouldBeNil)
			So(p.Name, ShouldEqual, "Car42")
		})

		Convey("send failures are counted", func() {
			tx.Close()
			pub.Publish(t0, testStatus())
			So(pub.Sent, ShouldEqual, 0)
			So(pub.Failed, ShouldEqual, 1)
		})
	})
}
