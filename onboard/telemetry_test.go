package onboard

import (
	"bufio"
	. "github.com/smartystreets/goconvey/convey"
	"io"
	"net"
	"testing"
	"time"
)

// waitAccepted ticks t until it has adopted n sessions or a second passes.
func waitAccepted(t *Telemetry, n int) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		t.Tick()
		if t.Accepted() >= n {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

func TestTelemetry(t *testing.T) {
	Convey("closing twice is harmless", t, func() {
		tel, err := ListenTelemetry("127.0.0.1:0")
		So(err, ShouldBeNil)
		So(tel.Close(), ShouldBeNil)
		So(func() { tel.Close() }, ShouldNotPanic)
		So(tel.Close(), ShouldBeNil)
	})

	Convey("Given a telemetry server on loopback", t, func() {
		tel, err := ListenTelemetry("127.0.0.1:0")
		So(err, ShouldBeNil)
		defer tel.Close()

		Convey("writes without a reader are dropped", func() {
			n, err := tel.Write([]byte("nobody\n"))
			So(n, ShouldEqual, 7)
			So(err, ShouldBeNil)
			So(tel.Connected(), ShouldBeFalse)
		})

		Convey("a client receives what is written", func() {
			a, err := net.Dial("tcp", tel.Addr().String())
			So(err, ShouldBeNil)
			defer a.Close()
			So(waitAccepted(tel, 1), ShouldBeTrue)
			So(tel.Connected(), ShouldBeTrue)

			tel.Write([]byte("one\n"))
			a.SetReadDeadline(time.Now().Add(time.Second))
			ra := bufio.NewReader(a)
			line, err := ra.ReadString('\n')
			So(err, ShouldBeNil)
			So(line, ShouldEqual, "one\n")

			Convey("a second client replaces the first", func() {
				b, err := net.Dial("tcp", tel.Addr().String())
				So(err, ShouldBeNil)
				defer b.Close()
				So(waitAccepted(tel, 2), ShouldBeTrue)

				tel.Write([]byte("two\n"))
				b.SetReadDeadline(time.Now().Add(time.Second))
				line, err := bufio.NewReader(b).ReadString('\n')
				So(err, ShouldBeNil)
				So(line, ShouldEqual, "two\n")

				_, err = ra.ReadString('\n')
				So(err, ShouldEqual, io.EOF)
			})

			Convey("a closed client is dropped on the next write", func() {
				a.Close()
				deadline := time.Now().Add(time.Second)
				for tel.Connected() && time.Now().Before(deadline) {
					tel.Write([]byte("ping\n"))
					time.Sleep(time.Millisecond)
				}
				So(tel.Connected(), ShouldBeFalse)
			})
		})
	})
}
