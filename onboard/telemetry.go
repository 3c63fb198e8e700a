package onboard

import (
	"io"
	"io/ioutil"
	"net"
	"sync"
	"time"
)

const (
	TELEMETRY_PORT          = 23
	TELEMETRY_WRITE_TIMEOUT = 5 * time.Millisecond
)

// Telemetry serves the debug log to at most one remote reader. A new connection replaces the
// current one; writes without a reader are dropped. It is an io.Writer so a log.Logger can
// write straight into it.
type Telemetry struct {
	listener net.Listener
	pending  chan net.Conn
	done     chan struct{}
	closing  sync.Once

	lock     sync.Mutex
	session  net.Conn
	accepted int
}

func ListenTelemetry(addr string) (*Telemetry, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewTelemetry(l), nil
}

func NewTelemetry(l net.Listener) *Telemetry {
	t := &Telemetry{
		listener: l,
		pending:  make(chan net.Conn, 4),
		done:     make(chan struct{}),
	}
	go t.accept()
	return t
}

// accept runs outside the control loop and hands connections over through pending.
func (t *Telemetry) accept() {
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			return
		}
		select {
		case t.pending <- conn:
		case <-t.done:
			conn.Close()
			return
		}
	}
}

func (t *Telemetry) Addr() net.Addr {
	return t.listener.Addr()
}

// Tick adopts the newest pending connection, if any. It never blocks.
func (t *Telemetry) Tick() {
	var latest net.Conn
drain:
	for {
		select {
		case conn := <-t.pending:
			if latest != nil {
				latest.Close()
			}
			latest = conn
		default:
			break drain
		}
	}
	if latest == nil {
		return
	}

	t.lock.Lock()
	defer t.lock.Unlock()
	if t.session != nil {
		t.session.Close()
	}
	t.session = latest
	t.accepted++

	// anything the reader sends is ignored
	go io.Copy(ioutil.Discard, latest)
}

// Write forwards p to the current session. It always reports success; a failing session is
// dropped.
func (t *Telemetry) Write(p []byte) (int, error) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.session == nil {
		return len(p), nil
	}
	t.session.SetWriteDeadline(time.Now().Add(TELEMETRY_WRITE_TIMEOUT))
	if _, err := t.session.Write(p); err != nil {
		t.session.Close()
		t.session = nil
	}
	return len(p), nil
}

func (t *Telemetry) Connected() bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.session != nil
}

// Accepted counts the sessions adopted so far.
func (t *Telemetry) Accepted() int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.accepted
}

// Close stops accepting and drops the session. Only the first call has an effect.
func (t *Telemetry) Close() (err error) {
	t.closing.Do(func() {
		close(t.done)
		err = t.listener.Close()

		t.lock.Lock()
		defer t.lock.Unlock()
		if t.session != nil {
			t.session.Close()
			t.session = nil
		}
	})
	return
}
