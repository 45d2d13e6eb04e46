// Package replay implements a transport that plays back a candump format
// capture file, pacing frames by their recorded timestamps.
package replay

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/canlabs/canmon/internal/domain"
	"github.com/canlabs/canmon/internal/ports"
)

// ErrDone reports that the capture has been fully replayed. It is fatal
// to the connection, which ends the session the same way a device
// disappearing would.
var ErrDone = errors.New("canmon: replay finished")

// Transport replays a capture in the candump log format, one frame per
// line:
//
//	(1699999999.123456) can0 123#DEADBEEF
//	(1699999999.234567) can0 456##1DEADBEEFDEADBEEF
//
// The double hash marks a CAN FD frame; the character after it is the FD
// flags nibble, which replay ignores. Malformed lines are skipped and
// counted. Send accepts any valid frame and discards it, a capture being
// one-directional.
type Transport struct {
	speed float64

	mu      sync.Mutex
	rc      io.ReadCloser
	sc      *bufio.Scanner
	started bool
	start   time.Time
	firstTS float64
	pending *pendingFrame
	skipped int

	closeOnce sync.Once
	closed    chan struct{}
}

type pendingFrame struct {
	frame domain.Frame
	ts    float64
}

var _ ports.Transport = (*Transport)(nil)

// Open replays the capture file at path. speed scales playback, 1.0 being
// real time; zero or negative means as fast as the consumer polls.
func Open(path string, speed float64) (*Transport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}
	return New(f, speed), nil
}

// New replays a capture from rc, which is closed with the transport.
func New(rc io.ReadCloser, speed float64) *Transport {
	return &Transport{
		speed:  speed,
		rc:     rc,
		sc:     bufio.NewScanner(rc),
		closed: make(chan struct{}),
	}
}

// Receive returns the next frame once its recorded timestamp is due. The
// boolean is false when the next frame is not due within timeout. The
// capture running out yields ErrDone.
func (t *Transport) Receive(timeout time.Duration) (domain.Frame, bool, error) {
	select {
	case <-t.closed:
		return domain.Frame{}, false, ErrDone
	default:
	}

	t.mu.Lock()
	if t.pending == nil {
		p, err := t.next()
		if err != nil {
			t.mu.Unlock()
			return domain.Frame{}, false, err
		}
		t.pending = p
	}
	if !t.started {
		t.started = true
		t.start = time.Now()
		t.firstTS = t.pending.ts
	}
	p := t.pending
	var wait time.Duration
	if t.speed > 0 {
		due := t.start.Add(time.Duration(float64(time.Second) * (p.ts - t.firstTS) / t.speed))
		wait = time.Until(due)
	}
	t.mu.Unlock()

	if wait > timeout {
		if !t.sleep(timeout) {
			return domain.Frame{}, false, ErrDone
		}
		return domain.Frame{}, false, nil
	}
	if wait > 0 && !t.sleep(wait) {
		return domain.Frame{}, false, ErrDone
	}

	t.mu.Lock()
	t.pending = nil
	t.mu.Unlock()
	f := p.frame
	f.Time = time.Now()
	return f, true, nil
}

// Send validates the frame and discards it.
func (t *Transport) Send(f domain.Frame) error {
	return f.Validate()
}

// Close stops playback and closes the underlying capture. Idempotent.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closed)
		t.mu.Lock()
		err = t.rc.Close()
		t.mu.Unlock()
	})
	return err
}

// Skipped reports how many malformed lines playback has discarded.
func (t *Transport) Skipped() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.skipped
}

func (t *Transport) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-t.closed:
		return false
	case <-timer.C:
		return true
	}
}

// next scans forward to the next well formed line. Called with mu held.
func (t *Transport) next() (*pendingFrame, error) {
	for t.sc.Scan() {
		line := strings.TrimSpace(t.sc.Text())
		if line == "" {
			continue
		}
		f, ts, err := parseLine(line)
		if err != nil {
			t.skipped++
			continue
		}
		return &pendingFrame{frame: f, ts: ts}, nil
	}
	if err := t.sc.Err(); err != nil {
		return nil, domain.NewBusError(fmt.Errorf("read capture: %w", err))
	}
	return nil, ErrDone
}

// parseLine parses one candump log line into a frame and its recorded
// timestamp in seconds.
func parseLine(line string) (domain.Frame, float64, error) {
	open := strings.Index(line, "(")
	closing := strings.Index(line, ")")
	if open == -1 || closing == -1 || open > closing {
		return domain.Frame{}, 0, fmt.Errorf("no timestamp in %q", line)
	}
	ts, err := strconv.ParseFloat(line[open+1:closing], 64)
	if err != nil {
		return domain.Frame{}, 0, fmt.Errorf("bad timestamp in %q: %w", line, err)
	}

	hash := strings.Index(line, "#")
	if hash == -1 {
		return domain.Frame{}, 0, fmt.Errorf("no separator in %q", line)
	}

	idPart := strings.TrimSpace(line[closing+1 : hash])
	if idx := strings.LastIndex(idPart, " "); idx != -1 {
		idPart = idPart[idx+1:]
	}
	id, err := strconv.ParseUint(idPart, 16, 32)
	if err != nil {
		return domain.Frame{}, 0, fmt.Errorf("bad identifier in %q: %w", line, err)
	}
	extended := len(idPart) > 3

	payloadHex := line[hash+1:]
	fd := strings.HasPrefix(payloadHex, "#")
	if fd {
		if len(payloadHex) < 2 {
			return domain.Frame{}, 0, fmt.Errorf("truncated fd flags in %q", line)
		}
		payloadHex = payloadHex[2:]
	}
	payloadHex = strings.ReplaceAll(strings.TrimSpace(payloadHex), " ", "")
	data, err := hex.DecodeString(payloadHex)
	if err != nil {
		return domain.Frame{}, 0, fmt.Errorf("bad payload in %q: %w", line, err)
	}

	f, err := domain.NewFrame(uint32(id), data, extended, fd, domain.RX)
	if err != nil {
		return domain.Frame{}, 0, err
	}
	return f, ts, nil
}
