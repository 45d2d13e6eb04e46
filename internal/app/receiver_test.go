package app

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/canlabs/canmon/internal/domain"
	"github.com/canlabs/canmon/internal/ports"
)

// mockLogger implements ports.Logger for testing.
type mockLogger struct{}

func (mockLogger) Debug(msg string, fields ...ports.Field) {}
func (mockLogger) Info(msg string, fields ...ports.Field)  {}
func (mockLogger) Warn(msg string, fields ...ports.Field)  {}
func (mockLogger) Error(msg string, fields ...ports.Field) {}

// receiveResult scripts one Receive call of the mock transport.
type receiveResult struct {
	frame domain.Frame
	ok    bool
	err   error
}

// mockTransport serves a scripted sequence of receive results, then
// reports timeouts forever.
type mockTransport struct {
	mu      sync.Mutex
	script  []receiveResult
	pos     int
	sendErr error
	sent    []domain.Frame
	closed  bool
}

func (m *mockTransport) Receive(timeout time.Duration) (domain.Frame, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pos >= len(m.script) {
		return domain.Frame{}, false, nil
	}
	r := m.script[m.pos]
	m.pos++
	return r.frame, r.ok, r.err
}

func (m *mockTransport) Send(f domain.Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, f)
	return nil
}

func (m *mockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockTransport) sentFrames() []domain.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Frame(nil), m.sent...)
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal(msg)
}

func TestReceiver_DeliversFramesInOrder(t *testing.T) {
	tr := &mockTransport{script: []receiveResult{
		{frame: domain.Frame{ID: 1}, ok: true},
		{frame: domain.Frame{ID: 2}, ok: true},
		{frame: domain.Frame{ID: 3}, ok: true},
	}}
	q := NewFrameQueue()
	r := NewReceiver(tr, q, mockLogger{}, NewLifecycle(mockLogger{}, nil), time.Millisecond, 0, 0)

	r.Start()
	waitFor(t, func() bool { return q.Len() == 3 }, "frames never arrived")
	if err := r.Stop(); err != nil {
		t.Fatalf("Stop() = %v", err)
	}

	for want := uint32(1); want <= 3; want++ {
		it, ok := q.TryPop()
		if !ok || it.Frame.ID != want {
			t.Fatalf("pop = (%+v, %v), want frame %d", it, ok, want)
		}
	}
}

func TestReceiver_TransientErrorsForgivenByGoodFrame(t *testing.T) {
	busErr := domain.NewBusError(errors.New("bit stuffing"))
	script := []receiveResult{}
	// Interleave errors below the threshold with good frames.
	for i := 0; i < 3; i++ {
		script = append(script,
			receiveResult{err: busErr},
			receiveResult{err: busErr},
			receiveResult{frame: domain.Frame{ID: uint32(i)}, ok: true},
		)
	}
	tr := &mockTransport{script: script}
	q := NewFrameQueue()
	r := NewReceiver(tr, q, mockLogger{}, NewLifecycle(mockLogger{}, nil), time.Millisecond, 3, 0)

	r.Start()
	waitFor(t, func() bool { return q.Len() == 3 }, "frames never arrived")
	_ = r.Stop()

	for q.Len() > 0 {
		it, _ := q.TryPop()
		if it.Err != nil {
			t.Fatalf("transient errors below threshold leaked: %v", it.Err)
		}
	}
}

func TestReceiver_ErrorThresholdEndsConnection(t *testing.T) {
	busErr := domain.NewBusError(errors.New("bus off"))
	script := []receiveResult{{frame: domain.Frame{ID: 7}, ok: true}}
	for i := 0; i < 5; i++ {
		script = append(script, receiveResult{err: busErr})
	}
	tr := &mockTransport{script: script}
	q := NewFrameQueue()
	r := NewReceiver(tr, q, mockLogger{}, NewLifecycle(mockLogger{}, nil), time.Millisecond, 4, 0)

	r.Start()
	waitFor(t, func() bool { return q.Len() == 2 }, "fatal error never queued")

	// The frame received before the failure must still come out first.
	it, _ := q.TryPop()
	if it.Frame.ID != 7 || it.Err != nil {
		t.Fatalf("first item = %+v, want frame 7", it)
	}
	it, _ = q.TryPop()
	if it.Err == nil || !domain.IsBusError(it.Err) {
		t.Fatalf("second item err = %v, want wrapped bus error", it.Err)
	}

	_ = r.Stop()
}

func TestReceiver_FatalErrorQueuedOnce(t *testing.T) {
	fatal := errors.New("device unplugged")
	tr := &mockTransport{script: []receiveResult{{err: fatal}}}
	q := NewFrameQueue()
	r := NewReceiver(tr, q, mockLogger{}, NewLifecycle(mockLogger{}, nil), time.Millisecond, 0, 0)

	r.Start()
	waitFor(t, func() bool { return q.Len() == 1 }, "fatal error never queued")

	it, _ := q.TryPop()
	if !errors.Is(it.Err, fatal) {
		t.Fatalf("queued err = %v, want fatal", it.Err)
	}
	if q.Len() != 0 {
		t.Error("fatal error queued more than once")
	}
	_ = r.Stop()
}

func TestReceiver_StopIdempotent(t *testing.T) {
	tr := &mockTransport{}
	q := NewFrameQueue()
	r := NewReceiver(tr, q, mockLogger{}, NewLifecycle(mockLogger{}, nil), time.Millisecond, 0, 0)

	r.Start()
	if err := r.Stop(); err != nil {
		t.Fatalf("first Stop() = %v", err)
	}
	if err := r.Stop(); err != nil {
		t.Fatalf("second Stop() = %v", err)
	}
}

func TestReceiver_StopNeverStarted(t *testing.T) {
	r := NewReceiver(&mockTransport{}, NewFrameQueue(), mockLogger{}, NewLifecycle(mockLogger{}, nil), time.Millisecond, 0, 0)
	if err := r.Stop(); err != nil {
		t.Fatalf("Stop() on never-started receiver = %v", err)
	}
}

func TestReceiver_StopTimeout(t *testing.T) {
	// A transport that ignores the timeout and blocks.
	tr := newBlockingTransport()
	q := NewFrameQueue()
	r := NewReceiver(tr, q, mockLogger{}, NewLifecycle(mockLogger{}, nil), time.Millisecond, 0, 20*time.Millisecond)

	r.Start()
	// Stop must not race the loop's first running check: wait until the
	// loop is parked inside Receive before asking it to exit.
	<-tr.entered
	err := r.Stop()
	close(tr.release)
	if !errors.Is(err, domain.ErrShutdownTimeout) {
		t.Fatalf("Stop() = %v, want ErrShutdownTimeout", err)
	}
}

func TestReceiver_StopJoinsWorkerAccounting(t *testing.T) {
	lc := NewLifecycle(mockLogger{}, nil)
	tr := &mockTransport{}
	r := NewReceiver(tr, NewFrameQueue(), mockLogger{}, lc, time.Millisecond, 0, 0)

	r.Start()
	if err := r.Stop(); err != nil {
		t.Fatalf("Stop() = %v", err)
	}
	// The loop goroutine has been joined, so the worker count is back to
	// zero and a fresh wait returns at once.
	if err := lc.WaitWithTimeout(10 * time.Millisecond); err != nil {
		t.Fatalf("WaitWithTimeout after Stop = %v", err)
	}
}

type blockingTransport struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingTransport() *blockingTransport {
	return &blockingTransport{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (b *blockingTransport) Receive(timeout time.Duration) (domain.Frame, bool, error) {
	b.once.Do(func() { close(b.entered) })
	<-b.release
	return domain.Frame{}, false, nil
}

func (b *blockingTransport) Send(domain.Frame) error { return nil }
func (b *blockingTransport) Close() error            { return nil }
