package app

import (
	"errors"
	"sync"
	"testing"

	"github.com/canlabs/canmon/internal/domain"
)

func TestFrameQueue_FIFO(t *testing.T) {
	q := NewFrameQueue()

	for i := 0; i < 5; i++ {
		q.PushFrame(domain.Frame{ID: uint32(i)})
	}
	if q.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", q.Len())
	}

	for i := 0; i < 5; i++ {
		it, ok := q.TryPop()
		if !ok {
			t.Fatalf("TryPop() empty at %d", i)
		}
		if it.Err != nil {
			t.Fatalf("unexpected error item: %v", it.Err)
		}
		if it.Frame.ID != uint32(i) {
			t.Errorf("pop %d: ID = %d, want %d", i, it.Frame.ID, i)
		}
	}

	if _, ok := q.TryPop(); ok {
		t.Error("TryPop() on empty queue returned ok")
	}
}

func TestFrameQueue_ErrorOrderedBehindFrames(t *testing.T) {
	q := NewFrameQueue()
	sentinel := errors.New("bus gone")

	q.PushFrame(domain.Frame{ID: 1})
	q.PushFrame(domain.Frame{ID: 2})
	q.PushErr(sentinel)

	it, _ := q.TryPop()
	if it.Frame.ID != 1 || it.Err != nil {
		t.Fatalf("first item = %+v, want frame 1", it)
	}
	it, _ = q.TryPop()
	if it.Frame.ID != 2 || it.Err != nil {
		t.Fatalf("second item = %+v, want frame 2", it)
	}
	it, _ = q.TryPop()
	if !errors.Is(it.Err, sentinel) {
		t.Fatalf("third item err = %v, want sentinel", it.Err)
	}
}

func TestFrameQueue_Drain(t *testing.T) {
	q := NewFrameQueue()
	q.PushFrame(domain.Frame{ID: 1})
	q.PushFrame(domain.Frame{ID: 2})
	q.PushErr(errors.New("x"))

	if n := q.Drain(); n != 3 {
		t.Errorf("Drain() = %d, want 3", n)
	}
	if q.Len() != 0 {
		t.Errorf("Len() after Drain = %d, want 0", q.Len())
	}
}

func TestFrameQueue_ConcurrentProducers(t *testing.T) {
	q := NewFrameQueue()
	const producers = 4
	const perProducer = 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.PushFrame(domain.Frame{ID: uint32(p)})
			}
		}(p)
	}
	wg.Wait()

	if q.Len() != producers*perProducer {
		t.Errorf("Len() = %d, want %d", q.Len(), producers*perProducer)
	}
}
