package uploading

import (
	"testing"
	"time"
)

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue()
	if _, ok := q.Pop(); ok {
		t.Fatal("Pop on empty queue should report false")
	}

	for i := 1; i <= 3; i++ {
		q.Push(&Entry{Seq: uint64(i)})
	}
	if q.Len() != 3 {
		t.Fatalf("Len = %d, want 3", q.Len())
	}

	for i := 1; i <= 3; i++ {
		e, ok := q.Pop()
		if !ok || e.Seq != uint64(i) {
			t.Fatalf("Pop %d = %+v, %v", i, e, ok)
		}
	}
	if q.Len() != 0 {
		t.Errorf("Len = %d, want 0", q.Len())
	}
}

func TestQueue_ReadySignalCoalesces(t *testing.T) {
	q := NewQueue()
	q.Push(&Entry{})
	q.Push(&Entry{})

	select {
	case <-q.Ready():
	case <-time.After(time.Second):
		t.Fatal("no ready signal after Push")
	}
	select {
	case <-q.Ready():
		t.Error("ready signal should hold at most one pending notification")
	default:
	}
}
