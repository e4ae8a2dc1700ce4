package clock

import (
	"testing"
	"time"
)

func TestFakeAdvanceFiresDueWaiters(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := NewFake(start)

	short := f.After(time.Second)
	long := f.After(time.Minute)

	f.Advance(time.Second)
	select {
	case got := <-short:
		if !got.Equal(start.Add(time.Second)) {
			t.Fatalf("fired at %v, want %v", got, start.Add(time.Second))
		}
	default:
		t.Fatal("short waiter did not fire")
	}
	select {
	case <-long:
		t.Fatal("long waiter fired early")
	default:
	}

	f.Advance(time.Minute)
	select {
	case <-long:
	default:
		t.Fatal("long waiter did not fire")
	}
	if want := start.Add(time.Second + time.Minute); !f.Now().Equal(want) {
		t.Fatalf("now = %v, want %v", f.Now(), want)
	}
}

func TestFakeAfterZeroFiresImmediately(t *testing.T) {
	f := NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	select {
	case <-f.After(0):
	default:
		t.Fatal("zero-duration After did not fire")
	}
}
