package util

import (
	"testing"
	"time"
)

func TestFixedClock(t *testing.T) {
	start := time.Unix(1700000000, 0)
	c := NewFixedClock(start)

	if !c.Now().Equal(start) {
		t.Fatalf("now = %v", c.Now())
	}
	c.Advance(time.Second)
	got := <-c.After(time.Second)
	if want := start.Add(2 * time.Second); !got.Equal(want) || !c.Now().Equal(want) {
		t.Fatalf("after = %v, now = %v, want %v", got, c.Now(), want)
	}
}
