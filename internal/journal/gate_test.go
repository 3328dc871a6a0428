package journal

import (
	"errors"
	"testing"
	"time"
)

func TestWriteGate(t *testing.T) {
	errDB := errors.New("connection refused")
	now := time.Unix(1000, 0)

	t.Run("stays open on success", func(t *testing.T) {
		g := writeGate{maxFails: 3, quiet: 30 * time.Second}
		for i := 0; i < 10; i++ {
			if !g.allow(now) {
				t.Fatalf("write %d blocked", i)
			}
			g.observe(now, nil)
		}
	})

	t.Run("closes after consecutive failures", func(t *testing.T) {
		g := writeGate{maxFails: 3, quiet: 30 * time.Second}
		for i := 0; i < 3; i++ {
			if !g.allow(now) {
				t.Fatalf("write %d blocked early", i)
			}
			closed := g.observe(now, errDB)
			if closed != (i == 2) {
				t.Errorf("failure %d reported closed = %v", i, closed)
			}
		}
		if g.allow(now.Add(time.Second)) {
			t.Error("gate open during quiet period")
		}
	})

	t.Run("success resets the failure count", func(t *testing.T) {
		g := writeGate{maxFails: 3, quiet: 30 * time.Second}
		g.observe(now, errDB)
		g.observe(now, errDB)
		g.observe(now, nil)
		g.observe(now, errDB)
		g.observe(now, errDB)
		if !g.allow(now) {
			t.Error("gate closed below the failure threshold")
		}
	})

	t.Run("probes after the quiet period", func(t *testing.T) {
		g := writeGate{maxFails: 2, quiet: 30 * time.Second}
		g.observe(now, errDB)
		g.observe(now, errDB)

		later := now.Add(31 * time.Second)
		if !g.allow(later) {
			t.Fatal("probe blocked after quiet period")
		}
		// A failing probe restarts the quiet period.
		g.observe(later, errDB)
		if g.allow(later.Add(time.Second)) {
			t.Error("gate open right after failed probe")
		}
		// A successful probe reopens fully.
		probe2 := later.Add(31 * time.Second)
		if !g.allow(probe2) {
			t.Fatal("second probe blocked")
		}
		g.observe(probe2, nil)
		if !g.allow(probe2.Add(time.Millisecond)) {
			t.Error("gate closed after successful probe")
		}
	})
}
