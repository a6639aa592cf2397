package browser

import (
	"testing"
)

// The rod adapter must keep satisfying the capability surface.
var _ Driver = (*Rod)(nil)

func TestBoxCenter(t *testing.T) {

	b := Box{X: 100, Y: 40, Width: 80, Height: 20}

	if got := b.CenterX(); got != 140 {
		t.Fatalf("center x: got %.1f", got)
	}

	if got := b.CenterY(); got != 50 {
		t.Fatalf("center y: got %.1f", got)
	}
}
