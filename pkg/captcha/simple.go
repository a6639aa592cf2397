package captcha

import (
	"time"
)

// Simple drags the handle a fixed fraction of the track width. It knows
// nothing about the puzzle; it exists as the fallback when nothing smarter
// is available, and DataDome sliders pass it often enough to be worth one
// attempt per wall.
type Simple struct {
	// Fraction of track width to travel. Defaults to 0.30.
	Fraction float64
}

func (s *Simple) Initialize() error {
	return nil
}

func (s *Simple) SolveSlider(o *SolveSliderOptions) (bool, error) {

	fraction := s.Fraction

	if fraction == 0 {
		fraction = 0.30
	}

	deadline := time.Now().Add(10 * time.Second)

	for !o.Drv.Visible(o.HandleSelector) {
		if time.Now().After(deadline) {
			return false, nil
		}

		time.Sleep(500 * time.Millisecond)
	}

	track, ok := o.Drv.BoundingBox(o.TrackSelector)

	if !ok {
		return false, nil
	}

	offset := track.Width * fraction

	if err := dragHandle(o, offset); err != nil {
		return false, nil
	}

	return verifySolved(o, 8*time.Second), nil
}
