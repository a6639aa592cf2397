package captcha

import (
	"math"
	"time"

	"github.com/rs/zerolog"
)

type solveState int

const (
	stateIdle solveState = iota
	stateLoaded
	stateImagesExtracted
	stateAnalyzed
	stateSliderMoved
	stateVerified
)

func (s solveState) String() string {
	switch s {
	case stateLoaded:
		return "loaded"
	case stateImagesExtracted:
		return "images_extracted"
	case stateAnalyzed:
		return "analyzed"
	case stateSliderMoved:
		return "slider_moved"
	case stateVerified:
		return "verified"
	default:
		return "idle"
	}
}

// Advanced runs three offset heuristics keyed off piece/background geometry
// and weight-averages them. It never inspects pixel content, so success is
// probabilistic; any failure edge falls back to the simple solver. One
// instance is shared by every task, so solve state lives on the stack.
type Advanced struct {
	Log zerolog.Logger

	// Weights for the three guesses. Defaults to 0.4/0.3/0.3.
	Weights [3]float64

	fallback Simple
}

func (a *Advanced) Initialize() error {

	if a.Weights == [3]float64{} {
		a.Weights = [3]float64{0.4, 0.3, 0.3}
	}

	return a.fallback.Initialize()
}

func (a *Advanced) SolveSlider(o *SolveSliderOptions) (bool, error) {

	state := stateIdle

	if !a.waitLoaded(o) {
		return a.bail(o, state, "captcha frame never loaded")
	}

	state = stateLoaded

	piece, pieceOk := o.Drv.BoundingBox(o.PieceSelector)
	bg, bgOk := o.Drv.BoundingBox(o.BackgroundSelector)
	track, trackOk := o.Drv.BoundingBox(o.TrackSelector)

	if !pieceOk || !bgOk || !trackOk || bg.Width == 0 || track.Width == 0 {
		return a.bail(o, state, "unable to extract puzzle geometry")
	}

	state = stateImagesExtracted

	offset, confidence := a.analyze(piece.Width, bg.Width, track.Width)

	state = stateAnalyzed
	a.Log.Printf("slider analysis: offset=%.1f confidence=%.2f", offset, confidence)

	if err := dragHandle(o, offset); err != nil {
		return a.bail(o, state, "drag failed")
	}

	state = stateSliderMoved

	if verifySolved(o, 8*time.Second) {
		return true, nil
	}

	return a.bail(o, state, "verification window elapsed")
}

// analyze combines three geometry guesses into one offset plus a confidence
// score derived from their spread. None of them look at the actual puzzle
// alignment.
func (a *Advanced) analyze(pieceWidth float64, bgWidth float64, trackWidth float64) (float64, float64) {

	sizeRatio := pieceWidth / bgWidth

	guess1 := bgWidth * (0.22 + sizeRatio)
	guess2 := (bgWidth - pieceWidth) * 0.42
	guess3 := trackWidth*0.30 + pieceWidth*0.25

	offset := a.Weights[0]*guess1 + a.Weights[1]*guess2 + a.Weights[2]*guess3

	mean := (guess1 + guess2 + guess3) / 3
	variance := (math.Pow(guess1-mean, 2) + math.Pow(guess2-mean, 2) + math.Pow(guess3-mean, 2)) / 3
	spread := math.Sqrt(variance) / mean

	confidence := 1 - spread

	if confidence < 0 {
		confidence = 0
	}

	// keep the travel inside the track
	max := trackWidth - pieceWidth/2

	if offset > max {
		offset = max
	}

	if offset < pieceWidth {
		offset = pieceWidth
	}

	return offset, confidence
}

func (a *Advanced) waitLoaded(o *SolveSliderOptions) bool {

	deadline := time.Now().Add(10 * time.Second)

	for time.Now().Before(deadline) {
		if o.Drv.Visible(o.HandleSelector) {
			return true
		}

		time.Sleep(500 * time.Millisecond)
	}

	return false
}

func (a *Advanced) bail(o *SolveSliderOptions, state solveState, reason string) (bool, error) {
	a.Log.Printf("advanced solver in state %s: %s, falling back to simple", state, reason)
	return a.fallback.SolveSlider(o)
}
