package captcha

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jordansinko/sinkgo-fifa/pkg/browser"
	"github.com/jordansinko/sinkgo-fifa/pkg/human"
)

type SolveSliderOptions struct {
	Drv   browser.Driver
	Human *human.Humanizer

	FrameSelector      string
	TrackSelector      string
	HandleSelector     string
	PieceSelector      string
	BackgroundSelector string

	// SuccessSelector is known post-success content; either its appearance
	// or the frame's disappearance counts as verified.
	SuccessSelector string

	PageUrl string
}

// SliderSolver solves a slider puzzle in place. Solve failure is a boolean,
// not an error; only infrastructure problems raise.
type SliderSolver interface {
	Initialize() error
	SolveSlider(o *SolveSliderOptions) (bool, error)
}

type SolverError struct {
	Retryable     bool
	OriginalError error
}

func (e *SolverError) Error() string {
	return e.OriginalError.Error()
}

// verifySolved polls for the frame to disappear or the post-success content
// to show up within a short window.
func verifySolved(o *SolveSliderOptions, window time.Duration) bool {

	deadline := time.Now().Add(window)

	for time.Now().Before(deadline) {

		if o.FrameSelector != "" && !o.Drv.Visible(o.FrameSelector) {
			return true
		}

		if o.SuccessSelector != "" && o.Drv.Visible(o.SuccessSelector) {
			return true
		}

		time.Sleep(500 * time.Millisecond)
	}

	return false
}

// dragHandle pulls the slider handle offset px to the right.
func dragHandle(o *SolveSliderOptions, offset float64) error {

	handle, ok := o.Drv.BoundingBox(o.HandleSelector)

	if !ok {
		return human.ErrElementGone
	}

	fromX := handle.CenterX()
	fromY := handle.CenterY()

	return o.Human.DragTo(fromX, fromY, fromX+offset, fromY)
}

// extractImage pulls the element's image as raw base64: canvas content, an
// inline data url, or a download of the src.
func extractImage(o *SolveSliderOptions, selector string) (string, error) {

	src, err := o.Drv.Eval(`() => {
		const el = document.querySelector(` + "`" + selector + "`" + `)
		if (!el) return ''
		if (el.tagName === 'CANVAS') return el.toDataURL('image/png')
		return el.src || ''
	}`)

	if err != nil {
		return "", err
	}

	if strings.HasPrefix(src, "data:image") {
		parts := strings.Split(src, ",")

		if len(parts) > 1 {
			return parts[1], nil
		}
	}

	if src == "" {
		return "", &SolverError{Retryable: true, OriginalError: fmt.Errorf("no image source behind %s", selector)}
	}

	res, err := http.Get(src)

	if err != nil {
		return "", &SolverError{Retryable: true, OriginalError: err}
	}

	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)

	if err != nil {
		return "", &SolverError{Retryable: true, OriginalError: err}
	}

	return base64.StdEncoding.EncodeToString(body), nil
}
