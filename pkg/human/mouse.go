package human

import (
	"math"
	"time"

	"github.com/jordansinko/sinkgo-fifa/pkg/browser"
)

func cubicBezier(t float64, p0 float64, p1 float64, p2 float64, p3 float64) float64 {
	u := 1 - t
	return u*u*u*p0 + 3*u*u*t*p1 + 3*u*t*t*p2 + t*t*t*p3
}

func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}

	return 1 - math.Pow(-2*t+2, 3)/2
}

func (h *Humanizer) randFloat(min float64, max float64) float64 {
	return min + h.randm.Float64()*(max-min)
}

// MoveTo walks the pointer from its last position to (x, y) along a cubic
// Bézier with per-step jitter and an ease-in-out delay profile.
func (h *Humanizer) MoveTo(x float64, y float64, fast bool) error {

	startX := h.lastX
	startY := h.lastY

	steps := 18 + h.randm.Intn(14)

	if fast {
		steps = 6 + h.randm.Intn(5)
	}

	cp1X := startX + (x-startX)*h.randFloat(0.2, 0.4)
	cp1Y := startY + (y-startY)*h.randFloat(-0.3, 0.3)
	cp2X := startX + (x-startX)*h.randFloat(0.6, 0.8)
	cp2Y := startY + (y-startY)*h.randFloat(-0.3, 0.3)

	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)

		px := cubicBezier(t, startX, cp1X, cp2X, x)
		py := cubicBezier(t, startY, cp1Y, cp2Y, y)

		px = px + h.randFloat(-1.5, 1.5)
		py = py + h.randFloat(-1.5, 1.5)

		if err := h.drv.MoveMouse(px, py); err != nil {
			return err
		}

		factor := easeInOutCubic(t)
		delay := 16.0 - factor*12.0

		time.Sleep(time.Duration(delay) * time.Millisecond)

		// micro-pause mid path
		if !fast && i > 0 && i%(8+h.randm.Intn(7)) == 0 {
			h.sleepRange(20, 60)
		}
	}

	h.lastX = x
	h.lastY = y

	return nil
}

// pointerClick performs the full human click on the element's box: approach,
// occasional accidental hover nearby, press, settle, release.
func (h *Humanizer) pointerClick(selector string, fast bool) error {

	box, ok := h.drv.BoundingBox(selector)

	if !ok {
		return ErrElementGone
	}

	targetX := box.CenterX() + h.randFloat(-box.Width/5, box.Width/5)
	targetY := box.CenterY() + h.randFloat(-box.Height/5, box.Height/5)

	if !fast && h.randm.Intn(100) < 7 {
		// overshoot to a nearby point first, like a slipped hand
		h.MoveTo(targetX+h.randFloat(20, 60), targetY+h.randFloat(-25, 25), fast)
		h.sleepRange(60, 180)
	}

	if err := h.MoveTo(targetX, targetY, fast); err != nil {
		return err
	}

	if err := h.drv.MouseDown(); err != nil {
		return err
	}

	h.sleepRange(40, 130)

	return h.drv.MouseUp()
}

// DragTo presses at (fromX, fromY) and releases at (toX, toY) with a slow
// Bézier pull, tremor and an occasional overshoot-correct at the end.
func (h *Humanizer) DragTo(fromX float64, fromY float64, toX float64, toY float64) error {

	if err := h.MoveTo(fromX, fromY, false); err != nil {
		return err
	}

	h.sleepRange(100, 300)

	if err := h.drv.MouseDown(); err != nil {
		return err
	}

	h.sleepRange(50, 150)

	steps := 40 + h.randm.Intn(30)

	cp1X := fromX + (toX-fromX)*h.randFloat(0.2, 0.4)
	cp1Y := fromY + h.randFloat(-12, 12)
	cp2X := fromX + (toX-fromX)*h.randFloat(0.6, 0.8)
	cp2Y := fromY + h.randFloat(-12, 12)

	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)

		px := cubicBezier(t, fromX, cp1X, cp2X, toX)
		py := cubicBezier(t, fromY, cp1Y, cp2Y, toY)

		px = px + h.randFloat(-2, 2)
		py = py + h.randFloat(-1.5, 1.5)

		if err := h.drv.MoveMouse(px, py); err != nil {
			h.drv.MouseUp()
			return err
		}

		factor := easeInOutCubic(t)
		delay := 28.0 - factor*16.0

		time.Sleep(time.Duration(delay) * time.Millisecond)
	}

	if h.randm.Intn(100) < 65 {
		h.drv.MoveMouse(toX+h.randFloat(3, 8), toY)
		h.sleepRange(30, 60)
		h.drv.MoveMouse(toX, toY)
		h.sleepRange(20, 40)
	}

	h.lastX = toX
	h.lastY = toY

	h.sleepRange(50, 120)

	return h.drv.MouseUp()
}

// HoverBox drifts the pointer across a box without clicking.
func (h *Humanizer) HoverBox(box browser.Box) {
	h.MoveTo(box.CenterX()+h.randFloat(-box.Width/3, box.Width/3), box.CenterY()+h.randFloat(-box.Height/3, box.Height/3), false)
	h.sleepRange(120, 420)
}
