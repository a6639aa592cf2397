package human

import "strconv"

// Low-level DOM event noise layered under the interaction primitives.
// Behavioral fingerprinting scores pages on the presence of these ambient
// events, so fields get a realistic focus/blur/touch halo around real input.

func (h *Humanizer) InjectNoise(selector string) {

	if h.randm.Intn(100) < 40 {
		h.drv.DispatchEvent(selector, "focus")
		h.sleepRange(40, 140)
		h.drv.DispatchEvent(selector, "blur")
	}

	if h.randm.Intn(100) < 15 {
		h.drv.DispatchEvent(selector, "touchstart")
		h.sleepRange(20, 80)
		h.drv.DispatchEvent(selector, "touchend")
	}

	if h.randm.Intn(100) < 25 {
		h.ScrollJitter()
	}
}

// ScrollJitter nudges the viewport a few pixels and back.
func (h *Humanizer) ScrollJitter() {
	offset := 20 + h.randm.Intn(90)

	h.drv.Eval(`() => { window.scrollBy(0, ` + strconv.Itoa(offset) + `) }`)
	h.sleepRange(150, 500)
	h.drv.Eval(`() => { window.scrollBy(0, -` + strconv.Itoa(offset/2) + `) }`)
}

// VisibilityBlip fires a visibilitychange pair, like a user tabbing away.
func (h *Humanizer) VisibilityBlip() {
	h.drv.Eval(`() => { document.dispatchEvent(new Event('visibilitychange')) }`)
	h.sleepRange(300, 900)
	h.drv.Eval(`() => { document.dispatchEvent(new Event('visibilitychange')) }`)
}
