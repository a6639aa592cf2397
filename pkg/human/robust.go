package human

import (
	"math"
	"time"

	"github.com/pkg/errors"
)

var ErrElementGone = errors.New("element disappeared before interaction")

const defaultRetries = 3

type ClickOptions struct {
	Selector       string
	Name           string
	Retries        int
	Timeout        time.Duration
	RequireEnabled bool

	// Stabilize waits for the bounding box to settle before clicking, for
	// elements that animate into place.
	Stabilize bool

	// Fast trades the long pointer path for a short one, for low-stakes
	// clicks inside already-trusted pages.
	Fast bool
}

// RobustClick waits for the element, optionally stabilizes it, then clicks
// with a human pointer path. Ordinary failures are retried with a fixed
// backoff and finally collapsed into false; proxy-timeout and restart
// signals propagate immediately so the caller's rotation logic sees them.
func (h *Humanizer) RobustClick(o *ClickOptions) (bool, error) {

	retries := o.Retries

	if retries == 0 {
		retries = defaultRetries
	}

	name := o.Name

	if name == "" {
		name = o.Selector
	}

	for attempt := 1; attempt <= retries; attempt++ {

		err := h.WaitForElement(&WaitOptions{Selector: o.Selector, Name: name, Timeout: o.Timeout, RequireEnabled: o.RequireEnabled})

		if err != nil {
			return false, err
		}

		if o.Stabilize && !h.stabilize(o.Selector) {
			h.log.Printf("%s never stabilized on attempt %d", name, attempt)
		} else if err := h.pointerClick(o.Selector, o.Fast); err == nil {
			return true, nil
		} else {
			h.log.Debug().Err(err).Msgf("click failed on %s attempt %d", name, attempt)
		}

		if attempt < retries {
			time.Sleep(h.cfg.RetryBackoff)
		}
	}

	return false, nil
}

// stabilize requires 3 consecutive bounding boxes within 5px of each other.
func (h *Humanizer) stabilize(selector string) bool {

	matches := 0
	var lastX, lastY float64

	for poll := 0; poll < 12; poll++ {

		box, ok := h.drv.BoundingBox(selector)

		if !ok {
			matches = 0
			time.Sleep(150 * time.Millisecond)
			continue
		}

		if poll > 0 && math.Abs(box.X-lastX) <= 5 && math.Abs(box.Y-lastY) <= 5 {
			matches = matches + 1
		} else {
			matches = 0
		}

		lastX = box.X
		lastY = box.Y

		if matches >= 2 {
			return true
		}

		time.Sleep(150 * time.Millisecond)
	}

	return false
}

type FillOptions struct {
	Selector string
	Name     string
	Value    string
	Retries  int
	Timeout  time.Duration
	Fast     bool
}

// RobustFill focuses with a real click, clears via select-all + backspace,
// types with human cadence, then dispatches input/change/blur. Verifies the
// field reads back the expected value before declaring success.
func (h *Humanizer) RobustFill(o *FillOptions) (bool, error) {

	retries := o.Retries

	if retries == 0 {
		retries = defaultRetries
	}

	name := o.Name

	if name == "" {
		name = o.Selector
	}

	for attempt := 1; attempt <= retries; attempt++ {

		err := h.WaitForElement(&WaitOptions{Selector: o.Selector, Name: name, Timeout: o.Timeout})

		if err != nil {
			return false, err
		}

		if err := h.fillOnce(o); err != nil {
			h.log.Debug().Err(err).Msgf("fill failed on %s attempt %d", name, attempt)
		} else if value, ok := h.drv.FieldValue(o.Selector); ok && value == o.Value {
			return true, nil
		} else {
			h.log.Printf("readback mismatch on %s attempt %d", name, attempt)
		}

		if attempt < retries {
			time.Sleep(h.cfg.RetryBackoff)
		}
	}

	return false, nil
}

func (h *Humanizer) fillOnce(o *FillOptions) error {

	if err := h.pointerClick(o.Selector, o.Fast); err != nil {
		return err
	}

	h.sleepRange(80, 220)

	if err := h.drv.SelectAllText(o.Selector); err != nil {
		return err
	}

	h.sleepRange(40, 120)

	if err := h.drv.PressKey("Backspace"); err != nil {
		return err
	}

	h.sleepRange(60, 160)

	if err := h.typeText(o.Value); err != nil {
		return err
	}

	h.InjectNoise(o.Selector)

	for _, event := range []string{"input", "change", "blur"} {
		if err := h.drv.DispatchEvent(o.Selector, event); err != nil {
			return err
		}
	}

	return nil
}

type SelectOptions struct {
	Selector string
	Name     string
	Value    string

	// OptionSelector locates the concrete <option> for the realistic click
	// path. When it never becomes visible the fill falls back to direct
	// value assignment.
	OptionSelector string

	// ExitDropdown presses Escape then Tab afterwards to close a dropdown
	// that stays open after selection.
	ExitDropdown bool

	Retries int
	Timeout time.Duration
}

// RobustSelect tries the human path first: open the dropdown and click the
// option. If the option is not visible within 3s it assigns the value
// directly and dispatches change/blur so framework listeners still fire.
func (h *Humanizer) RobustSelect(o *SelectOptions) (bool, error) {

	retries := o.Retries

	if retries == 0 {
		retries = defaultRetries
	}

	name := o.Name

	if name == "" {
		name = o.Selector
	}

	for attempt := 1; attempt <= retries; attempt++ {

		err := h.WaitForElement(&WaitOptions{Selector: o.Selector, Name: name, Timeout: o.Timeout})

		if err != nil {
			return false, err
		}

		if err := h.selectOnce(o); err != nil {
			h.log.Debug().Err(err).Msgf("select failed on %s attempt %d", name, attempt)

			if attempt < retries {
				time.Sleep(h.cfg.RetryBackoff)
			}

			continue
		}

		return true, nil
	}

	return false, nil
}

func (h *Humanizer) selectOnce(o *SelectOptions) error {

	if err := h.pointerClick(o.Selector, false); err != nil {
		return err
	}

	clicked := false

	if o.OptionSelector != "" {
		deadline := time.Now().Add(3 * time.Second)

		for time.Now().Before(deadline) {
			if h.drv.Visible(o.OptionSelector) {
				if err := h.pointerClick(o.OptionSelector, false); err == nil {
					clicked = true
				}

				break
			}

			time.Sleep(250 * time.Millisecond)
		}
	}

	if !clicked {
		if err := h.drv.SelectOption(o.Selector, o.Value); err != nil {
			return err
		}

		for _, event := range []string{"change", "blur"} {
			if err := h.drv.DispatchEvent(o.Selector, event); err != nil {
				return err
			}
		}
	}

	if o.ExitDropdown {
		h.sleepRange(100, 300)
		h.drv.PressKey("Escape")
		h.sleepRange(60, 180)
		h.drv.PressKey("Tab")
	}

	return nil
}
