package human

import (
	"unicode"
)

var neighborKeys = map[rune]string{
	'a': "sqz", 'b': "vn", 'c': "xv", 'd': "sf", 'e': "wr", 'f': "dg",
	'g': "fh", 'h': "gj", 'i': "uo", 'j': "hk", 'k': "jl", 'l': "k",
	'm': "n", 'n': "bm", 'o': "ip", 'p': "o", 'q': "wa", 'r': "et",
	's': "ad", 't': "ry", 'u': "yi", 'v': "cb", 'w': "qe", 'x': "zc",
	'y': "tu", 'z': "x",
}

// typeDelay returns a per-character delay band in ms keyed by character
// class. Uppercase needs a shift reach, digits a row change, specials the
// longest hunt; a word boundary adds thinking time.
func (h *Humanizer) typeDelay(ch rune, prev rune) (int, int) {

	min, max := 60, 140

	switch {
	case unicode.IsUpper(ch):
		min, max = 110, 210
	case unicode.IsDigit(ch):
		min, max = 90, 180
	case !unicode.IsLetter(ch) && !unicode.IsSpace(ch):
		min, max = 150, 280
	}

	if prev == ' ' || prev == 0 {
		min = min + 40
		max = max + 90
	}

	return min, max
}

// typeText types value into the focused field one rune at a time, with
// occasional bursts and an occasional typo that gets backspaced and fixed.
func (h *Humanizer) typeText(value string) error {

	burst := 0
	var prev rune

	for _, ch := range value {

		if burst == 0 && h.randm.Intn(100) < 12 {
			burst = 2 + h.randm.Intn(3)
		}

		if burst == 0 && h.randm.Intn(100) < 4 {
			if wrong, ok := h.nearbyKey(ch); ok {
				if err := h.drv.TypeRune(wrong); err != nil {
					return err
				}

				h.sleepRange(120, 260)

				if err := h.drv.PressKey("Backspace"); err != nil {
					return err
				}

				h.sleepRange(80, 180)
			}
		}

		if err := h.drv.TypeRune(ch); err != nil {
			return err
		}

		if burst > 0 {
			burst = burst - 1
			h.sleepRange(30, 60)
		} else {
			min, max := h.typeDelay(ch, prev)
			h.sleepRange(min, max)
		}

		prev = ch
	}

	return nil
}

func (h *Humanizer) nearbyKey(ch rune) (rune, bool) {
	lower := unicode.ToLower(ch)

	neighbors, ok := neighborKeys[lower]

	if !ok || len(neighbors) == 0 {
		return 0, false
	}

	wrong := rune(neighbors[h.randm.Intn(len(neighbors))])

	if unicode.IsUpper(ch) {
		wrong = unicode.ToUpper(wrong)
	}

	return wrong, true
}
