// Package browsertest provides a scripted in-memory Driver for tests.
package browsertest

import (
	"strings"
	"sync"
	"time"

	"github.com/jordansinko/sinkgo-fifa/pkg/browser"
)

type Element struct {
	Visible bool
	Enabled bool
	Box     browser.Box
	Value   string
	Text    string
	Events  []string
}

type Driver struct {
	mu sync.Mutex

	Url      string
	elements map[string]*Element
	cookies  map[string]string

	focused          string
	mouseX           float64
	mouseY           float64
	pendingSelectAll bool

	Reloads    int
	Closed     bool
	ExtraPages []browser.Driver

	OnClick    func(d *Driver, selector string)
	OnNavigate func(d *Driver, url string)
	OnReload   func(d *Driver)
	EvalFunc   func(js string) (string, error)
}

func New() *Driver {
	return &Driver{
		elements: make(map[string]*Element),
		cookies:  make(map[string]string),
	}
}

// Set installs (or replaces) an element. A zero box gets a default clickable
// area so pointer paths land somewhere sensible.
func (d *Driver) Set(selector string, el *Element) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el.Box.Width == 0 && el.Box.Height == 0 {
		el.Box = browser.Box{X: 100, Y: float64(100 + 40*len(d.elements)), Width: 80, Height: 20}
	}

	d.elements[selector] = el
}

func (d *Driver) Remove(selector string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.elements, selector)
}

func (d *Driver) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.elements = make(map[string]*Element)
}

func (d *Driver) Element(selector string) *Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.elements[selector]
}

func (d *Driver) SetUrl(url string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Url = url
}

func (d *Driver) Cookie(name string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cookies[name]
}

func (d *Driver) Navigate(url string) error {
	d.mu.Lock()
	d.Url = url
	fn := d.OnNavigate
	d.mu.Unlock()

	if fn != nil {
		fn(d, url)
	}

	return nil
}

func (d *Driver) Reload() error {
	d.mu.Lock()
	d.Reloads = d.Reloads + 1
	fn := d.OnReload
	d.mu.Unlock()

	if fn != nil {
		fn(d)
	}

	return nil
}

func (d *Driver) CurrentUrl() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Url
}

func (d *Driver) WaitForLoad(timeout time.Duration) error {
	return nil
}

func (d *Driver) Visible(selector string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	el, ok := d.elements[selector]

	return ok && el.Visible
}

func (d *Driver) Enabled(selector string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	el, ok := d.elements[selector]

	return ok && el.Enabled
}

func (d *Driver) BoundingBox(selector string) (browser.Box, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	el, ok := d.elements[selector]

	if !ok || !el.Visible {
		return browser.Box{}, false
	}

	return el.Box, true
}

func (d *Driver) Text(selector string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	el, ok := d.elements[selector]

	if !ok {
		return "", false
	}

	return el.Text, true
}

func (d *Driver) FieldValue(selector string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	el, ok := d.elements[selector]

	if !ok {
		return "", false
	}

	return el.Value, true
}

func (d *Driver) elementAt(x float64, y float64) (string, bool) {
	for selector, el := range d.elements {
		if !el.Visible {
			continue
		}

		if x >= el.Box.X && x <= el.Box.X+el.Box.Width && y >= el.Box.Y && y <= el.Box.Y+el.Box.Height {
			return selector, true
		}
	}

	return "", false
}

func (d *Driver) MoveMouse(x float64, y float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mouseX = x
	d.mouseY = y
	return nil
}

func (d *Driver) MouseDown() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if selector, ok := d.elementAt(d.mouseX, d.mouseY); ok {
		d.focused = selector
	}

	return nil
}

func (d *Driver) MouseUp() error {
	d.mu.Lock()
	selector, ok := d.elementAt(d.mouseX, d.mouseY)
	fn := d.OnClick
	d.mu.Unlock()

	if ok && fn != nil {
		fn(d, selector)
	}

	return nil
}

func (d *Driver) TypeRune(r rune) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	el, ok := d.elements[d.focused]

	if !ok {
		return nil
	}

	if d.pendingSelectAll {
		el.Value = ""
		d.pendingSelectAll = false
	}

	el.Value = el.Value + string(r)
	return nil
}

func (d *Driver) PressKey(key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	el, ok := d.elements[d.focused]

	if !ok {
		return nil
	}

	if key == "Backspace" {
		if d.pendingSelectAll {
			el.Value = ""
			d.pendingSelectAll = false
		} else if len(el.Value) > 0 {
			runes := []rune(el.Value)
			el.Value = string(runes[:len(runes)-1])
		}
	}

	return nil
}

func (d *Driver) SelectAllText(selector string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.focused = selector
	d.pendingSelectAll = true
	return nil
}

func (d *Driver) SelectOption(selector string, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	el, ok := d.elements[selector]

	if !ok {
		return nil
	}

	el.Value = value
	return nil
}

func (d *Driver) SetFieldValue(selector string, value string) error {
	return d.SelectOption(selector, value)
}

func (d *Driver) DispatchEvent(selector string, event string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	el, ok := d.elements[selector]

	if !ok {
		return nil
	}

	el.Events = append(el.Events, event)
	return nil
}

func (d *Driver) Eval(js string) (string, error) {
	d.mu.Lock()
	fn := d.EvalFunc
	d.mu.Unlock()

	if fn != nil {
		return fn(js)
	}

	return "", nil
}

func (d *Driver) SetCookie(name string, value string, domain string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cookies[name] = value
	return nil
}

func (d *Driver) Pages() []browser.Driver {
	d.mu.Lock()
	defer d.mu.Unlock()

	pages := []browser.Driver{d}
	pages = append(pages, d.ExtraPages...)
	return pages
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Closed = true
	return nil
}

// EventsFor returns the dispatched event names joined, for assertions.
func (d *Driver) EventsFor(selector string) string {
	d.mu.Lock()
	defer d.mu.Unlock()

	el, ok := d.elements[selector]

	if !ok {
		return ""
	}

	return strings.Join(el.Events, ",")
}
