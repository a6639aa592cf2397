package browser

import (
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/pkg/errors"
)

// Rod drives a remote chromium over the devtools websocket exposed by the
// antidetect profile.
type Rod struct {
	browser *rod.Browser
	page    *rod.Page
}

var keyLookup = map[string]input.Key{
	"Backspace": input.Backspace,
	"Tab":       input.Tab,
	"Enter":     input.Enter,
	"Escape":    input.Escape,
}

func Connect(wsUrl string) (*Rod, error) {

	b := rod.New().ControlURL(wsUrl)

	if err := b.Connect(); err != nil {
		return nil, errors.Wrap(err, "unable to connect browser")
	}

	pages, err := b.Pages()

	if err != nil {
		return nil, errors.Wrap(err, "unable to list pages")
	}

	var page *rod.Page

	if len(pages) > 0 {
		page = pages.First()
	}

	if page == nil {
		page, err = stealth.Page(b)

		if err != nil {
			return nil, errors.Wrap(err, "unable to acquire page")
		}
	}

	return &Rod{browser: b, page: page}, nil
}

func (r *Rod) Navigate(url string) error {
	return r.page.Navigate(url)
}

func (r *Rod) Reload() error {
	return r.page.Reload()
}

func (r *Rod) CurrentUrl() string {
	info, err := r.page.Info()

	if err != nil {
		return ""
	}

	return info.URL
}

func (r *Rod) WaitForLoad(timeout time.Duration) error {
	return r.page.Timeout(timeout).WaitLoad()
}

func (r *Rod) element(selector string) (*rod.Element, bool) {
	has, el, err := r.page.Has(selector)

	if err != nil || !has {
		return nil, false
	}

	return el, true
}

func (r *Rod) Visible(selector string) bool {
	el, ok := r.element(selector)

	if !ok {
		return false
	}

	visible, err := el.Visible()

	return err == nil && visible
}

func (r *Rod) Enabled(selector string) bool {
	el, ok := r.element(selector)

	if !ok {
		return false
	}

	disabled, err := el.Property("disabled")

	if err != nil {
		return false
	}

	return !disabled.Bool()
}

func (r *Rod) BoundingBox(selector string) (Box, bool) {
	el, ok := r.element(selector)

	if !ok {
		return Box{}, false
	}

	shape, err := el.Shape()

	if err != nil || len(shape.Quads) == 0 {
		return Box{}, false
	}

	quad := shape.Quads[0]

	return Box{
		X:      quad[0],
		Y:      quad[1],
		Width:  quad[2] - quad[0],
		Height: quad[5] - quad[1],
	}, true
}

func (r *Rod) Text(selector string) (string, bool) {
	el, ok := r.element(selector)

	if !ok {
		return "", false
	}

	text, err := el.Text()

	if err != nil {
		return "", false
	}

	return text, true
}

func (r *Rod) FieldValue(selector string) (string, bool) {
	el, ok := r.element(selector)

	if !ok {
		return "", false
	}

	value, err := el.Property("value")

	if err != nil {
		return "", false
	}

	return value.String(), true
}

func (r *Rod) MoveMouse(x float64, y float64) error {
	return r.page.Mouse.MoveLinear(proto.Point{X: x, Y: y}, 1)
}

func (r *Rod) MouseDown() error {
	return r.page.Mouse.Down(proto.InputMouseButtonLeft, 1)
}

func (r *Rod) MouseUp() error {
	return r.page.Mouse.Up(proto.InputMouseButtonLeft, 1)
}

func (r *Rod) TypeRune(ch rune) error {
	return r.page.Keyboard.Type(input.Key(ch))
}

func (r *Rod) PressKey(key string) error {
	k, ok := keyLookup[key]

	if !ok {
		return errors.Errorf("unsupported key: %s", key)
	}

	return r.page.Keyboard.Type(k)
}

func (r *Rod) SelectAllText(selector string) error {
	el, ok := r.element(selector)

	if !ok {
		return errors.Errorf("element not found: %s", selector)
	}

	return el.SelectAllText()
}

func (r *Rod) SelectOption(selector string, value string) error {
	el, ok := r.element(selector)

	if !ok {
		return errors.Errorf("element not found: %s", selector)
	}

	_, err := el.Eval(`(v) => {
		const opts = Array.from(this.options || [])
		const match = opts.find(o => o.value === v || o.textContent.trim() === v)
		this.value = match ? match.value : v
	}`, value)

	return err
}

func (r *Rod) SetFieldValue(selector string, value string) error {
	el, ok := r.element(selector)

	if !ok {
		return errors.Errorf("element not found: %s", selector)
	}

	_, err := el.Eval(`(v) => { this.value = v }`, value)

	return err
}

func (r *Rod) DispatchEvent(selector string, event string) error {
	el, ok := r.element(selector)

	if !ok {
		return errors.Errorf("element not found: %s", selector)
	}

	_, err := el.Eval(`(name) => {
		this.dispatchEvent(new Event(name, { bubbles: true, cancelable: true }))
	}`, event)

	return err
}

func (r *Rod) Eval(js string) (string, error) {
	obj, err := r.page.Eval(js)

	if err != nil {
		return "", err
	}

	return obj.Value.String(), nil
}

func (r *Rod) SetCookie(name string, value string, domain string) error {
	return r.page.SetCookies([]*proto.NetworkCookieParam{
		{Name: name, Value: value, Domain: domain, Path: "/"},
	})
}

func (r *Rod) Pages() []Driver {
	pages, err := r.browser.Pages()

	if err != nil {
		return nil
	}

	drivers := make([]Driver, 0, len(pages))

	for _, p := range pages {
		drivers = append(drivers, &Rod{browser: r.browser, page: p})
	}

	return drivers
}

func (r *Rod) Close() error {
	return r.browser.Close()
}
