package browser

import (
	"time"
)

// Box is an element bounding box in page coordinates.
type Box struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

func (b Box) CenterX() float64 {
	return b.X + b.Width/2
}

func (b Box) CenterY() float64 {
	return b.Y + b.Height/2
}

// Driver is the capability surface the funnel needs from a browser. The
// concrete automation library lives behind this; nothing above pkg/browser
// imports it directly.
type Driver interface {
	Navigate(url string) error
	Reload() error
	CurrentUrl() string
	WaitForLoad(timeout time.Duration) error

	Visible(selector string) bool
	Enabled(selector string) bool
	BoundingBox(selector string) (Box, bool)
	Text(selector string) (string, bool)
	FieldValue(selector string) (string, bool)

	MoveMouse(x float64, y float64) error
	MouseDown() error
	MouseUp() error
	TypeRune(r rune) error
	PressKey(key string) error
	SelectAllText(selector string) error

	SelectOption(selector string, value string) error
	SetFieldValue(selector string, value string) error
	DispatchEvent(selector string, event string) error

	Eval(js string) (string, error)
	SetCookie(name string, value string, domain string) error

	Pages() []Driver
	Close() error
}
