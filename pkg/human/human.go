// Package human drives a browser.Driver the way a person would: pointer
// paths, typing cadence, and the wait/retry contract the funnel depends on.
package human

import (
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jordansinko/sinkgo-fifa/pkg/browser"
)

// Tagged failure kinds. Everything else the primitives swallow into a bool;
// these two always escape to the caller.
var (
	ErrProxyTimeout     = errors.New("PROXY_TIMEOUT")
	ErrRestartDrawEntry = errors.New("RESTART_DRAW_ENTRY")
)

type Config struct {
	PollInterval    time.Duration
	CheckpointAfter time.Duration
	RetryBackoff    time.Duration
	DefaultTimeout  time.Duration

	// NetworkErrorSelectors mark a dead proxy page (chrome error page body).
	NetworkErrorSelectors []string

	// EntryUrl is the funnel entry; landing back on it after a checkpoint
	// reload means the whole draw entry has to restart.
	EntryUrl string
}

func DefaultConfig() Config {
	return Config{
		PollInterval:    1 * time.Second,
		CheckpointAfter: 90 * time.Second,
		RetryBackoff:    3 * time.Second,
		DefaultTimeout:  60 * time.Second,
		NetworkErrorSelectors: []string{
			`#main-frame-error`,
			`.neterror`,
		},
	}
}

type Humanizer struct {
	drv   browser.Driver
	log   zerolog.Logger
	cfg   Config
	randm *rand.Rand

	lastX float64
	lastY float64
}

func New(drv browser.Driver, log zerolog.Logger, cfg Config) *Humanizer {

	if cfg.PollInterval == 0 {
		cfg.PollInterval = 1 * time.Second
	}

	if cfg.CheckpointAfter == 0 {
		cfg.CheckpointAfter = 90 * time.Second
	}

	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = 3 * time.Second
	}

	if cfg.DefaultTimeout == 0 {
		cfg.DefaultTimeout = 60 * time.Second
	}

	source := rand.NewSource(time.Now().UnixNano())

	return &Humanizer{drv: drv, log: log, cfg: cfg, randm: rand.New(source)}
}

func (h *Humanizer) Driver() browser.Driver {
	return h.drv
}

// SetDriver repoints the humanizer at a new active page handle. Only the
// page-detection routine calls this.
func (h *Humanizer) SetDriver(drv browser.Driver) {
	h.drv = drv
}

func (h *Humanizer) sleepRange(min int, max int) {
	dur := h.randm.Intn(max-min+1) + min
	time.Sleep(time.Duration(dur) * time.Millisecond)
}

// Pause is a short human hesitation between actions.
func (h *Humanizer) Pause() {
	h.sleepRange(400, 1200)
}

// LongPause covers reading a page or deciding between fields.
func (h *Humanizer) LongPause() {
	h.sleepRange(1500, 4000)
}
