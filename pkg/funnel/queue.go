package funnel

import (
	"regexp"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/pkg/errors"

	"github.com/jordansinko/sinkgo-fifa/pkg/captcha"
	"github.com/jordansinko/sinkgo-fifa/pkg/human"
)

type QueueStatus int

const (
	QueueTimeout QueueStatus = iota
	QueuePassed
	QueueActive
	QueueBlocked
)

func (s QueueStatus) String() string {
	switch s {
	case QueuePassed:
		return "passed"
	case QueueActive:
		return "active"
	case QueueBlocked:
		return "blocked"
	default:
		return "timeout"
	}
}

// CheckQueueStatus polls the current URL for up to the queue window,
// distinguishing an auth redirect (pass), a persistent queue URL (active
// waiting room) and a CAPTCHA block wall. Five consecutive frame sightings
// make the block verdict; a single flicker does not.
func (c *Controller) CheckQueueStatus() QueueStatus {

	deadline := time.Now().Add(c.Cfg.QueueWindow)
	consecutiveCaptcha := 0
	sawQueue := false

	interval := c.Cfg.QueuePollInterval

	if interval == 0 {
		interval = 1 * time.Second
	}

	for time.Now().Before(deadline) {

		url := c.drv().CurrentUrl()

		if strings.Contains(url, c.Sel.AuthHost) {
			return QueuePassed
		}

		if strings.Contains(url, c.Sel.QueueHost) {
			sawQueue = true
		}

		if c.drv().Visible(c.Sel.CaptchaFrame) {
			consecutiveCaptcha = consecutiveCaptcha + 1

			if consecutiveCaptcha >= 5 {
				return QueueBlocked
			}
		} else {
			consecutiveCaptcha = 0
		}

		time.Sleep(interval)
	}

	if sawQueue {
		return QueueActive
	}

	return QueueTimeout
}

// HandleQueuePass drives the waiting room until the queue redirects to the
// identity provider. A still-valid pass cookie from a previous attempt on
// the same proxy is replayed first. Block walls get one solver attempt per
// round; exhausting the retry budget reads as a burned proxy.
func (c *Controller) HandleQueuePass() error {

	if c.QueuePasses != nil && c.ProxyKey != "" {
		if item := c.QueuePasses.Get(c.ProxyKey); item != nil {
			c.Log.Print("replaying cached queue pass")

			c.drv().SetCookie(c.Sel.QueuePassCookie, item.Value(), c.Sel.QueueHost)
			c.drv().Reload()
			c.drv().WaitForLoad(15 * time.Second)
		}
	}

	retries := c.Cfg.QueueRetries

	if retries == 0 {
		retries = 2
	}

	for attempt := 1; attempt <= retries; attempt++ {

		status := c.CheckQueueStatus()

		c.Log.Printf("queue status on attempt %d: %s", attempt, status)

		switch status {

		case QueuePassed:
			c.cacheQueuePass()
			return nil

		case QueueActive:
			// the room is moving on its own; wait out another window

		case QueueBlocked:
			if c.Solver == nil {
				return errors.Wrap(human.ErrProxyTimeout, "captcha wall with no solver wired")
			}

			solved, err := c.Solver.SolveSlider(&captcha.SolveSliderOptions{
				Drv:                c.drv(),
				Human:              c.Human,
				FrameSelector:      c.Sel.CaptchaFrame,
				TrackSelector:      c.Sel.CaptchaTrack,
				HandleSelector:     c.Sel.CaptchaHandle,
				PieceSelector:      c.Sel.CaptchaPiece,
				BackgroundSelector: c.Sel.CaptchaBackground,
				PageUrl:            c.drv().CurrentUrl(),
			})

			if err != nil {
				c.Log.Err(err).Send()
			}

			if !solved {
				return errors.Wrap(human.ErrProxyTimeout, "captcha wall held through solve attempt")
			}

		case QueueTimeout:
			// not on the queue host anymore and not on auth either
		}
	}

	return errors.Wrapf(human.ErrProxyTimeout, "queue not passed after %d attempts", retries)
}

var queuePassPattern = regexp.MustCompile(`(?:^|;\s*)([^=;]*QueueITAccepted[^=;]*)=([^;]+)`)

func (c *Controller) cacheQueuePass() {

	if c.QueuePasses == nil || c.ProxyKey == "" {
		return
	}

	cookies, err := c.drv().Eval(`() => document.cookie`)

	if err != nil {
		return
	}

	matches := queuePassPattern.FindStringSubmatch(cookies)

	if len(matches) == 3 {
		c.QueuePasses.Set(c.ProxyKey, matches[2], ttlcache.DefaultTTL)
	}
}
