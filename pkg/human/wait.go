package human

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

type WaitOptions struct {
	Selector string
	Name     string

	// Timeout defaults to the humanizer's DefaultTimeout (60s).
	Timeout time.Duration

	// RequireEnabled also checks the enabled state, for button-like targets.
	RequireEnabled bool
}

// WaitForElement polls once per interval until the selector is visible (and
// enabled when asked). A network-error page triggers a reload and resets the
// attempt counter. Past the checkpoint elapsed it reloads once; if that
// reload lands back on the funnel entry URL the whole draw entry must
// restart, signalled by ErrRestartDrawEntry. Exhausting the budget returns
// ErrProxyTimeout so the caller rotates the proxy instead of retrying here.
func (h *Humanizer) WaitForElement(o *WaitOptions) error {

	timeout := o.Timeout

	if timeout == 0 {
		timeout = h.cfg.DefaultTimeout
	}

	name := o.Name

	if name == "" {
		name = o.Selector
	}

	start := time.Now()
	checkpointed := false
	attempts := 0

	for time.Since(start) < timeout {

		attempts = attempts + 1

		if h.networkErrorPage() {
			h.log.Printf("network error page while waiting for %s, reloading", name)

			h.drv.Reload()
			h.drv.WaitForLoad(15 * time.Second)

			attempts = 0
			time.Sleep(h.cfg.PollInterval)
			continue
		}

		if !checkpointed && time.Since(start) >= h.cfg.CheckpointAfter {
			checkpointed = true

			h.log.Printf("slow page while waiting for %s, proactive reload", name)

			h.drv.Reload()
			h.drv.WaitForLoad(15 * time.Second)

			if h.cfg.EntryUrl != "" && strings.HasPrefix(h.drv.CurrentUrl(), h.cfg.EntryUrl) {
				return errors.Wrapf(ErrRestartDrawEntry, "reload landed on entry url while waiting for %s", name)
			}
		}

		if h.drv.Visible(o.Selector) {
			if !o.RequireEnabled || h.drv.Enabled(o.Selector) {
				return nil
			}
		}

		time.Sleep(h.cfg.PollInterval)
	}

	return errors.Wrapf(ErrProxyTimeout, "%s not ready within %s (%d polls)", name, timeout, attempts)
}

func (h *Humanizer) networkErrorPage() bool {
	for _, selector := range h.cfg.NetworkErrorSelectors {
		if h.drv.Visible(selector) {
			return true
		}
	}

	return false
}
