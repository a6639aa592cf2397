package funnel

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jordansinko/sinkgo-fifa/pkg/browser"
)

// PageState classifies the live page into a funnel position. It is derived
// fresh from the DOM on every check, never persisted.
type PageState int

const (
	StateUnknown PageState = iota
	StateEmailVerification
	StateUpdateProfileNeeded
	StateLoginBlocked
	StateAccountCompletionPage
	StateDrawEntryPage
	StateDrawCompletedPage
	StateAccountCompletedPage
)

func (s PageState) String() string {
	switch s {
	case StateEmailVerification:
		return "EMAIL_VERIFICATION"
	case StateUpdateProfileNeeded:
		return "UPDATE_PROFILE_NEEDED"
	case StateLoginBlocked:
		return "LOGIN_BLOCKED"
	case StateAccountCompletionPage:
		return "ACCOUNT_COMPLETION_PAGE"
	case StateDrawEntryPage:
		return "DRAW_ENTRY_PAGE"
	case StateDrawCompletedPage:
		return "DRAW_COMPLETED_PAGE"
	case StateAccountCompletedPage:
		return "ACCOUNT_COMPLETED_PAGE"
	default:
		return "UNKNOWN"
	}
}

type Classifier struct {
	Sel *Selectors
	Log zerolog.Logger

	// FlowType gates the account-completed URL match ("account" only).
	FlowType string

	// Unknown and LoginBlocked can be transient during page transitions, so
	// they are re-polled before being accepted.
	RetryPolls   int
	RetrySpacing time.Duration
}

func NewClassifier(sel *Selectors, flowType string, log zerolog.Logger) *Classifier {
	return &Classifier{
		Sel:          sel,
		FlowType:     flowType,
		Log:          log,
		RetryPolls:   7,
		RetrySpacing: 5 * time.Second,
	}
}

// Classify runs the marker checks in fixed priority order; first match wins.
// The order matters: a blocked page can still contain a half-rendered form,
// and a verification wall outranks everything behind it.
func (c *Classifier) Classify(drv browser.Driver) PageState {

	switch {
	case drv.Visible(c.Sel.EmailVerificationMarker):
		return StateEmailVerification
	case drv.Visible(c.Sel.UpdateProfileBanner):
		return StateUpdateProfileNeeded
	case drv.Visible(c.Sel.LoginBlockedContainer):
		return StateLoginBlocked
	case drv.Visible(c.Sel.AddressForm):
		return StateAccountCompletionPage
	case drv.Visible(c.Sel.DrawEntryButton):
		return StateDrawEntryPage
	case drv.Visible(c.Sel.DrawCancelButton):
		return StateDrawCompletedPage
	case c.FlowType == "account" && strings.HasPrefix(drv.CurrentUrl(), c.Sel.AccountUrl):
		return StateAccountCompletedPage
	default:
		return StateUnknown
	}
}

// ClassifyStable accepts decisive states immediately and re-polls the
// transient ones (Unknown, LoginBlocked) up to RetryPolls times before
// accepting them as the classification.
func (c *Classifier) ClassifyStable(drv browser.Driver) PageState {

	state := c.Classify(drv)

	if state != StateUnknown && state != StateLoginBlocked {
		return state
	}

	for poll := 1; poll < c.RetryPolls; poll++ {

		time.Sleep(c.RetrySpacing)

		next := c.Classify(drv)

		if next != StateUnknown && next != StateLoginBlocked {
			return next
		}

		state = next
	}

	c.Log.Printf("accepting %s after %d polls", state, c.RetryPolls)

	return state
}
