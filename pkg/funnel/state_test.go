package funnel

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jordansinko/sinkgo-fifa/pkg/browser/browsertest"
)

func fastClassifier(flowType string) *Classifier {
	c := NewClassifier(DefaultSelectors(), flowType, zerolog.Nop())
	c.RetryPolls = 3
	c.RetrySpacing = 2 * time.Millisecond
	return c
}

func TestClassifyPriorityOrder(t *testing.T) {

	sel := DefaultSelectors()
	drv := browsertest.New()

	// a verification wall in front of a half-rendered blocked page
	drv.Set(sel.EmailVerificationMarker, &browsertest.Element{Visible: true})
	drv.Set(sel.LoginBlockedContainer, &browsertest.Element{Visible: true})
	drv.Set(sel.DrawEntryButton, &browsertest.Element{Visible: true})

	c := fastClassifier("entry")

	if state := c.Classify(drv); state != StateEmailVerification {
		t.Fatalf("verification wall must outrank everything behind it, got %s", state)
	}

	drv.Remove(sel.EmailVerificationMarker)

	if state := c.Classify(drv); state != StateLoginBlocked {
		t.Fatalf("expected LOGIN_BLOCKED next, got %s", state)
	}

	drv.Remove(sel.LoginBlockedContainer)

	if state := c.Classify(drv); state != StateDrawEntryPage {
		t.Fatalf("expected DRAW_ENTRY_PAGE, got %s", state)
	}
}

func TestClassifyAccountUrlGatedByFlowType(t *testing.T) {

	sel := DefaultSelectors()
	drv := browsertest.New()
	drv.SetUrl(sel.AccountUrl + "/profile")

	if state := fastClassifier("entry").Classify(drv); state != StateUnknown {
		t.Fatalf("entry flow must not match the account url, got %s", state)
	}

	if state := fastClassifier("account").Classify(drv); state != StateAccountCompletedPage {
		t.Fatalf("account flow should match the account url, got %s", state)
	}
}

func TestClassifyStableRidesOutTransientUnknown(t *testing.T) {

	sel := DefaultSelectors()
	drv := browsertest.New()

	go func() {
		time.Sleep(3 * time.Millisecond)
		drv.Set(sel.AddressForm, &browsertest.Element{Visible: true})
	}()

	c := fastClassifier("entry")

	if state := c.ClassifyStable(drv); state != StateAccountCompletionPage {
		t.Fatalf("expected the re-poll to catch the rendered form, got %s", state)
	}
}

func TestClassifyStableAcceptsPersistentBlock(t *testing.T) {

	sel := DefaultSelectors()
	drv := browsertest.New()
	drv.Set(sel.LoginBlockedContainer, &browsertest.Element{Visible: true})

	c := fastClassifier("entry")

	if state := c.ClassifyStable(drv); state != StateLoginBlocked {
		t.Fatalf("a block present through every poll is real, got %s", state)
	}
}
