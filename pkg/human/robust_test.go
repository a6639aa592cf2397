package human_test

import (
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jordansinko/sinkgo-fifa/pkg/browser/browsertest"
	"github.com/jordansinko/sinkgo-fifa/pkg/human"
)

func TestRobustClickHitsTarget(t *testing.T) {
	drv := browsertest.New()
	drv.Set(`#cta`, &browsertest.Element{Visible: true, Enabled: true})

	var clicked []string

	drv.OnClick = func(d *browsertest.Driver, selector string) {
		clicked = append(clicked, selector)
	}

	h := human.New(drv, zerolog.Nop(), fastConfig())

	ok, err := h.RobustClick(&human.ClickOptions{Selector: `#cta`, Fast: true})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !ok {
		t.Fatal("expected the click to land")
	}

	found := false

	for _, s := range clicked {
		if s == `#cta` {
			found = true
		}
	}

	if !found {
		t.Fatalf("pointer never landed on the target, clicks: %v", clicked)
	}
}

func TestRobustClickPropagatesWaitFailure(t *testing.T) {
	drv := browsertest.New()
	h := human.New(drv, zerolog.Nop(), fastConfig())

	ok, err := h.RobustClick(&human.ClickOptions{Selector: `#missing`})

	if ok {
		t.Fatal("click on a missing element cannot succeed")
	}

	if !errors.Is(err, human.ErrProxyTimeout) {
		t.Fatalf("wait exhaustion must surface as proxy timeout, got %v", err)
	}
}

func TestRobustFillTypesAndVerifies(t *testing.T) {
	drv := browsertest.New()
	drv.Set(`input[name="email"]`, &browsertest.Element{Visible: true, Enabled: true, Value: "stale@old.io"})

	h := human.New(drv, zerolog.Nop(), fastConfig())

	ok, err := h.RobustFill(&human.FillOptions{Selector: `input[name="email"]`, Value: "jo22@example.io"})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !ok {
		t.Fatal("fill should verify against its own readback")
	}

	el := drv.Element(`input[name="email"]`)

	if el.Value != "jo22@example.io" {
		t.Fatalf("field holds %q after fill", el.Value)
	}

	events := drv.EventsFor(`input[name="email"]`)

	for _, want := range []string{"input", "change", "blur"} {
		if !strings.Contains(events, want) {
			t.Fatalf("expected %s event to fire, got %q", want, events)
		}
	}
}

func TestRobustSelectFallsBackToDirectAssignment(t *testing.T) {
	drv := browsertest.New()
	drv.Set(`select[name="country"]`, &browsertest.Element{Visible: true, Enabled: true})

	h := human.New(drv, zerolog.Nop(), fastConfig())

	done := make(chan struct{})

	var ok bool
	var err error

	go func() {
		// option selector never shows up, forcing the direct path
		ok, err = h.RobustSelect(&human.SelectOptions{
			Selector:       `select[name="country"]`,
			Value:          "US",
			OptionSelector: `select[name="country"] option[value="US"]`,
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.Fatal("select did not finish")
	}

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !ok {
		t.Fatal("expected the fallback assignment to succeed")
	}

	if el := drv.Element(`select[name="country"]`); el.Value != "US" {
		t.Fatalf("select holds %q", el.Value)
	}

	if events := drv.EventsFor(`select[name="country"]`); !strings.Contains(events, "change") {
		t.Fatalf("direct assignment must still dispatch change, got %q", events)
	}
}
