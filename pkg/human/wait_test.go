package human_test

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jordansinko/sinkgo-fifa/pkg/browser/browsertest"
	"github.com/jordansinko/sinkgo-fifa/pkg/human"
)

func fastConfig() human.Config {
	return human.Config{
		PollInterval:          10 * time.Millisecond,
		CheckpointAfter:       time.Hour,
		RetryBackoff:          10 * time.Millisecond,
		DefaultTimeout:        150 * time.Millisecond,
		NetworkErrorSelectors: []string{`.neterror`},
	}
}

func TestWaitForElementTimesOutWithProxyTimeout(t *testing.T) {
	drv := browsertest.New()
	h := human.New(drv, zerolog.Nop(), fastConfig())

	start := time.Now()
	err := h.WaitForElement(&human.WaitOptions{Selector: `#missing`, Name: "missing"})

	if err == nil {
		t.Fatal("expected an error for a selector that never appears")
	}

	if !errors.Is(err, human.ErrProxyTimeout) {
		t.Fatalf("expected proxy timeout, got %v", err)
	}

	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("wait ran far past its budget: %s", elapsed)
	}
}

func TestWaitForElementSeesLateElement(t *testing.T) {
	drv := browsertest.New()

	cfg := fastConfig()
	cfg.DefaultTimeout = time.Second

	h := human.New(drv, zerolog.Nop(), cfg)

	go func() {
		time.Sleep(40 * time.Millisecond)
		drv.Set(`#late`, &browsertest.Element{Visible: true, Enabled: true})
	}()

	if err := h.WaitForElement(&human.WaitOptions{Selector: `#late`}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWaitForElementRequireEnabled(t *testing.T) {
	drv := browsertest.New()
	drv.Set(`#btn`, &browsertest.Element{Visible: true, Enabled: false})

	h := human.New(drv, zerolog.Nop(), fastConfig())

	err := h.WaitForElement(&human.WaitOptions{Selector: `#btn`, RequireEnabled: true})

	if !errors.Is(err, human.ErrProxyTimeout) {
		t.Fatalf("disabled element should exhaust the budget, got %v", err)
	}

	if err := h.WaitForElement(&human.WaitOptions{Selector: `#btn`}); err != nil {
		t.Fatalf("visibility-only wait should pass: %v", err)
	}
}

func TestWaitForElementReloadsNetworkErrorPage(t *testing.T) {
	drv := browsertest.New()
	drv.Set(`.neterror`, &browsertest.Element{Visible: true})

	drv.OnReload = func(d *browsertest.Driver) {
		d.Remove(`.neterror`)
		d.Set(`#target`, &browsertest.Element{Visible: true, Enabled: true})
	}

	cfg := fastConfig()
	cfg.DefaultTimeout = time.Second

	h := human.New(drv, zerolog.Nop(), cfg)

	if err := h.WaitForElement(&human.WaitOptions{Selector: `#target`}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if drv.Reloads != 1 {
		t.Fatalf("expected exactly one reload, got %d", drv.Reloads)
	}
}

func TestWaitForElementCheckpointReloadSignalsRestart(t *testing.T) {
	drv := browsertest.New()
	drv.SetUrl("https://auth.example.com/login")

	drv.OnReload = func(d *browsertest.Driver) {
		d.SetUrl("https://www.example.com/tickets/draw")
	}

	cfg := fastConfig()
	cfg.CheckpointAfter = 30 * time.Millisecond
	cfg.DefaultTimeout = time.Second
	cfg.EntryUrl = "https://www.example.com/tickets/draw"

	h := human.New(drv, zerolog.Nop(), cfg)

	err := h.WaitForElement(&human.WaitOptions{Selector: `#never`})

	if !errors.Is(err, human.ErrRestartDrawEntry) {
		t.Fatalf("expected restart signal after checkpoint landed on entry url, got %v", err)
	}
}
