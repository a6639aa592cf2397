package funnel

import (
	"testing"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/pkg/errors"

	"github.com/jordansinko/sinkgo-fifa/pkg/browser/browsertest"
	"github.com/jordansinko/sinkgo-fifa/pkg/human"
)

func TestCheckQueueStatusPassedOnAuthRedirect(t *testing.T) {

	drv := browsertest.New()
	drv.SetUrl("https://auth.fifa.com/authorize")

	c := newTestController(drv, &User{Email: "a@b.io"}, &fakeMail{}, &recordingStore{})

	if status := c.CheckQueueStatus(); status != QueuePassed {
		t.Fatalf("auth redirect must read as passed, got %s", status)
	}
}

func TestQueuePassPatternFindsCookie(t *testing.T) {

	cookies := `foo=1; QueueITAccepted-SDFrts345E-V3_fifa=a1b2c3; bar=2`

	matches := queuePassPattern.FindStringSubmatch(cookies)

	if len(matches) != 3 {
		t.Fatalf("pattern missed the pass cookie: %v", matches)
	}

	if matches[2] != "a1b2c3" {
		t.Fatalf("extracted %q", matches[2])
	}
}

func TestHandleQueuePassReplaysCachedPass(t *testing.T) {

	sel := DefaultSelectors()

	drv := browsertest.New()
	drv.SetUrl("https://auth.fifa.com/authorize")

	c := newTestController(drv, &User{Email: "a@b.io"}, &fakeMail{}, &recordingStore{})

	c.QueuePasses = ttlcache.New[string, string]()
	c.ProxyKey = "10.0.0.1:8000"
	c.QueuePasses.Set(c.ProxyKey, "tok123", ttlcache.DefaultTTL)

	if err := c.HandleQueuePass(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := drv.Cookie(sel.QueuePassCookie); got != "tok123" {
		t.Fatalf("cached pass was not replayed, cookie holds %q", got)
	}

	if drv.Reloads != 1 {
		t.Fatalf("replay must reload once, got %d reloads", drv.Reloads)
	}
}

func TestHandleQueuePassWithoutSolverReadsAsBurnedProxy(t *testing.T) {

	sel := DefaultSelectors()

	drv := browsertest.New()
	drv.SetUrl("https://" + sel.QueueHost + "/softblock")
	drv.Set(sel.CaptchaFrame, &browsertest.Element{Visible: true})

	c := newTestController(drv, &User{Email: "a@b.io"}, &fakeMail{}, &recordingStore{})

	c.Cfg.QueueWindow = 200 * time.Millisecond
	c.Cfg.QueuePollInterval = 5 * time.Millisecond
	c.Cfg.QueueRetries = 1

	err := c.HandleQueuePass()

	if err == nil {
		t.Fatal("a captcha wall with no solver wired must not pass")
	}

	if !errors.Is(err, human.ErrProxyTimeout) {
		t.Fatalf("expected the tagged proxy timeout, got %v", err)
	}
}
