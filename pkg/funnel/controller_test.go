package funnel

import (
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jordansinko/sinkgo-fifa/pkg/browser/browsertest"
	"github.com/jordansinko/sinkgo-fifa/pkg/human"
)

type fakeMail struct {
	mu    sync.Mutex
	code  string
	after int
	polls int
}

func (m *fakeMail) Connect() error    { return nil }
func (m *fakeMail) Disconnect() error { return nil }

func (m *fakeMail) SearchForFifaEmail(receivingAddress string, accountAddress string, log zerolog.Logger) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.polls = m.polls + 1

	if m.code != "" && m.polls >= m.after {
		return m.code, nil
	}

	return "", nil
}

func (m *fakeMail) pollCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.polls
}

type recordingStore struct {
	mu        sync.Mutex
	created   []string
	verified  []string
	completed []string
	flagged   []string
}

func (s *recordingStore) MarkAccountCreated(email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, email)
	return nil
}

func (s *recordingStore) MarkAsVerified(email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verified = append(s.verified, email)
	return nil
}

func (s *recordingStore) MarkEntryCompleted(email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = append(s.completed, email)
	return nil
}

func (s *recordingStore) FlagOtpIssues(email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flagged = append(s.flagged, email)
	return nil
}

func newTestController(drv *browsertest.Driver, user *User, mail MailSource, store Store) *Controller {

	hcfg := human.Config{
		PollInterval:    10 * time.Millisecond,
		CheckpointAfter: time.Hour,
		RetryBackoff:    10 * time.Millisecond,
		DefaultTimeout:  2 * time.Second,
	}

	h := human.New(drv, zerolog.Nop(), hcfg)

	c := NewController(h, DefaultSelectors(), user, "entry", zerolog.Nop())

	c.Mail = mail
	c.Store = store
	c.Lock = &SubmitLock{MinSettle: time.Millisecond, MaxSettle: 2 * time.Millisecond}

	c.Cfg.SettleDelay = time.Millisecond
	c.Cfg.OtpBudget = 2 * time.Second
	c.Cfg.OtpPollInterval = 10 * time.Millisecond
	c.Cfg.OtpConfirmPolls = 2
	c.Cfg.OtpConfirmSpacing = 5 * time.Millisecond

	c.Classifier.RetryPolls = 2
	c.Classifier.RetrySpacing = 2 * time.Millisecond

	return c
}

func TestCompletionStuckOnBlockedPageTimesOut(t *testing.T) {

	sel := DefaultSelectors()
	drv := browsertest.New()
	drv.Set(sel.LoginBlockedContainer, &browsertest.Element{Visible: true})

	c := newTestController(drv, &User{Email: "a@b.io"}, &fakeMail{}, &recordingStore{})

	result, err := c.Completion("entry")

	if result != ResultProxyTimeout {
		t.Fatalf("a permanently blocked page must end as proxy timeout, got %s", result)
	}

	if !errors.Is(err, human.ErrProxyTimeout) {
		t.Fatalf("expected the tagged proxy timeout, got %v", err)
	}
}

func TestCompletionStuckOnUnknownPageTimesOut(t *testing.T) {

	drv := browsertest.New()

	c := newTestController(drv, &User{Email: "a@b.io"}, &fakeMail{}, &recordingStore{})

	done := make(chan struct{})

	var result Result
	var err error

	go func() {
		result, err = c.Completion("entry")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.Fatal("completion never terminated on a blank page")
	}

	if result != ResultProxyTimeout || !errors.Is(err, human.ErrProxyTimeout) {
		t.Fatalf("blank page must stick out as proxy timeout, got %s %v", result, err)
	}
}

func TestEmailVerificationStopsPollingOnceCodeArrives(t *testing.T) {

	sel := DefaultSelectors()
	drv := browsertest.New()
	drv.Set(sel.EmailVerificationMarker, &browsertest.Element{Visible: true})
	drv.Set(sel.OtpInput, &browsertest.Element{Visible: true, Enabled: true})
	drv.Set(sel.OtpSubmit, &browsertest.Element{Visible: true, Enabled: true})

	drv.OnClick = func(d *browsertest.Driver, s string) {
		if s == sel.OtpSubmit {
			d.Remove(sel.EmailVerificationMarker)
		}
	}

	mail := &fakeMail{code: "123456", after: 3}
	store := &recordingStore{}

	c := newTestController(drv, &User{Email: "a@b.io"}, mail, store)

	if err := c.emailVerification(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if polls := mail.pollCount(); polls != 3 {
		t.Fatalf("polling must stop at the code, got %d polls", polls)
	}

	if el := drv.Element(sel.OtpInput); el.Value != "123456" {
		t.Fatalf("otp field holds %q", el.Value)
	}

	if len(store.verified) != 1 || store.verified[0] != "a@b.io" {
		t.Fatalf("verification flag not written: %v", store.verified)
	}
}

func TestEmailVerificationTimeoutFlagsAccount(t *testing.T) {

	sel := DefaultSelectors()
	drv := browsertest.New()
	drv.Set(sel.EmailVerificationMarker, &browsertest.Element{Visible: true})

	mail := &fakeMail{}
	store := &recordingStore{}

	c := newTestController(drv, &User{Email: "a@b.io"}, mail, store)
	c.Cfg.OtpBudget = 60 * time.Millisecond

	start := time.Now()
	err := c.emailVerification()

	if !errors.Is(err, ErrImapFailure) {
		t.Fatalf("expected imap failure after the budget, got %v", err)
	}

	if elapsed := time.Since(start); elapsed < c.Cfg.OtpBudget {
		t.Fatalf("gave up after %s, before the budget elapsed", elapsed)
	}

	if len(store.flagged) != 1 {
		t.Fatalf("otp issue flag not written: %v", store.flagged)
	}
}

func visibleInput() *browsertest.Element {
	return &browsertest.Element{Visible: true, Enabled: true}
}

func TestEntryFlowRegistersAndEntersDraw(t *testing.T) {

	if testing.Short() {
		t.Skip("full funnel walk is slow")
	}

	sel := DefaultSelectors()
	drv := browsertest.New()
	drv.SetUrl(sel.LandingUrl)
	drv.Set(sel.EnterDrawButton, visibleInput())

	drv.OnClick = func(d *browsertest.Driver, s string) {

		switch s {

		case sel.EnterDrawButton:
			d.SetUrl("https://auth.fifa.com/authorize?client=fifa")
			d.Clear()
			d.Set(sel.FirstNameInput, visibleInput())
			d.Set(sel.LastNameInput, visibleInput())
			d.Set(sel.EmailInput, visibleInput())
			d.Set(sel.BirthDateInput, visibleInput())
			d.Set(sel.PasswordStep, &browsertest.Element{Visible: true})
			d.Set(sel.RegisterPassword, visibleInput())
			d.Set(sel.RegisterConfirm, visibleInput())
			d.Set(sel.TermsCheckbox, visibleInput())
			d.Set(sel.RegisterSubmit, visibleInput())

		case sel.RegisterSubmit:
			d.Clear()
			d.Set(sel.EmailVerificationMarker, &browsertest.Element{Visible: true})
			d.Set(sel.OtpInput, visibleInput())
			d.Set(sel.OtpSubmit, visibleInput())

		case sel.OtpSubmit:
			d.Clear()
			d.Set(sel.AddressForm, &browsertest.Element{Visible: true})
			d.Set(sel.AddressLine1, visibleInput())
			d.Set(sel.CityInput, visibleInput())
			d.Set(sel.ZipInput, visibleInput())
			d.Set(sel.PhoneInput, visibleInput())
			d.Set(sel.AddressSubmit, visibleInput())

		case sel.AddressSubmit:
			d.Clear()
			d.Set(sel.DrawEntryButton, visibleInput())

		case sel.DrawEntryButton:
			d.Clear()
			d.Set(sel.DrawCancelButton, &browsertest.Element{Visible: true})
		}
	}

	user := &User{
		Email:     "jo22@example.io",
		Password:  "pw1234",
		First:     "Jo",
		Last:      "Li",
		BirthDate: "01/02/1994",
		Phone:     "5551234",
		Address1:  "1 A St",
		City:      "Rio",
		Zip:       "00100",
	}

	mail := &fakeMail{code: "123456", after: 1}
	store := &recordingStore{}

	c := newTestController(drv, user, mail, store)

	result, err := c.EntryFlow()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result != ResultEnteredDraw {
		t.Fatalf("expected ENTERED_DRAW, got %s", result)
	}

	if len(store.created) != 1 || store.created[0] != user.Email {
		t.Fatalf("account creation not recorded: %v", store.created)
	}

	if len(store.verified) != 1 {
		t.Fatalf("verification not recorded: %v", store.verified)
	}

	if len(store.completed) != 1 || store.completed[0] != user.Email {
		t.Fatalf("entry completion must be recorded exactly once: %v", store.completed)
	}
}

func TestLoginSwitchesToRegisterWhenUserMissing(t *testing.T) {

	if testing.Short() {
		t.Skip("full funnel walk is slow")
	}

	sel := DefaultSelectors()
	drv := browsertest.New()
	drv.SetUrl("https://auth.fifa.com/login")
	drv.Set(sel.EmailInput, visibleInput())
	drv.Set(sel.PasswordInput, visibleInput())
	drv.Set(sel.LoginSubmit, visibleInput())

	registerOpened := false

	drv.OnClick = func(d *browsertest.Driver, s string) {

		switch s {

		case sel.LoginSubmit:
			d.Set(sel.UserNotFound, &browsertest.Element{Visible: true})

		case sel.RegisterLink:
			registerOpened = true
			d.Clear()
			d.Set(sel.FirstNameInput, visibleInput())
			d.Set(sel.LastNameInput, visibleInput())
			d.Set(sel.EmailInput, visibleInput())
			d.Set(sel.BirthDateInput, visibleInput())
			d.Set(sel.PasswordStep, &browsertest.Element{Visible: true})
			d.Set(sel.RegisterPassword, visibleInput())
			d.Set(sel.RegisterConfirm, visibleInput())
			d.Set(sel.TermsCheckbox, visibleInput())
			d.Set(sel.RegisterSubmit, visibleInput())
		}
	}

	user := &User{
		Email:      "jo22@example.io",
		Password:   "pw1234",
		First:      "Jo",
		Last:       "Li",
		BirthDate:  "01/02/1994",
		HasAccount: true,
	}

	store := &recordingStore{}

	c := newTestController(drv, user, &fakeMail{}, store)

	// the register link only exists after the not-found error
	drv.Set(sel.RegisterLink, visibleInput())

	if err := c.loginOrRegister(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !registerOpened {
		t.Fatal("login should have handed off to registration")
	}

	if user.HasAccount {
		t.Fatal("the user record must drop its has-account claim")
	}

	if len(store.created) != 1 {
		t.Fatalf("registration must record the account: %v", store.created)
	}
}
