package funnel

import (
	"fmt"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jordansinko/sinkgo-fifa/pkg/browser"
	"github.com/jordansinko/sinkgo-fifa/pkg/captcha"
	"github.com/jordansinko/sinkgo-fifa/pkg/human"
)

// MailSource retrieves one-time codes. The controller owns the polling
// budget; a source returning no code is not an error.
type MailSource interface {
	Connect() error
	SearchForFifaEmail(receivingAddress string, accountAddress string, log zerolog.Logger) (string, error)
	Disconnect() error
}

// Store is the write-back side of the user list.
type Store interface {
	MarkAccountCreated(email string) error
	MarkAsVerified(email string) error
	MarkEntryCompleted(email string) error
	FlagOtpIssues(email string) error
}

type User struct {
	Email    string
	Password string

	First     string
	Last      string
	BirthDate string
	Phone     string

	Address1 string
	Address2 string
	City     string
	State    string
	Zip      string
	Country  string

	CardNumber string
	CardExpiry string
	CardCvc    string

	HasAccount bool

	// ReceivingAddress is the mailbox that actually receives the catchall
	// mail; defaults to Email.
	ReceivingAddress string
}

func (u *User) receiving() string {
	if u.ReceivingAddress != "" {
		return u.ReceivingAddress
	}

	return u.Email
}

type Config struct {
	StuckStateThreshold int
	SettleDelay         time.Duration

	OtpBudget         time.Duration
	OtpPollInterval   time.Duration
	OtpConfirmPolls   int
	OtpConfirmSpacing time.Duration

	QueueWindow       time.Duration
	QueuePollInterval time.Duration
	QueueRetries      int

	NewPageAttempts int
	EntryRestarts   int
}

func DefaultConfig() Config {
	return Config{
		StuckStateThreshold: 3,
		SettleDelay:         2 * time.Second,
		OtpBudget:           180 * time.Second,
		OtpPollInterval:     5 * time.Second,
		OtpConfirmPolls:     5,
		OtpConfirmSpacing:   3 * time.Second,
		QueueWindow:         30 * time.Second,
		QueuePollInterval:   1 * time.Second,
		QueueRetries:        2,
		NewPageAttempts:     14,
		EntryRestarts:       2,
	}
}

// Controller walks one user through the funnel: classify the page, run
// exactly one handler for that state, repeat until a terminal result.
type Controller struct {
	Log zerolog.Logger
	Sel *Selectors
	Cfg Config

	Human  *human.Humanizer
	Mail   MailSource
	Store  Store
	Solver captcha.SliderSolver
	Lock   *SubmitLock

	User     *User
	FlowType string

	// QueuePasses caches queue-pass tokens per proxy so a rotated retry on
	// the same proxy skips the waiting room.
	QueuePasses *ttlcache.Cache[string, string]
	ProxyKey    string

	Classifier *Classifier

	authSwitches int
}

func NewController(h *human.Humanizer, sel *Selectors, user *User, flowType string, log zerolog.Logger) *Controller {

	if sel == nil {
		sel = DefaultSelectors()
	}

	return &Controller{
		Log:        log,
		Sel:        sel,
		Cfg:        DefaultConfig(),
		Human:      h,
		Lock:       sharedSubmitLock,
		User:       user,
		FlowType:   flowType,
		Classifier: NewClassifier(sel, flowType, log),
	}
}

func (c *Controller) drv() browser.Driver {
	return c.Human.Driver()
}

// ResultForError maps a tagged error to the terminal code it stands for.
func ResultForError(err error) Result {
	switch {
	case errors.Is(err, human.ErrProxyTimeout):
		return ResultProxyTimeout
	case errors.Is(err, ErrImapFailure):
		return ResultImapFailure
	case errors.Is(err, ErrLoginBlocked):
		return ResultLoginBlocked
	default:
		return ResultUnknownError
	}
}

// EntryFlow is the outer navigation around Completion: landing page, the
// hop to the identity provider, queue handling, then login-or-register.
// A restart signal re-runs the whole thing within a small budget.
func (c *Controller) EntryFlow() (Result, error) {

	restarts := 0

	for {
		result, err := c.entryOnce()

		if err != nil && errors.Is(err, human.ErrRestartDrawEntry) {

			if restarts < c.Cfg.EntryRestarts {
				restarts = restarts + 1
				c.Log.Printf("restarting draw entry from the top (%d)", restarts)
				continue
			}

			return ResultProxyTimeout, errors.Wrap(human.ErrProxyTimeout, "draw entry restart budget exhausted")
		}

		return result, err
	}
}

func (c *Controller) entryOnce() (Result, error) {

	if err := c.drv().Navigate(c.Sel.LandingUrl); err != nil {
		return ResultUnknownError, errors.Wrap(err, "landing navigation failed")
	}

	c.drv().WaitForLoad(30 * time.Second)

	// some ambient behavior before the first click
	c.Human.ScrollJitter()
	c.Human.Pause()

	ok, err := c.Human.RobustClick(&human.ClickOptions{
		Selector:  c.Sel.EnterDrawButton,
		Name:      "enter draw cta",
		Stabilize: true,
	})

	if err != nil {
		return ResultForError(err), err
	}

	if !ok {
		err := errors.Wrap(human.ErrProxyTimeout, "enter draw cta unreachable")
		return ResultProxyTimeout, err
	}

	if err := c.adoptAuthPage(); err != nil {
		return ResultForError(err), err
	}

	if strings.Contains(c.drv().CurrentUrl(), c.Sel.QueueHost) {
		if err := c.HandleQueuePass(); err != nil {
			return ResultForError(err), err
		}
	}

	if err := c.loginOrRegister(); err != nil {
		result := ResultForError(err)

		if result == ResultLoginBlocked || result == ResultImapFailure {
			// terminal codes, not propagation-worthy errors
			return result, nil
		}

		return result, err
	}

	return c.Completion(c.FlowType)
}

// adoptAuthPage finds the identity-provider (or queue) page the cta opened,
// possibly in a new tab, and repoints the humanizer at it. The driver has no
// target-created events to subscribe to, so this is the polling fallback
// with progressive backoff.
func (c *Controller) adoptAuthPage() error {

	attempts := c.Cfg.NewPageAttempts

	if attempts == 0 {
		attempts = 14
	}

	for attempt := 1; attempt <= attempts; attempt++ {

		for _, page := range c.drv().Pages() {

			url := page.CurrentUrl()

			if strings.Contains(url, c.Sel.AuthHost) || strings.Contains(url, c.Sel.QueueHost) {
				c.Human.SetDriver(page)
				page.WaitForLoad(15 * time.Second)
				return nil
			}
		}

		time.Sleep(time.Duration(attempt) * 250 * time.Millisecond)
	}

	return errors.Wrapf(human.ErrProxyTimeout, "identity provider page never appeared after %d attempts", attempts)
}

// Completion is the classify-dispatch loop. One handler per iteration; the
// same state repeating past the stuck threshold means the funnel is wedged
// and the proxy is burned.
func (c *Controller) Completion(flowType string) (Result, error) {

	lastState := PageState(-1)
	consecutive := 0

	for {

		state := c.Classifier.ClassifyStable(c.drv())

		if state == lastState {
			consecutive = consecutive + 1
		} else {
			consecutive = 1
			lastState = state
		}

		c.Log.Printf("page state: %s (seen %dx)", state, consecutive)

		if consecutive > c.Cfg.StuckStateThreshold {
			err := errors.Wrapf(human.ErrProxyTimeout, "stuck in %s for %d checks", state, consecutive)
			return ResultProxyTimeout, err
		}

		var err error

		switch state {

		case StateEmailVerification:
			err = c.emailVerification()

		case StateUpdateProfileNeeded:
			err = c.updateProfile()

		case StateAccountCompletionPage:
			err = c.fillAddress()

		case StateDrawEntryPage:
			err = c.enterDraw()

		case StateDrawCompletedPage:
			c.Store.MarkEntryCompleted(c.User.Email)
			return ResultEnteredDraw, nil

		case StateAccountCompletedPage:
			c.Store.MarkAccountCreated(c.User.Email)
			return ResultEnteredDraw, nil

		case StateLoginBlocked:
			// usually a transition artifact that survived the stable polls;
			// a reload either clears it or the stuck counter ends it
			c.drv().Reload()

		case StateUnknown:
			// nothing to dispatch; settle below and reclassify
		}

		if err != nil {

			result := ResultForError(err)

			if result == ResultImapFailure || result == ResultLoginBlocked {
				return result, nil
			}

			if result == ResultProxyTimeout {
				return result, err
			}

			if errors.Is(err, human.ErrRestartDrawEntry) {
				return ResultProxyTimeout, err
			}

			c.Log.Err(err).Send()
		}

		time.Sleep(c.Cfg.SettleDelay)
		c.drv().WaitForLoad(15 * time.Second)
	}
}

func (c *Controller) loginOrRegister() error {

	if c.User.HasAccount {
		return c.login()
	}

	return c.register()
}

func (c *Controller) login() error {

	c.Log.Print("logging in")

	ok, err := c.Human.RobustFill(&human.FillOptions{Selector: c.Sel.EmailInput, Name: "login email", Value: c.User.Email})

	if err != nil {
		return err
	}

	if !ok {
		return errors.New("unable to fill login email")
	}

	c.Human.Pause()

	ok, err = c.Human.RobustFill(&human.FillOptions{Selector: c.Sel.PasswordInput, Name: "login password", Value: c.User.Password})

	if err != nil {
		return err
	}

	if !ok {
		return errors.New("unable to fill login password")
	}

	c.Human.Pause()

	if err := c.submitLocked(c.Sel.LoginSubmit, "login submit"); err != nil {
		return err
	}

	c.drv().WaitForLoad(15 * time.Second)

	if c.drv().Visible(c.Sel.UserNotFound) {
		c.Log.Print("no such user, switching to registration")
		c.User.HasAccount = false
		return c.switchAuth(c.register)
	}

	state := c.Classifier.ClassifyStable(c.drv())

	if state == StateUpdateProfileNeeded {
		return c.updateProfile()
	}

	if state == StateLoginBlocked {
		return errors.Wrap(ErrLoginBlocked, "blocked after login submit")
	}

	return nil
}

func (c *Controller) register() error {

	c.Log.Print("registering")

	if c.drv().Visible(c.Sel.RegisterLink) {
		if _, err := c.Human.RobustClick(&human.ClickOptions{Selector: c.Sel.RegisterLink, Name: "register link", Fast: true}); err != nil {
			return err
		}
	}

	fills := []struct {
		selector string
		name     string
		value    string
	}{
		{c.Sel.FirstNameInput, "first name", c.User.First},
		{c.Sel.LastNameInput, "last name", c.User.Last},
		{c.Sel.EmailInput, "email", c.User.Email},
		{c.Sel.BirthDateInput, "birth date", c.User.BirthDate},
	}

	for _, f := range fills {

		if f.value == "" {
			continue
		}

		ok, err := c.Human.RobustFill(&human.FillOptions{Selector: f.selector, Name: f.name, Value: f.value})

		if err != nil {
			return err
		}

		if !ok {
			return errors.Errorf("unable to fill %s", f.name)
		}

		c.Human.Pause()
	}

	if c.User.Country != "" {
		if _, err := c.Human.RobustSelect(&human.SelectOptions{
			Selector:       c.Sel.CountrySelect,
			Name:           "country",
			Value:          c.User.Country,
			OptionSelector: fmt.Sprintf(c.Sel.CountryOption, c.User.Country),
			ExitDropdown:   true,
		}); err != nil {
			return err
		}
	}

	// the site either complains the account exists or reveals the password
	// step; whichever shows first decides the branch
	outcome := c.raceRegisterOutcome(30 * time.Second)

	switch outcome {

	case "exists":
		c.Log.Print("account already exists, switching to login")
		c.User.HasAccount = true
		return c.switchAuth(c.login)

	case "password":

	default:
		return errors.Wrap(human.ErrProxyTimeout, "register form never advanced")
	}

	ok, err := c.Human.RobustFill(&human.FillOptions{Selector: c.Sel.RegisterPassword, Name: "new password", Value: c.User.Password})

	if err != nil {
		return err
	}

	if !ok {
		return errors.New("unable to fill new password")
	}

	if c.drv().Visible(c.Sel.RegisterConfirm) {
		if _, err := c.Human.RobustFill(&human.FillOptions{Selector: c.Sel.RegisterConfirm, Name: "confirm password", Value: c.User.Password}); err != nil {
			return err
		}
	}

	if _, err := c.Human.RobustClick(&human.ClickOptions{Selector: c.Sel.TermsCheckbox, Name: "terms checkbox", Fast: true}); err != nil {
		return err
	}

	if err := c.submitLocked(c.Sel.RegisterSubmit, "register submit"); err != nil {
		return err
	}

	c.Store.MarkAccountCreated(c.User.Email)

	return nil
}

// submitLocked performs a non-idempotent submission under the shared gate.
// The settle-then-release inside the lock is unconditional.
func (c *Controller) submitLocked(selector string, name string) error {

	return c.Lock.Do(func() error {

		ok, err := c.Human.RobustClick(&human.ClickOptions{Selector: selector, Name: name, RequireEnabled: true})

		if err != nil {
			return err
		}

		if !ok {
			return errors.Errorf("unable to click %s", name)
		}

		return nil
	})
}

func (c *Controller) raceRegisterOutcome(window time.Duration) string {

	deadline := time.Now().Add(window)

	for time.Now().Before(deadline) {

		if c.drv().Visible(c.Sel.AccountExistsError) {
			return "exists"
		}

		if c.drv().Visible(c.Sel.PasswordStep) {
			return "password"
		}

		time.Sleep(500 * time.Millisecond)
	}

	return ""
}

// switchAuth bounds the login<->register flip so a site that keeps
// contradicting itself cannot recurse forever.
func (c *Controller) switchAuth(next func() error) error {

	if c.authSwitches >= 2 {
		return errors.New("login/register flip-flop")
	}

	c.authSwitches = c.authSwitches + 1

	return next()
}

// emailVerification polls the mailbox (connect, search, disconnect each
// round) for the one-time code, fills and submits it, then confirms the
// verification wall actually cleared.
func (c *Controller) emailVerification() error {

	c.Log.Print("waiting for verification code")

	interval := c.Cfg.OtpPollInterval
	start := time.Now()

	var code string

	for time.Since(start) < c.Cfg.OtpBudget {

		if err := c.Mail.Connect(); err != nil {
			c.Log.Err(err).Send()
		} else {
			found, err := c.Mail.SearchForFifaEmail(c.User.receiving(), c.User.Email, c.Log)

			if err != nil {
				c.Log.Err(err).Send()
			}

			c.Mail.Disconnect()

			code = found
		}

		if code != "" {
			break
		}

		time.Sleep(interval)
	}

	if code == "" {
		c.Store.FlagOtpIssues(c.User.Email)
		return errors.Wrapf(ErrImapFailure, "no code within %s", c.Cfg.OtpBudget)
	}

	c.Log.Print("got verification code")

	ok, err := c.Human.RobustFill(&human.FillOptions{Selector: c.Sel.OtpInput, Name: "otp input", Value: code})

	if err != nil {
		return err
	}

	if !ok {
		return errors.New("unable to fill otp")
	}

	if _, err := c.Human.RobustClick(&human.ClickOptions{Selector: c.Sel.OtpSubmit, Name: "otp submit", RequireEnabled: true}); err != nil {
		return err
	}

	for poll := 0; poll < c.Cfg.OtpConfirmPolls; poll++ {

		if c.Classifier.Classify(c.drv()) != StateEmailVerification {
			c.Store.MarkAsVerified(c.User.Email)
			return nil
		}

		time.Sleep(c.Cfg.OtpConfirmSpacing)
	}

	// wall still up; the completion loop will re-dispatch or stick out
	return nil
}

func (c *Controller) updateProfile() error {

	c.Log.Print("completing profile update")

	if c.drv().Visible(c.Sel.BirthDateInput) && c.User.BirthDate != "" {
		if _, err := c.Human.RobustFill(&human.FillOptions{Selector: c.Sel.BirthDateInput, Name: "birth date", Value: c.User.BirthDate}); err != nil {
			return err
		}
	}

	if c.drv().Visible(c.Sel.CountrySelect) && c.User.Country != "" {
		if _, err := c.Human.RobustSelect(&human.SelectOptions{
			Selector:       c.Sel.CountrySelect,
			Name:           "country",
			Value:          c.User.Country,
			OptionSelector: fmt.Sprintf(c.Sel.CountryOption, c.User.Country),
		}); err != nil {
			return err
		}
	}

	_, err := c.Human.RobustClick(&human.ClickOptions{Selector: c.Sel.UpdateProfileSubmit, Name: "update profile submit", RequireEnabled: true})

	return err
}

func (c *Controller) fillAddress() error {

	c.Log.Print("filling address form")

	fills := []struct {
		selector string
		name     string
		value    string
	}{
		{c.Sel.AddressLine1, "address line 1", c.User.Address1},
		{c.Sel.AddressLine2, "address line 2", c.User.Address2},
		{c.Sel.CityInput, "city", c.User.City},
		{c.Sel.ZipInput, "postal code", c.User.Zip},
		{c.Sel.PhoneInput, "phone", c.User.Phone},
	}

	for _, f := range fills {

		if f.value == "" {
			continue
		}

		ok, err := c.Human.RobustFill(&human.FillOptions{Selector: f.selector, Name: f.name, Value: f.value})

		if err != nil {
			return err
		}

		if !ok {
			return errors.Errorf("unable to fill %s", f.name)
		}

		c.Human.Pause()
	}

	if c.User.State != "" && c.drv().Visible(c.Sel.StateSelect) {
		if _, err := c.Human.RobustSelect(&human.SelectOptions{Selector: c.Sel.StateSelect, Name: "state", Value: c.User.State}); err != nil {
			return err
		}
	}

	_, err := c.Human.RobustClick(&human.ClickOptions{Selector: c.Sel.AddressSubmit, Name: "address submit", RequireEnabled: true})

	return err
}

// enterDraw clicks into the draw and handles the optional payment step.
func (c *Controller) enterDraw() error {

	c.Log.Print("entering draw")

	ok, err := c.Human.RobustClick(&human.ClickOptions{Selector: c.Sel.DrawEntryButton, Name: "draw entry", RequireEnabled: true, Stabilize: true})

	if err != nil {
		return err
	}

	if !ok {
		return errors.New("unable to click draw entry")
	}

	c.drv().WaitForLoad(15 * time.Second)

	if c.User.CardNumber != "" && c.drv().Visible(c.Sel.CardNumberInput) {

		cardFills := []struct {
			selector string
			name     string
			value    string
		}{
			{c.Sel.CardNumberInput, "card number", c.User.CardNumber},
			{c.Sel.CardExpiryInput, "card expiry", c.User.CardExpiry},
			{c.Sel.CardCvcInput, "card cvc", c.User.CardCvc},
		}

		for _, f := range cardFills {
			ok, err := c.Human.RobustFill(&human.FillOptions{Selector: f.selector, Name: f.name, Value: f.value})

			if err != nil {
				return err
			}

			if !ok {
				return errors.Errorf("unable to fill %s", f.name)
			}

			c.Human.Pause()
		}

		if _, err := c.Human.RobustClick(&human.ClickOptions{Selector: c.Sel.PaymentSubmit, Name: "payment submit", RequireEnabled: true}); err != nil {
			return err
		}
	}

	return nil
}
