package funnel

// Selectors carries every site-facing CSS selector and URL the funnel
// touches. The funnel logic never hardcodes a selector; when the site
// redesigns, this is the only thing that changes.
type Selectors struct {
	LandingUrl string
	EntryUrl   string
	AuthHost   string
	QueueHost  string
	AccountUrl string

	EnterDrawButton string

	EmailInput    string
	PasswordInput string
	LoginSubmit   string
	UserNotFound  string

	RegisterLink       string
	FirstNameInput     string
	LastNameInput      string
	BirthDateInput     string
	CountrySelect      string
	CountryOption      string
	AccountExistsError string
	PasswordStep       string
	RegisterPassword   string
	RegisterConfirm    string
	TermsCheckbox      string
	RegisterSubmit     string

	EmailVerificationMarker string
	OtpInput                string
	OtpSubmit               string

	UpdateProfileBanner string
	UpdateProfileSubmit string

	LoginBlockedContainer string

	AddressForm   string
	AddressLine1  string
	AddressLine2  string
	CityInput     string
	ZipInput      string
	PhoneInput    string
	StateSelect   string
	AddressSubmit string

	DrawEntryButton  string
	DrawCancelButton string

	CardNumberInput string
	CardExpiryInput string
	CardCvcInput    string
	PaymentSubmit   string

	CaptchaFrame      string
	CaptchaTrack      string
	CaptchaHandle     string
	CaptchaPiece      string
	CaptchaBackground string

	QueuePassCookie string
}

func DefaultSelectors() *Selectors {
	return &Selectors{
		LandingUrl: `https://www.fifa.com/en/tickets`,
		EntryUrl:   `https://www.fifa.com/en/tickets/draw`,
		AuthHost:   `auth.fifa.com`,
		QueueHost:  `fifa.queue-it.net`,
		AccountUrl: `https://www.fifa.com/en/account`,

		EnterDrawButton: `[data-testid="enter-draw-cta"]`,

		EmailInput:    `input[name="email"]`,
		PasswordInput: `input[name="password"]`,
		LoginSubmit:   `[data-testid="login-submit"]`,
		UserNotFound:  `[data-testid="user-not-found-error"]`,

		RegisterLink:       `[data-testid="register-link"]`,
		FirstNameInput:     `input[name="firstName"]`,
		LastNameInput:      `input[name="lastName"]`,
		BirthDateInput:     `input[name="birthDate"]`,
		CountrySelect:      `select[name="country"]`,
		CountryOption:      `select[name="country"] option[value="%s"]`,
		AccountExistsError: `[data-testid="account-exists-error"]`,
		PasswordStep:       `[data-testid="password-step"]`,
		RegisterPassword:   `input[name="newPassword"]`,
		RegisterConfirm:    `input[name="confirmPassword"]`,
		TermsCheckbox:      `input[name="terms"]`,
		RegisterSubmit:     `[data-testid="register-submit"]`,

		EmailVerificationMarker: `[data-testid="email-verification"]`,
		OtpInput:                `input[name="verificationCode"]`,
		OtpSubmit:               `[data-testid="verify-submit"]`,

		UpdateProfileBanner: `[data-testid="update-profile-banner"]`,
		UpdateProfileSubmit: `[data-testid="update-profile-submit"]`,

		LoginBlockedContainer: `[data-testid="login-blocked"]`,

		AddressForm:   `form[data-testid="address-form"]`,
		AddressLine1:  `input[name="addressLine1"]`,
		AddressLine2:  `input[name="addressLine2"]`,
		CityInput:     `input[name="city"]`,
		ZipInput:      `input[name="postalCode"]`,
		PhoneInput:    `input[name="phone"]`,
		StateSelect:   `select[name="state"]`,
		AddressSubmit: `[data-testid="address-submit"]`,

		DrawEntryButton:  `[data-testid="draw-entry-submit"]`,
		DrawCancelButton: `[data-testid="draw-cancel"]`,

		CardNumberInput: `input[name="cardNumber"]`,
		CardExpiryInput: `input[name="cardExpiry"]`,
		CardCvcInput:    `input[name="cardCvc"]`,
		PaymentSubmit:   `[data-testid="payment-submit"]`,

		CaptchaFrame:      `iframe[src*="captcha-delivery"]`,
		CaptchaTrack:      `.slider-track`,
		CaptchaHandle:     `.slider-handle`,
		CaptchaPiece:      `.slider-piece`,
		CaptchaBackground: `.slider-background`,

		QueuePassCookie: `QueueITAccepted-fifa`,
	}
}
