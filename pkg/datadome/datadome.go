package datadome

// GenerateCookieOptions carries the page context a provider needs to mint a
// fresh datadome cookie for the session.
type GenerateCookieOptions struct {
	Url       string
	UserAgent string
	Cookie    string
	Referer   string
}

type DatadomeSolver interface {
	String() string
	GenerateUserAgent() (string, error)
	GenerateCookie(options *GenerateCookieOptions) (string, error)
}
