package funnel

import "github.com/pkg/errors"

// Result is the single terminal outcome code of a task run. Every execution
// path ends in exactly one of these.
type Result int

const (
	ResultUnknownError Result = iota
	ResultEnteredDraw
	ResultLoginBlocked
	ResultImapFailure
	ResultProxyTimeout
	ResultMaxRetries
	ResultNoProxiesAvailable
	ResultProfileCreationFailed
	ResultBrowserInitFailed
)

func (r Result) String() string {
	switch r {
	case ResultEnteredDraw:
		return "ENTERED_DRAW"
	case ResultLoginBlocked:
		return "LOGIN_BLOCKED"
	case ResultImapFailure:
		return "IMAP_FAILURE"
	case ResultProxyTimeout:
		return "PROXY_TIMEOUT"
	case ResultMaxRetries:
		return "MAX_RETRIES"
	case ResultNoProxiesAvailable:
		return "NO_PROXIES_AVAILABLE"
	case ResultProfileCreationFailed:
		return "PROFILE_CREATION_FAILED"
	case ResultBrowserInitFailed:
		return "BROWSER_INIT_FAILED"
	default:
		return "UNKNOWN_ERROR"
	}
}

// Tagged terminal conditions raised inside flow handlers.
var (
	ErrImapFailure  = errors.New("no verification mail arrived within the budget")
	ErrLoginBlocked = errors.New("identity provider refused access")
)
