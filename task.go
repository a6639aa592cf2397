package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/jellydator/ttlcache/v3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jordansinko/sinkgo-fifa/pkg/browser"
	"github.com/jordansinko/sinkgo-fifa/pkg/captcha"
	"github.com/jordansinko/sinkgo-fifa/pkg/datadome"
	"github.com/jordansinko/sinkgo-fifa/pkg/funnel"
	"github.com/jordansinko/sinkgo-fifa/pkg/human"
	"github.com/jordansinko/sinkgo-fifa/pkg/notify"
	"github.com/jordansinko/sinkgo-fifa/pkg/profiles"
)

type Stats struct {
	Attempts int
	Entered  int
	Blocked  int
	Timeouts int
	Failures int
}

// TaskDeps is everything a task needs, wired once in main and shared by all
// task goroutines.
type TaskDeps struct {
	Log       zerolog.Logger
	Users     *UserStore
	Proxies   *ProxyManager
	Profiles  *profiles.Client
	Solver    captcha.SliderSolver
	Datadome  datadome.DatadomeSolver
	NewMail   func() (funnel.MailSource, error)
	Notifier  notify.Notifier
	Stats     chan Stats
	Selectors *funnel.Selectors
	FlowType  string

	// QueuePasses is shared so any task retrying on a proxy can reuse a pass
	// another task earned on it.
	QueuePasses *ttlcache.Cache[string, string]

	MaxAttempts    int
	ProfileRetries int
	Prewarm        bool
}

func rotateLeft(proxies []profiles.Proxy) []profiles.Proxy {

	if len(proxies) < 2 {
		return proxies
	}

	rotated := make([]profiles.Proxy, 0, len(proxies))
	rotated = append(rotated, proxies[1:]...)

	return append(rotated, proxies[0])
}

// fillMissingIdentity generates the optional identity fields the user file
// left blank.
func fillMissingIdentity(user *funnel.User) {

	type Fake struct {
		First    string                `fake:"{firstname}"`
		Last     string                `fake:"{lastname}"`
		Phone    string                `fake:"{phone}"`
		Address  *gofakeit.AddressInfo `fake:"{address}"`
		BirthDay int                   `fake:"{number:1,28}"`
		BirthMon int                   `fake:"{number:1,12}"`
		BirthYr  int                   `fake:"{number:1970,2002}"`
	}

	var f Fake

	gofakeit.Struct(&f)

	if user.First == "" {
		user.First = f.First
	}

	if user.Last == "" {
		user.Last = f.Last
	}

	if user.Phone == "" {
		user.Phone = f.Phone
	}

	if user.BirthDate == "" {
		user.BirthDate = fmt.Sprintf("%02d/%02d/%d", f.BirthDay, f.BirthMon, f.BirthYr)
	}

	if user.Address1 == "" && f.Address != nil {
		user.Address1 = f.Address.Street
		user.City = f.Address.City
		user.State = f.Address.State
		user.Zip = f.Address.Zip
	}

	if user.Country == "" {
		user.Country = "US"
	}
}

// taskHandler builds the per-task goroutine body: lease a user, then run
// the funnel with a bounded retry loop that rotates the proxy binding after
// every burned attempt.
func taskHandler(deps *TaskDeps) func(ctx context.Context, wg *sync.WaitGroup, rest ...interface{}) {

	return func(ctx context.Context, wg *sync.WaitGroup, rest ...interface{}) {
		defer wg.Done()

		id := fmt.Sprintf("%s", ctx.Value(TaskId{}))
		taskIndex, _ := ctx.Value(TaskIndex{}).(int)

		if taskIndex < 1 {
			taskIndex = 1
		}

		baseLog := deps.Log.With().Str("tid", id).Logger()

		baseLog.Print("starting task")

		user, err := deps.Users.Lease(id)

		if err != nil {
			baseLog.Err(err).Send()
			return
		}

		fillMissingIdentity(user)

		taskLog := baseLog.With().Str("email", user.Email).Logger()

		proxies := deps.Proxies.Snapshot()

		result := funnel.ResultNoProxiesAvailable
		attempts := 0

		if len(proxies) > 0 {

			maxAttempts := deps.MaxAttempts

			if maxAttempts == 0 {
				maxAttempts = 3
			}

			result = funnel.ResultMaxRetries

			for attempt := 1; attempt <= maxAttempts; attempt++ {

				attempts = attempt

				select {
				case <-ctx.Done():
					taskLog.Print("task cancelled")
					return
				default:
				}

				deps.Stats <- Stats{Attempts: 1}

				res, retry := runAttempt(deps, taskLog, user, proxies, taskIndex)

				result = res

				if !retry {
					break
				}

				if attempt == maxAttempts {
					result = funnel.ResultMaxRetries
					break
				}

				proxies = rotateLeft(proxies)
				taskLog.Printf("retrying with rotated proxy binding (%d/%d used)", attempt, maxAttempts)
			}
		}

		switch result {
		case funnel.ResultEnteredDraw:
			deps.Stats <- Stats{Entered: 1}
		case funnel.ResultLoginBlocked:
			deps.Stats <- Stats{Blocked: 1}
		case funnel.ResultProxyTimeout, funnel.ResultMaxRetries:
			deps.Stats <- Stats{Timeouts: 1}
		default:
			deps.Stats <- Stats{Failures: 1}
		}

		if deps.Notifier != nil {
			deps.Notifier.Notify(notify.Event{
				Email:    user.Email,
				Result:   result.String(),
				Attempts: attempts,
				At:       time.Now(),
			})
		}

		taskLog.Printf("final result: %s", result)
	}
}

// runAttempt is one full pass: profile creation through terminal result.
// The second return reports whether the failure is worth a rotated retry.
func runAttempt(deps *TaskDeps, log zerolog.Logger, user *funnel.User, proxies []profiles.Proxy, taskIndex int) (funnel.Result, bool) {

	mail, err := deps.NewMail()

	if err != nil {
		log.Err(err).Send()
		return funnel.ResultImapFailure, false
	}

	bound := proxies[(taskIndex-1)%len(proxies)]
	proxyKey := fmt.Sprintf("%s:%s", bound.Host, bound.Port)

	var ddCookie string

	if deps.Prewarm {
		warmProxy := &Proxy{host: bound.Host, port: bound.Port, username: bound.Username, password: bound.Password}

		cookie, err := prewarmSession(deps.Selectors.LandingUrl, warmProxy, deps.Datadome, log)

		if err != nil {
			log.Err(err).Send()

			// rotate the binding before spending a profile on a burned proxy
			if errors.Is(err, human.ErrProxyTimeout) {
				return funnel.ResultProxyTimeout, true
			}
		} else {
			ddCookie = cookie
		}
	}

	profile, err := deps.Profiles.CreateAndStartProfile(proxies, taskIndex, deps.ProfileRetries)

	if err != nil {
		log.Err(err).Send()

		if errors.Is(err, profiles.ErrNoProxiesAvailable) {
			return funnel.ResultNoProxiesAvailable, false
		}

		return funnel.ResultProfileCreationFailed, false
	}

	defer teardownProfile(deps, log, profile.Id)

	drv, err := browser.Connect(profile.WsEndpoint)

	if err != nil {
		log.Err(err).Send()
		return funnel.ResultBrowserInitFailed, false
	}

	defer drv.Close()

	if ddCookie != "" {
		host := deps.Selectors.LandingUrl
		host = strings.TrimPrefix(host, "https://")
		host = strings.TrimPrefix(host, "www")

		if i := strings.Index(host, "/"); i > 0 {
			host = host[:i]
		}

		drv.SetCookie("datadome", ddCookie, host)
	}

	cfg := human.DefaultConfig()
	cfg.EntryUrl = deps.Selectors.EntryUrl

	h := human.New(drv, log, cfg)

	ctrl := funnel.NewController(h, deps.Selectors, user, deps.FlowType, log)
	ctrl.Mail = mail
	ctrl.Store = deps.Users
	ctrl.Solver = deps.Solver
	ctrl.QueuePasses = deps.QueuePasses
	ctrl.ProxyKey = proxyKey

	result, err := ctrl.EntryFlow()

	if err != nil {

		if errors.Is(err, human.ErrProxyTimeout) {
			log.Err(err).Send()

			// burn the binding on the antidetect side too
			if profile.ProxyId != "" {
				if _, rerr := deps.Profiles.RotateProxy(profile.Id, profile.ProxyId); rerr != nil {
					log.Err(rerr).Send()
				}
			}

			return funnel.ResultProxyTimeout, true
		}

		log.Err(err).Send()
	}

	return result, false
}

// teardownProfile stops and deletes the profile with a hard time guard so a
// hung antidetect api cannot wedge the retry loop.
func teardownProfile(deps *TaskDeps, log zerolog.Logger, profileId string) {

	done := make(chan struct{})

	go func() {
		if err := deps.Profiles.StopProfile(profileId); err != nil {
			log.Err(err).Send()
		}

		if err := deps.Profiles.DeleteProfile(profileId); err != nil {
			log.Err(err).Send()
		}

		close(done)
	}()

	select {
	case <-done:
	case <-time.After(15 * time.Second):
		log.Warn().Msg("profile teardown timed out")
	}
}
