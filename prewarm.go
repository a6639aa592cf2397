package main

import (
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	utls "github.com/refraction-networking/utls"
	http "github.com/saucesteals/fhttp"
	cookiejar "github.com/saucesteals/fhttp/cookiejar"
	http2 "github.com/saucesteals/fhttp/http2"

	"github.com/jordansinko/sinkgo-fifa/pkg/datadome"
	"github.com/jordansinko/sinkgo-fifa/pkg/human"
)

const prewarmUserAgent = `Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/110.0.0.0 Safari/537.36`

// prewarmSession probes the landing page through the proxy with a
// Chrome-shaped TLS fingerprint before the real browser ever connects. If
// the edge answers with a datadome interstitial, a fresh cookie is minted
// so the browser session starts already cleared. A wall that cannot be
// cleared reads as a burned proxy so the caller rotates before spending a
// profile on it.
func prewarmSession(pageUrl string, p *Proxy, solver datadome.DatadomeSolver, log zerolog.Logger) (string, error) {

	cj, _ := cookiejar.New(nil)

	t1 := &http.Transport{Proxy: http.ProxyURL(p.Url()), GetTlsClientHelloSpec: func() *utls.ClientHelloSpec {
		spec, _ := utls.UTLSIdToSpec(utls.HelloChrome_106_Shuffle)
		return &spec
	}}

	t2, _ := http2.ConfigureTransports(t1)

	t2.Settings = []http2.Setting{
		{ID: http2.SettingHeaderTableSize, Val: 65536},
		{ID: http2.SettingEnablePush, Val: 0},
		{ID: http2.SettingMaxConcurrentStreams, Val: 1000},
		{ID: http2.SettingInitialWindowSize, Val: 6291456},
		{ID: http2.SettingMaxHeaderListSize, Val: 262144},
	}

	t2.MaxHeaderListSize = 262144
	t2.InitialWindowSize = 6291456
	t2.HeaderTableSize = 65536

	client := &http.Client{Transport: t1, Jar: cj, Timeout: 30 * time.Second, CheckRedirect: func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}}

	req, err := http.NewRequest(http.MethodGet, pageUrl, nil)

	if err != nil {
		return "", err
	}

	req.Header = http.Header{
		`sec-ch-ua`:                 {`"Chromium";v="110", "Not A(Brand";v="24", "Google Chrome";v="110"`},
		`sec-ch-ua-mobile`:          {`?0`},
		`sec-ch-ua-platform`:        {`"Windows"`},
		`upgrade-insecure-requests`: {`1`},
		`user-agent`:                {prewarmUserAgent},
		`accept`:                    {`text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7`},
		`sec-fetch-site`:            {`none`},
		`sec-fetch-mode`:            {`navigate`},
		`sec-fetch-dest`:            {`document`},
		`accept-encoding`:           {`gzip, deflate, br`},
		`accept-language`:           {`en-US,en;q=0.9`},
		http.HeaderOrderKey: {
			`sec-ch-ua`,
			`sec-ch-ua-mobile`,
			`sec-ch-ua-platform`,
			`upgrade-insecure-requests`,
			`user-agent`,
			`accept`,
			`sec-fetch-site`,
			`sec-fetch-mode`,
			`sec-fetch-dest`,
			`accept-encoding`,
			`accept-language`,
			`cookie`,
		},
		http.PHeaderOrderKey: {
			`:method`,
			`:authority`,
			`:scheme`,
			`:path`,
		},
	}

	res, err := client.Do(req)

	if err != nil {
		return "", err
	}

	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)

	if err != nil {
		return "", err
	}

	blocked := res.StatusCode == 403 || strings.Contains(string(body), "captcha-delivery.com") || strings.Contains(string(body), "geo.captcha-delivery")

	if !blocked {
		log.Debug().Int("status", res.StatusCode).Msg("prewarm clean")
		return "", nil
	}

	if solver == nil {
		return "", errors.Wrap(human.ErrProxyTimeout, "prewarm hit a block wall and no datadome solver is configured")
	}

	var priorCookie string

	for _, c := range res.Cookies() {
		if c.Name == "datadome" {
			priorCookie = c.Value
		}
	}

	cookie, err := solver.GenerateCookie(&datadome.GenerateCookieOptions{
		Url:       pageUrl,
		UserAgent: prewarmUserAgent,
		Cookie:    priorCookie,
		Referer:   pageUrl,
	})

	if err != nil {
		return "", errors.Wrap(human.ErrProxyTimeout, err.Error())
	}

	log.Print("prewarm minted a fresh datadome cookie")

	return cookie, nil
}
