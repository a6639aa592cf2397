// Package profiles talks to the antidetect-browser service: one isolated
// fingerprinted chromium per task, each bound to its own proxy record.
// Any non-200 is a failure; retry policy lives in the flow controller, not
// here. Cleanup calls are best-effort by contract.
package profiles

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/valyala/fastjson"
)

var ErrNoProxiesAvailable = errors.New("no proxies available in the remote pool")

type Proxy struct {
	Id       string
	Host     string
	Port     string
	Username string
	Password string
}

type Fingerprint struct {
	UserAgent    string
	ScreenWidth  int
	ScreenHeight int
}

type Profile struct {
	Id          string
	WsEndpoint  string
	Fingerprint Fingerprint
	ProxyId     string
}

type Client struct {
	Endpoint string
	Key      string
}

func NewClient(endpoint string, key string) *Client {
	return &Client{Endpoint: endpoint, Key: key}
}

func (c *Client) do(method string, path string, payload interface{}) (*fastjson.Value, error) {

	var body io.Reader

	if payload != nil {
		reqBody, _ := json.Marshal(payload)
		body = bytes.NewBuffer(reqBody)
	}

	req, err := http.NewRequest(method, fmt.Sprintf(`%s%s`, c.Endpoint, path), body)

	if err != nil {
		return nil, err
	}

	req.Header.Set("content-type", "application/json")
	req.Header.Set("x-api-key", c.Key)

	res, err := http.DefaultClient.Do(req)

	if err != nil {
		return nil, err
	}

	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)

	if err != nil {
		return nil, err
	}

	if res.StatusCode != http.StatusOK {
		return nil, errors.Errorf("%s %s returned %d: %s", method, path, res.StatusCode, string(resBody))
	}

	if len(resBody) == 0 {
		return nil, nil
	}

	resJson, err := fastjson.ParseBytes(resBody)

	if err != nil {
		return nil, errors.Wrapf(err, "unable to parse %s %s response", method, path)
	}

	return resJson, nil
}

func (c *Client) CreateProxy(p *Proxy) (string, error) {

	payload := map[string]interface{}{
		"name":     fmt.Sprintf(`fifa-%s`, uuid.NewString()),
		"host":     p.Host,
		"port":     p.Port,
		"username": p.Username,
		"password": p.Password,
		"type":     "http",
	}

	resJson, err := c.do(http.MethodPost, `/proxies`, payload)

	if err != nil {
		return "", errors.Wrap(err, "unable to create proxy record")
	}

	return string(resJson.GetStringBytes("id")), nil
}

// CreateAndStartProfile binds proxies[(taskIndex-1) mod len] to a fresh
// profile and starts it. Pool exhaustion is its own error so the task can
// terminate with a distinct code instead of burning retries.
func (c *Client) CreateAndStartProfile(proxies []Proxy, taskIndex int, retries int) (*Profile, error) {

	if len(proxies) == 0 {
		return nil, ErrNoProxiesAvailable
	}

	proxy := &proxies[(taskIndex-1)%len(proxies)]

	if retries < 1 {
		retries = 1
	}

	var lastErr error

	for attempt := 1; attempt <= retries; attempt++ {

		profile, err := c.createAndStartOnce(proxy)

		if err == nil {
			return profile, nil
		}

		lastErr = err
	}

	return nil, lastErr
}

func (c *Client) createAndStartOnce(proxy *Proxy) (*Profile, error) {

	proxyId := proxy.Id

	if proxyId == "" {
		id, err := c.CreateProxy(proxy)

		if err != nil {
			return nil, err
		}

		proxyId = id
	}

	payload := map[string]interface{}{
		"name":    fmt.Sprintf(`fifa-%s`, uuid.NewString()),
		"proxyId": proxyId,
		"os":      "win",
	}

	resJson, err := c.do(http.MethodPost, `/profiles`, payload)

	if err != nil {
		return nil, errors.Wrap(err, "unable to create profile")
	}

	profile := &Profile{
		Id:      string(resJson.GetStringBytes("id")),
		ProxyId: proxyId,
		Fingerprint: Fingerprint{
			UserAgent:    string(resJson.GetStringBytes("fingerprint", "userAgent")),
			ScreenWidth:  resJson.GetInt("fingerprint", "screen", "width"),
			ScreenHeight: resJson.GetInt("fingerprint", "screen", "height"),
		},
	}

	startJson, err := c.do(http.MethodPost, fmt.Sprintf(`/profiles/%s/start`, profile.Id), nil)

	if err != nil {
		// the half-created profile would leak otherwise
		c.DeleteProfile(profile.Id)
		return nil, errors.Wrap(err, "unable to start profile")
	}

	profile.WsEndpoint = string(startJson.GetStringBytes("wsEndpoint"))

	if profile.WsEndpoint == "" {
		c.StopProfile(profile.Id)
		c.DeleteProfile(profile.Id)
		return nil, errors.New("profile started without a ws endpoint")
	}

	return profile, nil
}

func (c *Client) StopProfile(id string) error {
	_, err := c.do(http.MethodPost, fmt.Sprintf(`/profiles/%s/stop`, id), nil)
	return err
}

func (c *Client) DeleteProfile(id string) error {
	_, err := c.do(http.MethodDelete, fmt.Sprintf(`/profiles/%s`, id), nil)
	return err
}

func (c *Client) GetAvailableProxies(excludeId string) ([]*Proxy, error) {

	resJson, err := c.do(http.MethodGet, fmt.Sprintf(`/proxies/available?exclude=%s`, excludeId), nil)

	if err != nil {
		return nil, err
	}

	items := resJson.GetArray("proxies")
	proxies := make([]*Proxy, 0, len(items))

	for _, item := range items {
		proxies = append(proxies, &Proxy{
			Id:       string(item.GetStringBytes("id")),
			Host:     string(item.GetStringBytes("host")),
			Port:     string(item.GetStringBytes("port")),
			Username: string(item.GetStringBytes("username")),
			Password: string(item.GetStringBytes("password")),
		})
	}

	return proxies, nil
}

func (c *Client) UpdateProfileProxy(profileId string, proxyId string) error {

	payload := map[string]interface{}{
		"proxyId": proxyId,
	}

	_, err := c.do(http.MethodPatch, fmt.Sprintf(`/profiles/%s`, profileId), payload)

	return err
}

func (c *Client) DeleteProxy(id string) error {
	_, err := c.do(http.MethodDelete, fmt.Sprintf(`/proxies/%s`, id), nil)
	return err
}

// RotateProxy swaps the profile onto a fresh proxy, then drops the old
// record. The delete is best-effort; the rotation already happened.
func (c *Client) RotateProxy(profileId string, oldProxyId string) (*Proxy, error) {

	proxies, err := c.GetAvailableProxies(oldProxyId)

	if err != nil {
		return nil, err
	}

	if len(proxies) == 0 {
		return nil, ErrNoProxiesAvailable
	}

	next := proxies[0]

	if err := c.UpdateProfileProxy(profileId, next.Id); err != nil {
		return nil, err
	}

	c.DeleteProxy(oldProxyId)

	return next, nil
}
