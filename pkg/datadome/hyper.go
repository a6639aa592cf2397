package datadome

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"
)

type Hyper struct {
	Authentication string

	userAgent string
	requests  int
}

func (f *Hyper) String() string {
	return "Hyper"
}

func (f *Hyper) GenerateUserAgent() (data string, err error) {
	ua := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/107.0.0.0 Safari/537.36"
	f.userAgent = ua
	return ua, nil
}

func (f *Hyper) GenerateCookie(options *GenerateCookieOptions) (data string, err error) {
	f.requests = f.requests + 1

	reqBody := fmt.Sprintf(`{"pageUrl":"%s","userAgent":"%s","cookie":"%s","referer":"%s","version":"2"}`, options.Url, options.UserAgent, options.Cookie, options.Referer)
	req, err := http.NewRequest(http.MethodPost, "https://api.justhyped.dev/datadome", strings.NewReader(reqBody))

	if err != nil {
		return "", err
	}

	req.Header.Add("content-type", "application/json")
	req.Header.Add("x-api-key", f.Authentication)

	type Response struct {
		Cookie string `json:"payload"`
	}

	res, err := http.DefaultClient.Do(req)

	if err != nil {
		return "", err
	}

	defer res.Body.Close()
	resBody, err := ioutil.ReadAll(res.Body)

	if err != nil {
		return "", err
	}

	var response Response

	json.Unmarshal(resBody, &response)

	return response.Cookie, nil

}
