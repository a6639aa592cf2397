package captcha

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"io"
)

// TwoCaptcha submits the puzzle background through the coordinates endpoint
// and drags to the returned x. Used when the heuristic chain keeps missing.
type TwoCaptcha struct {
	Key string
}

var baseUrl = `http://2captcha.com`

var coordinatePattern = regexp.MustCompile(`x=(\d+)`)

func (t *TwoCaptcha) requestCoordinate(imageB64 string, pageUrl string) (float64, error) {

	form := url.Values{}
	form.Add("key", t.Key)
	form.Add("method", "base64")
	form.Add("coordinatescaptcha", "1")
	form.Add("body", imageB64)
	form.Add("pageurl", pageUrl)
	form.Add("textinstructions", "Click the gap the puzzle piece fits into")

	req, _ := http.NewRequest(http.MethodPost, fmt.Sprintf(`%s/in.php`, baseUrl), strings.NewReader(form.Encode()))
	req.Header.Set("content-type", "application/x-www-form-urlencoded")

	res, err := http.DefaultClient.Do(req)

	if err != nil {
		return 0, &SolverError{Retryable: false, OriginalError: err}
	}

	body, err := io.ReadAll(res.Body)

	if err != nil {
		return 0, &SolverError{Retryable: true, OriginalError: err}
	}

	text := string(body)
	parts := strings.Split(text, `|`)
	status := parts[0]

	if status != "OK" {
		return 0, &SolverError{Retryable: false, OriginalError: fmt.Errorf(`error occured while executing captcha request: %s`, status)}
	}

	requestId := parts[1]

	// Adding bailout (timeout, count, etc)
	for {

		time.Sleep(15 * time.Second)

		resUrl := fmt.Sprintf(`%s/res.php?key=%s&action=get&id=%s`, baseUrl, t.Key, requestId)
		res, err := http.Get(resUrl)

		if err != nil {
			return 0, &SolverError{Retryable: true, OriginalError: err}
		}

		body, err := io.ReadAll(res.Body)

		if err != nil {
			return 0, &SolverError{Retryable: true, OriginalError: err}
		}

		text := string(body)
		parts := strings.Split(text, `|`)
		status := parts[0]

		if status == "CAPCHA_NOT_READY" {
			continue
		}

		if status != "OK" {
			return 0, &SolverError{Retryable: true, OriginalError: fmt.Errorf(`error occured while executing captcha request: %s`, status)}
		}

		matches := coordinatePattern.FindStringSubmatch(parts[1])

		if len(matches) != 2 {
			return 0, &SolverError{Retryable: true, OriginalError: fmt.Errorf(`unable to parse coordinates: %s`, parts[1])}
		}

		x, err := strconv.ParseFloat(matches[1], 64)

		if err != nil {
			return 0, &SolverError{Retryable: true, OriginalError: err}
		}

		return x, nil

	}

}

func (t *TwoCaptcha) Initialize() error {
	return nil
}

func (t *TwoCaptcha) SolveSlider(o *SolveSliderOptions) (bool, error) {

	imageB64, err := extractImage(o, o.BackgroundSelector)

	if err != nil {
		return false, err
	}

	targetX, err := t.requestCoordinate(imageB64, o.PageUrl)

	if err != nil {
		return false, err
	}

	piece, ok := o.Drv.BoundingBox(o.PieceSelector)

	if !ok {
		return false, nil
	}

	bg, ok := o.Drv.BoundingBox(o.BackgroundSelector)

	if !ok {
		return false, nil
	}

	// the provider answers in background-image coordinates
	offset := targetX - (piece.CenterX() - bg.X)

	if offset <= 0 {
		return false, nil
	}

	if err := dragHandle(o, offset); err != nil {
		return false, nil
	}

	return verifySolved(o, 8*time.Second), nil
}
