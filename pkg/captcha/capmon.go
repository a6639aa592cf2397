package captcha

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/valyala/fastjson"
)

// CapMon recognizes the gap position through capmonster's complex-image
// task and drags to it.
type CapMon struct {
	Key string
}

func (t *CapMon) requestCoordinate(imageB64 string, pageUrl string) (float64, error) {

	reqJson := map[string]interface{}{
		"clientKey": t.Key,
		"task": map[string]interface{}{
			"type":       "ComplexImageTask",
			"class":      "recognition",
			"websiteURL": pageUrl,
			"imagesBase64": []string{
				imageB64,
			},
			"metadata": map[string]interface{}{
				"Task": "oocl_coordinates",
			},
		},
	}

	reqBody, _ := json.Marshal(reqJson)
	req, _ := http.NewRequest(http.MethodPost, `https://api.capmonster.cloud/createTask`, bytes.NewBuffer(reqBody))

	res, err := http.DefaultClient.Do(req)

	if err != nil {
		return 0, &SolverError{Retryable: false, OriginalError: err}
	}

	body, err := io.ReadAll(res.Body)

	if err != nil {
		return 0, &SolverError{Retryable: true, OriginalError: err}
	}

	resJson, err := fastjson.ParseBytes(body)

	if err != nil {
		return 0, &SolverError{Retryable: true, OriginalError: err}
	}

	taskId := resJson.GetInt("taskId")
	errorId := resJson.GetInt("errorId")

	if errorId != 0 {
		return 0, &SolverError{Retryable: false, OriginalError: fmt.Errorf(`error occured while executing captcha request: %d`, errorId)}
	}

	// Adding bailout (timeout, count, etc)
	for {

		time.Sleep(5 * time.Second)

		reqJson := map[string]interface{}{
			"clientKey": t.Key,
			"taskId":    taskId,
		}

		reqBody, _ := json.Marshal(reqJson)
		req, _ := http.NewRequest(http.MethodPost, `https://api.capmonster.cloud/getTaskResult`, bytes.NewBuffer(reqBody))

		res, err := http.DefaultClient.Do(req)

		if err != nil {
			return 0, &SolverError{Retryable: false, OriginalError: err}
		}

		body, err := io.ReadAll(res.Body)

		if err != nil {
			return 0, &SolverError{Retryable: true, OriginalError: err}
		}

		resJson, err := fastjson.ParseBytes(body)

		if err != nil {
			return 0, &SolverError{Retryable: true, OriginalError: err}
		}

		statusBytes := resJson.GetStringBytes("status")
		errorId := resJson.GetInt("errorId")
		status := string(statusBytes)

		if errorId != 0 {
			return 0, &SolverError{Retryable: false, OriginalError: fmt.Errorf(`error occured while executing captcha request: %d`, errorId)}
		}

		if status != "ready" {
			continue
		}

		coordinates := resJson.GetArray("solution", "answer")

		if len(coordinates) == 0 {
			return 0, &SolverError{Retryable: true, OriginalError: fmt.Errorf("empty solution answer")}
		}

		return coordinates[0].GetFloat64("x"), nil

	}

}

func (t *CapMon) Initialize() error {
	return nil
}

func (t *CapMon) SolveSlider(o *SolveSliderOptions) (bool, error) {

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

	offset := targetX - (piece.CenterX() - bg.X)

	if offset <= 0 {
		return false, nil
	}

	if err := dragHandle(o, offset); err != nil {
		return false, nil
	}

	return verifySolved(o, 8*time.Second), nil
}
