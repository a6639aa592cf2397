package notify

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
)

// Discord posts a small embed to a webhook. Fire and forget.
type Discord struct {
	Url string
	Log zerolog.Logger
}

func (d *Discord) Notify(event Event) {

	if d.Url == "" {
		return
	}

	color := 15158332

	if event.Result == "ENTERED_DRAW" {
		color = 65300
	}

	reqJson := map[string]interface{}{
		"content": nil,
		"embeds": []map[string]interface{}{
			{
				"title": "FIFA Draw Entry",
				"color": color,
				"fields": []map[string]interface{}{
					{
						"name":  "email",
						"value": event.Email,
					},
					{
						"name":  "result",
						"value": event.Result,
					},
				},
			},
		},
	}

	reqBody, _ := json.Marshal(reqJson)
	req, err := http.NewRequest(http.MethodPost, d.Url, bytes.NewBuffer(reqBody))

	if err != nil {
		d.Log.Err(err).Send()
		return
	}

	req.Header.Set("content-type", "application/json")

	if _, err := http.DefaultClient.Do(req); err != nil {
		d.Log.Err(err).Send()
	}
}
