package notify

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type recordingSink struct {
	events []Event
}

func (r *recordingSink) Notify(event Event) {
	r.events = append(r.events, event)
}

func TestMultiFansOutToEverySink(t *testing.T) {

	a := &recordingSink{}
	b := &recordingSink{}

	m := Multi{a, b}

	m.Notify(Event{Email: "a@b.io", Result: "ENTERED_DRAW", At: time.Now()})

	if len(a.events) != 1 || len(b.events) != 1 {
		t.Fatalf("fan-out reached %d/%d sinks", len(a.events), len(b.events))
	}

	if a.events[0].Email != "a@b.io" {
		t.Fatalf("event mangled: %+v", a.events[0])
	}
}

func TestDiscordPostsEmbedWithOutcomeFields(t *testing.T) {

	var body []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	d := &Discord{Url: srv.URL, Log: zerolog.Nop()}

	d.Notify(Event{Email: "a@b.io", Result: "ENTERED_DRAW"})

	var payload struct {
		Embeds []struct {
			Title  string `json:"title"`
			Color  int    `json:"color"`
			Fields []struct {
				Name  string `json:"name"`
				Value string `json:"value"`
			} `json:"fields"`
		} `json:"embeds"`
	}

	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("webhook body is not json: %v", err)
	}

	if len(payload.Embeds) != 1 {
		t.Fatalf("expected one embed, got %d", len(payload.Embeds))
	}

	embed := payload.Embeds[0]

	if embed.Color != 65300 {
		t.Fatalf("entered-draw embed must be green, got color %d", embed.Color)
	}

	got := map[string]string{}

	for _, f := range embed.Fields {
		got[f.Name] = f.Value
	}

	if got["email"] != "a@b.io" || got["result"] != "ENTERED_DRAW" {
		t.Fatalf("embed fields: %v", got)
	}
}
