package notify

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Amqp publishes task outcomes to a queue so downstream tooling (entry
// trackers, dashboards) can consume them.
type Amqp struct {
	Queue string
	Log   zerolog.Logger

	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAmqp(url string, queue string, log zerolog.Logger) (*Amqp, error) {

	conn, err := amqp.Dial(url)

	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()

	if err != nil {
		conn.Close()
		return nil, err
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &Amqp{Queue: queue, Log: log, conn: conn, ch: ch}, nil
}

func (a *Amqp) Notify(event Event) {

	body, err := json.Marshal(event)

	if err != nil {
		a.Log.Err(err).Send()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = a.ch.PublishWithContext(ctx, "", a.Queue, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})

	if err != nil {
		a.Log.Err(err).Send()
	}
}

func (a *Amqp) Close() {

	if a.ch != nil {
		a.ch.Close()
	}

	if a.conn != nil {
		a.conn.Close()
	}
}
