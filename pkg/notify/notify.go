package notify

import "time"

// Event is one finished task outcome worth telling someone about.
type Event struct {
	Email    string    `json:"email"`
	Result   string    `json:"result"`
	Attempts int       `json:"attempts"`
	Proxy    string    `json:"proxy,omitempty"`
	At       time.Time `json:"at"`
}

// Notifier sinks are best-effort; a failed delivery never fails the task.
type Notifier interface {
	Notify(event Event)
}

// Multi fans one event out to every configured sink.
type Multi []Notifier

func (m Multi) Notify(event Event) {
	for _, n := range m {
		n.Notify(event)
	}
}
