package notify

import (
	"log"
	"time"

	"github.com/eogh234/srt-reservation/pkg/rabbitmq"
)

// AMQP mirrors session messages onto the bookings exchange so other
// services can follow a run without polling the journal. Like every sink
// it is best effort.
type AMQP struct {
	pub       *rabbitmq.Publisher
	sessionID string
}

func NewAMQP(pub *rabbitmq.Publisher, sessionID string) *AMQP {
	return &AMQP{pub: pub, sessionID: sessionID}
}

func (a *AMQP) Publish(text string) {
	if a.pub == nil {
		return
	}
	evt := rabbitmq.BookingEvent{
		SessionID: a.sessionID,
		Text:      text,
		At:        time.Now(),
	}
	if err := a.pub.Publish("booking.progress", evt); err != nil {
		log.Printf("[Notify] amqp publish failed: %v", err)
	}
}
