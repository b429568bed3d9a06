package broker

import (
	"strings"

	"github.com/go-zeromq/zmq4"
	"github.com/rs/zerolog"

	"github.com/chirpnet/chirp/pkg/log"
	"github.com/chirpnet/chirp/pkg/metrics"
	"github.com/chirpnet/chirp/pkg/types"
)

// publication is one message bound for the notification bus.
type publication struct {
	topic   string
	payload string
}

// Publisher serializes writes to the PUB socket. Control handlers hand
// publications to a buffered channel and a single goroutine drains it,
// so fan-out never interleaves frames from concurrent callers. Delivery
// downstream is at-most-once; subscribers that miss a publish do not get
// a resend.
type Publisher struct {
	pub    zmq4.Socket
	logger zerolog.Logger

	pubCh  chan publication
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewPublisher wraps a bound PUB socket.
func NewPublisher(pub zmq4.Socket) *Publisher {
	return &Publisher{
		pub:    pub,
		logger: log.WithComponent("publisher"),
		pubCh:  make(chan publication, 100), // Buffer up to 100 publications
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the publishing loop.
func (p *Publisher) Start() {
	go p.run()
}

// Stop stops the publishing loop.
func (p *Publisher) Stop() {
	close(p.stopCh)
	<-p.doneCh
}

// Publish enqueues one "<topic> <payload>" frame for the bus.
func (p *Publisher) Publish(topic, payload string) {
	select {
	case p.pubCh <- publication{topic: topic, payload: payload}:
	case <-p.stopCh:
	}
}

func (p *Publisher) run() {
	defer close(p.doneCh)

	for {
		select {
		case pub := <-p.pubCh:
			frame := pub.topic + " " + pub.payload
			if err := p.pub.Send(zmq4.NewMsgString(frame)); err != nil {
				p.logger.Error().Err(err).Str("topic", pub.topic).Msg("Failed to publish")
				continue
			}
			metrics.PublicationsTotal.WithLabelValues(kindOf(pub.topic)).Inc()
			p.logger.Debug().Str("topic", pub.topic).Msg("Published")
		case <-p.stopCh:
			return
		}
	}
}

// kindOf collapses per-user topics into one metric label.
func kindOf(topic string) string {
	if strings.HasPrefix(topic, types.NotifyTopicPrefix) {
		return "user_notification"
	}
	return topic
}
