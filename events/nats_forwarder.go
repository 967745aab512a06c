package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// SubjectPrefix namespaces every forwarded event
const SubjectPrefix = "time26"

// StreamName is the JetStream stream holding forwarded events
const StreamName = "time26_events"

// Publisher sends raw payloads to a subject
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Forwarder relays bus events to an external message bus as JSON
type Forwarder struct {
	publisher Publisher
}

// NewForwarder creates a forwarder and subscribes it to the given event types
func NewForwarder(bus *Bus, publisher Publisher, eventTypes ...EventType) *Forwarder {
	f := &Forwarder{publisher: publisher}
	for _, t := range eventTypes {
		bus.Subscribe(t, f.handle)
	}
	return f
}

// Subject returns the subject an event type is published to
func Subject(t EventType) string {
	return fmt.Sprintf("%s.%s", SubjectPrefix, t)
}

func (f *Forwarder) handle(ctx context.Context, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.WithError(err).WithField("eventType", event.Type()).Error("Failed to marshal event")
		return
	}

	if err := f.publisher.Publish(ctx, Subject(event.Type()), data); err != nil {
		log.WithError(err).WithField("eventType", event.Type()).Warn("Failed to forward event")
	}
}

// NATSPublisher publishes to JetStream
type NATSPublisher struct {
	nc *nats.Conn
	js nats.JetStreamContext
}

// ConnectNATS connects to NATS and makes sure the event stream exists
func ConnectNATS(servers string) (*NATSPublisher, error) {
	nc, err := nats.Connect(servers,
		nats.Name("time26"),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Error("NATS disconnected with error")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if _, err := js.StreamInfo(StreamName); err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:      StreamName,
			Subjects:  []string{SubjectPrefix + ".>"},
			Retention: nats.LimitsPolicy,
			MaxAge:    7 * 24 * time.Hour,
			Storage:   nats.FileStorage,
			Replicas:  1,
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("failed to create stream %s: %w", StreamName, err)
		}
		log.WithField("stream", StreamName).Info("Created JetStream stream")
	}

	log.WithField("servers", servers).Info("Connected to NATS with JetStream")
	return &NATSPublisher{nc: nc, js: js}, nil
}

// Publish publishes a message to the subject
func (p *NATSPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	if _, err := p.js.Publish(subject, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish message to subject %s: %w", subject, err)
	}
	return nil
}

// Close drains the connection
func (p *NATSPublisher) Close() {
	if p.nc != nil {
		if err := p.nc.Drain(); err != nil {
			log.WithError(err).Warn("Failed to drain NATS connection")
		}
	}
}
