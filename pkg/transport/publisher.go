package transport

import (
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// IPublisher publishes pre-serialized payloads to a fixed topic.
type IPublisher interface {
	PublishMessage(payload string) error
	Close()
}

type Publisher struct {
	client   mqtt.Client
	topic    string
	retained bool
}

func NewPublisher(client mqtt.Client, topic string) *Publisher {
	return &Publisher{client: client, topic: topic}
}

// NewRetainedPublisher publishes with the retained flag set, for topics
// that hold last-value configuration.
func NewRetainedPublisher(client mqtt.Client, topic string) *Publisher {
	return &Publisher{client: client, topic: topic, retained: true}
}

func (p *Publisher) PublishMessage(payload string) error {
	token := p.client.Publish(p.topic, qosFor(p.topic), p.retained, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.topic, token.Error())
	}
	return nil
}

func (p *Publisher) Close() {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
		log.Println("mqtt publisher disconnected")
	}
}
