package mq

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/rabbitmq/amqp091-go"
)

// TraceHeader carries the trace id across the broker.
const TraceHeader = "x-trace-id"

// Message is one delivery handed to a batch handler.
type Message struct {
	ID          string
	RoutingKey  string
	Body        json.RawMessage
	Redelivered bool
	TraceID     string
}

func messageFromDelivery(d amqp091.Delivery) Message {
	id := d.MessageId
	if id == "" {
		id = contentID(d.Body)
	}
	traceID, _ := d.Headers[TraceHeader].(string)

	return Message{
		ID:          id,
		RoutingKey:  d.RoutingKey,
		Body:        json.RawMessage(d.Body),
		Redelivered: d.Redelivered,
		TraceID:     traceID,
	}
}

// contentID derives a stable id for messages published without a MessageId.
func contentID(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:16])
}
