package kafkax

import (
	"strings"

	"github.com/segmentio/kafka-go"
)

// EventMeta is the metadata every booking event carries in headers.
type EventMeta struct {
	EventID   string
	EventType string
}

func ExtractEventMeta(msg kafka.Message) EventMeta {
	id := HeaderValue(msg.Headers, "event_id")
	typ := HeaderValue(msg.Headers, "event_type")
	if id == "" {
		id = string(msg.Key)
	}
	if typ == "" {
		typ = msg.Topic
	}
	return EventMeta{EventID: id, EventType: typ}
}

func HeaderValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
