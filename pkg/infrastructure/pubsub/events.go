package pubsub

import (
	"encoding/json"
	"fmt"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// NewCloudEvent creates a standardized CloudEvent v1.0
func NewCloudEvent(source, eventType string, data interface{}) (cloudevents.Event, error) {
	e := cloudevents.NewEvent()
	e.SetID(uuid.NewString())
	e.SetSpecVersion("1.0")
	e.SetType(eventType)
	e.SetSource(source)

	if err := e.SetData(cloudevents.ApplicationJSON, data); err != nil {
		return e, err
	}

	return e, nil
}

// EventTypeMessagePublished is the type of CloudEvents delivered by a
// Pub/Sub trigger.
const EventTypeMessagePublished = "google.cloud.pubsub.topic.v1.messagePublished"

// PushEnvelope is the data of a Pub/Sub-triggered CloudEvent.
type PushEnvelope struct {
	Message struct {
		Data       []byte            `json:"data"`
		Attributes map[string]string `json:"attributes"`
		MessageID  string            `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// UnwrapMessage returns the CloudEvent carried in the Pub/Sub message of e, as
// published by PubSubAdapter.
func UnwrapMessage(e cloudevents.Event) (cloudevents.Event, error) {
	var env PushEnvelope
	if err := e.DataAs(&env); err != nil {
		return cloudevents.Event{}, fmt.Errorf("decode pubsub envelope: %w", err)
	}
	var inner cloudevents.Event
	if err := json.Unmarshal(env.Message.Data, &inner); err != nil {
		return cloudevents.Event{}, fmt.Errorf("decode cloudevent: %w", err)
	}
	return inner, nil
}
