package events

import (
	"encoding/json"
	"fmt"
)

// Type discriminator values for JSON serialization.
const (
	typeDeliveryReceived = "delivery_received"
	typePushClassified   = "push_classified"
	typeSnapshotRecorded = "snapshot_recorded"
	typeCommentPosted    = "comment_posted"
	typeStatusesPosted   = "statuses_posted"
	typeDeliverySkipped  = "delivery_skipped"
	typeDeliveryError    = "delivery_error"
	typeDeliveryDone     = "delivery_done"
)

// envelope wraps an event with a type discriminator for JSON serialization.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// MarshalEvent serializes an Event to JSON with a "type" discriminator field.
func MarshalEvent(e Event) ([]byte, error) {
	var typeName string
	switch e.(type) {
	case DeliveryReceived:
		typeName = typeDeliveryReceived
	case PushClassified:
		typeName = typePushClassified
	case SnapshotRecorded:
		typeName = typeSnapshotRecorded
	case CommentPosted:
		typeName = typeCommentPosted
	case StatusesPosted:
		typeName = typeStatusesPosted
	case DeliverySkipped:
		typeName = typeDeliverySkipped
	case DeliveryError:
		typeName = typeDeliveryError
	case DeliveryDone:
		typeName = typeDeliveryDone
	default:
		return nil, fmt.Errorf("unknown event type: %T", e)
	}

	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}

	env := envelope{Type: typeName, Data: data}
	return json.Marshal(env)
}

// UnmarshalEvent deserializes an Event from JSON using the "type"
// discriminator field.
func UnmarshalEvent(b []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, err
	}

	if env.Type == "" {
		return nil, fmt.Errorf("missing event type field")
	}

	switch env.Type {
	case typeDeliveryReceived:
		var e DeliveryReceived
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case typePushClassified:
		var e PushClassified
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case typeSnapshotRecorded:
		var e SnapshotRecorded
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case typeCommentPosted:
		var e CommentPosted
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case typeStatusesPosted:
		var e StatusesPosted
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case typeDeliverySkipped:
		var e DeliverySkipped
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case typeDeliveryError:
		var e DeliveryError
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case typeDeliveryDone:
		var e DeliveryDone
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown event type: %q", env.Type)
	}
}
