package egcmodels

import "time"

// InboundMessage is the archived copy of a raw MQTT delivery and what became of it.
// Payload is the delivery verbatim and need not be valid UTF-8.
type InboundMessage struct {
	ID         string    `bson:"_id" json:"id"`
	Topic      string    `bson:"topic" json:"topic"`
	Payload    []byte    `bson:"payload" json:"payload"`
	Route      string    `bson:"route" json:"route"`
	Outcome    string    `bson:"outcome" json:"outcome"`
	Detail     string    `bson:"detail,omitempty" json:"detail,omitempty"`
	ReceivedAt time.Time `bson:"received_at" json:"received_at"`
}
