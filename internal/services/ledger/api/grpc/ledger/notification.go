package ledger

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/louisbranch/divination/internal/services/ledger/domain/account"
	"github.com/louisbranch/divination/internal/services/ledger/domain/event"
	"google.golang.org/protobuf/types/known/structpb"
)

// Notification field names on the wire.
const (
	FieldSeq       = "seq"
	FieldType      = "type"
	FieldAccount   = "account"
	FieldQuestion  = "question"
	FieldRequestID = "request_id"
	FieldTimestamp = "timestamp"
)

// NotificationStruct encodes a journal event. The question is base64 so
// arbitrary bytes survive the JSON-shaped Struct.
func NotificationStruct(evt event.Event) (*structpb.Struct, error) {
	fields := map[string]any{
		FieldSeq:      float64(evt.Seq),
		FieldType:     string(evt.Type),
		FieldAccount:  evt.Account.String(),
		FieldQuestion: base64.StdEncoding.EncodeToString(evt.Question),
	}
	if evt.RequestID != "" {
		fields[FieldRequestID] = evt.RequestID
	}
	if !evt.Timestamp.IsZero() {
		fields[FieldTimestamp] = evt.Timestamp.UTC().Format(time.RFC3339Nano)
	}
	msg, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode notification %d: %w", evt.Seq, err)
	}
	return msg, nil
}

// EventFromStruct decodes a notification produced by NotificationStruct.
func EventFromStruct(msg *structpb.Struct) (event.Event, error) {
	fields := msg.GetFields()
	var evt event.Event
	evt.Seq = uint64(fields[FieldSeq].GetNumberValue())
	evt.Type = event.Type(fields[FieldType].GetStringValue())

	id, err := account.Parse(fields[FieldAccount].GetStringValue())
	if err != nil {
		return event.Event{}, fmt.Errorf("decode notification %d account: %w", evt.Seq, err)
	}
	evt.Account = id

	question, err := base64.StdEncoding.DecodeString(fields[FieldQuestion].GetStringValue())
	if err != nil {
		return event.Event{}, fmt.Errorf("decode notification %d question: %w", evt.Seq, err)
	}
	evt.Question = question
	evt.RequestID = fields[FieldRequestID].GetStringValue()

	if raw := fields[FieldTimestamp].GetStringValue(); raw != "" {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return event.Event{}, fmt.Errorf("decode notification %d timestamp: %w", evt.Seq, err)
		}
		evt.Timestamp = ts
	}
	return evt, nil
}
