package session

import (
	"encoding/json"
	"fmt"
	"slices"
)

// FlashKey is the reserved session key holding the flash queue.
const FlashKey = "_flashes"

// DefaultCategory is used when a message is flashed without a category.
const DefaultCategory = "message"

// FlashMessage is one queued notice. It serializes as a two-element JSON
// array [category, message].
type FlashMessage struct {
	Category string
	Message  string
}

// MarshalJSON encodes the message as [category, message].
func (m FlashMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{m.Category, m.Message})
}

// UnmarshalJSON decodes a [category, message] pair.
func (m *FlashMessage) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("flash message: want [category, message], got %d elements", len(pair))
	}
	m.Category, m.Message = pair[0], pair[1]
	return nil
}

// Flash appends a message to the queue, creating it if absent.
// An empty category becomes DefaultCategory.
func Flash(v Values, message, category string) {
	if category == "" {
		category = DefaultCategory
	}
	queue := Flashes(v)
	queue = append(queue, FlashMessage{Category: category, Message: message})
	v[FlashKey] = queue
}

// Flashes returns the queued messages without consuming them.
// A queue that cannot be read is treated as empty.
func Flashes(v Values) []FlashMessage {
	switch raw := v[FlashKey].(type) {
	case nil:
		return nil
	case []FlashMessage:
		return slices.Clone(raw)
	default:
		// Decoded from a cookie: []any of []any pairs.
		data, err := json.Marshal(raw)
		if err != nil {
			return nil
		}
		var queue []FlashMessage
		if err := json.Unmarshal(data, &queue); err != nil {
			return nil
		}
		return queue
	}
}

// TakeFlashes consumes queued messages.
//
// With no categories the whole queue is drained. Otherwise the queue is
// partitioned: messages whose category is listed are returned and removed,
// the rest stay queued in their original order.
func TakeFlashes(v Values, categories ...string) []FlashMessage {
	queue := Flashes(v)
	if len(categories) == 0 {
		delete(v, FlashKey)
		return queue
	}

	var matched, retained []FlashMessage
	for _, m := range queue {
		if slices.Contains(categories, m.Category) {
			matched = append(matched, m)
		} else {
			retained = append(retained, m)
		}
	}

	if len(retained) == 0 {
		delete(v, FlashKey)
	} else {
		v[FlashKey] = retained
	}
	return matched
}

// Messages strips categories from a list of flash messages.
func Messages(msgs []FlashMessage) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Message)
	}
	return out
}
