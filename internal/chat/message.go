// Package chat loads exported chat logs (Messenger / Instagram "Download your
// information" JSON) into a single time-ordered message sequence.
package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Message is one chat message as exported. Fields other than sender,
// timestamp and content (reactions, photos, share, ...) are kept in Extra so
// they survive a round trip through the note and JSON writers.
type Message struct {
	SenderName  string
	TimestampMS int64
	Content     *string
	Extra       map[string]any
}

const (
	keySender    = "sender_name"
	keyTimestamp = "timestamp_ms"
	keyContent   = "content"
)

// Text returns the message content, or "" when the message has none.
func (m Message) Text() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}

// StringPtr is a helper for building messages with content.
func StringPtr(s string) *string {
	return &s
}

// MarshalJSON writes the known fields first, then Extra in key order.
func (m Message) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	write := func(key string, val any) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		v, err := json.Marshal(val)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
		return nil
	}

	if err := write(keySender, m.SenderName); err != nil {
		return nil, err
	}
	if err := write(keyTimestamp, m.TimestampMS); err != nil {
		return nil, err
	}
	if m.Content != nil {
		if err := write(keyContent, *m.Content); err != nil {
			return nil, err
		}
	}

	keys := make([]string, 0, len(m.Extra))
	for k := range m.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := write(k, m.Extra[k]); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts any export message object. Numbers in Extra are kept
// as json.Number so they are written back unchanged.
func (m *Message) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	msg, err := fromMap(raw)
	if err != nil {
		return err
	}
	*m = msg
	return nil
}

// fromMap builds a Message from a decoded JSON object.
func fromMap(raw map[string]any) (Message, error) {
	var m Message

	if v, ok := raw[keySender]; ok && v != nil {
		s, ok := v.(string)
		if !ok {
			return m, fmt.Errorf("%s: expected string, got %T", keySender, v)
		}
		m.SenderName = s
	}

	if v, ok := raw[keyTimestamp]; ok && v != nil {
		ts, err := toInt64(v)
		if err != nil {
			return m, fmt.Errorf("%s: %w", keyTimestamp, err)
		}
		m.TimestampMS = ts
	}

	if v, ok := raw[keyContent]; ok && v != nil {
		s, ok := v.(string)
		if !ok {
			return m, fmt.Errorf("%s: expected string, got %T", keyContent, v)
		}
		m.Content = &s
	}

	for k, v := range raw {
		switch k {
		case keySender, keyTimestamp, keyContent:
			continue
		}
		if m.Extra == nil {
			m.Extra = make(map[string]any)
		}
		m.Extra[k] = v
	}

	return m, nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil {
			return 0, err
		}
		return int64(f), nil
	case float64:
		return int64(n), nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}
