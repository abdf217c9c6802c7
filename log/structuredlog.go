package log

import (
	"bytes"
	"encoding/json"
	"time"
)

// StructuredLog is a machine-readable event line, e.g. a per-hart exit report.
// Elapsed is in microseconds and omitted when zero.
type StructuredLog struct {
	Time    time.Time       `json:"time"`
	Sender  string          `json:"sender_id"`
	MsgType string          `json:"msg_type"`
	MsgJSON json.RawMessage `json:"json_encoded"`
	Elapsed uint32          `json:"elapsed,omitempty"`
}

// MarshalJSON keeps the field order stable so lines can be diffed.
func (l StructuredLog) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	field := func(key string, v any) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		buf.WriteString(`"` + key + `":`)
		buf.Write(b)
		return nil
	}
	msg := l.MsgJSON
	if len(msg) == 0 {
		msg = json.RawMessage("null")
	}
	for _, kv := range []struct {
		key string
		v   any
	}{{"time", l.Time}, {"sender_id", l.Sender}, {"msg_type", l.MsgType}, {"json_encoded", msg}} {
		if err := field(kv.key, kv.v); err != nil {
			return nil, err
		}
	}
	if l.Elapsed != 0 {
		if err := field("elapsed", l.Elapsed); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// NewStructured builds an event. elapsed is in microseconds.
func NewStructured(msgType, sender string, msg any, elapsed int64) (StructuredLog, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return StructuredLog{}, err
	}
	sl := StructuredLog{Time: time.Now().UTC(), Sender: sender, MsgType: msgType, MsgJSON: b}
	if elapsed > 0 {
		sl.Elapsed = uint32(min(elapsed, int64(^uint32(0))))
	}
	return sl, nil
}

// Structured logs msg as one JSON line at debug level under module.
func Structured(module, msgType, sender string, msg any, elapsed int64) {
	if !isModuleEnabled(module) {
		return
	}
	sl, err := NewStructured(msgType, sender, msg, elapsed)
	if err == nil {
		var b []byte
		if b, err = json.Marshal(sl); err == nil {
			Root().Write(LevelDebug, module, string(b))
			return
		}
	}
	Error(module, "structured log: marshal failed", "type", msgType, "err", err)
}
