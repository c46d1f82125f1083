// Package codec implements the tagged-union wire schema for messages
// exchanged between the SDK and a connected viewer: handshake, log
// delivery, pairing, ping/pong, and remote commands. Every message
// round-trips through Encode/Decode; unknown message types are a hard
// decode error so a future viewer talking a newer protocol cannot
// silently desync an older SDK (and vice versa).
package codec

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/porby-sdk/porby/pkg/model"
)

// Type is the wire discriminator carried by every message's "type"
// field.
type Type string

const (
	TypeHandshake       Type = "handshake"
	TypeLog             Type = "log"
	TypeLogBatch        Type = "logBatch"
	TypeLogReplay       Type = "logReplay"
	TypePing            Type = "ping"
	TypePong            Type = "pong"
	TypeCommand         Type = "command"
	TypePairingRequest  Type = "pairingRequest"
	TypePairingResponse Type = "pairingResponse"
)

// CommandKind tags the concrete command carried by a Command message.
type CommandKind string

const (
	CommandSetLogLevel                CommandKind = "setLogLevel"
	CommandSetCategoryLevel           CommandKind = "setCategoryLevel"
	CommandSetEnabled                 CommandKind = "setEnabled"
	CommandClearLogs                  CommandKind = "clearLogs"
	CommandRequestPerformanceSnapshot CommandKind = "requestPerformanceSnapshot"
)

// Command is the payload of a "command" message. Only the fields
// relevant to Kind are populated.
type Command struct {
	Kind     CommandKind `json:"kind"`
	Level    string      `json:"level,omitempty"`
	Category string      `json:"category,omitempty"`
	Enabled  bool        `json:"enabled,omitempty"`
}

// Message is the decoded form of any wire message. Exactly the fields
// relevant to Type are meaningful; Encode/Decode keep this invariant.
type Message struct {
	Type Type

	Handshake *model.Handshake
	Entry     *wireEntry
	Batch     []wireEntry

	// pairingRequest
	PairingCode string
	// pairingResponse
	PairingAccepted bool
	PairingReason   string

	// command
	Command *Command
}

// wireEntry is the on-wire representation of a model.LogEntry: ISO-8601
// timestamp with fractional seconds, everything else following the
// in-memory shape closely enough that conversion is mechanical.
type wireEntry struct {
	ID        string          `json:"id"`
	Timestamp string          `json:"timestamp"`
	Level     string          `json:"level"`
	Category  string          `json:"category"`
	Message   string          `json:"message"`
	File      string          `json:"file,omitempty"`
	Function  string          `json:"function,omitempty"`
	Line      int             `json:"line,omitempty"`
	Metadata  map[string]any  `json:"metadata,omitempty"`
	Extra     json.RawMessage `json:"extra,omitempty"`
}

const isoMilli = "2006-01-02T15:04:05.000Z07:00"

func toWireEntry(e model.LogEntry) wireEntry {
	w := wireEntry{
		ID:        e.ID,
		Timestamp: e.Timestamp.UTC().Format(isoMilli),
		Level:     e.Level.String(),
		Category:  e.Category.String(),
		Message:   e.Message,
		File:      e.Source.File,
		Function:  e.Source.Function,
		Line:      e.Source.Line,
	}
	if e.Metadata != nil {
		w.Metadata = make(map[string]any, len(e.Metadata))
		for k, v := range e.Metadata {
			w.Metadata[k] = rawMetadataValue(v)
		}
	}
	if e.Extra != nil {
		if b, err := json.Marshal(e.Extra); err == nil {
			w.Extra = b
		}
	}
	return w
}

func rawMetadataValue(v model.MetadataValue) any {
	switch v.Kind {
	case model.MetadataString:
		return v.Str
	case model.MetadataInt64:
		return v.Int
	case model.MetadataDouble:
		return v.Dbl
	case model.MetadataBool:
		return v.Bool
	default:
		return nil
	}
}

func fromWireEntry(w wireEntry) (model.LogEntry, error) {
	ts, err := time.Parse(isoMilli, w.Timestamp)
	if err != nil {
		// Be lenient about the fractional-second precision a peer sends.
		ts, err = time.Parse(time.RFC3339Nano, w.Timestamp)
		if err != nil {
			return model.LogEntry{}, fmt.Errorf("codec: invalid timestamp %q: %w", w.Timestamp, err)
		}
	}

	e := model.LogEntry{
		ID:        w.ID,
		Timestamp: ts,
		Level:     model.ParseLogLevel(w.Level),
		Category:  model.NewCategory(w.Category),
		Message:   w.Message,
		Source:    model.SourceSite{File: w.File, Function: w.Function, Line: w.Line},
	}
	if w.Metadata != nil {
		e.Metadata = make(model.Metadata, len(w.Metadata))
		for k, v := range w.Metadata {
			e.Metadata[k] = metadataValueFromAny(v)
		}
	}
	if len(w.Extra) > 0 {
		var extra model.LogExtra
		if err := json.Unmarshal(w.Extra, &extra); err != nil {
			return model.LogEntry{}, fmt.Errorf("codec: invalid extra: %w", err)
		}
		e.Extra = &extra
	}
	return e, nil
}

func metadataValueFromAny(v any) model.MetadataValue {
	switch t := v.(type) {
	case string:
		return model.StringValue(t)
	case bool:
		return model.BoolValue(t)
	case float64:
		if t == float64(int64(t)) {
			return model.Int64Value(int64(t))
		}
		return model.DoubleValue(t)
	default:
		return model.MetadataValue{}
	}
}
