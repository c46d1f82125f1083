package codec

import (
	"encoding/json"
	"fmt"

	"github.com/porby-sdk/porby/pkg/model"
)

// wireEnvelope is the on-wire shape every message decodes from and
// encodes to: a type discriminator plus the per-variant fields that
// apply to it. Fields left zero for a given Type are simply omitted.
type wireEnvelope struct {
	Type Type `json:"type"`

	Handshake *wireHandshake `json:"handshake,omitempty"`

	Log    *wireEntry  `json:"log,omitempty"`
	Batch  []wireEntry `json:"batch,omitempty"`
	Replay []wireEntry `json:"replay,omitempty"`

	Code     string `json:"code,omitempty"`
	Accepted bool   `json:"accepted,omitempty"`
	Reason   string `json:"reason,omitempty"`

	Command *Command `json:"command,omitempty"`
}

type wireHandshake struct {
	ProtocolVersion uint32   `json:"protocolVersion"`
	SDKVersion      string   `json:"sdkVersion"`
	DeviceName      string   `json:"deviceName"`
	DeviceModel     string   `json:"deviceModel"`
	OSName          string   `json:"osName"`
	OSVersion       string   `json:"osVersion"`
	AppName         string   `json:"appName"`
	AppVersion      string   `json:"appVersion"`
	AppBuild        string   `json:"appBuild"`
	PairingRequired bool     `json:"pairingRequired"`
	Capabilities    []string `json:"capabilities,omitempty"`
}

// Encode serializes a Message to its on-wire JSON representation.
func Encode(m Message) ([]byte, error) {
	env := wireEnvelope{Type: m.Type}

	switch m.Type {
	case TypeHandshake:
		if m.Handshake == nil {
			return nil, fmt.Errorf("codec: handshake message missing Handshake payload")
		}
		h := m.Handshake
		env.Handshake = &wireHandshake{
			ProtocolVersion: h.ProtocolVersion,
			SDKVersion:      h.SDKVersion,
			DeviceName:      h.Device.Name,
			DeviceModel:     h.Device.Model,
			OSName:          h.Device.OSName,
			OSVersion:       h.Device.OSVer,
			AppName:         h.App.Name,
			AppVersion:      h.App.Version,
			AppBuild:        h.App.Build,
			PairingRequired: h.PairingRequired,
			Capabilities:    h.Capabilities,
		}
	case TypeLog:
		if m.Entry == nil {
			return nil, fmt.Errorf("codec: log message missing Entry payload")
		}
		env.Log = m.Entry
	case TypeLogBatch:
		env.Batch = m.Batch
	case TypeLogReplay:
		env.Replay = m.Batch
	case TypePing, TypePong:
		// no payload
	case TypePairingRequest:
		env.Code = m.PairingCode
	case TypePairingResponse:
		env.Accepted = m.PairingAccepted
		env.Reason = m.PairingReason
	case TypeCommand:
		if m.Command == nil {
			return nil, fmt.Errorf("codec: command message missing Command payload")
		}
		env.Command = m.Command
	default:
		return nil, fmt.Errorf("codec: unknown message type %q", m.Type)
	}

	return json.Marshal(env)
}

// Decode parses a wire frame into a Message. An unrecognized "type"
// value is a hard error, per spec §4.11 — the connection is cancelled
// by the caller, not the rest of the transport.
func Decode(b []byte) (Message, error) {
	var env wireEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Message{}, fmt.Errorf("codec: malformed message: %w", err)
	}

	switch env.Type {
	case TypeHandshake:
		if env.Handshake == nil {
			return Message{}, fmt.Errorf("codec: handshake message missing payload")
		}
		h := env.Handshake
		return Message{
			Type: TypeHandshake,
			Handshake: &model.Handshake{
				ProtocolVersion: h.ProtocolVersion,
				SDKVersion:      h.SDKVersion,
				Device: model.DeviceInfo{
					Name:   h.DeviceName,
					Model:  h.DeviceModel,
					OSName: h.OSName,
					OSVer:  h.OSVersion,
				},
				App: model.AppInfo{
					Name:    h.AppName,
					Version: h.AppVersion,
					Build:   h.AppBuild,
				},
				PairingRequired: h.PairingRequired,
				Capabilities:    h.Capabilities,
			},
		}, nil
	case TypeLog:
		if env.Log == nil {
			return Message{}, fmt.Errorf("codec: log message missing payload")
		}
		return Message{Type: TypeLog, Entry: env.Log}, nil
	case TypeLogBatch:
		return Message{Type: TypeLogBatch, Batch: env.Batch}, nil
	case TypeLogReplay:
		return Message{Type: TypeLogReplay, Batch: env.Replay}, nil
	case TypePing:
		return Message{Type: TypePing}, nil
	case TypePong:
		return Message{Type: TypePong}, nil
	case TypePairingRequest:
		return Message{Type: TypePairingRequest, PairingCode: env.Code}, nil
	case TypePairingResponse:
		return Message{Type: TypePairingResponse, PairingAccepted: env.Accepted, PairingReason: env.Reason}, nil
	case TypeCommand:
		if env.Command == nil {
			return Message{}, fmt.Errorf("codec: command message missing payload")
		}
		return Message{Type: TypeCommand, Command: env.Command}, nil
	default:
		return Message{}, fmt.Errorf("codec: unknown message type %q", env.Type)
	}
}

// EncodeEntries encodes a batch of model.LogEntry as either a single
// "log" message (len==1) or a "logBatch" message, matching spec §4.4's
// send() rule.
func EncodeEntries(entries []model.LogEntry) ([]byte, error) {
	if len(entries) == 1 {
		w := toWireEntry(entries[0])
		return Encode(Message{Type: TypeLog, Entry: &w})
	}
	batch := make([]wireEntry, len(entries))
	for i, e := range entries {
		batch[i] = toWireEntry(e)
	}
	return Encode(Message{Type: TypeLogBatch, Batch: batch})
}

// EncodeReplay encodes entries as a "logReplay" message.
func EncodeReplay(entries []model.LogEntry) ([]byte, error) {
	batch := make([]wireEntry, len(entries))
	for i, e := range entries {
		batch[i] = toWireEntry(e)
	}
	return Encode(Message{Type: TypeLogReplay, Batch: batch})
}

// DecodeEntries converts a decoded Message's Entry/Batch back into
// model.LogEntry values, for whichever of TypeLog/TypeLogBatch/
// TypeLogReplay it represents.
func DecodeEntries(m Message) ([]model.LogEntry, error) {
	var wire []wireEntry
	if m.Entry != nil {
		wire = []wireEntry{*m.Entry}
	} else {
		wire = m.Batch
	}

	out := make([]model.LogEntry, 0, len(wire))
	for _, w := range wire {
		e, err := fromWireEntry(w)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// EncodeHandshake encodes a handshake message.
func EncodeHandshake(h model.Handshake) ([]byte, error) {
	return Encode(Message{Type: TypeHandshake, Handshake: &h})
}

// EncodePairingResponse encodes a pairingResponse message.
func EncodePairingResponse(accepted bool, reason string) ([]byte, error) {
	return Encode(Message{Type: TypePairingResponse, PairingAccepted: accepted, PairingReason: reason})
}

// EncodePairingRequest encodes a pairingRequest message.
func EncodePairingRequest(code string) ([]byte, error) {
	return Encode(Message{Type: TypePairingRequest, PairingCode: code})
}

// EncodePing / EncodePong encode the respective zero-payload messages.
func EncodePing() ([]byte, error) { return Encode(Message{Type: TypePing}) }
func EncodePong() ([]byte, error) { return Encode(Message{Type: TypePong}) }

// EncodeBatchForJournal/DecodeBatchForJournal serialize a raw batch of
// entries for an on-disk journal frame: a plain array of wireEntry,
// without the type-tagged envelope the wire protocol uses (the journal
// has no notion of message type — every frame is just a batch).
func EncodeBatchForJournal(entries []model.LogEntry) ([]byte, error) {
	wire := make([]wireEntry, len(entries))
	for i, e := range entries {
		wire[i] = toWireEntry(e)
	}
	return json.Marshal(wire)
}

func DecodeBatchForJournal(b []byte) ([]model.LogEntry, error) {
	var wire []wireEntry
	if err := json.Unmarshal(b, &wire); err != nil {
		return nil, err
	}
	out := make([]model.LogEntry, 0, len(wire))
	for _, w := range wire {
		e, err := fromWireEntry(w)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
