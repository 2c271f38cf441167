package protocol

import (
	"bytes"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/goccy/go-json"
)

// Codec turns messages into bytes and back.
// Decode only returns messages that passed Validate.
type Codec interface {
	Name() string
	Encode(msg Message) ([]byte, error)
	Decode(data []byte) (Message, error)
}

// ForFormat returns the codec registered under a wire format name.
func ForFormat(name string) (Codec, error) {
	switch name {
	case "json":
		return JSONCodec{}, nil
	case "cbor":
		return CBORCodec{}, nil
	default:
		return nil, fmt.Errorf("unsupported wire format %q", name)
	}
}

type unmarshalFunc func(data []byte, v any) error

func decodeAs[T Message](data []byte, unmarshal unmarshalFunc) (Message, error) {
	var msg T
	if err := unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return msg, nil
}

var decoders = map[Type]func([]byte, unmarshalFunc) (Message, error){
	TypeInvitationCreated:  decodeAs[InvitationCreated],
	TypeInvitationAccepted: decodeAs[InvitationAccepted],
	TypeInvitationDeclined: decodeAs[InvitationDeclined],
	TypeInvitationExpired:  decodeAs[InvitationExpired],
	TypeMatchReady:         decodeAs[MatchReady],
	TypeMatchStarted:       decodeAs[MatchStarted],
	TypeMatchStateTick:     decodeAs[MatchStateTick],
	TypeMatchEnded:         decodeAs[MatchEnded],
	TypeMatchRejected:      decodeAs[MatchRejected],
	TypePaddleInput:        decodeAs[PaddleInput],
}

func decodePayload(t Type, payload []byte, unmarshal unmarshalFunc) (Message, error) {
	decode, ok := decoders[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload for %q", ErrInvalidPayload, t)
	}
	return decode(payload, unmarshal)
}

// JSONCodec encodes envelopes as {"type": ..., "payload": {...}}.
type JSONCodec struct{}

type jsonEnvelope struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Encode(msg Message) ([]byte, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", msg.MessageType(), err)
	}
	return json.Marshal(jsonEnvelope{Type: msg.MessageType(), Payload: payload})
}

func (JSONCodec) Decode(data []byte) (Message, error) {
	var env jsonEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return decodePayload(env.Type, env.Payload, strictJSON)
}

func strictJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// CBORCodec encodes envelopes with deterministic CBOR.
type CBORCodec struct{}

type cborEnvelope struct {
	Type    Type            `cbor:"type"`
	Payload cbor.RawMessage `cbor:"payload"`
}

var (
	cborEncMode = mustEncMode(cbor.CoreDetEncOptions())
	cborDecMode = mustDecMode(cbor.DecOptions{ExtraReturnErrors: cbor.ExtraDecErrorUnknownField})
)

func mustEncMode(opts cbor.EncOptions) cbor.EncMode {
	mode, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("protocol: invalid cbor encode options: %v", err))
	}
	return mode
}

func mustDecMode(opts cbor.DecOptions) cbor.DecMode {
	mode, err := opts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("protocol: invalid cbor decode options: %v", err))
	}
	return mode
}

func (CBORCodec) Name() string { return "cbor" }

func (CBORCodec) Encode(msg Message) ([]byte, error) {
	payload, err := cborEncMode.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", msg.MessageType(), err)
	}
	return cborEncMode.Marshal(cborEnvelope{Type: msg.MessageType(), Payload: payload})
}

func (CBORCodec) Decode(data []byte) (Message, error) {
	var env cborEnvelope
	if err := cborDecMode.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return decodePayload(env.Type, env.Payload, cborDecMode.Unmarshal)
}

var (
	_ Codec = JSONCodec{}
	_ Codec = CBORCodec{}
)
