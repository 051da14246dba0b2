// Package api defines the wire protocol between participants and the matching server.
//
// Each message is a JSON-encoded packet of the following structure:
//
//	t - (required) one of the predefined unique packet types;
//	p - (optional) packet payload with the type-specific data.
//
// The packets differentiate by their predefined types with which it is
// possible to unwrap the payload into distinct request/response structures.
//
// Example:
//
//	{"t":202,"p":{"partnerId":"cfv68irdrc3ifu3jn6bg"}}
package api

import (
	"fmt"

	"github.com/goccy/go-json"
)

type PT uint8

type In struct {
	T       PT              `json:"t"`
	Payload json.RawMessage `json:"p,omitempty"` // raw for 2-pass unmarshal
}

type Out struct {
	T       PT  `json:"t"`
	Payload any `json:"p,omitempty"`
}

// Packet codes:
//
//	1xx - client requests
//	2xx - server notifications
const (
	JoinQueue   PT = 100
	LeaveQueue  PT = 101
	NextMatch   PT = 102
	Signal      PT = 103
	ChatMessage PT = 104

	Init                PT = 200
	Searching           PT = 201
	MatchFound          PT = 202
	PartnerDisconnected PT = 203
	SignalNotify        PT = 204
	ChatNotify          PT = 205
	Error               PT = 206
)

func (p PT) String() string {
	switch p {
	case JoinQueue:
		return "JoinQueue"
	case LeaveQueue:
		return "LeaveQueue"
	case NextMatch:
		return "NextMatch"
	case Signal:
		return "Signal"
	case ChatMessage:
		return "ChatMessage"
	case Init:
		return "Init"
	case Searching:
		return "Searching"
	case MatchFound:
		return "MatchFound"
	case PartnerDisconnected:
		return "PartnerDisconnected"
	case SignalNotify:
		return "SignalNotify"
	case ChatNotify:
		return "ChatNotify"
	case Error:
		return "Error"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(p))
	}
}

func Encode(t PT, payload any) ([]byte, error) { return json.Marshal(Out{T: t, Payload: payload}) }

func Decode(data []byte) (In, error) {
	var in In
	err := json.Unmarshal(data, &in)
	return in, err
}

func Unwrap[T any](data []byte) *T {
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return nil
	}
	return out
}
