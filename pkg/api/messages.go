package api

import "github.com/goccy/go-json"

// SignalKind is a typed sum of the handshake message kinds, so the
// receiving side dispatches exhaustively instead of sniffing payloads.
type SignalKind string

const (
	SignalOffer     SignalKind = "offer"
	SignalAnswer    SignalKind = "answer"
	SignalCandidate SignalKind = "candidate"
)

type IceServer struct {
	Urls       string `json:"urls"`
	Username   string `json:"username,omitempty"`
	Credential string `json:"credential,omitempty"`
}

// InitRequest is sent by the server right after the transport opens and
// acts as the open acknowledgement: it carries the assigned session id
// and the relay-discovery endpoints the peer transport should use.
type InitRequest struct {
	Id  string      `json:"id"`
	Ice []IceServer `json:"ice,omitempty"`
}

type JoinQueueRequest struct {
	Role      string   `json:"role"`
	Interests []string `json:"interests"`
}

type MatchFoundRequest struct {
	PartnerId string `json:"partnerId"`
}

// SignalRequest is an opaque handshake envelope addressed to a session.
// The server never looks into SDP or Candidate.
type SignalRequest struct {
	Target    string          `json:"target"`
	Kind      SignalKind      `json:"kind"`
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// SignalNotice is the forwarded form of SignalRequest with the sender id
// substituted for the target.
type SignalNotice struct {
	Sender    string          `json:"sender"`
	Kind      SignalKind      `json:"kind"`
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

type ChatMessageRequest struct {
	Message string `json:"message"`
	To      string `json:"to"`
}

type ChatMessageNotice struct {
	Message string `json:"message"`
	From    string `json:"from"`
}

type ErrorResponse struct {
	Message string `json:"message"`
}

// StatusResponse is the read-only payload of the public status endpoint.
type StatusResponse struct {
	Status      string `json:"status"`
	ActiveUsers int    `json:"activeUsers"`
	QueueLength int    `json:"queueLength"`
	OnlineCount int    `json:"onlineCount"`
}
