package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/DoyleJ11/liars-dice-backend/internal/engine"
)

var ErrBadJSON = errors.New("bad json")
var ErrUnknownType = errors.New("unknown type")

const (
	MaxUsernameLen = 24
	MaxRoomLen     = 32
)

// Client -> Server
const (
	TypeJoinRoom    = "joinRoom"
	TypePlayerReady = "playerReady"
	TypePlaceBid    = "placeBid"
	TypeCallLiar    = "callLiar"
)

// Server -> Client
const (
	TypeSession      = "session"
	TypeRoomUpdate   = "roomUpdate"
	TypeGameStarted  = "gameStarted"
	TypeRoundOver    = "roundOver"
	TypeGameOver     = "gameOver"
	TypeNotification = "notification"
	TypeError        = "error"
)

type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type ServerMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// ValidationError is a request the client has to correct and resend.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// Request is one of the inbound variants below.
type Request interface {
	RoomName() string
	Validate() error
}

type JoinRoom struct {
	Username    string `json:"username"`
	Room        string `json:"room"`
	IsSpectator bool   `json:"isSpectator,omitempty"`
}

type PlayerReady struct {
	Room string `json:"room"`
}

type PlaceBid struct {
	Room     string `json:"room"`
	Quantity int    `json:"quantity"`
	Face     int    `json:"face"`
}

type CallLiar struct {
	Room string `json:"room"`
}

func (r JoinRoom) RoomName() string    { return r.Room }
func (r PlayerReady) RoomName() string { return r.Room }
func (r PlaceBid) RoomName() string    { return r.Room }
func (r CallLiar) RoomName() string    { return r.Room }

func (r JoinRoom) Validate() error {
	if err := checkText("username", r.Username, MaxUsernameLen); err != nil {
		return err
	}
	return checkText("room", r.Room, MaxRoomLen)
}

func (r PlayerReady) Validate() error { return checkText("room", r.Room, MaxRoomLen) }

// Validate only checks shape. Whether the bid beats the current one is the
// engine's call.
func (r PlaceBid) Validate() error {
	if err := checkText("room", r.Room, MaxRoomLen); err != nil {
		return err
	}
	if r.Quantity < 1 {
		return &ValidationError{Field: "quantity", Reason: "must be at least 1"}
	}
	if r.Face < engine.MinBidFace || r.Face > engine.MaxBidFace {
		return &ValidationError{Field: "face", Reason: fmt.Sprintf("must be between %d and %d", engine.MinBidFace, engine.MaxBidFace)}
	}
	return nil
}

func (r CallLiar) Validate() error { return checkText("room", r.Room, MaxRoomLen) }

func checkText(field, v string, max int) error {
	if strings.TrimSpace(v) == "" {
		return &ValidationError{Field: field, Reason: "is required"}
	}
	if utf8.RuneCountInString(v) > max {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("must be at most %d characters", max)}
	}
	return nil
}

// DecodeRequest parses a raw frame into its typed variant. Text fields are
// trimmed; Validate is left to the caller.
func DecodeRequest(data []byte) (Request, error) {
	var cm ClientMessage
	if err := json.Unmarshal(data, &cm); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadJSON, err)
	}

	var req Request
	switch cm.Type {
	case TypeJoinRoom:
		var r JoinRoom
		if err := unmarshalPayload(cm.Payload, &r); err != nil {
			return nil, err
		}
		r.Username = strings.TrimSpace(r.Username)
		r.Room = strings.TrimSpace(r.Room)
		req = r
	case TypePlayerReady:
		var r PlayerReady
		if err := unmarshalPayload(cm.Payload, &r); err != nil {
			return nil, err
		}
		r.Room = strings.TrimSpace(r.Room)
		req = r
	case TypePlaceBid:
		var r PlaceBid
		if err := unmarshalPayload(cm.Payload, &r); err != nil {
			return nil, err
		}
		r.Room = strings.TrimSpace(r.Room)
		req = r
	case TypeCallLiar:
		var r CallLiar
		if err := unmarshalPayload(cm.Payload, &r); err != nil {
			return nil, err
		}
		r.Room = strings.TrimSpace(r.Room)
		req = r
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, cm.Type)
	}
	return req, nil
}

func unmarshalPayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadJSON, err)
	}
	return nil
}
