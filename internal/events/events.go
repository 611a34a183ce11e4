package events

import (
	"encoding/json"
	"time"
)

// Envelope is the base structure for all game events.
type Envelope struct {
	ID        string          `json:"id"`        // Event UUID
	GameID    int             `json:"game_id"`   // Game epoch id
	Type      Type            `json:"type"`      // Event type
	Timestamp time.Time       `json:"timestamp"` // Event creation time
	Data      json.RawMessage `json:"data"`      // Event-specific payload
}

// Type represents the kind of game event.
type Type string

const (
	TypeGameCreated     Type = "GameCreated"
	TypeGameStopped     Type = "GameStopped"
	TypePlayerJoined    Type = "PlayerJoined"
	TypeVoteStarted     Type = "VoteStarted"
	TypeVoteClosed      Type = "VoteClosed"
	TypeQuestionStarted Type = "QuestionStarted"
	TypeQuestionClosed  Type = "QuestionClosed"
)

// GameCreatedPayload is the payload for a GameCreated event.
type GameCreatedPayload struct {
	GameID    int       `json:"game_id"`
	CreatedAt time.Time `json:"created_at"`
}

// GameStoppedPayload is the payload for a GameStopped event.
type GameStoppedPayload struct {
	GameID    int       `json:"game_id"`
	StoppedAt time.Time `json:"stopped_at"`
}

// PlayerJoinedPayload is the payload for a PlayerJoined event.
type PlayerJoinedPayload struct {
	PlayerID    int64     `json:"player_id"`
	DisplayName string    `json:"display_name"`
	JoinedAt    time.Time `json:"joined_at"`
}

// WindowStartedPayload is the payload for VoteStarted and QuestionStarted
// events.
type WindowStartedPayload struct {
	WindowSec int       `json:"window_sec"`
	StartedAt time.Time `json:"started_at"`
	ClosesAt  time.Time `json:"closes_at"`
}

// WindowClosedPayload is the payload for VoteClosed and QuestionClosed
// events. Result carries the same text delivered to the chat.
type WindowClosedPayload struct {
	Result   string    `json:"result"`
	ClosedAt time.Time `json:"closed_at"`
}

// ParsePayload parses an envelope's data into the appropriate payload struct.
func ParsePayload(ev *Envelope) (interface{}, error) {
	switch ev.Type {
	case TypeGameCreated:
		var payload GameCreatedPayload
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case TypeGameStopped:
		var payload GameStoppedPayload
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case TypePlayerJoined:
		var payload PlayerJoinedPayload
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case TypeVoteStarted, TypeQuestionStarted:
		var payload WindowStartedPayload
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case TypeVoteClosed, TypeQuestionClosed:
		var payload WindowClosedPayload
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	default:
		return nil, nil // Unknown event type
	}
}
