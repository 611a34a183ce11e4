package dispatch

import "github.com/mcdev12/partyline/internal/identity"

// Inbound events carried from the transport into the dispatcher. The
// transport is responsible for shape validation (e.g. parsing the numeric
// join argument) and drops malformed commands before they get here.

// CreateGame asks for a fresh game epoch. Admin-gated.
type CreateGame struct {
	ChatID int64
}

// StopGame tears down the live game. Admin-gated.
type StopGame struct {
	ChatID int64
}

// Join asks to enter the roster of the game with the requested id.
type Join struct {
	ChatID          int64
	Sender          identity.Participant
	RequestedGameID int
}

// StartVote opens a voting window. DurationText is the raw command
// argument; unparseable or missing values fall back to the default window.
// Admin-gated.
type StartVote struct {
	ChatID       int64
	DurationText string
}

// StartQuestion opens a first-to-respond window. Admin-gated.
type StartQuestion struct {
	ChatID       int64
	DurationText string
}

// CastResponse is free-form chat text. The dispatcher routes it to vote
// casting or answer recording depending on the open activity; text it does
// not consume falls through to generic chat handling.
type CastResponse struct {
	ChatID int64
	Sender identity.Participant
	Text   string
}
