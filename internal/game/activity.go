package game

import (
	"errors"
	"time"
)

// Precondition violations reported by state transitions. Callers map these
// to user-facing status text; none of them mutate state.
var (
	ErrGameInProgress     = errors.New("game already in progress")
	ErrNoGame             = errors.New("no active game")
	ErrVoteInProgress     = errors.New("vote in progress")
	ErrQuestionInProgress = errors.New("question in progress")
)

// DefaultWindow is the timed-window length used when the caller supplies
// no (or an unparseable) duration.
const DefaultWindow = 15 * time.Second

// DebounceGrace is how much time remains in a questioning window after the
// first answer arrives. Subsequent answers never extend it again.
const DebounceGrace = 500 * time.Millisecond

// activityKind tags the single open activity. Voting and questioning are
// mutually exclusive; activityNone means no window is open.
type activityKind int

const (
	activityNone activityKind = iota
	activityVoting
	activityQuestioning
)

func (k activityKind) String() string {
	switch k {
	case activityVoting:
		return "voting"
	case activityQuestioning:
		return "questioning"
	default:
		return "none"
	}
}

// response is one entry in the questioning log. Append position is the
// arrival order; the earliest entry wins. Duplicate entries from the same
// player are kept for audit but never win.
type response struct {
	playerID   int64
	receivedAt time.Time
}
