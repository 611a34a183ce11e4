package game

import (
	"math/rand/v2"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/partyline/internal/identity"
	"github.com/rs/zerolog/log"
)

// State owns the single live game: its id, roster, and the one open
// activity, if any. Every mutation happens under one mutex; timer
// callbacks re-enter through that mutex and are validated against the
// window generation so a finalize runs exactly once.
//
// In production pass clockwork.NewRealClock(). Tests use a FakeClock.
type State struct {
	mu    sync.Mutex
	clock clockwork.Clock

	gameID  int
	players map[int64]identity.Participant

	activity  activityKind
	ballot    map[int64]bool
	responses []response
	debounced bool
	deliver   func(string)
	timer     *windowTimer
	gen       uint64
}

// New creates an empty game state driven by the given clock.
func New(clock clockwork.Clock) *State {
	return &State{
		clock:   clock,
		players: make(map[int64]identity.Participant),
	}
}

// CreateGame starts a fresh game epoch with a new random id, clearing the
// roster. Returns ErrGameInProgress (with the current id) if a game is
// already live.
func (s *State) CreateGame() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gameID != 0 {
		return s.gameID, ErrGameInProgress
	}

	s.gameID = 1000 + rand.IntN(9000)
	s.players = make(map[int64]identity.Participant)
	s.clearActivityLocked()

	log.Info().Int("game_id", s.gameID).Msg("game created")
	return s.gameID, nil
}

// StopGame tears down the live game: cancels any pending window timer,
// clears the activity, the roster, and the id. A finalize callback that
// races with the stop finds a bumped generation and does nothing.
func (s *State) StopGame() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gameID == 0 {
		return ErrNoGame
	}

	id := s.gameID
	s.clearActivityLocked()
	s.gameID = 0
	s.players = make(map[int64]identity.Participant)

	log.Info().Int("game_id", id).Msg("game stopped")
	return nil
}

// AddPlayer admits a participant into the roster. The requested id must
// match the live game id, which guards against stale join links from a
// previous epoch. Reports whether the roster changed.
func (s *State) AddPlayer(p identity.Participant, requestedGameID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gameID == 0 || requestedGameID != s.gameID {
		return false
	}
	if _, ok := s.players[p.ID]; ok {
		return false
	}

	s.players[p.ID] = p
	log.Info().Int("game_id", s.gameID).Int64("player_id", p.ID).Msg("player joined")
	return true
}

// IsPlayer reports roster membership. Always false with no live game.
func (s *State) IsPlayer(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.players[id]
	return ok
}

// GameID returns the live game id and whether a game is active.
func (s *State) GameID() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gameID, s.gameID != 0
}

// PlayerCount returns the roster size.
func (s *State) PlayerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.players)
}

// Voting reports whether a voting window is open.
func (s *State) Voting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activity == activityVoting
}

// Questioning reports whether a questioning window is open.
func (s *State) Questioning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activity == activityQuestioning
}

// clearActivityLocked resets the activity union to none and invalidates
// any in-flight timer callback. Callers must hold s.mu.
func (s *State) clearActivityLocked() {
	s.cancelTimerLocked()
	s.activity = activityNone
	s.ballot = nil
	s.responses = nil
	s.debounced = false
	s.deliver = nil
}
