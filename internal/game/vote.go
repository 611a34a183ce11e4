package game

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// StartVoting opens a voting window that closes after d. The deliver
// callback receives the tally message when the window finalizes; it is
// invoked outside the state lock. Fails with ErrNoGame,
// ErrVoteInProgress, or ErrQuestionInProgress without arming a timer.
func (s *State) StartVoting(d time.Duration, deliver func(string)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gameID == 0 {
		return ErrNoGame
	}
	switch s.activity {
	case activityVoting:
		return ErrVoteInProgress
	case activityQuestioning:
		return ErrQuestionInProgress
	}

	s.activity = activityVoting
	s.ballot = make(map[int64]bool)
	s.deliver = deliver
	s.armTimerLocked(d, s.finalizeVote)

	log.Info().Int("game_id", s.gameID).Dur("window", d).Msg("voting started")
	return nil
}

// CastVote records a ballot entry for a recognized player while a voting
// window is open. Repeat votes overwrite; the last value before finalize
// wins. Anything else is a silent no-op. Reports whether the vote counted.
func (s *State) CastVote(playerID int64, value bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activity != activityVoting {
		return false
	}
	if _, ok := s.players[playerID]; !ok {
		return false
	}

	s.ballot[playerID] = value
	log.Debug().Int64("player_id", playerID).Bool("value", value).Msg("vote cast")
	return true
}

// finalizeVote is the voting window's timer callback. The generation check
// makes it exactly-once: a late fire after stop, restart, or a previous
// finalize sees a stale gen and returns without output.
func (s *State) finalizeVote(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.activity != activityVoting {
		s.mu.Unlock()
		log.Debug().Uint64("window_gen", gen).Msg("stale vote finalize ignored")
		return
	}

	msg := "no votes collected"
	if s.ballot != nil {
		positive, negative := 0, 0
		for _, v := range s.ballot {
			if v {
				positive++
			} else {
				negative++
			}
		}
		msg = fmt.Sprintf("positive: %d, negative: %d", positive, negative)
	}

	deliver := s.deliver
	gameID := s.gameID
	s.clearActivityLocked()
	s.mu.Unlock()

	log.Info().Int("game_id", gameID).Str("result", msg).Msg("voting finalized")
	if deliver != nil {
		deliver(msg)
	}
}
