package game

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// StartQuestioning opens a first-to-respond window that closes after d.
// Same mutual-exclusion preconditions as StartVoting. The deliver callback
// receives the winner message when the window finalizes, outside the lock.
func (s *State) StartQuestioning(d time.Duration, deliver func(string)) error {
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

	s.activity = activityQuestioning
	s.responses = nil
	s.debounced = false
	s.deliver = deliver
	s.armTimerLocked(d, s.finalizeQuestion)

	log.Info().Int("game_id", s.gameID).Dur("window", d).Msg("questioning started")
	return nil
}

// RecordAnswer appends a buzz from a recognized player to the response log
// while a questioning window is open. The first accepted answer cancels the
// pending timer and re-arms it for DebounceGrace, giving everyone else one
// short final chance; later answers never reschedule again. Cancel and
// re-arm happen under the same lock hold, so no caller ever observes two
// live timers. Reports whether the answer was recorded.
func (s *State) RecordAnswer(playerID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activity != activityQuestioning {
		return false
	}
	if _, ok := s.players[playerID]; !ok {
		return false
	}

	s.responses = append(s.responses, response{
		playerID:   playerID,
		receivedAt: s.clock.Now(),
	})

	if !s.debounced {
		s.debounced = true
		s.armTimerLocked(DebounceGrace, s.finalizeQuestion)
		log.Debug().Int64("player_id", playerID).Msg("first answer, window shortened to grace period")
	} else {
		log.Debug().Int64("player_id", playerID).Int("position", len(s.responses)).Msg("answer recorded")
	}
	return true
}

// finalizeQuestion is the questioning window's timer callback. Exactly-once
// via the generation check; a fire racing a concurrent StopGame finds the
// activity gone and is a silent no-op.
func (s *State) finalizeQuestion(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.activity != activityQuestioning {
		s.mu.Unlock()
		log.Debug().Uint64("window_gen", gen).Msg("stale question finalize ignored")
		return
	}

	msg := "no responses"
	if len(s.responses) > 0 {
		first := s.responses[0]
		winner := s.players[first.playerID]
		msg = fmt.Sprintf("%s was first", winner.DisplayName())
	}

	deliver := s.deliver
	gameID := s.gameID
	s.clearActivityLocked()
	s.mu.Unlock()

	log.Info().Int("game_id", gameID).Str("result", msg).Msg("questioning finalized")
	if deliver != nil {
		deliver(msg)
	}
}
