package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/partyline/internal/events"
	"github.com/mcdev12/partyline/internal/game"
	"github.com/rs/zerolog/log"
)

// Response tokens recognized during voting and questioning windows.
const (
	YesMark = "✅"
	NoMark  = "❌"
)

const publishTimeout = 5 * time.Second

// Sink delivers outbound text to a chat. SendKeyboard additionally asks the
// transport to present the fixed yes/no response control.
type Sink interface {
	Send(chatID int64, text string)
	SendKeyboard(chatID int64, text string)
}

// EventSink receives game event envelopes. Both the JetStream publisher and
// the websocket hub satisfy this.
type EventSink interface {
	Publish(ctx context.Context, ev events.Envelope) error
}

// Dispatcher routes inbound chat events into game state transitions and
// sends the resulting status text back out. Mutating commands are gated on
// the authorized predicate; rejected senders are silently dropped.
type Dispatcher struct {
	game       *game.State
	out        Sink
	authorized func(chatID int64) bool
	sinks      []EventSink
	window     time.Duration
}

// New creates a dispatcher. Any number of event sinks may be attached;
// publish failures are logged, never surfaced to the chat.
func New(g *game.State, out Sink, authorized func(int64) bool, sinks ...EventSink) *Dispatcher {
	return &Dispatcher{
		game:       g,
		out:        out,
		authorized: authorized,
		sinks:      sinks,
		window:     game.DefaultWindow,
	}
}

// HandleCreateGame starts a new game epoch and announces its id.
func (d *Dispatcher) HandleCreateGame(ev CreateGame) {
	if !d.authorized(ev.ChatID) {
		return
	}

	id, err := d.game.CreateGame()
	if errors.Is(err, game.ErrGameInProgress) {
		d.out.Send(ev.ChatID, fmt.Sprintf("game %d in progress", id))
		return
	}

	d.out.Send(ev.ChatID, strconv.Itoa(id))
	d.publish(events.TypeGameCreated, id, events.GameCreatedPayload{
		GameID:    id,
		CreatedAt: time.Now(),
	})
}

// HandleStopGame tears down the live game.
func (d *Dispatcher) HandleStopGame(ev StopGame) {
	if !d.authorized(ev.ChatID) {
		return
	}

	id, _ := d.game.GameID()
	if err := d.game.StopGame(); errors.Is(err, game.ErrNoGame) {
		d.out.Send(ev.ChatID, "nothing to stop")
		return
	}

	d.out.Send(ev.ChatID, "ok")
	d.publish(events.TypeGameStopped, id, events.GameStoppedPayload{
		GameID:    id,
		StoppedAt: time.Now(),
	})
}

// HandleJoin admits the sender into the roster when the requested id
// matches the live game. Stale or duplicate joins are silent no-ops.
func (d *Dispatcher) HandleJoin(ev Join) {
	if !d.game.AddPlayer(ev.Sender, ev.RequestedGameID) {
		return
	}

	d.out.SendKeyboard(ev.ChatID, "ok")
	id, _ := d.game.GameID()
	d.publish(events.TypePlayerJoined, id, events.PlayerJoinedPayload{
		PlayerID:    ev.Sender.ID,
		DisplayName: ev.Sender.DisplayName(),
		JoinedAt:    time.Now(),
	})
}

// HandleStartVote opens a voting window and announces it.
func (d *Dispatcher) HandleStartVote(ev StartVote) {
	if !d.authorized(ev.ChatID) {
		return
	}

	window := d.parseWindow(ev.DurationText)
	deliver := d.resultDeliver(ev.ChatID, events.TypeVoteClosed)

	if err := d.game.StartVoting(window, deliver); err != nil {
		d.out.Send(ev.ChatID, statusText(err))
		return
	}

	d.out.Send(ev.ChatID, fmt.Sprintf("vote started for %d second(s)", int(window.Seconds())))
	d.publishWindowStarted(events.TypeVoteStarted, window)
}

// HandleStartQuestion opens a first-to-respond window and announces it.
func (d *Dispatcher) HandleStartQuestion(ev StartQuestion) {
	if !d.authorized(ev.ChatID) {
		return
	}

	window := d.parseWindow(ev.DurationText)
	deliver := d.resultDeliver(ev.ChatID, events.TypeQuestionClosed)

	if err := d.game.StartQuestioning(window, deliver); err != nil {
		d.out.Send(ev.ChatID, statusText(err))
		return
	}

	d.out.Send(ev.ChatID, fmt.Sprintf("question started for %d second(s)", int(window.Seconds())))
	d.publishWindowStarted(events.TypeQuestionStarted, window)
}

// HandleResponse routes free-form text to the open activity. Reports
// whether the text was consumed; unconsumed text falls through to the
// transport's generic chat handling.
func (d *Dispatcher) HandleResponse(ev CastResponse) bool {
	switch {
	case d.game.Voting():
		var value bool
		switch ev.Text {
		case YesMark:
			value = true
		case NoMark:
			value = false
		default:
			return false
		}
		if !d.game.CastVote(ev.Sender.ID, value) {
			return false
		}
		d.out.SendKeyboard(ev.ChatID, "vote counted")
		return true

	case d.game.Questioning():
		if ev.Text != YesMark && ev.Text != NoMark {
			return false
		}
		return d.game.RecordAnswer(ev.Sender.ID)
	}
	return false
}

// resultDeliver builds the finalize callback for a timed window: send the
// result text to the chat that opened the window, then publish the closing
// event. Runs outside the game state lock.
func (d *Dispatcher) resultDeliver(chatID int64, closed events.Type) func(string) {
	gameID, _ := d.game.GameID()
	return func(msg string) {
		d.publish(closed, gameID, events.WindowClosedPayload{
			Result:   msg,
			ClosedAt: time.Now(),
		})
		d.out.Send(chatID, msg)
	}
}

func (d *Dispatcher) publishWindowStarted(t events.Type, window time.Duration) {
	id, _ := d.game.GameID()
	now := time.Now()
	d.publish(t, id, events.WindowStartedPayload{
		WindowSec: int(window.Seconds()),
		StartedAt: now,
		ClosesAt:  now.Add(window),
	})
}

func (d *Dispatcher) publish(t events.Type, gameID int, payload any) {
	if len(d.sinks) == 0 {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(t)).Msg("failed to marshal event payload")
		return
	}

	ev := events.Envelope{
		ID:        uuid.New().String(),
		GameID:    gameID,
		Type:      t,
		Timestamp: time.Now(),
		Data:      data,
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	for _, sink := range d.sinks {
		if err := sink.Publish(ctx, ev); err != nil {
			log.Error().Err(err).Str("event_type", string(t)).Msg("failed to publish event")
		}
	}
}

// parseWindow parses an optional integer number of seconds from the raw
// command argument, falling back to the default window.
func (d *Dispatcher) parseWindow(text string) time.Duration {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n <= 0 {
		return d.window
	}
	return time.Duration(n) * time.Second
}

// statusText maps precondition errors to the short status strings sent back
// to the requesting chat.
func statusText(err error) string {
	switch {
	case errors.Is(err, game.ErrNoGame):
		return "you need to create a game"
	case errors.Is(err, game.ErrVoteInProgress):
		return "there is a vote in progress"
	case errors.Is(err, game.ErrQuestionInProgress):
		return "there is a question in progress"
	default:
		return err.Error()
	}
}
