package dispatch_test

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/partyline/internal/dispatch"
	"github.com/mcdev12/partyline/internal/events"
	"github.com/mcdev12/partyline/internal/game"
	"github.com/mcdev12/partyline/internal/identity"
)

const (
	adminChat  = int64(500)
	randomChat = int64(777)
)

var alice = identity.Participant{ID: 101, FirstName: "Alice", Username: "alice"}

type sentMessage struct {
	chatID   int64
	text     string
	keyboard bool
}

// fakeSink funnels outbound messages through a channel so tests can wait
// for deliveries made from timer goroutines.
type fakeSink struct {
	ch chan sentMessage
}

func newFakeSink() *fakeSink {
	return &fakeSink{ch: make(chan sentMessage, 16)}
}

func (f *fakeSink) Send(chatID int64, text string) {
	f.ch <- sentMessage{chatID: chatID, text: text}
}

func (f *fakeSink) SendKeyboard(chatID int64, text string) {
	f.ch <- sentMessage{chatID: chatID, text: text, keyboard: true}
}

func (f *fakeSink) next(t *testing.T) sentMessage {
	t.Helper()
	select {
	case m := <-f.ch:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for outbound message")
		return sentMessage{}
	}
}

func (f *fakeSink) wantSilence(t *testing.T) {
	t.Helper()
	select {
	case m := <-f.ch:
		t.Fatalf("unexpected outbound message %+v", m)
	case <-time.After(100 * time.Millisecond):
	}
}

// fakeEventSink records published envelopes.
type fakeEventSink struct {
	mu        sync.Mutex
	published []events.Envelope
}

func (f *fakeEventSink) Publish(_ context.Context, ev events.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, ev)
	return nil
}

func (f *fakeEventSink) types() []events.Type {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]events.Type, len(f.published))
	for i, ev := range f.published {
		out[i] = ev.Type
	}
	return out
}

func isAdmin(chatID int64) bool { return chatID == adminChat }

func newTestDispatcher(fc clockwork.Clock) (*dispatch.Dispatcher, *game.State, *fakeSink, *fakeEventSink) {
	state := game.New(fc)
	sink := newFakeSink()
	bus := &fakeEventSink{}
	return dispatch.New(state, sink, isAdmin, bus), state, sink, bus
}

func TestCreateGameAuthorization(t *testing.T) {
	d, state, sink, _ := newTestDispatcher(clockwork.NewFakeClock())

	// Unauthorized senders are indistinguishable from silence.
	d.HandleCreateGame(dispatch.CreateGame{ChatID: randomChat})
	sink.wantSilence(t)
	if _, active := state.GameID(); active {
		t.Fatal("unauthorized create started a game")
	}

	d.HandleCreateGame(dispatch.CreateGame{ChatID: adminChat})
	msg := sink.next(t)
	id, active := state.GameID()
	if !active {
		t.Fatal("authorized create did not start a game")
	}
	if msg.text != strconv.Itoa(id) {
		t.Errorf("create reply = %q, want announced id %d", msg.text, id)
	}

	d.HandleCreateGame(dispatch.CreateGame{ChatID: adminChat})
	if msg := sink.next(t); msg.text != "game "+strconv.Itoa(id)+" in progress" {
		t.Errorf("repeat create reply = %q, want in-progress status", msg.text)
	}
}

func TestStopGame(t *testing.T) {
	d, _, sink, bus := newTestDispatcher(clockwork.NewFakeClock())

	d.HandleStopGame(dispatch.StopGame{ChatID: adminChat})
	if msg := sink.next(t); msg.text != "nothing to stop" {
		t.Errorf("stop reply = %q, want %q", msg.text, "nothing to stop")
	}

	d.HandleCreateGame(dispatch.CreateGame{ChatID: adminChat})
	sink.next(t)
	d.HandleStopGame(dispatch.StopGame{ChatID: adminChat})
	if msg := sink.next(t); msg.text != "ok" {
		t.Errorf("stop reply = %q, want %q", msg.text, "ok")
	}

	want := []events.Type{events.TypeGameCreated, events.TypeGameStopped}
	got := bus.types()
	if len(got) != len(want) {
		t.Fatalf("published events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestJoin(t *testing.T) {
	d, state, sink, _ := newTestDispatcher(clockwork.NewFakeClock())
	d.HandleCreateGame(dispatch.CreateGame{ChatID: adminChat})
	sink.next(t)
	id, _ := state.GameID()

	d.HandleJoin(dispatch.Join{ChatID: randomChat, Sender: alice, RequestedGameID: id + 1})
	sink.wantSilence(t)

	d.HandleJoin(dispatch.Join{ChatID: randomChat, Sender: alice, RequestedGameID: id})
	msg := sink.next(t)
	if msg.text != "ok" || !msg.keyboard {
		t.Errorf("join ack = %+v, want keyboard %q", msg, "ok")
	}
	if !state.IsPlayer(alice.ID) {
		t.Error("joined player not recognized")
	}

	// Duplicate join stays silent.
	d.HandleJoin(dispatch.Join{ChatID: randomChat, Sender: alice, RequestedGameID: id})
	sink.wantSilence(t)
}

func TestStartVoteDurationParsing(t *testing.T) {
	tests := []struct {
		name         string
		durationText string
		want         string
	}{
		{"explicit seconds", "5", "vote started for 5 second(s)"},
		{"missing argument", "", "vote started for 15 second(s)"},
		{"garbage argument", "soon", "vote started for 15 second(s)"},
		{"negative argument", "-3", "vote started for 15 second(s)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _, sink, _ := newTestDispatcher(clockwork.NewFakeClock())
			d.HandleCreateGame(dispatch.CreateGame{ChatID: adminChat})
			sink.next(t)

			d.HandleStartVote(dispatch.StartVote{ChatID: adminChat, DurationText: tt.durationText})
			if msg := sink.next(t); msg.text != tt.want {
				t.Errorf("start reply = %q, want %q", msg.text, tt.want)
			}
		})
	}
}

func TestStartVoteStatusText(t *testing.T) {
	d, _, sink, _ := newTestDispatcher(clockwork.NewFakeClock())

	d.HandleStartVote(dispatch.StartVote{ChatID: adminChat})
	if msg := sink.next(t); msg.text != "you need to create a game" {
		t.Errorf("no-game reply = %q, want %q", msg.text, "you need to create a game")
	}

	d.HandleCreateGame(dispatch.CreateGame{ChatID: adminChat})
	sink.next(t)
	d.HandleStartVote(dispatch.StartVote{ChatID: adminChat})
	sink.next(t)

	d.HandleStartVote(dispatch.StartVote{ChatID: adminChat})
	if msg := sink.next(t); msg.text != "there is a vote in progress" {
		t.Errorf("re-start reply = %q, want %q", msg.text, "there is a vote in progress")
	}
	d.HandleStartQuestion(dispatch.StartQuestion{ChatID: adminChat})
	if msg := sink.next(t); msg.text != "there is a vote in progress" {
		t.Errorf("cross-start reply = %q, want %q", msg.text, "there is a vote in progress")
	}
}

func TestVoteFlow(t *testing.T) {
	fc := clockwork.NewFakeClock()
	d, state, sink, bus := newTestDispatcher(fc)

	d.HandleCreateGame(dispatch.CreateGame{ChatID: adminChat})
	sink.next(t)
	id, _ := state.GameID()
	d.HandleJoin(dispatch.Join{ChatID: randomChat, Sender: alice, RequestedGameID: id})
	sink.next(t)

	d.HandleStartVote(dispatch.StartVote{ChatID: adminChat, DurationText: "5"})
	sink.next(t)

	// Non-mark text and non-players fall through.
	if d.HandleResponse(dispatch.CastResponse{ChatID: randomChat, Sender: alice, Text: "maybe"}) {
		t.Error("non-mark text consumed during voting")
	}
	outsider := identity.Participant{ID: 999}
	if d.HandleResponse(dispatch.CastResponse{ChatID: randomChat, Sender: outsider, Text: dispatch.YesMark}) {
		t.Error("non-player vote consumed")
	}

	if !d.HandleResponse(dispatch.CastResponse{ChatID: randomChat, Sender: alice, Text: dispatch.NoMark}) {
		t.Fatal("player vote not consumed")
	}
	if msg := sink.next(t); msg.text != "vote counted" || !msg.keyboard {
		t.Errorf("vote ack = %+v, want keyboard %q", msg, "vote counted")
	}

	fc.Advance(5 * time.Second)
	result := sink.next(t)
	if result.text != "positive: 0, negative: 1" {
		t.Errorf("vote result = %q, want %q", result.text, "positive: 0, negative: 1")
	}
	if result.chatID != adminChat {
		t.Errorf("vote result chat = %d, want the requesting chat %d", result.chatID, adminChat)
	}

	got := bus.types()
	last := got[len(got)-1]
	if last != events.TypeVoteClosed {
		t.Errorf("last event = %s, want %s", last, events.TypeVoteClosed)
	}
}

func TestQuestionFlow(t *testing.T) {
	fc := clockwork.NewFakeClock()
	d, state, sink, bus := newTestDispatcher(fc)

	d.HandleCreateGame(dispatch.CreateGame{ChatID: adminChat})
	sink.next(t)
	id, _ := state.GameID()
	d.HandleJoin(dispatch.Join{ChatID: randomChat, Sender: alice, RequestedGameID: id})
	sink.next(t)

	d.HandleStartQuestion(dispatch.StartQuestion{ChatID: adminChat, DurationText: "10"})
	if msg := sink.next(t); msg.text != "question started for 10 second(s)" {
		t.Errorf("start reply = %q, want %q", msg.text, "question started for 10 second(s)")
	}

	if !d.HandleResponse(dispatch.CastResponse{ChatID: randomChat, Sender: alice, Text: dispatch.YesMark}) {
		t.Fatal("player buzz not consumed")
	}

	fc.Advance(game.DebounceGrace)
	result := sink.next(t)
	if want := "Alice (@alice) was first"; result.text != want {
		t.Errorf("question result = %q, want %q", result.text, want)
	}

	got := bus.types()
	last := got[len(got)-1]
	if last != events.TypeQuestionClosed {
		t.Errorf("last event = %s, want %s", last, events.TypeQuestionClosed)
	}
}

func TestResponseWithNoActivity(t *testing.T) {
	d, _, _, _ := newTestDispatcher(clockwork.NewFakeClock())
	if d.HandleResponse(dispatch.CastResponse{ChatID: randomChat, Sender: alice, Text: dispatch.YesMark}) {
		t.Error("response consumed with no open activity")
	}
}
