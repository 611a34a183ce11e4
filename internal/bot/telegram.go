package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mcdev12/partyline/internal/dispatch"
	"github.com/mcdev12/partyline/internal/identity"
	"github.com/rs/zerolog/log"
)

// MessageObserver sees every inbound message before dispatch. The admin
// console uses it to match chat-verification keys.
type MessageObserver interface {
	Observe(chatID int64, chatTitle, text string)
}

// Bot is the Telegram transport: it converts updates into dispatch events
// and implements the dispatcher's outbound Sink.
type Bot struct {
	api      *tgbotapi.BotAPI
	d        *dispatch.Dispatcher
	observer MessageObserver
}

// New connects to the Telegram Bot API.
func New(token string) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}

	log.Info().Str("username", api.Self.UserName).Msg("telegram bot authorized")
	return &Bot{api: api}, nil
}

// AttachDispatcher wires the dispatcher in after construction; the
// dispatcher needs the bot as its Sink first.
func (b *Bot) AttachDispatcher(d *dispatch.Dispatcher) {
	b.d = d
}

// SetObserver installs the message observer.
func (b *Bot) SetObserver(o MessageObserver) {
	b.observer = o
}

// Run long-polls for updates until the context is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			log.Info().Msg("telegram bot stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(update)
		}
	}
}

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	if post := update.ChannelPost; post != nil && post.Text != "" {
		b.observe(post)
		log.Info().Str("channel", post.Chat.Title).Str("text", post.Text).Msg("channel post")
		return
	}

	m := update.Message
	if m == nil || m.From == nil || m.Text == "" {
		return
	}
	b.observe(m)

	if m.IsCommand() {
		b.handleCommand(m)
		return
	}

	sender := participant(m.From)
	if b.d.HandleResponse(dispatch.CastResponse{
		ChatID: m.Chat.ID,
		Sender: sender,
		Text:   m.Text,
	}) {
		return
	}

	// Generic fallthrough: acknowledge anything that is not a ballot mark,
	// so stray marks from non-players are not echoed back.
	if m.Text != dispatch.YesMark && m.Text != dispatch.NoMark {
		b.SendKeyboard(m.Chat.ID, "okay")
	}

	log.Info().Str("from", m.From.UserName).Str("text", m.Text).Msg("chat message")
}

func (b *Bot) handleCommand(m *tgbotapi.Message) {
	switch m.Command() {
	case "start":
		b.Send(m.Chat.ID, "hi")

	case "join":
		// Shape validation happens here: a join without a parseable numeric
		// game id is dropped before it reaches the dispatcher.
		arg := strings.TrimSpace(m.CommandArguments())
		requested, err := strconv.Atoi(arg)
		if err != nil {
			return
		}
		b.d.HandleJoin(dispatch.Join{
			ChatID:          m.Chat.ID,
			Sender:          participant(m.From),
			RequestedGameID: requested,
		})

	case "create":
		b.d.HandleCreateGame(dispatch.CreateGame{ChatID: m.Chat.ID})

	case "stop":
		b.d.HandleStopGame(dispatch.StopGame{ChatID: m.Chat.ID})

	case "vote":
		b.d.HandleStartVote(dispatch.StartVote{
			ChatID:       m.Chat.ID,
			DurationText: m.CommandArguments(),
		})

	case "question":
		b.d.HandleStartQuestion(dispatch.StartQuestion{
			ChatID:       m.Chat.ID,
			DurationText: m.CommandArguments(),
		})
	}
}

func (b *Bot) observe(m *tgbotapi.Message) {
	if b.observer != nil {
		b.observer.Observe(m.Chat.ID, chatTitle(m), m.Text)
	}
}

// Send delivers plain text to a chat.
func (b *Bot) Send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("failed to send message")
	}
}

// SendKeyboard delivers text along with the fixed yes/no response control.
func (b *Bot) SendKeyboard(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = yesNoKeyboard()
	if _, err := b.api.Send(msg); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("failed to send message")
	}
}

func yesNoKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(dispatch.YesMark),
			tgbotapi.NewKeyboardButton(dispatch.NoMark),
		),
	)
}

func participant(u *tgbotapi.User) identity.Participant {
	return identity.Participant{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Username:  u.UserName,
	}
}

func chatTitle(m *tgbotapi.Message) string {
	if m.Chat.Title != "" {
		return m.Chat.Title
	}
	return m.Chat.UserName
}
