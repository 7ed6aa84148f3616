package telegram

import (
	"context"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sent is one message captured by Recorder.
type Sent struct {
	Kind     string
	ChatID   int64
	Text     string
	Name     string
	Data     []byte
	Keyboard *tgbotapi.InlineKeyboardMarkup
}

// Recorder is an in-memory Messenger for tests and dry runs. Err, when set,
// is returned by every send.
type Recorder struct {
	mu   sync.Mutex
	sent []Sent
	Err  error
}

func (r *Recorder) SendText(ctx context.Context, chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) error {
	return r.record(Sent{Kind: "text", ChatID: chatID, Text: text, Keyboard: keyboard})
}

func (r *Recorder) SendPhoto(ctx context.Context, chatID int64, png []byte, caption string, keyboard *tgbotapi.InlineKeyboardMarkup) error {
	return r.record(Sent{Kind: "photo", ChatID: chatID, Text: caption, Data: png, Keyboard: keyboard})
}

func (r *Recorder) SendDocument(ctx context.Context, chatID int64, name string, data []byte, caption string) error {
	return r.record(Sent{Kind: "document", ChatID: chatID, Text: caption, Name: name, Data: data})
}

func (r *Recorder) AnswerCallback(ctx context.Context, callbackID, text string) error {
	return r.record(Sent{Kind: "callback", Text: text, Name: callbackID})
}

func (r *Recorder) Messages() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Sent, len(r.sent))
	copy(out, r.sent)
	return out
}

func (r *Recorder) OfKind(kind string) []Sent {
	var out []Sent
	for _, m := range r.Messages() {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

func (r *Recorder) record(s Sent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.sent = append(r.sent, s)
	return nil
}

var _ Messenger = (*Recorder)(nil)
