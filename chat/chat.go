// Package chat keeps the transcript of a conversational BI session.
package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/onyxprism/prism/apperr"
	"github.com/onyxprism/prism/applog"
)

const (
	Greeting = "Hello! I'm your AI assistant. How can I help you today?"
	Fallback = "I received your message but couldn't process it properly."
	Apology  = "Sorry, I'm having trouble processing your request right now. Please try again."
)

// Sender says who wrote a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

type Message struct {
	ID     int
	Text   string
	Sender Sender
	At     time.Time
}

// Backend answers one question about the database dbID.
type Backend interface {
	Ask(ctx context.Context, dbID, input string) (string, error)
}

// Conversation is a transcript plus the single outstanding request.
// It is safe for concurrent use; the TUI calls Begin from the update loop
// and Finish from a command goroutine.
type Conversation struct {
	mu       sync.Mutex
	messages []Message
	waiting  bool
	now      func() time.Time
}

func New() *Conversation {
	c := &Conversation{now: time.Now}
	c.append(Greeting, SenderBot)
	return c
}

func (c *Conversation) append(text string, from Sender) {
	c.messages = append(c.messages, Message{
		ID:     len(c.messages) + 1,
		Text:   text,
		Sender: from,
		At:     c.now(),
	})
}

// Messages returns a copy of the transcript.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.messages...)
}

// Waiting reports whether a reply is outstanding.
func (c *Conversation) Waiting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waiting
}

// Begin records the user's message and marks the conversation as waiting.
// It returns the trimmed prompt, or false when text is blank or another
// reply is still outstanding.
func (c *Conversation) Begin(text string) (string, bool) {
	prompt := strings.TrimSpace(text)
	c.mu.Lock()
	defer c.mu.Unlock()
	if prompt == "" || c.waiting {
		return "", false
	}
	c.append(prompt, SenderUser)
	c.waiting = true
	return prompt, true
}

// Finish records the outcome of the request started by Begin.
// Validation and auth failures add nothing to the transcript; any other
// error adds the apology.
func (c *Conversation) Finish(reply string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waiting = false

	switch {
	case err == nil:
		if reply == "" {
			reply = Fallback
		}
		c.append(FormatReply(reply), SenderBot)
	case apperr.IsKind(err, apperr.KindValidation), apperr.IsKind(err, apperr.KindAuth):
	default:
		c.append(Apology, SenderBot)
	}
}

// Send runs Begin, the request and Finish in one call. sent is false
// when the message was ignored.
func (c *Conversation) Send(ctx context.Context, b Backend, dbID, text string) (sent bool, err error) {
	prompt, ok := c.Begin(text)
	if !ok {
		return false, nil
	}
	reply, err := b.Ask(ctx, dbID, prompt)
	if err != nil {
		applog.Error("chat: %v", err)
	}
	c.Finish(reply, err)
	return true, err
}

// FormatReply turns literal "\n" escape sequences into line breaks.
func FormatReply(s string) string {
	return strings.ReplaceAll(s, `\n`, "\n")
}
