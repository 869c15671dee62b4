package conversation

import (
	"fmt"
	"sync/atomic"
	"time"

	"cse-market-assistant/internal/cse"
)

// MaxHistory bounds the conversation to the most recent turns; older
// messages are dropped silently.
const MaxHistory = 20

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversational turn. It is never mutated after creation and
// is removed only by a full history clear.
type Message struct {
	ID        string     `json:"id"`
	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	Timestamp time.Time  `json:"timestamp"`
	Quote     *cse.Quote `json:"quote,omitempty"`
	IsError   bool       `json:"isError,omitempty"`
}

var seq uint64

// NewMessage builds a message with a unique, monotonically increasing id.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        fmt.Sprintf("%d-%d", time.Now().UnixMilli(), atomic.AddUint64(&seq, 1)),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

// Turn is a prior exchange in the wire shape the LLM backend expects:
// the assistant role maps to "model".
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// History is the ordered, length-bounded message log, oldest first.
type History struct {
	messages []Message
}

// NewHistory starts a history from previously persisted messages, keeping
// only the most recent MaxHistory of them.
func NewHistory(initial []Message) *History {
	h := &History{}
	for _, m := range initial {
		h.Add(m)
	}
	return h
}

func (h *History) Add(m Message) {
	h.messages = append(h.messages, m)
	if len(h.messages) > MaxHistory {
		h.messages = h.messages[len(h.messages)-MaxHistory:]
	}
}

// Messages returns a copy of the log, oldest first.
func (h *History) Messages() []Message {
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

func (h *History) Len() int {
	return len(h.messages)
}

func (h *History) Clear() {
	h.messages = nil
}

// APITurns converts the log into LLM-backend turns, user mapped to "user"
// and assistant to "model".
func (h *History) APITurns() []Turn {
	out := make([]Turn, 0, len(h.messages))
	for _, m := range h.messages {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		out = append(out, Turn{Role: role, Text: m.Content})
	}
	return out
}
