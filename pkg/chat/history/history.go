// Package history keeps the messages exchanged while answering one query.
package history

import (
	"errors"
	"fmt"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleFunction  Role = "function"
)

// FunctionCall is a tool invocation requested by the model. Arguments is the
// JSON text as the model produced it.
type FunctionCall struct {
	ID        string
	Name      string
	Arguments string
}

type Message struct {
	Role Role
	// Name is the called function for function messages.
	Name    string
	Content string
	// Call is set on assistant messages requesting a function call.
	Call *FunctionCall
}

var ErrNameMismatch = errors.New("function result does not follow its call")

// Conversation is the append-only history of one query. It is owned by a
// single loop and must not be shared between queries.
type Conversation struct {
	prompt   Message
	messages []Message
}

func New(prompt string) *Conversation {
	return &Conversation{
		prompt: Message{Role: RoleUser, Content: prompt},
	}
}

func (c *Conversation) Prompt() string {
	return c.prompt.Content
}

// Len counts the prompt and every appended message.
func (c *Conversation) Len() int {
	return 1 + len(c.messages)
}

// Messages returns the prompt followed by the appended messages.
func (c *Conversation) Messages() []Message {
	msgs := make([]Message, 0, c.Len())
	msgs = append(msgs, c.prompt)
	for _, m := range c.messages {
		if m.Call != nil {
			call := *m.Call
			m.Call = &call
		}
		msgs = append(msgs, m)
	}
	return msgs
}

func (c *Conversation) AppendAnswer(content string) {
	c.messages = append(c.messages, Message{Role: RoleAssistant, Content: content})
}

func (c *Conversation) AppendCall(call FunctionCall) {
	c.messages = append(c.messages, Message{Role: RoleAssistant, Call: &call})
}

// AppendResult records the output of the function called by the preceding
// assistant message.
func (c *Conversation) AppendResult(name, content string) error {
	last, ok := c.lastCall()
	if !ok {
		return fmt.Errorf("%w: no pending call for %s", ErrNameMismatch, name)
	}
	if last.Name != name {
		return fmt.Errorf("%w: called %s, got %s", ErrNameMismatch, last.Name, name)
	}
	c.messages = append(c.messages, Message{Role: RoleFunction, Name: name, Content: content})
	return nil
}

func (c *Conversation) lastCall() (*FunctionCall, bool) {
	if len(c.messages) == 0 {
		return nil, false
	}
	last := c.messages[len(c.messages)-1]
	if last.Role != RoleAssistant || last.Call == nil {
		return nil, false
	}
	return last.Call, true
}

// CallIDFor finds the call id a function message at index i of Messages()
// answers.
func CallIDFor(msgs []Message, i int) string {
	if i <= 0 || i >= len(msgs) || msgs[i].Role != RoleFunction {
		return ""
	}
	prev := msgs[i-1]
	if prev.Call == nil {
		return ""
	}
	return prev.Call.ID
}
