package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func UserMessage(content string) Message      { return Message{Role: RoleUser, Content: content} }
func AssistantMessage(content string) Message { return Message{Role: RoleAssistant, Content: content} }
func SystemMessage(content string) Message    { return Message{Role: RoleSystem, Content: content} }

// Conversation is the ordered history of one chat session. It is created at
// session start and mutated only by the orchestrator running its turns.
type Conversation struct {
	mu   sync.RWMutex
	msgs []Message
}

// Stats counts messages by role.
type Stats struct {
	User      int `json:"user"`
	Assistant int `json:"assistant"`
	System    int `json:"system"`
}

func (s Stats) Total() int { return s.User + s.Assistant + s.System }

func NewConversation(msgs ...Message) *Conversation {
	return &Conversation{msgs: append([]Message(nil), msgs...)}
}

// Append adds messages to the end of the history.
func (c *Conversation) Append(msgs ...Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msgs...)
}

// Messages returns a copy of the history.
func (c *Conversation) Messages() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Message(nil), c.msgs...)
}

func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.msgs)
}

// Last returns the newest message, if any.
func (c *Conversation) Last() (Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.msgs) == 0 {
		return Message{}, false
	}
	return c.msgs[len(c.msgs)-1], true
}

func (c *Conversation) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var s Stats
	for _, m := range c.msgs {
		switch m.Role {
		case RoleUser:
			s.User++
		case RoleAssistant:
			s.Assistant++
		case RoleSystem:
			s.System++
		}
	}
	return s
}

// Clear drops the whole history.
func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = nil
}

// LoadConversation reads a saved history. A missing file yields nil messages
// and no error.
func LoadConversation(path string) ([]Message, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var msgs []Message
	if err := json.Unmarshal(b, &msgs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return msgs, nil
}

// SaveConversation writes msgs as indented JSON, replacing path atomically.
func SaveConversation(path string, msgs []Message) error {
	if msgs == nil {
		msgs = []Message{}
	}
	b, err := json.MarshalIndent(msgs, "", " ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".conversation-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Load returns a Conversation seeded from path.
func Load(path string) (*Conversation, error) {
	msgs, err := LoadConversation(path)
	if err != nil {
		return nil, err
	}
	return NewConversation(msgs...), nil
}

// Save persists the conversation to path.
func (c *Conversation) Save(path string) error {
	return SaveConversation(path, c.Messages())
}
