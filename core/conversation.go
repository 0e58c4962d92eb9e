package core

import "time"

type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

// Message is one entry of a prompt sent to a reply generator.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// Turn is one completed user/assistant exchange. Turns are immutable once
// recorded in a session.
type Turn struct {
	UserText      string    `json:"user_text"`
	AssistantText string    `json:"assistant_text"`
	AudioRef      *AudioRef `json:"audio_ref,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewTurn stamps a turn with the current time.
func NewTurn(userText, assistantText string, audio *AudioRef) Turn {
	return Turn{
		UserText:      userText,
		AssistantText: assistantText,
		AudioRef:      audio,
		CreatedAt:     time.Now().UTC(),
	}
}

// Messages flattens turns into alternating user/assistant messages.
func Messages(turns []Turn) []Message {
	out := make([]Message, 0, len(turns)*2)
	for _, t := range turns {
		out = append(out,
			Message{Role: MessageRoleUser, Content: t.UserText},
			Message{Role: MessageRoleAssistant, Content: t.AssistantText},
		)
	}
	return out
}

// LastTurns returns at most n trailing turns. n <= 0 returns none.
func LastTurns(turns []Turn, n int) []Turn {
	if n <= 0 {
		return nil
	}
	if len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}
