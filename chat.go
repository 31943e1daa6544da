package main

import "time"

// timestampFormat is the human-readable local timestamp stamped on chat
// messages and pong replies.
const timestampFormat = "2006-01-02 15:04:05.000 -0700"

// ChatMessage is one entry in a chat log.
type ChatMessage struct {
	Username  string `json:"username"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// Chat is an append-only message log. The room holds one for room-wide
// broadcasts and every file view holds its own.
type Chat struct {
	messages []ChatMessage
}

// Add appends a message stamped with the current local time.
func (c *Chat) Add(username, content string) {
	c.messages = append(c.messages, ChatMessage{
		Username:  username,
		Content:   content,
		Timestamp: time.Now().Format(timestampFormat),
	})
}

// Len returns the number of logged messages.
func (c *Chat) Len() int {
	return len(c.messages)
}

// Messages returns a copy of the log.
func (c *Chat) Messages() []ChatMessage {
	out := make([]ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out
}
