// Package domain contains core concepts of the messaging system.
// This file defines the Message entity and conversation rules.
// Messages are immutable once persisted.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Attachment references a blob held by the external object storage.
// Only the reference is persisted, never the bytes.
type Attachment struct {
	StorageID string
	URL       string
}

// Message represents an immutable direct message between two users.
type Message struct {
	ID         uuid.UUID // unique identifier
	SenderID   string
	ReceiverID string
	Text       string
	Attachment *Attachment
	CreatedAt  time.Time
}

// Empty reports whether the message carries no deliverable content.
func (m Message) Empty() bool {
	return m.Text == "" && m.Attachment == nil
}

// ConversationKey builds the canonical identifier of the conversation
// between two users. The pair is ordered lexicographically so that both
// directions of traffic share a single key.
func ConversationKey(userA, userB string) string {
	if strings.Compare(userA, userB) > 0 {
		userA, userB = userB, userA
	}
	return userA + ":" + userB
}
