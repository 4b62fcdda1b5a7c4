//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"linkup/domain"
	"linkup/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IMessageRepository interface {
	Append(message DiskMessage) (DiskMessage, error)
	GetConversation(userA, userB string, cursor *string) ([]DiskMessage, *string, error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

// DiskMessage is the storage-level representation of a direct message.
type DiskMessage struct {
	ID            uuid.UUID
	SenderID      string
	ReceiverID    string
	Text          string
	AttachmentID  string
	AttachmentURL string
	At            time.Time
}

// storedMessage is the on-disk JSON layout. Timestamps are kept as
// UnixNano so the value round-trips without timezone drift.
type storedMessage struct {
	ID            string `json:"id"`
	SenderID      string `json:"sender_id"`
	ReceiverID    string `json:"receiver_id"`
	Text          string `json:"text,omitempty"`
	AttachmentID  string `json:"attachment_id,omitempty"`
	AttachmentURL string `json:"attachment_url,omitempty"`
	At            int64  `json:"at"`
}

// Append assigns the message identity and creation timestamp, then
// persists it in BadgerDB. The key is formatted as
// "msg:{conversation_key}:{timestamp_padded}:{uuid}" to:
//  1. Group both directions of a conversation under a single prefix.
//  2. Ensure chronological sorting using 19-digit zero padding
//     (lexicographical order).
//  3. Prevent data loss by using UUID as a collision disconnector if two
//     messages arrive at the same nanosecond.
func (m MessageRepository) Append(message DiskMessage) (DiskMessage, error) {
	if message.SenderID == "" || message.ReceiverID == "" {
		return DiskMessage{}, fmt.Errorf("%w: sender and receiver are required", errors.ErrInvalidPeer)
	}

	message.ID = uuid.New()
	message.At = time.Now().UTC()

	key := fmt.Sprintf("msg:%s:%019d:%s",
		domain.ConversationKey(message.SenderID, message.ReceiverID),
		message.At.UnixNano(),
		message.ID,
	)
	bytes, err := json.Marshal(fromDiskMessage(message))
	if err != nil {
		return DiskMessage{}, fmt.Errorf("%w: %v", errors.ErrStorageFailure, err)
	}
	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), bytes)
	})
	if err != nil {
		return DiskMessage{}, fmt.Errorf("%w: %v", errors.ErrStorageFailure, err)
	}
	return message, nil
}

// GetConversation retrieves the messages exchanged between two users,
// in either direction, using a prefix scan over the shared conversation
// key. The scan walks backwards from the cursor (or from the newest
// entry) and stops at the configured limit; the collected page is then
// flipped so callers always receive ascending creation order. Each call
// re-reads current state, it never holds a live iterator.
func (m MessageRepository) GetConversation(userA, userB string, cursor *string) ([]DiskMessage, *string, error) {
	var byteMessages [][]byte
	var lastKey string
	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("msg:%s:", domain.ConversationKey(userA, userB))
		prefix := []byte(prefixStr)
		prefixLen := len(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past the newest possible timestamp, then walk back
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)

		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(byteMessages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *m.limitMessages))
				break
			}
			item := it.Item()
			// Memorize cursor part of the actual key
			lastKey = string(item.Key()[prefixLen:])
			err := item.Value(func(value []byte) error {
				byteMessages = append(byteMessages, value)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errors.ErrStorageFailure, err)
	}

	var diskMessages []DiskMessage
	for _, b := range byteMessages {
		var stored storedMessage
		if err = json.Unmarshal(b, &stored); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", errors.ErrStorageFailure, err)
		}
		message, err := toDiskMessage(stored)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", errors.ErrStorageFailure, err)
		}
		diskMessages = append(diskMessages, message)
	}

	// Reverse scan collected newest-first; history is served oldest-first
	for i, j := 0, len(diskMessages)-1; i < j; i, j = i+1, j-1 {
		diskMessages[i], diskMessages[j] = diskMessages[j], diskMessages[i]
	}
	return diskMessages, &lastKey, nil
}

func fromDiskMessage(message DiskMessage) storedMessage {
	return storedMessage{
		ID:            message.ID.String(),
		SenderID:      message.SenderID,
		ReceiverID:    message.ReceiverID,
		Text:          message.Text,
		AttachmentID:  message.AttachmentID,
		AttachmentURL: message.AttachmentURL,
		At:            message.At.UnixNano(),
	}
}

func toDiskMessage(stored storedMessage) (DiskMessage, error) {
	parsedID, err := uuid.Parse(stored.ID)
	if err != nil {
		return DiskMessage{}, err
	}
	return DiskMessage{
		ID:            parsedID,
		SenderID:      stored.SenderID,
		ReceiverID:    stored.ReceiverID,
		Text:          stored.Text,
		AttachmentID:  stored.AttachmentID,
		AttachmentURL: stored.AttachmentURL,
		At:            time.Unix(0, stored.At).UTC(),
	}, nil
}
