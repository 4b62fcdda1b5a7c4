package repositories

import (
	"log/slog"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func Test_Append_Then_Read_Conversation(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()

	repository := NewMessageRepository(db, slog.Default(), nil)
	alice := "6b1e4a9e-0000-4000-8000-000000000001"
	bob := "6b1e4a9e-0000-4000-8000-000000000002"

	texts := []string{"hello", "how are you", "fine thanks"}
	for i, text := range texts {
		sender, receiver := alice, bob
		if i%2 == 1 {
			sender, receiver = bob, alice
		}
		stored, err := repository.Append(DiskMessage{SenderID: sender, ReceiverID: receiver, Text: text})
		req.NoError(err)
		req.NotEqual("00000000-0000-0000-0000-000000000000", stored.ID.String())
		req.False(stored.At.IsZero())
	}

	// Both directions land in the same conversation, ascending order
	fetched, _, err := repository.GetConversation(alice, bob, nil)
	req.NoError(err)
	req.Len(fetched, len(texts))
	for i, text := range texts {
		req.Equal(text, fetched[i].Text)
	}

	// Querying with the pair flipped reads the exact same history
	flipped, _, err := repository.GetConversation(bob, alice, nil)
	req.NoError(err)
	req.Equal(fetched, flipped)
}

func Test_Append_Requires_Both_Identities(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()

	repository := NewMessageRepository(db, slog.Default(), nil)

	_, err = repository.Append(DiskMessage{SenderID: "", ReceiverID: "someone", Text: "hi"})
	req.Error(err)

	_, err = repository.Append(DiskMessage{SenderID: "someone", ReceiverID: "", Text: "hi"})
	req.Error(err)
}

func Test_Conversations_Are_Isolated(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()

	repository := NewMessageRepository(db, slog.Default(), nil)
	alice, bob, clara := "user-a", "user-b", "user-c"

	_, err = repository.Append(DiskMessage{SenderID: alice, ReceiverID: bob, Text: "for bob"})
	req.NoError(err)
	_, err = repository.Append(DiskMessage{SenderID: alice, ReceiverID: clara, Text: "for clara"})
	req.NoError(err)

	fetched, _, err := repository.GetConversation(alice, bob, nil)
	req.NoError(err)
	req.Len(fetched, 1)
	req.Equal("for bob", fetched[0].Text)
}

func Test_Conversation_Limit_And_Cursor(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()

	limit := 2
	repository := NewMessageRepository(db, slog.Default(), &limit)
	alice, bob := "user-a", "user-b"

	texts := []string{"one", "two", "three"}
	for _, text := range texts {
		_, err = repository.Append(DiskMessage{SenderID: alice, ReceiverID: bob, Text: text})
		req.NoError(err)
	}

	// First page holds the two newest messages, oldest-first
	page, cursor, err := repository.GetConversation(alice, bob, nil)
	req.NoError(err)
	req.Len(page, limit)
	req.Equal("two", page[0].Text)
	req.Equal("three", page[1].Text)

	// Second page resumes behind the cursor
	req.NotNil(cursor)
	page, _, err = repository.GetConversation(alice, bob, cursor)
	req.NoError(err)
	req.Len(page, 1)
	req.Equal("one", page[0].Text)
}
