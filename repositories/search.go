package repositories

import (
	"context"
	"log/slog"

	"linkup/domain"

	"github.com/blugelabs/bluge"
)

type ISearchIndex interface {
	Index(message DiskMessage) error
	Search(ctx context.Context, terms, userA, userB string) ([]SearchHit, error)
}

// SearchIndex maintains a Bluge full-text index over message text.
// The index is derived state: it is written best-effort after a message
// is durably stored and can always be rebuilt from BadgerDB.
type SearchIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
	limit  int
}

func NewSearchIndex(writer *bluge.Writer, log *slog.Logger, limit int) *SearchIndex {
	return &SearchIndex{writer: writer, log: log, limit: limit}
}

// SearchHit is one indexed message matching a query.
type SearchHit struct {
	MessageID    string
	Conversation string
	Text         string
}

// Index adds one message to the full-text index, keyed by message ID.
// The conversation key is stored as a keyword so searches can be scoped
// to the caller's own conversations.
func (s *SearchIndex) Index(message DiskMessage) error {
	if message.Text == "" {
		return nil
	}
	doc := bluge.NewDocument(message.ID.String()).
		AddField(bluge.NewTextField("text", message.Text).StoreValue()).
		AddField(bluge.NewKeywordField("conversation",
			domain.ConversationKey(message.SenderID, message.ReceiverID)).StoreValue()).
		AddField(bluge.NewDateTimeField("at", message.At))
	return s.writer.Update(doc.ID(), doc)
}

// Search matches terms against message text inside a single
// conversation. Results carry stored fields only; full entities are
// fetched from the message repository by the caller when needed.
func (s *SearchIndex) Search(ctx context.Context, terms, userA, userB string) ([]SearchHit, error) {
	reader, err := s.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()

	convKey := domain.ConversationKey(userA, userB)
	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(terms).SetField("text")).
		AddMust(bluge.NewTermQuery(convKey).SetField("conversation"))

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(s.limit, query))
	if err != nil {
		return nil, err
	}

	var hits []SearchHit
	match, err := iterator.Next()
	for err == nil && match != nil {
		hit := SearchHit{}
		visitErr := match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				hit.MessageID = string(value)
			case "conversation":
				hit.Conversation = string(value)
			case "text":
				hit.Text = string(value)
			}
			return true
		})
		if visitErr != nil {
			s.log.Warn("Skipping unreadable search hit", "error", visitErr)
		} else {
			hits = append(hits, hit)
		}
		match, err = iterator.Next()
	}
	if err != nil {
		return nil, err
	}
	return hits, nil
}
