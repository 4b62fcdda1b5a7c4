package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"linkup/contract"
	"linkup/domain"
	"linkup/domain/event"
	"linkup/errors"
	"linkup/moderation"
	"linkup/repositories"

	"github.com/abadojack/whatlanggo"
	"github.com/samber/lo"
)

// Pipeline orchestrates message delivery: validation, moderation,
// durable persistence, then a best-effort point-to-point push to the
// recipient's live connection. Persistence strictly precedes any
// realtime action, so history correctness never depends on delivery
// outcome. Store I/O always runs outside the registry's lock.
type Pipeline struct {
	log             *slog.Logger
	registry        contract.IConnectionRegistry
	messages        repositories.IMessageRepository
	index           repositories.ISearchIndex
	moderator       *moderation.Moderator
	presenceChanges chan event.PresenceChanged
	sinkTimeout     time.Duration
}

func NewPipeline(log *slog.Logger, registry contract.IConnectionRegistry,
	messages repositories.IMessageRepository, index repositories.ISearchIndex,
	moderator *moderation.Moderator, bufferSize int, sinkTimeout time.Duration) *Pipeline {
	return &Pipeline{
		log:             log,
		registry:        registry,
		messages:        messages,
		index:           index,
		moderator:       moderator,
		presenceChanges: make(chan event.PresenceChanged, bufferSize),
		sinkTimeout:     sinkTimeout,
	}
}

// PresenceChanges is consumed by the supervised presence fan-out worker.
func (p *Pipeline) PresenceChanges() chan event.PresenceChanged {
	return p.presenceChanges
}

// Connect registers a live connection for a verified user and, when the
// online set actually changed, queues a presence notification.
func (p *Pipeline) Connect(userID, connID string, sink contract.EventSink) {
	if changed := p.registry.Register(userID, connID, sink); changed {
		p.notifyPresence()
	}
}

// Disconnect drops a connection. Unknown or stale connection IDs are
// no-ops and emit nothing.
func (p *Pipeline) Disconnect(connID string) {
	if _, changed := p.registry.Unregister(connID); changed {
		p.notifyPresence()
	}
}

func (p *Pipeline) notifyPresence() {
	snapshot := event.PresenceChanged{Online: p.registry.Snapshot()}
	select {
	case p.presenceChanges <- snapshot:
	default:
		// Stale presence heals on the next successful notification
		p.log.Warn("Presence channel full, dropping notification")
	}
}

// SendMessage runs the full delivery pipeline and returns the persisted
// message. The caller learns whether the message was durably recorded;
// it never learns whether the realtime push reached the recipient.
func (p *Pipeline) SendMessage(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error) {
	if cmd.SenderID == "" {
		return domain.Message{}, errors.ErrAuthenticationMissing
	}
	if cmd.ReceiverID == "" {
		return domain.Message{}, errors.ErrInvalidPeer
	}
	if cmd.Text == "" && cmd.Attachment == nil {
		return domain.Message{}, errors.ErrEmptyMessage
	}

	text := p.censor(cmd)

	disk := repositories.DiskMessage{
		SenderID:   cmd.SenderID,
		ReceiverID: cmd.ReceiverID,
		Text:       text,
	}
	if cmd.Attachment != nil {
		disk.AttachmentID = cmd.Attachment.StorageID
		disk.AttachmentURL = cmd.Attachment.URL
	}

	// Durability first; a storage fault aborts with nothing emitted
	stored, err := p.messages.Append(disk)
	if err != nil {
		return domain.Message{}, err
	}

	// Derived index, never fatal: badger already holds the message
	if p.index != nil {
		if err := p.index.Index(stored); err != nil {
			p.log.Warn("Search indexing failed", "message_id", stored.ID, "error", err)
		}
	}

	message := toDomainMessage(stored)
	p.push(ctx, cmd.ReceiverID, message)

	return message, nil
}

// push attempts the point-to-point realtime delivery. An offline
// recipient or a failing connection is not an error: the message is
// already durably stored and will be served on the next history pull.
func (p *Pipeline) push(ctx context.Context, receiverID string, message domain.Message) {
	sink, online := p.registry.Lookup(receiverID)
	if !online {
		return
	}

	pushCtx, cancel := context.WithTimeout(ctx, p.sinkTimeout)
	defer cancel()
	if err := sink.Consume(pushCtx, event.NewMessage{Message: message}); err != nil {
		p.log.Warn("Realtime push failed, message remains stored",
			"message_id", message.ID,
			"receiver_id", receiverID,
			"error", err)
	}
}

// censor masks blocked words before persistence and logs masked
// messages with their detected language for moderation follow-up.
func (p *Pipeline) censor(cmd domain.SendMessageCommand) string {
	if p.moderator == nil || cmd.Text == "" {
		return cmd.Text
	}
	masked, words := p.moderator.Censor(cmd.Text)
	if len(words) > 0 {
		info := whatlanggo.Detect(cmd.Text)
		p.log.Warn("Message text masked by moderation",
			"sender_id", cmd.SenderID,
			"lang", info.Lang.Iso6391(),
			"words", fmt.Sprintf("%d", len(words)))
	}
	return masked
}

// GetConversation serves the durable history between the caller and a
// peer, oldest-first, with cursor pagination.
func (p *Pipeline) GetConversation(cmd domain.GetConversationCommand) ([]domain.Message, *string, error) {
	if cmd.UserID == "" {
		return nil, nil, errors.ErrAuthenticationMissing
	}
	if cmd.PeerID == "" {
		return nil, nil, errors.ErrInvalidPeer
	}
	messages, cursor, err := p.messages.GetConversation(cmd.UserID, cmd.PeerID, cmd.Cursor)
	if err != nil {
		return nil, nil, err
	}
	return fromDiskMessages(messages), cursor, nil
}

// Search queries the full-text index within one conversation.
func (p *Pipeline) Search(ctx context.Context, userID, peerID, terms string) ([]repositories.SearchHit, error) {
	if userID == "" {
		return nil, errors.ErrAuthenticationMissing
	}
	if peerID == "" {
		return nil, errors.ErrInvalidPeer
	}
	if p.index == nil {
		return nil, nil
	}
	return p.index.Search(ctx, terms, userID, peerID)
}

func fromDiskMessages(messages []repositories.DiskMessage) []domain.Message {
	return lo.Map(messages, func(item repositories.DiskMessage, _ int) domain.Message {
		return toDomainMessage(item)
	})
}

func toDomainMessage(item repositories.DiskMessage) domain.Message {
	message := domain.Message{
		ID:         item.ID,
		SenderID:   item.SenderID,
		ReceiverID: item.ReceiverID,
		Text:       item.Text,
		CreatedAt:  item.At,
	}
	if item.AttachmentID != "" || item.AttachmentURL != "" {
		message.Attachment = &domain.Attachment{
			StorageID: item.AttachmentID,
			URL:       item.AttachmentURL,
		}
	}
	return message
}
