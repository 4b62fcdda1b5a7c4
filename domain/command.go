package domain

// SendMessageCommand is the intent of a sender to deliver a direct
// message. SenderID must come from the verified session, never from the
// request body.
type SendMessageCommand struct {
	SenderID   string
	ReceiverID string
	Text       string
	Attachment *Attachment
}

// GetConversationCommand requests the history between the caller and a
// peer. Cursor is the opaque pagination position returned by a previous
// call, nil for the latest page.
type GetConversationCommand struct {
	UserID string
	PeerID string
	Cursor *string
}
