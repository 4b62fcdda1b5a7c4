// Package httpapi exposes the REST surface: session issuance, the user
// directory, conversation history, message sending and search. Every
// route except auth runs behind the JWT middleware; handlers read the
// verified identity from the request context, never from the payload.
package httpapi

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"linkup/auth"
	"linkup/domain"
	"linkup/errors"
	"linkup/repositories"
	"linkup/services"
	"linkup/storage"

	"github.com/samber/lo"
)

const maxAttachmentBytes = 10 << 20 // 10 MB

type Server struct {
	log     *slog.Logger
	chat    services.IChatService
	auth    services.IAuthService
	objects storage.IObjectStorage
}

func NewServer(log *slog.Logger, chat services.IChatService,
	authService services.IAuthService, objects storage.IObjectStorage) *Server {
	return &Server{log: log, chat: chat, auth: authService, objects: objects}
}

// Routes mounts every REST endpoint on a fresh mux. The realtime
// channel and attachment file serving are mounted by the caller, which
// owns their lifecycles.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/v1/auth/login", s.handleLogin)

	mux.Handle("GET /api/v1/messages/users", auth.Middleware(http.HandlerFunc(s.handleSidebar)))
	mux.Handle("GET /api/v1/messages/search", auth.Middleware(http.HandlerFunc(s.handleSearch)))
	mux.Handle("GET /api/v1/messages/{id}", auth.Middleware(http.HandlerFunc(s.handleHistory)))
	mux.Handle("POST /api/v1/messages/send/{id}", auth.Middleware(http.HandlerFunc(s.handleSend)))

	return mux
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", errors.ErrInvalidPeer, err))
		return
	}

	token, err := s.auth.Register(req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	s.writeSession(w, token, http.StatusCreated)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", errors.ErrInvalidPeer, err))
		return
	}

	token, err := s.auth.Login(req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	s.writeSession(w, token, http.StatusOK)
}

func (s *Server) writeSession(w http.ResponseWriter, token services.Token, status int) {
	claims, err := auth.ValidateToken(string(token))
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", errors.ErrTokenGeneration, err))
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "jwt",
		Value:    string(token),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, status, sessionResponse{Token: string(token), UserID: claims.UserID})
}

type apiUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (s *Server) handleSidebar(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	users, err := s.chat.ListContacts(userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(users, func(u repositories.User, _ int) apiUser {
		return apiUser{ID: u.ID, Email: u.Email}
	}))
}

type apiAttachment struct {
	StorageID string `json:"storageId"`
	URL       string `json:"url"`
}

type apiMessage struct {
	ID         string         `json:"id"`
	SenderID   string         `json:"senderId"`
	ReceiverID string         `json:"receiverId"`
	Text       string         `json:"text,omitempty"`
	Attachment *apiAttachment `json:"attachment,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

type historyResponse struct {
	Messages []apiMessage `json:"messages"`
	Cursor   *string      `json:"cursor,omitempty"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	cmd := domain.GetConversationCommand{
		UserID: auth.UserIDFromContext(r.Context()),
		PeerID: r.PathValue("id"),
	}
	if cursor := r.URL.Query().Get("cursor"); cursor != "" {
		cmd.Cursor = &cursor
	}

	messages, cursor, err := s.chat.GetConversation(cmd)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{
		Messages: lo.Map(messages, func(m domain.Message, _ int) apiMessage {
			return toAPIMessage(m)
		}),
		Cursor: cursor,
	})
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	senderID := auth.UserIDFromContext(r.Context())
	receiverID := r.PathValue("id")

	text, attachment, err := s.parseSendBody(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := auth.ValidateSendMessage(auth.SendMessageRequest{ReceiverID: receiverID, Text: text}); err != nil {
		writeError(w, err)
		return
	}

	message, err := s.chat.SendMessage(r.Context(), domain.SendMessageCommand{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
		Attachment: attachment,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAPIMessage(message))
}

// parseSendBody accepts either a JSON body {"text": ...} or a multipart
// form with a "text" field and an optional "file" part, which is
// uploaded to object storage before the message enters the pipeline.
func (s *Server) parseSendBody(r *http.Request) (string, *domain.Attachment, error) {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "multipart/form-data") {
		var body struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && err != io.EOF {
			return "", nil, fmt.Errorf("%w: %v", errors.ErrInvalidPeer, err)
		}
		return body.Text, nil, nil
	}

	if err := r.ParseMultipartForm(maxAttachmentBytes); err != nil {
		return "", nil, fmt.Errorf("%w: %v", errors.ErrInvalidPeer, err)
	}
	text := r.FormValue("text")

	file, _, err := r.FormFile("file")
	if err == http.ErrMissingFile {
		return text, nil, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", errors.ErrInvalidPeer, err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxAttachmentBytes))
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", errors.ErrInvalidPeer, err)
	}

	ref, err := s.objects.Upload(data)
	if err != nil {
		return "", nil, err
	}
	return text, &domain.Attachment{StorageID: ref.StorageID, URL: ref.URL}, nil
}

type searchResponse struct {
	Hits []searchHit `json:"hits"`
}

type searchHit struct {
	MessageID string `json:"messageId"`
	Text      string `json:"text"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	peerID := r.URL.Query().Get("peer")
	terms := r.URL.Query().Get("q")

	hits, err := s.chat.Search(r.Context(), userID, peerID, terms)
	if err != nil {
		writeError(w, err)
		return
	}

	response := searchResponse{Hits: []searchHit{}}
	for _, hit := range hits {
		response.Hits = append(response.Hits, searchHit{MessageID: hit.MessageID, Text: hit.Text})
	}
	writeJSON(w, http.StatusOK, response)
}

func toAPIMessage(m domain.Message) apiMessage {
	api := apiMessage{
		ID:         m.ID.String(),
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Text:       m.Text,
		CreatedAt:  m.CreatedAt,
	}
	if m.Attachment != nil {
		api.Attachment = &apiAttachment{StorageID: m.Attachment.StorageID, URL: m.Attachment.URL}
	}
	return api
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps the internal taxonomy to HTTP statuses. Delivery
// failures never reach this point: they are swallowed upstream.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case stderrors.Is(err, errors.ErrAuthenticationMissing),
		stderrors.Is(err, errors.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case stderrors.Is(err, errors.ErrInvalidPeer),
		stderrors.Is(err, errors.ErrEmptyMessage),
		stderrors.Is(err, errors.ErrInvalidPassword),
		stderrors.Is(err, errors.ErrUnsupportedAttachment):
		status = http.StatusBadRequest
	case stderrors.Is(err, errors.ErrNotFound):
		status = http.StatusNotFound
	case stderrors.Is(err, errors.ErrUserAlreadyExists):
		status = http.StatusConflict
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
