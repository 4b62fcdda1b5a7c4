package services

import (
	"context"

	"linkup/contract"
	"linkup/domain"
	"linkup/repositories"
	"linkup/runtime"
)

type IChatService interface {
	SendMessage(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error)
	GetConversation(cmd domain.GetConversationCommand) ([]domain.Message, *string, error)
	Search(ctx context.Context, userID, peerID, terms string) ([]repositories.SearchHit, error)
	ListContacts(userID string) ([]repositories.User, error)
	Connect(userID, connID string, sink contract.EventSink)
	Disconnect(connID string)
}

// ChatService fronts the delivery pipeline for the transport layer and
// serves the user directory for the conversation sidebar.
type ChatService struct {
	pipeline *runtime.Pipeline
	users    repositories.IUserRepository
}

func NewChatService(pipeline *runtime.Pipeline, users repositories.IUserRepository) *ChatService {
	return &ChatService{pipeline: pipeline, users: users}
}

func (s *ChatService) SendMessage(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error) {
	return s.pipeline.SendMessage(ctx, cmd)
}

func (s *ChatService) GetConversation(cmd domain.GetConversationCommand) ([]domain.Message, *string, error) {
	return s.pipeline.GetConversation(cmd)
}

func (s *ChatService) Search(ctx context.Context, userID, peerID, terms string) ([]repositories.SearchHit, error) {
	return s.pipeline.Search(ctx, userID, peerID, terms)
}

func (s *ChatService) ListContacts(userID string) ([]repositories.User, error) {
	return s.users.ListUsers(userID)
}

func (s *ChatService) Connect(userID, connID string, sink contract.EventSink) {
	s.pipeline.Connect(userID, connID, sink)
}

func (s *ChatService) Disconnect(connID string) {
	s.pipeline.Disconnect(connID)
}
