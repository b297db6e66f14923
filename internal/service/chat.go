package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloo-solutions/studycompanion/internal/domain"
	"github.com/cloo-solutions/studycompanion/internal/telemetry"
)

// Fixed chat replies for document-grounded messages
const (
	MessageMaterialNotFound = "The specified learning material was not found."
	messageStillProcessing  = "Your document '%s' is still being processed. Please wait a moment and try again."
)

// ChatStatus is the status field of a chat reply
type ChatStatus string

const (
	ChatStatusSuccess    ChatStatus = "success"
	ChatStatusProcessing ChatStatus = "processing"
	ChatStatusError      ChatStatus = "error"
)

// ConversationRepositoryInterface defines the repository interface for conversations and their messages
type ConversationRepositoryInterface interface {
	Create(ctx context.Context, c *domain.Conversation) error
	GetByID(ctx context.Context, id string) (*domain.Conversation, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Conversation, error)
	// Touch sets the conversation subject (when non-empty) and bumps updated_at.
	Touch(ctx context.Context, id string, subject domain.Subject) error
	Delete(ctx context.Context, id string) error
	DeleteAllByUser(ctx context.Context, userID string) (int64, error)
	CreateMessage(ctx context.Context, m *domain.ChatMessage) error
	ListMessages(ctx context.Context, conversationID string) ([]*domain.ChatMessage, error)
}

// SubjectAgents answers a question through the subject agents
type SubjectAgents interface {
	AskWithFallback(ctx context.Context, subject domain.Subject, question string) *AgentReply
}

// SubjectClassifier picks the subject for a message
type SubjectClassifier interface {
	Detect(ctx context.Context, message string) domain.Subject
}

// Answerer answers questions from the user's documents
type Answerer interface {
	Answer(ctx context.Context, input AskInput) (*Answer, error)
}

// ChatInput is one chat message from a user
type ChatInput struct {
	UserID         string
	Message        string
	ConversationID string
	DocumentID     string
	Subject        string
}

// ChatReply is the structured chat response
type ChatReply struct {
	Response          string
	Status            ChatStatus
	ConversationID    string
	ConversationTitle string
	Subject           domain.Subject
	Agent             string
	Label             string
	Confidence        *float64
	Citations         []domain.Citation
}

// ConversationDetail is a conversation with its messages in order
type ConversationDetail struct {
	Conversation *domain.Conversation
	Messages     []*domain.ChatMessage
}

// ChatService routes chat messages to the RAG answerer or the subject agents
type ChatService struct {
	conversations ConversationRepositoryInterface
	docs          DocumentRepositoryInterface
	answerer      Answerer
	agents        SubjectAgents
	classifier    SubjectClassifier
	uuidGen       UUIDGenerator
}

func NewChatService(
	conversations ConversationRepositoryInterface,
	docs DocumentRepositoryInterface,
	answerer Answerer,
	agents SubjectAgents,
	classifier SubjectClassifier,
) *ChatService {
	return NewChatServiceWithUUIDGen(conversations, docs, answerer, agents, classifier, &DefaultUUIDGenerator{})
}

func NewChatServiceWithUUIDGen(
	conversations ConversationRepositoryInterface,
	docs DocumentRepositoryInterface,
	answerer Answerer,
	agents SubjectAgents,
	classifier SubjectClassifier,
	uuidGen UUIDGenerator,
) *ChatService {
	return &ChatService{
		conversations: conversations,
		docs:          docs,
		answerer:      answerer,
		agents:        agents,
		classifier:    classifier,
		uuidGen:       uuidGen,
	}
}

func (s *ChatService) Chat(ctx context.Context, input ChatInput) (*ChatReply, error) {
	ctx, span := telemetry.StartSpan(ctx, "ChatService.Chat", telemetry.SpanAttributes{
		UserID:         input.UserID,
		ConversationID: input.ConversationID,
		DocumentID:     input.DocumentID,
		Operation:      "chat",
	})
	defer span.End()

	message := strings.TrimSpace(input.Message)
	if message == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "Please enter a message.")
	}
	input.Message = message

	if input.DocumentID != "" {
		return s.chatWithDocument(ctx, input)
	}
	return s.chatWithAgents(ctx, input)
}

func (s *ChatService) chatWithDocument(ctx context.Context, input ChatInput) (*ChatReply, error) {
	doc, err := s.docs.GetByID(ctx, input.DocumentID)
	if err != nil && !errors.Is(err, domain.ErrDocumentNotFound) {
		return nil, err
	}
	if err != nil || doc.UserID != input.UserID {
		return &ChatReply{Response: MessageMaterialNotFound, Status: ChatStatusError}, nil
	}

	if !doc.IsSearchable() {
		return &ChatReply{Response: fmt.Sprintf(messageStillProcessing, doc.Title), Status: ChatStatusProcessing}, nil
	}

	answer, err := s.answerer.Answer(ctx, AskInput{
		UserID:     input.UserID,
		Question:   input.Message,
		DocumentID: doc.ID,
	})
	if err != nil {
		return nil, err
	}

	confidence := answer.Confidence
	return &ChatReply{
		Response:   answer.Text,
		Status:     ChatStatusSuccess,
		Label:      answer.Label,
		Confidence: &confidence,
		Citations:  answer.Citations,
	}, nil
}

func (s *ChatService) chatWithAgents(ctx context.Context, input ChatInput) (*ChatReply, error) {
	var subject domain.Subject
	if requested, ok := domain.ParseSubject(input.Subject); ok {
		subject = requested
	} else {
		subject = s.classifier.Detect(ctx, input.Message)
	}

	conversation, err := s.loadOrCreateConversation(ctx, input, subject)
	if err != nil {
		return nil, err
	}

	if err := s.conversations.CreateMessage(ctx, &domain.ChatMessage{
		ID:             s.uuidGen.NewString(),
		ConversationID: conversation.ID,
		Type:           domain.MessageTypeUser,
		Content:        input.Message,
		CreatedAt:      time.Now().UTC(),
	}); err != nil {
		return nil, err
	}

	reply := s.agents.AskWithFallback(ctx, subject, input.Message)

	metadata := map[string]any{"outcome": string(reply.Outcome)}
	if reply.Label != "" {
		metadata["subject"] = string(reply.Subject)
		metadata["agent"] = reply.Agent
		metadata["label"] = reply.Label
	}
	if err := s.conversations.CreateMessage(ctx, &domain.ChatMessage{
		ID:             s.uuidGen.NewString(),
		ConversationID: conversation.ID,
		Type:           domain.MessageTypeBot,
		Content:        reply.Response,
		Metadata:       metadata,
		CreatedAt:      time.Now().UTC(),
	}); err != nil {
		return nil, err
	}

	var touchSubject domain.Subject
	if subject != domain.SubjectGeneral {
		touchSubject = subject
	}
	if err := s.conversations.Touch(ctx, conversation.ID, touchSubject); err != nil {
		return nil, err
	}

	return &ChatReply{
		Response:          reply.Response,
		Status:            ChatStatusSuccess,
		ConversationID:    conversation.ID,
		ConversationTitle: conversation.Title,
		Subject:           reply.Subject,
		Agent:             reply.Agent,
		Label:             reply.Label,
	}, nil
}

func (s *ChatService) loadOrCreateConversation(ctx context.Context, input ChatInput, subject domain.Subject) (*domain.Conversation, error) {
	if input.ConversationID != "" {
		return s.ownedConversation(ctx, input.UserID, input.ConversationID)
	}

	now := time.Now().UTC()
	conversation := &domain.Conversation{
		ID:        s.uuidGen.NewString(),
		UserID:    input.UserID,
		Title:     domain.ConversationTitle(input.Message),
		Subject:   subject,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.conversations.Create(ctx, conversation); err != nil {
		return nil, err
	}
	return conversation, nil
}

func (s *ChatService) ownedConversation(ctx context.Context, userID, id string) (*domain.Conversation, error) {
	conversation, err := s.conversations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if conversation.UserID != userID {
		return nil, domain.ErrConversationNotFound
	}
	return conversation, nil
}

func (s *ChatService) ListConversations(ctx context.Context, userID string) ([]*domain.Conversation, error) {
	return s.conversations.ListByUser(ctx, userID)
}

func (s *ChatService) GetConversation(ctx context.Context, userID, id string) (*ConversationDetail, error) {
	conversation, err := s.ownedConversation(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	messages, err := s.conversations.ListMessages(ctx, conversation.ID)
	if err != nil {
		return nil, err
	}
	return &ConversationDetail{Conversation: conversation, Messages: messages}, nil
}

func (s *ChatService) DeleteConversation(ctx context.Context, userID, id string) error {
	conversation, err := s.ownedConversation(ctx, userID, id)
	if err != nil {
		return err
	}
	return s.conversations.Delete(ctx, conversation.ID)
}

func (s *ChatService) DeleteAllConversations(ctx context.Context, userID string) (int64, error) {
	return s.conversations.DeleteAllByUser(ctx, userID)
}
