package db

import (
	"context"

	"github.com/google/uuid"

	"echomind/internal/domain"
)

// Disabled stands in for the repository when no datastore is configured. Every call
// fails with a configuration error instead of crashing the client.
type Disabled struct{}

func disabled(op string) error {
	return domain.Errorf(domain.KindConfiguration, op, "datastore is not configured")
}

func (Disabled) CreateConversation(context.Context, string) (*domain.Conversation, error) {
	return nil, disabled("db.CreateConversation")
}

func (Disabled) GetConversation(context.Context, uuid.UUID) (*domain.Conversation, error) {
	return nil, disabled("db.GetConversation")
}

func (Disabled) ListConversations(context.Context) ([]domain.Conversation, error) {
	return nil, disabled("db.ListConversations")
}

func (Disabled) DeleteConversation(context.Context, uuid.UUID) error {
	return disabled("db.DeleteConversation")
}

func (Disabled) UpdateConversationTitle(context.Context, uuid.UUID, string) error {
	return disabled("db.UpdateConversationTitle")
}

func (Disabled) SetConversationCategory(context.Context, uuid.UUID, *uuid.UUID) error {
	return disabled("db.SetConversationCategory")
}

func (Disabled) SaveMessage(context.Context, *domain.Message) error {
	return disabled("db.SaveMessage")
}

func (Disabled) GetMessage(context.Context, uuid.UUID) (*domain.Message, error) {
	return nil, disabled("db.GetMessage")
}

func (Disabled) ListMessages(context.Context, uuid.UUID) ([]domain.Message, error) {
	return nil, disabled("db.ListMessages")
}

func (Disabled) CountMessages(context.Context, uuid.UUID, domain.Role) (int64, error) {
	return 0, disabled("db.CountMessages")
}

func (Disabled) UpdateMessage(context.Context, uuid.UUID, domain.MessageUpdate) error {
	return disabled("db.UpdateMessage")
}

func (Disabled) CreateCategory(context.Context, string, string) (*domain.Category, error) {
	return nil, disabled("db.CreateCategory")
}

func (Disabled) ListCategories(context.Context) ([]domain.Category, error) {
	return nil, disabled("db.ListCategories")
}
