package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DefaultConversationTitle is used until the first user message names the conversation.
const DefaultConversationTitle = "New Chat"

// Conversation groups the messages of one chat thread.
type Conversation struct {
	ID         uuid.UUID
	Title      string
	CreatedAt  time.Time
	CategoryID *uuid.UUID
}

// Message is a single turn of a conversation. A message is owned by exactly one
// conversation and is removed together with it.
type Message struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	Role           Role
	Content        string
	Embedding      []float64
	CreatedAt      time.Time
	IsPinned       bool
}

// Category is an optional label attached to conversations.
type Category struct {
	ID        uuid.UUID
	Name      string
	Color     string
	CreatedAt time.Time
}

// SimilarMessage is a similarity search hit. It is never persisted.
type SimilarMessage struct {
	ID         uuid.UUID
	Content    string
	Similarity float64
}

// Record is what the similarity store indexes for a message.
type Record struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	Role           Role
	Content        string
	Vector         []float64
}

// MessageUpdate carries the mutable fields of a message. Nil fields are left untouched.
type MessageUpdate struct {
	Content   *string
	Embedding []float64
	IsPinned  *bool
}

// Embedder converts free text into a numeric vector representation.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, text string) ([]float64, error)
}

// SimilarityStore persists message vectors and answers nearest-neighbour queries.
// Query results are ordered by descending similarity and only contain hits whose
// similarity is strictly greater than threshold.
type SimilarityStore interface {
	Upsert(ctx context.Context, record Record) error
	Query(ctx context.Context, vector []float64, threshold float64, limit int) ([]SimilarMessage, error)
}

// Completer sends an assembled prompt to a chat completion model.
type Completer interface {
	Complete(ctx context.Context, prompt, systemPrompt string) (string, error)
}

// Repository is the system of record for conversations, messages and categories.
type Repository interface {
	CreateConversation(ctx context.Context, title string) (*Conversation, error)
	GetConversation(ctx context.Context, id uuid.UUID) (*Conversation, error)
	ListConversations(ctx context.Context) ([]Conversation, error)
	DeleteConversation(ctx context.Context, id uuid.UUID) error
	UpdateConversationTitle(ctx context.Context, id uuid.UUID, title string) error
	SetConversationCategory(ctx context.Context, id uuid.UUID, categoryID *uuid.UUID) error

	SaveMessage(ctx context.Context, msg *Message) error
	GetMessage(ctx context.Context, id uuid.UUID) (*Message, error)
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]Message, error)
	CountMessages(ctx context.Context, conversationID uuid.UUID, role Role) (int64, error)
	UpdateMessage(ctx context.Context, id uuid.UUID, update MessageUpdate) error

	CreateCategory(ctx context.Context, name, color string) (*Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
}
