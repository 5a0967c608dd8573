package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"echomind/internal/domain"
)

type Conversation struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Title      string     `gorm:"not null"`
	CreatedAt  time.Time  `gorm:"index"`
	CategoryID *uuid.UUID `gorm:"type:uuid;index"`
}

type Message struct {
	ID             uuid.UUID        `gorm:"type:uuid;primaryKey"`
	ConversationID uuid.UUID        `gorm:"type:uuid;not null;index"`
	Role           string           `gorm:"not null"`
	Content        string           `gorm:"type:text;not null"`
	Embedding      *pgvector.Vector `gorm:"type:vector"`
	CreatedAt      time.Time        `gorm:"index"`
	IsPinned       bool             `gorm:"not null;default:false"`
}

type Category struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"not null;uniqueIndex"`
	Color     string    `gorm:"not null"`
	CreatedAt time.Time
}

// ToVector converts an embedding to the pgvector column type. Nil or empty
// embeddings are stored as NULL.
func ToVector(v []float64) *pgvector.Vector {
	if len(v) == 0 {
		return nil
	}
	f := make([]float32, len(v))
	for i, x := range v {
		f[i] = float32(x)
	}
	vec := pgvector.NewVector(f)
	return &vec
}

// FromVector converts a stored pgvector back to an embedding.
func FromVector(v *pgvector.Vector) []float64 {
	if v == nil {
		return nil
	}
	s := v.Slice()
	out := make([]float64, len(s))
	for i, x := range s {
		out[i] = float64(x)
	}
	return out
}

func (c Conversation) toDomain() domain.Conversation {
	return domain.Conversation{ID: c.ID, Title: c.Title, CreatedAt: c.CreatedAt, CategoryID: c.CategoryID}
}

func (m Message) toDomain() domain.Message {
	return domain.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Role:           domain.Role(m.Role),
		Content:        m.Content,
		Embedding:      FromVector(m.Embedding),
		CreatedAt:      m.CreatedAt,
		IsPinned:       m.IsPinned,
	}
}

func messageFromDomain(m *domain.Message) Message {
	return Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Role:           string(m.Role),
		Content:        m.Content,
		Embedding:      ToVector(m.Embedding),
		CreatedAt:      m.CreatedAt,
		IsPinned:       m.IsPinned,
	}
}

func (c Category) toDomain() domain.Category {
	return domain.Category{ID: c.ID, Name: c.Name, Color: c.Color, CreatedAt: c.CreatedAt}
}
