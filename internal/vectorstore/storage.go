// Package vectorstore holds the similarity store backends.
package vectorstore

import (
	"context"
	"math"

	"github.com/google/uuid"

	"echomind/internal/domain"
)

const (
	DefaultThreshold = 0.7
	DefaultLimit     = 5
)

// Storage persists message vectors and supports similarity search.
type Storage = domain.SimilarityStore

// Limit returns the effective result cap for a requested limit.
func Limit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a zero vector
// or their lengths differ.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Purger is implemented by stores that keep vectors outside the message table and
// must be told when a conversation goes away.
type Purger interface {
	DeleteConversation(ctx context.Context, conversationID uuid.UUID) error
}
