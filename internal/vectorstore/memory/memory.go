package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"echomind/internal/domain"
	"echomind/internal/vectorstore"
)

// Storage is a simple in-memory vector store using brute-force cosine similarity.
// Equal scores keep the order in which the records were first upserted.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	records   []domain.Record
	index     map[uuid.UUID]int
}

func NewStorage() *Storage { return &Storage{index: map[uuid.UUID]int{}} }

func (s *Storage) Upsert(_ context.Context, rec domain.Record) error {
	const op = "memory.Upsert"
	if len(rec.Vector) == 0 {
		return domain.Errorf(domain.KindValidation, op, "empty vector")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension == 0 {
		s.dimension = len(rec.Vector)
	}
	if len(rec.Vector) != s.dimension {
		return domain.Errorf(domain.KindValidation, op, "vector has %d dimensions, expected %d", len(rec.Vector), s.dimension)
	}
	rec.Vector = append([]float64(nil), rec.Vector...)
	if i, ok := s.index[rec.ID]; ok {
		s.records[i] = rec
		return nil
	}
	s.index[rec.ID] = len(s.records)
	s.records = append(s.records, rec)
	return nil
}

func (s *Storage) Query(_ context.Context, vector []float64, threshold float64, limit int) ([]domain.SimilarMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	limit = vectorstore.Limit(limit)

	var hits []domain.SimilarMessage
	for _, rec := range s.records {
		score := vectorstore.Cosine(rec.Vector, vector)
		if score > threshold {
			hits = append(hits, domain.SimilarMessage{ID: rec.ID, Content: rec.Content, Similarity: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// DeleteConversation removes every record of a conversation.
func (s *Storage) DeleteConversation(_ context.Context, conversationID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.records[:0]
	for _, rec := range s.records {
		if rec.ConversationID != conversationID {
			kept = append(kept, rec)
		}
	}
	s.records = kept
	s.index = make(map[uuid.UUID]int, len(kept))
	for i, rec := range kept {
		s.index[rec.ID] = i
	}
	return nil
}

// Len returns the number of stored records.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
