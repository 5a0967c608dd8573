// Package pgvector serves similarity search from the messages table through the
// match_messages SQL function.
package pgvector

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm/clause"

	"echomind/internal/db"
	"echomind/internal/domain"
	"echomind/internal/vectorstore"
)

// Storage reads and writes the embedding column of db.Message. Vectors live next to
// the message rows, so deleting a conversation needs no separate purge.
type Storage struct {
	db *db.DB
}

func New(d *db.DB) *Storage {
	return &Storage{db: d}
}

// Upsert stores the record's vector on its message row, creating the row when the
// repository has not written it yet.
func (s *Storage) Upsert(ctx context.Context, record domain.Record) error {
	const op = "pgvector.Upsert"
	if record.ID == uuid.Nil {
		return domain.Errorf(domain.KindValidation, op, "record has no id")
	}
	row := db.Message{
		ID:             record.ID,
		ConversationID: record.ConversationID,
		Role:           string(record.Role),
		Content:        record.Content,
		Embedding:      db.ToVector(record.Vector),
	}
	err := s.db.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"content", "embedding"}),
	}).Create(&row).Error
	if err != nil {
		return domain.E(domain.KindStoreUnavailable, op, errors.Wrapf(err, "error upserting vector for message %s", record.ID))
	}
	return nil
}

type match struct {
	ID         uuid.UUID
	Content    string
	Similarity float64
}

func (s *Storage) Query(ctx context.Context, vector []float64, threshold float64, limit int) ([]domain.SimilarMessage, error) {
	const op = "pgvector.Query"
	var rows []match
	err := s.db.DB.WithContext(ctx).
		Raw("SELECT id, content, similarity FROM match_messages(?, ?, ?)", db.ToVector(vector), threshold, vectorstore.Limit(limit)).
		Scan(&rows).Error
	if err != nil {
		return nil, domain.E(domain.KindStoreUnavailable, op, errors.Wrap(err, "error querying match_messages"))
	}

	out := make([]domain.SimilarMessage, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.SimilarMessage{ID: r.ID, Content: r.Content, Similarity: r.Similarity})
	}
	log.WithFields(log.Fields{"matches": len(out), "threshold": threshold}).Debug("similarity query done")
	return out, nil
}
