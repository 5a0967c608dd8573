package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"echomind/internal/domain"
)

const defaultCategoryColor = "#6B7280"

// Repository implements domain.Repository on top of gorm.
type Repository struct {
	db *gorm.DB
}

func NewRepository(d *DB) *Repository {
	return &Repository{db: d.DB}
}

func (r *Repository) CreateConversation(ctx context.Context, title string) (*domain.Conversation, error) {
	const op = "db.CreateConversation"
	if title == "" {
		title = domain.DefaultConversationTitle
	}
	c := Conversation{ID: uuid.New(), Title: title, CreatedAt: time.Now()}
	if err := r.db.WithContext(ctx).Create(&c).Error; err != nil {
		return nil, persistence(op, errors.Wrap(err, "error creating conversation"))
	}
	out := c.toDomain()
	return &out, nil
}

func (r *Repository) GetConversation(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	const op = "db.GetConversation"
	var c Conversation
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, classify(op, errors.Wrapf(err, "error loading conversation %s", id))
	}
	out := c.toDomain()
	return &out, nil
}

func (r *Repository) ListConversations(ctx context.Context) ([]domain.Conversation, error) {
	const op = "db.ListConversations"
	var rows []Conversation
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, persistence(op, errors.Wrap(err, "error listing conversations"))
	}
	out := make([]domain.Conversation, len(rows))
	for i, c := range rows {
		out[i] = c.toDomain()
	}
	return out, nil
}

// DeleteConversation removes the conversation and every message it owns.
func (r *Repository) DeleteConversation(ctx context.Context, id uuid.UUID) error {
	const op = "db.DeleteConversation"
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", id).Delete(&Message{}).Error; err != nil {
			return persistence(op, errors.Wrapf(err, "error deleting messages of conversation %s", id))
		}
		res := tx.Where("id = ?", id).Delete(&Conversation{})
		if res.Error != nil {
			return persistence(op, errors.Wrapf(res.Error, "error deleting conversation %s", id))
		}
		if res.RowsAffected == 0 {
			return domain.Errorf(domain.KindNotFound, op, "conversation %s not found", id)
		}
		return nil
	})
}

func (r *Repository) UpdateConversationTitle(ctx context.Context, id uuid.UUID, title string) error {
	const op = "db.UpdateConversationTitle"
	res := r.db.WithContext(ctx).Model(&Conversation{}).Where("id = ?", id).Update("title", title)
	if res.Error != nil {
		return persistence(op, errors.Wrapf(res.Error, "error updating title of conversation %s", id))
	}
	if res.RowsAffected == 0 {
		return domain.Errorf(domain.KindNotFound, op, "conversation %s not found", id)
	}
	return nil
}

func (r *Repository) SetConversationCategory(ctx context.Context, id uuid.UUID, categoryID *uuid.UUID) error {
	const op = "db.SetConversationCategory"
	if categoryID != nil {
		var n int64
		if err := r.db.WithContext(ctx).Model(&Category{}).Where("id = ?", *categoryID).Count(&n).Error; err != nil {
			return persistence(op, errors.Wrap(err, "error looking up category"))
		}
		if n == 0 {
			return domain.Errorf(domain.KindNotFound, op, "category %s not found", *categoryID)
		}
	}
	res := r.db.WithContext(ctx).Model(&Conversation{}).Where("id = ?", id).Update("category_id", categoryID)
	if res.Error != nil {
		return persistence(op, errors.Wrapf(res.Error, "error updating category of conversation %s", id))
	}
	if res.RowsAffected == 0 {
		return domain.Errorf(domain.KindNotFound, op, "conversation %s not found", id)
	}
	return nil
}

// SaveMessage stores msg after checking its conversation still exists. Saving the
// same message ID again refreshes content and embedding instead of duplicating it.
func (r *Repository) SaveMessage(ctx context.Context, msg *domain.Message) error {
	const op = "db.SaveMessage"
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	var n int64
	if err := r.db.WithContext(ctx).Model(&Conversation{}).Where("id = ?", msg.ConversationID).Count(&n).Error; err != nil {
		return persistence(op, errors.Wrap(err, "error verifying conversation"))
	}
	if n == 0 {
		return domain.Errorf(domain.KindNotFound, op, "conversation %s not found", msg.ConversationID)
	}

	row := messageFromDomain(msg)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"content", "embedding"}),
	}).Create(&row).Error
	if err != nil {
		return persistence(op, errors.Wrapf(err, "error saving message %s", msg.ID))
	}
	return nil
}

func (r *Repository) GetMessage(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	const op = "db.GetMessage"
	var m Message
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, classify(op, errors.Wrapf(err, "error loading message %s", id))
	}
	out := m.toDomain()
	return &out, nil
}

func (r *Repository) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]domain.Message, error) {
	const op = "db.ListMessages"
	var rows []Message
	if err := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, persistence(op, errors.Wrapf(err, "error listing messages of conversation %s", conversationID))
	}
	out := make([]domain.Message, len(rows))
	for i, m := range rows {
		out[i] = m.toDomain()
	}
	return out, nil
}

func (r *Repository) CountMessages(ctx context.Context, conversationID uuid.UUID, role domain.Role) (int64, error) {
	const op = "db.CountMessages"
	var n int64
	err := r.db.WithContext(ctx).Model(&Message{}).
		Where("conversation_id = ? AND role = ?", conversationID, string(role)).
		Count(&n).Error
	if err != nil {
		return 0, persistence(op, errors.Wrap(err, "error counting messages"))
	}
	return n, nil
}

func (r *Repository) UpdateMessage(ctx context.Context, id uuid.UUID, update domain.MessageUpdate) error {
	const op = "db.UpdateMessage"
	fields := map[string]any{}
	if update.Content != nil {
		fields["content"] = *update.Content
	}
	if update.Embedding != nil {
		fields["embedding"] = ToVector(update.Embedding)
	}
	if update.IsPinned != nil {
		fields["is_pinned"] = *update.IsPinned
	}
	if len(fields) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&Message{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return persistence(op, errors.Wrapf(res.Error, "error updating message %s", id))
	}
	if res.RowsAffected == 0 {
		return domain.Errorf(domain.KindNotFound, op, "message %s not found", id)
	}
	return nil
}

func (r *Repository) CreateCategory(ctx context.Context, name, color string) (*domain.Category, error) {
	const op = "db.CreateCategory"
	if name == "" {
		return nil, domain.Errorf(domain.KindValidation, op, "category name is required")
	}
	if color == "" {
		color = defaultCategoryColor
	}
	c := Category{ID: uuid.New(), Name: name, Color: color, CreatedAt: time.Now()}
	if err := r.db.WithContext(ctx).Create(&c).Error; err != nil {
		return nil, persistence(op, errors.Wrapf(err, "error creating category %q", name))
	}
	out := c.toDomain()
	return &out, nil
}

func (r *Repository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	const op = "db.ListCategories"
	var rows []Category
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, persistence(op, errors.Wrap(err, "error listing categories"))
	}
	out := make([]domain.Category, len(rows))
	for i, c := range rows {
		out[i] = c.toDomain()
	}
	return out, nil
}

func classify(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.E(domain.KindNotFound, op, err)
	}
	return persistence(op, err)
}

func persistence(op string, err error) error {
	return domain.E(domain.KindPersistence, op, err)
}
