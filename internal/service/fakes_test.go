package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"echomind/internal/domain"
)

type fakeEmbedder struct {
	vectors map[string][]float64
	err     error
	calls   int
}

func (f *fakeEmbedder) Name() string { return "fake" }

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float64{0, 0, 1}, nil
}

type fakeStore struct {
	results   []domain.SimilarMessage
	queryErr  error
	upsertErr error
	upserts    []domain.Record
	purged     []uuid.UUID
	thresholds []float64
}

func (f *fakeStore) Upsert(_ context.Context, rec domain.Record) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts = append(f.upserts, rec)
	return nil
}

func (f *fakeStore) Query(_ context.Context, _ []float64, threshold float64, _ int) ([]domain.SimilarMessage, error) {
	f.thresholds = append(f.thresholds, threshold)
	return f.results, f.queryErr
}

func (f *fakeStore) DeleteConversation(_ context.Context, id uuid.UUID) error {
	f.purged = append(f.purged, id)
	return nil
}

type fakeCompleter struct {
	answer  string
	err     error
	prompts []string
	system  []string
}

func (f *fakeCompleter) Complete(_ context.Context, prompt, systemPrompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	f.system = append(f.system, systemPrompt)
	return f.answer, f.err
}

// fakeRepo is an in-memory domain.Repository. saveErr fails every SaveMessage
// while it is set.
type fakeRepo struct {
	mu            sync.Mutex
	conversations map[uuid.UUID]*domain.Conversation
	messages      map[uuid.UUID]*domain.Message
	categories    []domain.Category
	saveErr       error
	saves         int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{conversations: map[uuid.UUID]*domain.Conversation{}, messages: map[uuid.UUID]*domain.Message{}}
}

func notFound(op string) error {
	return domain.Errorf(domain.KindNotFound, op, "not found")
}

func (r *fakeRepo) CreateConversation(_ context.Context, title string) (*domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if title == "" {
		title = domain.DefaultConversationTitle
	}
	c := &domain.Conversation{ID: uuid.New(), Title: title, CreatedAt: time.Now()}
	r.conversations[c.ID] = c
	out := *c
	return &out, nil
}

func (r *fakeRepo) GetConversation(_ context.Context, id uuid.UUID) (*domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[id]
	if !ok {
		return nil, notFound("GetConversation")
	}
	out := *c
	return &out, nil
}

func (r *fakeRepo) ListConversations(context.Context) ([]domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Conversation
	for _, c := range r.conversations {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeRepo) DeleteConversation(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conversations[id]; !ok {
		return notFound("DeleteConversation")
	}
	delete(r.conversations, id)
	for mid, m := range r.messages {
		if m.ConversationID == id {
			delete(r.messages, mid)
		}
	}
	return nil
}

func (r *fakeRepo) UpdateConversationTitle(_ context.Context, id uuid.UUID, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[id]
	if !ok {
		return notFound("UpdateConversationTitle")
	}
	c.Title = title
	return nil
}

func (r *fakeRepo) SetConversationCategory(_ context.Context, id uuid.UUID, categoryID *uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[id]
	if !ok {
		return notFound("SetConversationCategory")
	}
	c.CategoryID = categoryID
	return nil
}

func (r *fakeRepo) SaveMessage(_ context.Context, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	if r.saveErr != nil {
		return r.saveErr
	}
	if _, ok := r.conversations[msg.ConversationID]; !ok {
		return notFound("SaveMessage")
	}
	m := *msg
	r.messages[m.ID] = &m
	return nil
}

func (r *fakeRepo) GetMessage(_ context.Context, id uuid.UUID) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return nil, notFound("GetMessage")
	}
	out := *m
	return &out, nil
}

func (r *fakeRepo) ListMessages(_ context.Context, conversationID uuid.UUID) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Message
	for _, m := range r.messages {
		if m.ConversationID == conversationID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeRepo) CountMessages(_ context.Context, conversationID uuid.UUID, role domain.Role) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, m := range r.messages {
		if m.ConversationID == conversationID && m.Role == role {
			n++
		}
	}
	return n, nil
}

func (r *fakeRepo) UpdateMessage(_ context.Context, id uuid.UUID, update domain.MessageUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return notFound("UpdateMessage")
	}
	if update.Content != nil {
		m.Content = *update.Content
	}
	if update.Embedding != nil {
		m.Embedding = update.Embedding
	}
	if update.IsPinned != nil {
		m.IsPinned = *update.IsPinned
	}
	return nil
}

func (r *fakeRepo) CreateCategory(_ context.Context, name, color string) (*domain.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if name == "" {
		return nil, errors.New("name required")
	}
	c := domain.Category{ID: uuid.New(), Name: name, Color: color, CreatedAt: time.Now()}
	r.categories = append(r.categories, c)
	return &c, nil
}

func (r *fakeRepo) ListCategories(context.Context) ([]domain.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Category(nil), r.categories...), nil
}

func (r *fakeRepo) messagesByRole(conversationID uuid.UUID, role domain.Role) []domain.Message {
	msgs, _ := r.ListMessages(context.Background(), conversationID)
	var out []domain.Message
	for _, m := range msgs {
		if m.Role == role {
			out = append(out, m)
		}
	}
	return out
}
