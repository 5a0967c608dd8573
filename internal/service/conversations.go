package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"echomind/internal/domain"
	"echomind/internal/vectorstore"
)

func (s *ChatService) NewConversation(ctx context.Context) (*domain.Conversation, error) {
	return s.repo.CreateConversation(ctx, "")
}

// ListConversations returns all conversations, newest first.
func (s *ChatService) ListConversations(ctx context.Context) ([]domain.Conversation, error) {
	return s.repo.ListConversations(ctx)
}

// DeleteConversation removes the conversation with its messages. Stores that keep
// vectors outside the message table are purged too; a failed purge only leaves
// stale search hits behind and is logged.
func (s *ChatService) DeleteConversation(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteConversation(ctx, id); err != nil {
		return err
	}
	if p, ok := s.store.(vectorstore.Purger); ok {
		if err := p.DeleteConversation(ctx, id); err != nil {
			log.WithError(err).WithField("conversation", id).Warn("error purging conversation vectors")
		}
	}
	return nil
}

func (s *ChatService) RenameConversation(ctx context.Context, id uuid.UUID, title string) error {
	const op = "service.RenameConversation"
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.Errorf(domain.KindValidation, op, "title is empty")
	}
	return s.repo.UpdateConversationTitle(ctx, id, title)
}

// Messages returns the conversation's messages, oldest first.
func (s *ChatService) Messages(ctx context.Context, conversationID uuid.UUID) ([]domain.Message, error) {
	return s.repo.ListMessages(ctx, conversationID)
}

// EditMessage replaces the content of a message and re-indexes it so later
// searches match the new text.
func (s *ChatService) EditMessage(ctx context.Context, id uuid.UUID, content string) (*domain.Message, error) {
	const op = "service.EditMessage"
	if strings.TrimSpace(content) == "" {
		return nil, domain.Errorf(domain.KindValidation, op, "message is empty")
	}
	msg, err := s.repo.GetMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	vec, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return nil, typed(op, err)
	}
	if err := s.repo.UpdateMessage(ctx, id, domain.MessageUpdate{Content: &content, Embedding: vec}); err != nil {
		return nil, err
	}
	msg.Content = content
	msg.Embedding = vec
	if err := s.store.Upsert(ctx, recordOf(*msg)); err != nil {
		log.WithError(err).WithField("message", id).Warn("error re-indexing edited message")
	}
	return msg, nil
}

// TogglePin flips the pinned flag of a message and returns the new value.
func (s *ChatService) TogglePin(ctx context.Context, id uuid.UUID) (bool, error) {
	msg, err := s.repo.GetMessage(ctx, id)
	if err != nil {
		return false, err
	}
	pinned := !msg.IsPinned
	if err := s.repo.UpdateMessage(ctx, id, domain.MessageUpdate{IsPinned: &pinned}); err != nil {
		return msg.IsPinned, err
	}
	return pinned, nil
}

// SetCategory files the conversation under a category; nil clears it.
func (s *ChatService) SetCategory(ctx context.Context, conversationID uuid.UUID, categoryID *uuid.UUID) error {
	return s.repo.SetConversationCategory(ctx, conversationID, categoryID)
}

func (s *ChatService) CreateCategory(ctx context.Context, name, color string) (*domain.Category, error) {
	return s.repo.CreateCategory(ctx, strings.TrimSpace(name), color)
}

func (s *ChatService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.repo.ListCategories(ctx)
}

// Reindex upserts every stored message that has an embedding into the similarity
// store. A store that lives only in process memory starts empty, so it is rebuilt
// from the message rows at startup. Returns the number of messages indexed.
func (s *ChatService) Reindex(ctx context.Context) (int, error) {
	const op = "service.Reindex"
	convs, err := s.repo.ListConversations(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, c := range convs {
		msgs, err := s.repo.ListMessages(ctx, c.ID)
		if err != nil {
			return n, err
		}
		for _, m := range msgs {
			if len(m.Embedding) == 0 {
				continue
			}
			if err := s.store.Upsert(ctx, recordOf(m)); err != nil {
				return n, typed(op, err)
			}
			n++
		}
	}
	log.WithField("messages", n).Info("similarity store rebuilt from datastore")
	return n, nil
}
