// Package history searches stored messages across conversations.
package history

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"echomind/internal/domain"
)

// Options narrows a history listing. Zero values do not filter.
type Options struct {
	// Query matches message content case-insensitively.
	Query      string
	CategoryID *uuid.UUID
	OnlyPinned bool
	// From and To bound the message creation time, both inclusive.
	From time.Time
	To   time.Time
}

// Entry is a message together with the conversation it belongs to, which carries
// the category.
type Entry struct {
	Conversation domain.Conversation
	Message      domain.Message
}

// Source is what history needs from the chat service.
type Source interface {
	ListConversations(ctx context.Context) ([]domain.Conversation, error)
	Messages(ctx context.Context, conversationID uuid.UUID) ([]domain.Message, error)
}

// Load collects the messages of every conversation, newest conversation first and
// each conversation's messages oldest first.
func Load(ctx context.Context, src Source) ([]Entry, error) {
	convs, err := src.ListConversations(ctx)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	for _, c := range convs {
		msgs, err := src.Messages(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		for _, m := range msgs {
			entries = append(entries, Entry{Conversation: c, Message: m})
		}
	}
	return entries, nil
}

// Filter returns the entries matching every set option, keeping their order.
func Filter(entries []Entry, opts Options) []Entry {
	query := strings.ToLower(strings.TrimSpace(opts.Query))
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if query != "" && !strings.Contains(strings.ToLower(e.Message.Content), query) {
			continue
		}
		if opts.CategoryID != nil && (e.Conversation.CategoryID == nil || *e.Conversation.CategoryID != *opts.CategoryID) {
			continue
		}
		if opts.OnlyPinned && !e.Message.IsPinned {
			continue
		}
		if !opts.From.IsZero() && e.Message.CreatedAt.Before(opts.From) {
			continue
		}
		if !opts.To.IsZero() && e.Message.CreatedAt.After(opts.To) {
			continue
		}
		out = append(out, e)
	}
	return out
}
