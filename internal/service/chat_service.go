// Package service runs the chat pipeline: embed the question, retrieve similar
// messages, assemble the prompt, complete it and persist both turns.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"echomind/internal/domain"
	"echomind/internal/prompt"
	"echomind/internal/vectorstore"
)

// Options tune retrieval and completion. Zero values select the defaults. Threshold
// is the exclusive similarity floor; nil selects vectorstore.DefaultThreshold, so a
// floor of zero can be asked for explicitly.
type Options struct {
	Threshold    *float64
	Limit        int
	SystemPrompt string
	Observer     Observer
}

// ChatService owns no conversation state; every call is scoped by the conversation
// ID passed in, so submissions for different conversations can run concurrently.
type ChatService struct {
	repo      domain.Repository
	embedder  domain.Embedder
	store     domain.SimilarityStore
	completer domain.Completer

	threshold    float64
	limit        int
	systemPrompt string
	observer     Observer
}

func NewChatService(repo domain.Repository, embedder domain.Embedder, store domain.SimilarityStore, completer domain.Completer, opts Options) *ChatService {
	threshold := vectorstore.DefaultThreshold
	if opts.Threshold != nil {
		threshold = *opts.Threshold
	}
	return &ChatService{
		repo:         repo,
		embedder:     embedder,
		store:        store,
		completer:    completer,
		threshold:    threshold,
		limit:        vectorstore.Limit(opts.Limit),
		systemPrompt: opts.SystemPrompt,
		observer:     opts.Observer,
	}
}

// Submit answers question within the conversation. Empty questions are rejected
// before anything happens. Once the pipeline has started the returned Reply is
// never nil, even alongside an error: a failed completion still leaves the user
// turn stored (or Unsaved set when that save failed too), and a failed save still
// carries the generated answer with Unsaved set.
func (s *ChatService) Submit(ctx context.Context, conversationID uuid.UUID, question string) (*Reply, error) {
	const op = "service.Submit"
	if strings.TrimSpace(question) == "" {
		submissionsMetric.WithLabelValues(outcomeInvalid).Inc()
		return nil, domain.Errorf(domain.KindValidation, op, "question is empty")
	}

	reply := &Reply{
		ConversationID: conversationID,
		State:          StateIdle,
		UserMessage: domain.Message{
			ID:             uuid.New(),
			ConversationID: conversationID,
			Role:           domain.RoleUser,
			Content:        question,
			CreatedAt:      time.Now(),
		},
	}
	logger := log.WithFields(log.Fields{"conversation": conversationID, "message": reply.UserMessage.ID})

	s.transition(reply, StateEmbedding)
	start := time.Now()
	vec, err := s.embedder.Embed(ctx, question)
	observeStage(StateEmbedding, start)
	if err != nil {
		return reply, s.fail(reply, op, err, logger)
	}
	reply.UserMessage.Embedding = vec

	s.transition(reply, StateRetrieving)
	start = time.Now()
	similar, err := s.store.Query(ctx, vec, s.threshold, s.limit)
	observeStage(StateRetrieving, start)
	if err != nil {
		// The store being down only costs context quality.
		logger.WithError(err).Warn("similarity search failed, continuing without context")
		retrievalDegradedMetric.Inc()
		reply.Degraded = true
		similar = nil
	}

	s.transition(reply, StateAssembling)
	contents := make([]string, 0, len(similar))
	for _, m := range similar {
		contents = append(contents, m.Content)
	}
	reply.Prompt = prompt.Assemble(question, contents)
	logger.WithField("context", len(contents)).Debug("prompt assembled")

	// Store the question before completing it: it must not be rolled back when the
	// completion fails, and retrieval above has already run so it cannot match itself.
	if err := s.saveUserTurn(ctx, reply); err != nil {
		logger.WithError(err).Warn("error saving user message, will retry after completion")
	}

	s.transition(reply, StateCompleting)
	start = time.Now()
	answer, err := s.completer.Complete(ctx, reply.Prompt, s.systemPrompt)
	observeStage(StateCompleting, start)
	if err != nil {
		// The question still has to reach the datastore; RetrySave finishes it.
		if !reply.userPersisted() {
			reply.Unsaved = true
		}
		return reply, s.fail(reply, op, err, logger)
	}
	reply.AssistantMessage = domain.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Role:           domain.RoleAssistant,
		Content:        answer,
		CreatedAt:      time.Now(),
	}

	s.transition(reply, StatePersisting)
	if err := s.persist(ctx, reply); err != nil {
		reply.Unsaved = true
		return reply, s.fail(reply, op, err, logger)
	}
	s.transition(reply, StateDone)
	submissionsMetric.WithLabelValues(outcomeDone).Inc()
	logger.Info("question answered")
	return reply, nil
}

// RetrySave stores what Submit could not persist: the whole exchange for an
// answered reply, or only the question when the completion failed too. Steps that
// already succeeded are skipped and the rest are keyed by message ID, so calling it
// repeatedly never duplicates messages.
func (s *ChatService) RetrySave(ctx context.Context, reply *Reply) error {
	const op = "service.RetrySave"
	if reply == nil {
		return domain.Errorf(domain.KindValidation, op, "no reply to save")
	}
	if !reply.Unsaved {
		return nil
	}
	logger := log.WithFields(log.Fields{"conversation": reply.ConversationID, "message": reply.UserMessage.ID})
	if !reply.Answered() {
		// The submission stays failed; only the question is stored.
		if err := s.saveUserTurn(ctx, reply); err != nil {
			err = typed(op, err)
			logger.WithError(err).Error("error saving question on retry")
			return err
		}
		reply.Unsaved = false
		logger.Info("question saved on retry")
		return nil
	}
	s.transition(reply, StatePersisting)
	if err := s.persist(ctx, reply); err != nil {
		return s.fail(reply, op, err, logger)
	}
	reply.Unsaved = false
	s.transition(reply, StateDone)
	submissionsMetric.WithLabelValues(outcomeDone).Inc()
	logger.Info("answer saved on retry")
	return nil
}

func (s *ChatService) saveUserTurn(ctx context.Context, reply *Reply) error {
	if !reply.userSaved {
		if err := s.repo.SaveMessage(ctx, &reply.UserMessage); err != nil {
			return err
		}
		reply.userSaved = true
	}
	if !reply.userIndexed {
		if err := s.store.Upsert(ctx, recordOf(reply.UserMessage)); err != nil {
			return err
		}
		reply.userIndexed = true
	}
	return nil
}

func (s *ChatService) persist(ctx context.Context, reply *Reply) error {
	start := time.Now()
	defer observeStage(StatePersisting, start)

	if err := s.saveUserTurn(ctx, reply); err != nil {
		return err
	}
	msg := &reply.AssistantMessage
	if msg.Embedding == nil {
		vec, err := s.embedder.Embed(ctx, msg.Content)
		if err != nil {
			return err
		}
		msg.Embedding = vec
	}
	if !reply.assistantSaved {
		if err := s.repo.SaveMessage(ctx, msg); err != nil {
			return err
		}
		reply.assistantSaved = true
	}
	if !reply.assistantIndexed {
		if err := s.store.Upsert(ctx, recordOf(*msg)); err != nil {
			return err
		}
		reply.assistantIndexed = true
	}
	s.maybeSetTitle(ctx, reply)
	return nil
}

// maybeSetTitle names the conversation after its first question. The count and the
// update are separate statements, so two first questions submitted at the same time
// may both see a count of one; the later update wins. A failure leaves the default
// title in place.
func (s *ChatService) maybeSetTitle(ctx context.Context, reply *Reply) {
	logger := log.WithField("conversation", reply.ConversationID)
	n, err := s.repo.CountMessages(ctx, reply.ConversationID, domain.RoleUser)
	if err != nil {
		logger.WithError(err).Warn("error counting user messages, title not updated")
		return
	}
	if n != 1 {
		return
	}
	title := domain.DeriveTitle(reply.UserMessage.Content)
	if err := s.repo.UpdateConversationTitle(ctx, reply.ConversationID, title); err != nil {
		logger.WithError(err).Warn("error updating conversation title")
		return
	}
	logger.WithField("title", title).Debug("conversation titled")
}

func (s *ChatService) fail(reply *Reply, op string, err error, logger *log.Entry) error {
	from := reply.State
	s.transition(reply, StateFailed)
	outcome := outcomeFailed
	if reply.Unsaved {
		outcome = outcomeUnsaved
	}
	submissionsMetric.WithLabelValues(outcome).Inc()
	err = typed(op, err)
	logger.WithError(err).WithFields(log.Fields{
		"stage": from.String(),
		"class": domain.ClassOf(err),
	}).Error("submission failed")
	return err
}

func (s *ChatService) transition(reply *Reply, to State) {
	from := reply.State
	reply.State = to
	if s.observer != nil {
		s.observer(reply.ConversationID, from, to)
	}
}

// typed makes sure errors leaving the service carry a kind.
func typed(op string, err error) error {
	var e *domain.Error
	if errors.As(err, &e) {
		return err
	}
	return domain.E(domain.KindUnknown, op, err)
}

func recordOf(m domain.Message) domain.Record {
	return domain.Record{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Role:           m.Role,
		Content:        m.Content,
		Vector:         m.Embedding,
	}
}

func observeStage(stage State, start time.Time) {
	stageDurationMetric.WithLabelValues(stage.String()).Observe(time.Since(start).Seconds())
}
