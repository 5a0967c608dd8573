package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"echomind/internal/domain"
	"echomind/internal/vectorstore/memory"
)

type harness struct {
	repo        *fakeRepo
	embedder    *fakeEmbedder
	store       *fakeStore
	completer   *fakeCompleter
	svc         *ChatService
	conv        uuid.UUID
	transitions []State
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		repo:      newFakeRepo(),
		embedder:  &fakeEmbedder{},
		store:     &fakeStore{},
		completer: &fakeCompleter{answer: "4"},
	}
	h.svc = NewChatService(h.repo, h.embedder, h.store, h.completer, Options{
		Observer: func(_ uuid.UUID, _, to State) { h.transitions = append(h.transitions, to) },
	})
	conv, err := h.repo.CreateConversation(context.Background(), "")
	require.NoError(t, err)
	h.conv = conv.ID
	return h
}

func TestSubmitWithoutContextSendsQuestionVerbatim(t *testing.T) {
	h := newHarness(t)

	reply, err := h.svc.Submit(context.Background(), h.conv, "What is 2+2?")
	require.NoError(t, err)

	assert.Equal(t, "What is 2+2?", reply.Prompt)
	assert.Equal(t, []string{"What is 2+2?"}, h.completer.prompts)
	assert.Equal(t, "4", reply.AssistantMessage.Content)
	assert.Equal(t, StateDone, reply.State)
	assert.False(t, reply.Degraded)
	assert.False(t, reply.Unsaved)
	assert.Equal(t, []State{StateEmbedding, StateRetrieving, StateAssembling, StateCompleting, StatePersisting, StateDone}, h.transitions)

	users := h.repo.messagesByRole(h.conv, domain.RoleUser)
	assistants := h.repo.messagesByRole(h.conv, domain.RoleAssistant)
	require.Len(t, users, 1)
	require.Len(t, assistants, 1)
	assert.NotEmpty(t, users[0].Embedding)
	assert.NotEmpty(t, assistants[0].Embedding)
	assert.Len(t, h.store.upserts, 2)
}

func TestSubmitAssemblesRetrievedContext(t *testing.T) {
	h := newHarness(t)
	h.store.results = []domain.SimilarMessage{{ID: uuid.New(), Content: "The capital of France is Paris", Similarity: 0.85}}

	reply, err := h.svc.Submit(context.Background(), h.conv, "What is the capital of France?")
	require.NoError(t, err)

	want := "Previous relevant conversations:\n- The capital of France is Paris\n\nCurrent question: What is the capital of France?"
	assert.Equal(t, want, reply.Prompt)
	require.Len(t, h.completer.prompts, 1)
	assert.Equal(t, want, h.completer.prompts[0])
}

func TestSubmitPassesSystemPrompt(t *testing.T) {
	h := newHarness(t)
	h.svc = NewChatService(h.repo, h.embedder, h.store, h.completer, Options{SystemPrompt: "be brief"})
	_, err := h.svc.Submit(context.Background(), h.conv, "hi")
	require.NoError(t, err)
	assert.Equal(t, []string{"be brief"}, h.completer.system)
}

func TestSubmitRejectsEmptyQuestion(t *testing.T) {
	h := newHarness(t)
	for _, q := range []string{"", "   ", "\n\t"} {
		reply, err := h.svc.Submit(context.Background(), h.conv, q)
		assert.Nil(t, reply)
		assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	}
	assert.Empty(t, h.transitions)
	assert.Zero(t, h.embedder.calls)
	assert.Empty(t, h.completer.prompts)
}

func TestSubmitQuotaExceededKeepsUserMessage(t *testing.T) {
	h := newHarness(t)
	h.completer.err = domain.Errorf(domain.KindQuotaExceeded, "completion.Complete", "insufficient_quota")

	reply, err := h.svc.Submit(context.Background(), h.conv, "What is 2+2?")
	require.Error(t, err)
	require.NotNil(t, reply)

	assert.Equal(t, StateFailed, reply.State)
	assert.Equal(t, domain.ClassPermanent, domain.ClassOf(err))
	assert.Len(t, h.completer.prompts, 1)
	assert.False(t, reply.Answered())
	assert.False(t, reply.Unsaved)

	users := h.repo.messagesByRole(h.conv, domain.RoleUser)
	require.Len(t, users, 1)
	assert.Equal(t, "What is 2+2?", users[0].Content)
	assert.Empty(t, h.repo.messagesByRole(h.conv, domain.RoleAssistant))
	assert.Equal(t, []State{StateEmbedding, StateRetrieving, StateAssembling, StateCompleting, StateFailed}, h.transitions)
}

func TestSubmitDegradesWhenStoreIsDown(t *testing.T) {
	h := newHarness(t)
	h.store.queryErr = domain.Errorf(domain.KindStoreUnavailable, "qdrant.Query", "connection refused")

	reply, err := h.svc.Submit(context.Background(), h.conv, "What is 2+2?")
	require.NoError(t, err)

	assert.True(t, reply.Degraded)
	assert.Equal(t, "What is 2+2?", reply.Prompt)
	assert.Equal(t, StateDone, reply.State)
}

func TestSubmitEmbeddingFailure(t *testing.T) {
	h := newHarness(t)
	h.embedder.err = domain.Errorf(domain.KindEmbedding, "openai.Embed", "timeout")

	reply, err := h.svc.Submit(context.Background(), h.conv, "hello")
	require.Error(t, err)
	assert.Equal(t, StateFailed, reply.State)
	assert.Equal(t, domain.ClassTransient, domain.ClassOf(err))
	assert.Empty(t, h.completer.prompts)
	assert.Zero(t, h.repo.saves)
	assert.Equal(t, []State{StateEmbedding, StateFailed}, h.transitions)
}

func TestSubmitUntypedErrorsAreWrapped(t *testing.T) {
	h := newHarness(t)
	h.completer.err = errors.New("boom")

	_, err := h.svc.Submit(context.Background(), h.conv, "hello")
	var e *domain.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, domain.KindUnknown, e.Kind)
	assert.Equal(t, "service.Submit", e.Op)
}

func TestSubmitDerivesTitleOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first := strings.Repeat("a", 60)

	_, err := h.svc.Submit(ctx, h.conv, first)
	require.NoError(t, err)
	conv, err := h.repo.GetConversation(ctx, h.conv)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("a", 47)+"...", conv.Title)

	_, err = h.svc.Submit(ctx, h.conv, "second question")
	require.NoError(t, err)
	conv, err = h.repo.GetConversation(ctx, h.conv)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("a", 47)+"...", conv.Title)
}

func TestSubmitPersistenceFailureIsUnsavedAndRetryable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.repo.saveErr = domain.Errorf(domain.KindPersistence, "db.SaveMessage", "connection reset")

	reply, err := h.svc.Submit(ctx, h.conv, "What is 2+2?")
	require.Error(t, err)
	assert.Equal(t, StateFailed, reply.State)
	assert.True(t, reply.Unsaved)
	assert.True(t, reply.Answered())
	assert.Equal(t, "4", reply.AssistantMessage.Content)
	assert.Empty(t, h.repo.messagesByRole(h.conv, domain.RoleUser))

	h.repo.saveErr = nil
	require.NoError(t, h.svc.RetrySave(ctx, reply))
	assert.False(t, reply.Unsaved)
	assert.Equal(t, StateDone, reply.State)

	require.NoError(t, h.svc.RetrySave(ctx, reply))
	assert.Len(t, h.repo.messagesByRole(h.conv, domain.RoleUser), 1)
	assert.Len(t, h.repo.messagesByRole(h.conv, domain.RoleAssistant), 1)
	assert.Len(t, h.store.upserts, 2)

	conv, err := h.repo.GetConversation(ctx, h.conv)
	require.NoError(t, err)
	assert.Equal(t, "What is 2+2?", conv.Title)
}

func TestSubmitIndexFailureIsUnsaved(t *testing.T) {
	h := newHarness(t)
	h.store.upsertErr = domain.Errorf(domain.KindStoreUnavailable, "memory.Upsert", "down")

	reply, err := h.svc.Submit(context.Background(), h.conv, "hello")
	require.Error(t, err)
	assert.True(t, reply.Unsaved)
	// The message rows were written once even though indexing failed twice.
	assert.Equal(t, 1, h.repo.saves)

	h.store.upsertErr = nil
	require.NoError(t, h.svc.RetrySave(context.Background(), reply))
	assert.Equal(t, 2, h.repo.saves)
	assert.Len(t, h.store.upserts, 2)
}

func TestSubmitMissingConversation(t *testing.T) {
	h := newHarness(t)

	reply, err := h.svc.Submit(context.Background(), uuid.New(), "hello")
	require.Error(t, err)
	assert.Equal(t, domain.ClassDataIntegrity, domain.ClassOf(err))
	assert.True(t, reply.Unsaved)
	assert.Equal(t, "4", reply.AssistantMessage.Content)
}

func TestRetrySaveWithoutPendingWork(t *testing.T) {
	h := newHarness(t)
	err := h.svc.RetrySave(context.Background(), nil)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	require.NoError(t, h.svc.RetrySave(context.Background(), &Reply{ConversationID: h.conv}))
	assert.Zero(t, h.repo.saves)
}

func TestSubmitFailedCompletionWithUnsavedQuestion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.repo.saveErr = domain.Errorf(domain.KindPersistence, "db.SaveMessage", "connection reset")
	h.completer.err = domain.Errorf(domain.KindQuotaExceeded, "completion.Complete", "insufficient_quota")

	reply, err := h.svc.Submit(ctx, h.conv, "What is 2+2?")
	require.Error(t, err)
	assert.Equal(t, domain.ClassPermanent, domain.ClassOf(err))
	assert.Equal(t, StateFailed, reply.State)
	assert.False(t, reply.Answered())
	assert.True(t, reply.Unsaved, "the unstored question is reported")
	assert.Empty(t, h.repo.messagesByRole(h.conv, domain.RoleUser))

	h.repo.saveErr = nil
	require.NoError(t, h.svc.RetrySave(ctx, reply))
	assert.False(t, reply.Unsaved)
	assert.Equal(t, StateFailed, reply.State, "the submission itself still failed")
	users := h.repo.messagesByRole(h.conv, domain.RoleUser)
	require.Len(t, users, 1)
	assert.Equal(t, reply.UserMessage.ID, users[0].ID)
	assert.Empty(t, h.repo.messagesByRole(h.conv, domain.RoleAssistant))
	assert.Len(t, h.store.upserts, 1)

	require.NoError(t, h.svc.RetrySave(ctx, reply))
	assert.Len(t, h.repo.messagesByRole(h.conv, domain.RoleUser), 1)
}

func TestSubmitFailedCompletionRetrySaveKeepsFailing(t *testing.T) {
	h := newHarness(t)
	h.repo.saveErr = domain.Errorf(domain.KindPersistence, "db.SaveMessage", "connection reset")
	h.completer.err = domain.Errorf(domain.KindTransient, "completion.Complete", "timeout")

	reply, err := h.svc.Submit(context.Background(), h.conv, "hello")
	require.Error(t, err)
	require.True(t, reply.Unsaved)

	err = h.svc.RetrySave(context.Background(), reply)
	assert.Equal(t, domain.KindPersistence, domain.KindOf(err))
	assert.True(t, reply.Unsaved)
}

func TestThresholdOption(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Submit(context.Background(), h.conv, "default")
	require.NoError(t, err)

	zero := 0.0
	svc := NewChatService(h.repo, h.embedder, h.store, h.completer, Options{Threshold: &zero})
	_, err = svc.Submit(context.Background(), h.conv, "explicit zero")
	require.NoError(t, err)

	assert.Equal(t, []float64{0.7, 0}, h.store.thresholds)
}

func TestSubmitUsesConversationCapturedAtStart(t *testing.T) {
	h := newHarness(t)
	other, err := h.repo.CreateConversation(context.Background(), "")
	require.NoError(t, err)

	reply, err := h.svc.Submit(context.Background(), other.ID, "hello")
	require.NoError(t, err)
	assert.Equal(t, other.ID, reply.ConversationID)
	assert.Equal(t, other.ID, reply.AssistantMessage.ConversationID)
	assert.Empty(t, h.repo.messagesByRole(h.conv, domain.RoleUser))
	for _, rec := range h.store.upserts {
		assert.Equal(t, other.ID, rec.ConversationID)
	}
}

func TestSubmitRetrievesEarlierTurns(t *testing.T) {
	repo := newFakeRepo()
	embedder := &fakeEmbedder{vectors: map[string][]float64{
		"What is the capital of France?":  {1, 0, 0},
		"The capital of France is Paris.": {0.95, 0.1, 0},
		"Which city is France's capital?": {0.98, 0.05, 0},
		"Name a prime number":             {0, 1, 0},
	}}
	completer := &fakeCompleter{answer: "The capital of France is Paris."}
	svc := NewChatService(repo, embedder, memory.NewStorage(), completer, Options{})
	ctx := context.Background()
	conv, err := svc.NewConversation(ctx)
	require.NoError(t, err)

	first, err := svc.Submit(ctx, conv.ID, "What is the capital of France?")
	require.NoError(t, err)
	assert.Equal(t, "What is the capital of France?", first.Prompt, "a question never matches itself")

	second, err := svc.Submit(ctx, conv.ID, "Which city is France's capital?")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(second.Prompt, "Previous relevant conversations:\n"))
	assert.Contains(t, second.Prompt, "\n- What is the capital of France?")
	assert.Contains(t, second.Prompt, "\n- The capital of France is Paris.")
	assert.True(t, strings.HasSuffix(second.Prompt, "\n\nCurrent question: Which city is France's capital?"))

	completer.answer = "2"
	third, err := svc.Submit(ctx, conv.ID, "Name a prime number")
	require.NoError(t, err)
	assert.Equal(t, "Name a prime number", third.Prompt)
}
