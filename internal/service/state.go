package service

import (
	"github.com/google/uuid"

	"echomind/internal/domain"
)

// State is a step of the submission pipeline.
type State int

const (
	StateIdle State = iota
	StateEmbedding
	StateRetrieving
	StateAssembling
	StateCompleting
	StatePersisting
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateIdle:       "idle",
	StateEmbedding:  "embedding",
	StateRetrieving: "retrieving",
	StateAssembling: "assembling",
	StateCompleting: "completing",
	StatePersisting: "persisting",
	StateDone:       "done",
	StateFailed:     "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "invalid"
	}
	return stateNames[s]
}

// Observer is notified of every state transition of a submission.
type Observer func(conversationID uuid.UUID, from, to State)

// Reply is the outcome of one submission. It is returned even when the pipeline
// fails after it started, so the caller can still show what was produced.
type Reply struct {
	ConversationID   uuid.UUID
	UserMessage      domain.Message
	AssistantMessage domain.Message
	// Prompt is the text that was sent to the completion model.
	Prompt string
	State  State
	// Degraded is set when the similarity store could not be queried and the
	// prompt was built without context.
	Degraded bool
	// Unsaved is set when something the submission produced could not be
	// stored: the answer, or the question of a failed completion. RetrySave
	// stores it.
	Unsaved bool

	userSaved        bool
	userIndexed      bool
	assistantSaved   bool
	assistantIndexed bool
}

func (r *Reply) userPersisted() bool {
	return r.userSaved && r.userIndexed
}

// Answered reports whether the reply carries a generated answer.
func (r *Reply) Answered() bool {
	return r != nil && r.AssistantMessage.Content != ""
}
