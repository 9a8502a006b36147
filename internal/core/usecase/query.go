package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/anny-whatever/frappeDocChat/internal/core/domain"
	"github.com/anny-whatever/frappeDocChat/internal/core/ports"
)

// ChatUseCase answers a user question: it runs the retrieval pipeline,
// feeds the best passages to the answer generator, and persists the turn.
type ChatUseCase struct {
	search        ports.DocSearchService
	generator     ports.AnswerGenerator
	conversations ports.ConversationStore
}

func NewChatUseCase(
	search ports.DocSearchService,
	generator ports.AnswerGenerator,
	conversations ports.ConversationStore,
) *ChatUseCase {
	return &ChatUseCase{
		search:        search,
		generator:     generator,
		conversations: conversations,
	}
}

func (uc *ChatUseCase) Answer(
	ctx context.Context,
	userID, conversationID, question string,
	opts domain.SearchOptions,
) (*domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chat answer", fmt.Errorf("question is required"))
	}

	turn, err := uc.recordUserTurn(ctx, userID, conversationID, question)
	if err != nil {
		return nil, err
	}

	response, err := uc.search.Search(ctx, question, opts)
	if err != nil {
		return nil, fmt.Errorf("search documentation: %w", err)
	}

	var answerText string
	if len(response.Results) == 0 {
		answerText = "I could not find anything about that in the documentation."
	} else {
		answerText, err = uc.generator.GenerateAnswer(ctx, question, response.Results)
		if err != nil {
			return nil, fmt.Errorf("generate answer: %w", err)
		}
	}

	if err := uc.recordAssistantTurn(ctx, userID, conversationID, answerText, turn); err != nil {
		return nil, err
	}

	return &domain.Answer{
		Text:     answerText,
		Sources:  response.Results,
		Metadata: response.Metadata,
	}, nil
}

func (uc *ChatUseCase) recordUserTurn(ctx context.Context, userID, conversationID, question string) (int, error) {
	if uc.conversations == nil || userID == "" {
		return 0, nil
	}

	if _, err := uc.conversations.EnsureConversation(ctx, userID, conversationID); err != nil {
		return 0, fmt.Errorf("ensure conversation: %w", err)
	}
	turn, err := uc.conversations.NextUserTurn(ctx, userID, conversationID)
	if err != nil {
		return 0, fmt.Errorf("next user turn: %w", err)
	}
	if err := uc.conversations.AppendMessage(ctx, domain.ConversationMessage{
		ID:             uuid.NewString(),
		UserID:         userID,
		ConversationID: conversationID,
		Role:           "user",
		Content:        question,
		UserTurn:       turn,
		CreatedAt:      time.Now().UTC(),
	}); err != nil {
		return 0, fmt.Errorf("append user message: %w", err)
	}
	return turn, nil
}

func (uc *ChatUseCase) recordAssistantTurn(ctx context.Context, userID, conversationID, answer string, turn int) error {
	if uc.conversations == nil || userID == "" {
		return nil
	}
	if err := uc.conversations.AppendMessage(ctx, domain.ConversationMessage{
		ID:             uuid.NewString(),
		UserID:         userID,
		ConversationID: conversationID,
		Role:           "assistant",
		Content:        answer,
		UserTurn:       turn,
		CreatedAt:      time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("append assistant message: %w", err)
	}
	return nil
}
