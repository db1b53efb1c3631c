package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"second-brain/internal/dto"
	"second-brain/internal/pkg/logger"
	"second-brain/internal/repository/contract"
	"second-brain/pkg/llm"
	"second-brain/pkg/rag/prompt"
	"second-brain/pkg/rag/retriever"
	"second-brain/pkg/store"

	"github.com/google/uuid"
)

var ErrEmptyPrompt = errors.New("chat prompt must not be empty")

// IChatbotService defines the chatbot service interface
type IChatbotService interface {
	CreateSession(ctx context.Context, request *dto.CreateSessionRequest) (*dto.CreateSessionResponse, error)
	// ClearSession drops the conversation and its grounding context; the next prompt re-grounds.
	ClearSession(ctx context.Context, sessionId string) error
	ListModels(ctx context.Context) (*dto.ListModelsResponse, error)
	// SendChat answers one prompt. onChunk, when set, receives the answer as it streams.
	SendChat(ctx context.Context, sessionId string, request *dto.SendChatRequest, onChunk llm.ChunkHandler) (*dto.SendChatResponse, error)
}

type chatbotService struct {
	contextService IContextService
	llmProvider    llm.LLMProvider
	sessionRepo    contract.SessionRepository
	defaultModel   string
	embeddingModel string // hidden from ListModels
	logger         logger.ILogger
}

func NewChatbotService(
	contextService IContextService,
	llmProvider llm.LLMProvider,
	sessionRepo contract.SessionRepository,
	defaultModel string,
	embeddingModel string,
	log logger.ILogger,
) IChatbotService {
	return &chatbotService{
		contextService: contextService,
		llmProvider:    llmProvider,
		sessionRepo:    sessionRepo,
		defaultModel:   defaultModel,
		embeddingModel: embeddingModel,
		logger:         log,
	}
}

// CreateSession creates a new chat session
func (cs *chatbotService) CreateSession(ctx context.Context, request *dto.CreateSessionRequest) (*dto.CreateSessionResponse, error) {
	model := cs.defaultModel
	if request != nil && request.Model != "" {
		model = request.Model
	}

	now := time.Now()
	session := &store.Session{
		ID:        uuid.NewString(),
		Model:     model,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := cs.sessionRepo.Save(ctx, session); err != nil {
		return nil, err
	}

	return &dto.CreateSessionResponse{
		Id:        session.ID,
		Model:     session.Model,
		CreatedAt: session.CreatedAt,
	}, nil
}

func (cs *chatbotService) ClearSession(ctx context.Context, sessionId string) error {
	session, err := cs.sessionRepo.Get(ctx, sessionId)
	if err != nil {
		return err
	}
	session.Reset()
	return cs.sessionRepo.Save(ctx, session)
}

// ListModels returns the generation models, sorted, without the embedding model.
func (cs *chatbotService) ListModels(ctx context.Context) (*dto.ListModelsResponse, error) {
	models, err := cs.llmProvider.ListModels(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(models))
	for _, m := range models {
		if cs.isEmbeddingModel(m) {
			continue
		}
		out = append(out, m)
	}
	sort.Strings(out)
	return &dto.ListModelsResponse{Models: out}, nil
}

func (cs *chatbotService) isEmbeddingModel(name string) bool {
	if cs.embeddingModel == "" {
		return false
	}
	return name == cs.embeddingModel || name == cs.embeddingModel+":latest"
}

func (cs *chatbotService) SendChat(ctx context.Context, sessionId string, request *dto.SendChatRequest, onChunk llm.ChunkHandler) (*dto.SendChatResponse, error) {
	chat := strings.TrimSpace(request.Chat)
	if chat == "" {
		return nil, ErrEmptyPrompt
	}

	session, err := cs.sessionRepo.Get(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	if request.Model != "" {
		session.Model = request.Model
	}

	if !session.Grounded() {
		if err := cs.ground(ctx, session, chat); err != nil {
			return nil, err
		}
	}

	session.Messages = append(session.Messages, llm.Message{Role: llm.RoleUser, Content: chat})

	reply, err := cs.llmProvider.ChatStream(ctx, session.History(), onChunk, llm.WithModel(session.Model))
	if err != nil {
		// The session is left as it was before this turn.
		cs.logger.Error("ChatbotService", "model call failed", map[string]interface{}{
			"session_id": session.ID,
			"model":      session.Model,
			"error":      err,
		})
		return nil, err
	}

	session.Messages = append(session.Messages, llm.Message{Role: llm.RoleAssistant, Content: reply})
	session.UpdatedAt = time.Now()
	if err := cs.sessionRepo.Save(ctx, session); err != nil {
		return nil, err
	}

	return &dto.SendChatResponse{
		ChatSessionId: session.ID,
		Model:         session.Model,
		Reply:         reply,
		Grounded:      !session.ContextMissing,
	}, nil
}

// ground fetches journal context for the first prompt and stores the grounding message.
// An unreachable journal degrades to the no-context marker instead of failing the chat.
func (cs *chatbotService) ground(ctx context.Context, session *store.Session, chat string) error {
	var contextText string

	block, _, err := cs.contextService.Retrieve(ctx, chat)
	switch {
	case err == nil:
		contextText = block.Text()
	case errors.Is(err, retriever.ErrConnection):
		cs.logger.Warn("ChatbotService", "journal unreachable, answering without context", map[string]interface{}{
			"session_id": session.ID,
			"error":      err.Error(),
		})
		session.ContextMissing = true
	default:
		return err
	}

	session.InitialPrompt = chat
	session.InitialContext = prompt.GroundingMessages(contextText, chat)

	cs.logger.Debug("ChatbotService", "session grounded", map[string]interface{}{
		"session_id": session.ID,
		"context":    session.InitialContext[0].Content,
	})
	return nil
}
