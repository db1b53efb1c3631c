package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"second-brain/internal/dto"
	"second-brain/internal/pkg/logger"
	"second-brain/internal/repository/contract"
	"second-brain/internal/repository/memory"
	"second-brain/pkg/llm"
	"second-brain/pkg/rag/retriever"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatFixture struct {
	svc       IChatbotService
	retriever *fakeRetriever
	llm       *fakeLLM
	sessions  *memory.SessionRepository
}

func newChatFixture(r *fakeRetriever) *chatFixture {
	f := &chatFixture{
		retriever: r,
		llm:       &fakeLLM{chunks: []string{"You had ", "coffee."}},
		sessions:  memory.NewSessionRepository(time.Hour),
	}
	f.svc = NewChatbotService(&fakeContextService{r: r}, f.llm, f.sessions, "llama3", "nomic-embed-text", logger.NewNopLogger())
	return f
}

func TestSendChatGroundsFirstPromptOnly(t *testing.T) {
	f := newChatFixture(&fakeRetriever{block: sampleBlock()})
	ctx := context.Background()

	session, err := f.svc.CreateSession(ctx, &dto.CreateSessionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "llama3", session.Model)

	var streamed []string
	res, err := f.svc.SendChat(ctx, session.Id, &dto.SendChatRequest{Chat: "when did I drink coffee?"},
		func(c string) error { streamed = append(streamed, c); return nil })
	require.NoError(t, err)

	assert.Equal(t, "You had coffee.", res.Reply)
	assert.Equal(t, []string{"You had ", "coffee."}, streamed)
	assert.True(t, res.Grounded)

	first := f.llm.history[0]
	require.Len(t, first, 2)
	assert.Equal(t, "Using the following text from my personal journal as a resource\n```\n"+
		"2024-01-01: morning routine - \n\n2024-01-02: espresso with Sam\n```\n\n"+
		"Answer the question: when did I drink coffee?", first[0].Content)
	assert.Equal(t, "when did I drink coffee?", first[1].Content)

	_, err = f.svc.SendChat(ctx, session.Id, &dto.SendChatRequest{Chat: "and tea?"}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, f.retriever.calls, "later prompts reuse the grounding")
	second := f.llm.history[1]
	require.Len(t, second, 4)
	assert.Equal(t, first[0], second[0])
	assert.Equal(t, llm.RoleAssistant, second[2].Role)
	assert.Equal(t, "and tea?", second[3].Content)
}

func TestSendChatWithoutJournalUsesMarker(t *testing.T) {
	connErr := &retriever.RetrievalError{Kind: retriever.ErrConnection, Err: errors.New("refused")}
	f := newChatFixture(&fakeRetriever{err: connErr})
	ctx := context.Background()

	session, err := f.svc.CreateSession(ctx, nil)
	require.NoError(t, err)

	res, err := f.svc.SendChat(ctx, session.Id, &dto.SendChatRequest{Chat: "coffee?"}, nil)
	require.NoError(t, err)

	assert.False(t, res.Grounded)
	assert.Contains(t, f.llm.history[0][0].Content, "```\n"+retriever.NoContextMarker+"\n```")
}

func TestSendChatOtherRetrievalErrorsFail(t *testing.T) {
	f := newChatFixture(&fakeRetriever{err: context.DeadlineExceeded})
	ctx := context.Background()
	session, _ := f.svc.CreateSession(ctx, nil)

	_, err := f.svc.SendChat(ctx, session.Id, &dto.SendChatRequest{Chat: "coffee?"}, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, f.llm.history)
}

func TestSendChatModelFailureLeavesSessionUntouched(t *testing.T) {
	f := newChatFixture(&fakeRetriever{block: sampleBlock()})
	f.llm.err = errors.New("model not found")
	ctx := context.Background()
	session, _ := f.svc.CreateSession(ctx, nil)

	_, err := f.svc.SendChat(ctx, session.Id, &dto.SendChatRequest{Chat: "coffee?"}, nil)
	require.Error(t, err)

	stored, err := f.sessions.Get(ctx, session.Id)
	require.NoError(t, err)
	assert.False(t, stored.Grounded())
	assert.Empty(t, stored.Messages)
}

func TestSendChatModelSwitch(t *testing.T) {
	f := newChatFixture(&fakeRetriever{block: sampleBlock()})
	ctx := context.Background()
	session, _ := f.svc.CreateSession(ctx, &dto.CreateSessionRequest{Model: "mistral"})

	_, err := f.svc.SendChat(ctx, session.Id, &dto.SendChatRequest{Chat: "q"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "mistral", f.llm.model)

	res, err := f.svc.SendChat(ctx, session.Id, &dto.SendChatRequest{Chat: "q2", Model: "phi3"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "phi3", res.Model)
	assert.Equal(t, "phi3", f.llm.model)
}

func TestSendChatValidation(t *testing.T) {
	f := newChatFixture(&fakeRetriever{block: sampleBlock()})
	ctx := context.Background()

	_, err := f.svc.SendChat(ctx, "nope", &dto.SendChatRequest{Chat: "hi"}, nil)
	assert.ErrorIs(t, err, contract.ErrSessionNotFound)

	session, _ := f.svc.CreateSession(ctx, nil)
	_, err = f.svc.SendChat(ctx, session.Id, &dto.SendChatRequest{Chat: "  "}, nil)
	assert.ErrorIs(t, err, ErrEmptyPrompt)
}

func TestClearSessionRegrounds(t *testing.T) {
	f := newChatFixture(&fakeRetriever{block: sampleBlock()})
	ctx := context.Background()
	session, _ := f.svc.CreateSession(ctx, nil)

	_, err := f.svc.SendChat(ctx, session.Id, &dto.SendChatRequest{Chat: "first"}, nil)
	require.NoError(t, err)
	require.NoError(t, f.svc.ClearSession(ctx, session.Id))

	stored, err := f.sessions.Get(ctx, session.Id)
	require.NoError(t, err)
	assert.Empty(t, stored.Messages)
	assert.False(t, stored.Grounded())

	_, err = f.svc.SendChat(ctx, session.Id, &dto.SendChatRequest{Chat: "second"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, f.retriever.calls)
	assert.Len(t, f.llm.history[1], 2)

	assert.ErrorIs(t, f.svc.ClearSession(ctx, "missing"), contract.ErrSessionNotFound)
}

func TestListModelsHidesEmbeddingModel(t *testing.T) {
	f := newChatFixture(&fakeRetriever{block: sampleBlock()})
	f.llm.models = []string{"mistral:latest", "nomic-embed-text:latest", "llama3:latest"}

	res, err := f.svc.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3:latest", "mistral:latest"}, res.Models)
}
