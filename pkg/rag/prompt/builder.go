package prompt

import (
	"strings"

	"second-brain/pkg/llm"
	"second-brain/pkg/rag/retriever"
)

// JournalBuilder builds the grounding prompt sent before the first question of a session.
type JournalBuilder struct {
	context  string
	question string
}

func NewJournalBuilder(context, question string) *JournalBuilder {
	return &JournalBuilder{
		context:  context,
		question: question,
	}
}

// Build renders the journal excerpts inside a fenced block followed by the question.
func (b *JournalBuilder) Build() string {
	var prompt strings.Builder

	b.writeReferenceMaterial(&prompt)
	b.writeUserQuery(&prompt)

	return prompt.String()
}

func (b *JournalBuilder) writeReferenceMaterial(prompt *strings.Builder) {
	context := b.context
	if strings.TrimSpace(context) == "" {
		context = retriever.NoContextMarker
	}

	prompt.WriteString("Using the following text from my personal journal as a resource\n")
	prompt.WriteString("```\n")
	prompt.WriteString(context)
	prompt.WriteString("\n```\n\n")
}

func (b *JournalBuilder) writeUserQuery(prompt *strings.Builder) {
	prompt.WriteString("Answer the question: ")
	prompt.WriteString(b.question)
}

// BuildJournalPrompt is shorthand for NewJournalBuilder(context, question).Build().
func BuildJournalPrompt(context, question string) string {
	return NewJournalBuilder(context, question).Build()
}

// GroundingMessages wraps the prompt as the single user message that opens a chat.
func GroundingMessages(context, question string) []llm.Message {
	return []llm.Message{{Role: llm.RoleUser, Content: BuildJournalPrompt(context, question)}}
}
