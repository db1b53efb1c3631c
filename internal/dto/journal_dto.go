package dto

type GetContextRequest struct {
	Query string `query:"q" validate:"required,max=8000"`
}

type ContextRowDTO struct {
	Date    string `json:"date"`
	Blurb   string `json:"blurb"`
	Content string `json:"content"`
	Source  string `json:"source"`
}

type StrategyFailureDTO struct {
	Strategy string `json:"strategy"`
	Kind     string `json:"kind"`
	Message  string `json:"message"`
}

type GetContextResponse struct {
	Query    string               `json:"query"`
	Context  string               `json:"context"` // rendered block; empty when nothing matched
	Rows     []ContextRowDTO      `json:"rows"`
	Failures []StrategyFailureDTO `json:"failures,omitempty"`
	Cached   bool                 `json:"cached"`
}

// PublishEmbedEventMessage asks the backfill consumer to embed one journal event.
type PublishEmbedEventMessage struct {
	EventId int64 `json:"event_id"`
}

type BackfillSummary struct {
	Published int   `json:"published"`
	Embedded  int64 `json:"embedded"`
	Failed    int64 `json:"failed"`
	Remaining int64 `json:"remaining"`
}
