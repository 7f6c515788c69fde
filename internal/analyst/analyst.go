package analyst

import "context"

// Content item types returned by the analyst service.
const (
	ContentTypeText        = "text"
	ContentTypeSQL         = "sql"
	ContentTypeSuggestions = "suggestions"
)

type Request struct {
	Question      string
	SemanticModel string
}

type ContentItem struct {
	Type        string   `json:"type"`
	Text        string   `json:"text,omitempty"`
	Statement   string   `json:"statement,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

type Message struct {
	Role    string        `json:"role"`
	Content []ContentItem `json:"content"`
}

type Warning struct {
	Message string `json:"message"`
}

type Response struct {
	Message   Message   `json:"message"`
	Warnings  []Warning `json:"warnings,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

// FirstSQL returns the first generated SQL statement, if any.
func (r Response) FirstSQL() (string, bool) {
	for _, item := range r.Message.Content {
		if item.Type == ContentTypeSQL && item.Statement != "" {
			return item.Statement, true
		}
	}
	return "", false
}

type Analyst interface {
	Ask(ctx context.Context, req Request) (Response, error)
}
