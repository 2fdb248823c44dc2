package types

import (
	"medibridge/medibridge/sources/psql/models"
)

type SendMessageRequest struct {
	Content        string  `json:"content"`
	SenderLanguage *string `json:"senderLanguage,omitempty"`
}

// MessagePage is one page of history. NextCursor is the id to pass for the following
// page and is empty when the page was not full.
type MessagePage struct {
	Messages   []models.Message `json:"messages"`
	NextCursor string           `json:"nextCursor,omitempty"`
}

type SearchResult struct {
	Query    string           `json:"query"`
	Messages []models.Message `json:"messages"`
}
