package line

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Source struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

type Message struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text"`
}

type Event struct {
	Type       string  `json:"type"`
	ReplyToken string  `json:"replyToken"`
	Source     Source  `json:"source"`
	Message    Message `json:"message"`
}

// TextFrom returns the trimmed text of a user text message, or false for
// any other event.
func (e Event) TextFrom() (userID, text string, ok bool) {
	if e.Type != "message" || e.Message.Type != "text" || e.Source.UserID == "" {
		return "", "", false
	}
	return e.Source.UserID, strings.TrimSpace(e.Message.Text), true
}

type webhookBody struct {
	Destination string  `json:"destination"`
	Events      []Event `json:"events"`
}

func ParseEvents(body []byte) ([]Event, error) {
	var wb webhookBody
	if err := json.Unmarshal(body, &wb); err != nil {
		return nil, fmt.Errorf("decode webhook: %w", err)
	}
	return wb.Events, nil
}
