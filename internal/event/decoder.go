package event

import (
	"encoding/json"
	"fmt"
)

// keywordField is the inbound message field naming the mentioned keyword.
const keywordField = "keyword_mentioned"

// rawMessage mirrors the inbound JSON shape. Producers attach additional
// fields (author, timestamp, sentiment, ...); only the keyword matters here.
type rawMessage struct {
	KeywordMentioned string `json:"keyword_mentioned"`
}

// Decode parses a raw bus payload into a KeywordEvent.
//
// Returns ErrMalformedPayload when the bytes do not parse as a JSON object,
// and ErrMissingKeyword when the keyword field is absent or empty. The
// keyword is taken case-sensitive, exactly as received.
func Decode(raw []byte) (KeywordEvent, error) {
	var msg rawMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return KeywordEvent{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if msg.KeywordMentioned == "" {
		return KeywordEvent{}, fmt.Errorf("%w in payload", ErrMissingKeyword)
	}
	return KeywordEvent{Keyword: msg.KeywordMentioned}, nil
}
