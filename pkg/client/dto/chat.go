package dto

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/kolosmile/chatgpt-uapi-client/pkg/client/schema"
)

// ChatMessageIn is the request body of both UI API endpoints.
type ChatMessageIn struct {
	Prompts []string `json:"prompts" yaml:"prompts"`                   // prompt strings to send (required)
	ChatURL string   `json:"chat_url,omitempty" yaml:"chat_url,omitempty"` // URL of an existing conversation to continue
}

// ChatMessageOut is the response envelope of /uia/chat/completions.
type ChatMessageOut struct {
	Articles []Article `json:"articles" yaml:"articles"`                     // generated text responses, one per prompt
	ChatURL  string    `json:"chat_url,omitempty" yaml:"chat_url,omitempty"` // URL identifying the conversation for follow-ups
	Error    string    `json:"error,omitempty" yaml:"error,omitempty"`       // error happened whilst processing
}

// ImageMessageOut is the response envelope of /uia/images/generations.
type ImageMessageOut struct {
	Images []string `json:"images" yaml:"images"`                   // URLs or base64-encoded image data
	Error  string   `json:"error,omitempty" yaml:"error,omitempty"` // error happened whilst processing
}

// Article is a single generated response. The UI scraper returns either a
// plain string or the response split into lines, so both JSON shapes are
// accepted.
type Article []string

func (a *Article) UnmarshalJSON(bs []byte) error {
	var single string
	if err := json.Unmarshal(bs, &single); err == nil {
		*a = Article{single}
		return nil
	}
	var lines []string
	if err := json.Unmarshal(bs, &lines); err != nil {
		return err
	}
	*a = Article(lines)
	return nil
}

func (a Article) MarshalJSON() ([]byte, error) {
	return json.Marshal([]string(a))
}

// Text joins the article lines back into a single string.
func (a Article) Text() string {
	return strings.Join(a, "\n")
}

// ChatRequest describes a single logical call to the chat completions
// endpoint. Optional knobs are pointers so that the zero value keeps the
// documented default.
type ChatRequest struct {
	Prompts []string // prompt strings to send (required, non-empty)
	ChatURL string   // conversation to continue (default: start a new one)

	// JSON mode: when Schema is set the response is decoded and validated
	// against it, retrying failed attempts up to MaxRetries extra requests.
	Schema        schema.Schema
	MaxRetries    *int          // extra attempts after the first one (default: 3)
	Strict        *bool         // return an error when validation never succeeds (default: true)
	RetryCooldown time.Duration // pause between attempts (default: none)
}

// ChatResult is the outcome of a chat completions call.
type ChatResult struct {
	Articles []Article     // raw responses (plain mode)
	Data     any           // validated value (JSON mode; nil when non-strict validation gave up)
	ChatURL  string        // conversation URL for follow-up requests
	Attempts int           // requests made for this logical call
	Duration time.Duration // elapsed across all attempts
}

type ImageRequest struct {
	Prompts []string // prompt strings to send (required, non-empty)
	ChatURL string   // conversation to continue (default: start a new one)
}

type ImageResult struct {
	Images   []string // URLs or base64-encoded image data
	Duration time.Duration
}
