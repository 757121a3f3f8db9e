package client

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/kolosmile/chatgpt-uapi-client/pkg/client/dto"
)

// DefaultMaxRetries is the number of extra attempts a JSON mode call makes
// after the first one.
const DefaultMaxRetries = 3

// chatJSON runs the JSON mode loop: up to maxRetries+1 attempts, each one a
// fresh request continuing the same conversation, until the response decodes
// and validates against the schema.
//
// Only decode/validation failures consume the retry budget. Transport errors
// and context cancellation surface immediately. On exhaustion a strict call
// returns a JSONValidationError with every message gathered along the way; a
// non-strict call returns a result with nil Data and no error.
func (o *gptuClient) chatJSON(ctx context.Context, req dto.ChatRequest) (*dto.ChatResult, error) {
	start := time.Now()

	maxRetries := lo.FromPtrOr(req.MaxRetries, DefaultMaxRetries)
	if maxRetries < 0 {
		maxRetries = 0
	}
	strict := lo.FromPtrOr(req.Strict, true)

	// Follow-up prompts are ignored in JSON mode, a single exchange is
	// validated at a time.
	prompt := req.Prompts[0]
	chatURL := req.ChatURL

	var (
		allMessages []string
		lastErrors  []string
		attempts    int
	)

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 && req.RetryCooldown > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(req.RetryCooldown):
			}
		}

		augmented := buildJSONPrompt(prompt, req.Schema.Definition(), lastErrors)
		if o.verbose {
			log.Printf("chat_completions request (attempt:%d): %s\n", attempt, augmented)
		}

		out, err := o.chat(ctx, dto.ChatMessageIn{
			Prompts: []string{augmented},
			ChatURL: chatURL,
		})
		if err != nil {
			return nil, err
		}
		attempts++

		// Keep the conversation going so the model sees its own previous
		// answer when asked to fix it.
		if out.ChatURL != "" {
			chatURL = out.ChatURL
		}

		if len(out.Articles) == 0 {
			lastErrors = []string{"no response received"}
			allMessages = append(allMessages, lastErrors...)
			continue
		}

		text := out.Articles[0].Text()
		if o.verbose {
			log.Printf("chat_completions response (attempt:%d): %s\n", attempt, text)
		}

		value, msgs := req.Schema.Decode(text)
		if msgs == nil {
			return &dto.ChatResult{
				Data:     value,
				ChatURL:  chatURL,
				Attempts: attempts,
				Duration: time.Since(start),
			}, nil
		}
		if o.verbose {
			log.Printf("validation failed (attempt:%d): %s\n", attempt, strings.Join(msgs, "; "))
		}
		lastErrors = msgs
		allMessages = append(allMessages, msgs...)
	}

	if strict {
		return nil, &JSONValidationError{
			Messages: allMessages,
			Attempts: attempts,
		}
	}
	return &dto.ChatResult{
		ChatURL:  chatURL,
		Attempts: attempts,
		Duration: time.Since(start),
	}, nil
}

// buildJSONPrompt wraps the user prompt with the schema instructions and,
// on retries, the previous attempt's validation errors.
func buildJSONPrompt(prompt, definition string, lastErrors []string) string {
	var b strings.Builder

	if len(lastErrors) > 0 {
		b.WriteString("Your previous response had validation errors:\n")
		for _, msg := range lastErrors {
			b.WriteString("- ")
			b.WriteString(msg)
			b.WriteString("\n")
		}
		b.WriteString("\nPlease fix and respond again.\n\n")
	}

	b.WriteString(prompt)
	b.WriteString("\n\nRespond ONLY with valid JSON matching this schema:\n")
	b.WriteString("```json\n")
	b.WriteString(definition)
	b.WriteString("\n```\n")
	b.WriteString("Make sure to return an instance of the JSON, not the schema itself.\n")

	return b.String()
}
