package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/kolosmile/chatgpt-uapi-client/pkg/client/dto"
)

const (
	chatEndpoint   = "/uia/chat/completions"
	imagesEndpoint = "/uia/images/generations"
)

// Client calls the ChatGPT UI API. It is stateless between calls; a
// conversation is continued by passing the ChatURL returned by a previous
// call.
type Client interface {
	ChatCompletions(ctx context.Context, req dto.ChatRequest) (*dto.ChatResult, error)
	ImageGenerations(ctx context.Context, req dto.ImageRequest) (*dto.ImageResult, error)
}

type gptuClient struct {
	baseURL string
	apiKey  string
	headers map[string]string
	timeout time.Duration
	verbose bool
}

type Option func(o *gptuClient)

// WithHeaders adds headers to every request.
func WithHeaders(headers map[string]string) Option {
	return func(o *gptuClient) {
		o.headers = headers
	}
}

// WithVerbose logs every request and response, including each JSON mode
// attempt.
func WithVerbose() Option {
	return func(o *gptuClient) {
		o.verbose = true
	}
}

func NewClient(baseURL, apiKey string, timeout time.Duration, opts ...Option) Client {
	c := &gptuClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		timeout: timeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (o *gptuClient) postJSON(ctx context.Context, endpoint string, body, out any) error {
	client := &http.Client{Timeout: o.timeout}

	reqBodyBytes, err := json.Marshal(body)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal request")
	}

	url := fmt.Sprintf("%s%s", o.baseURL, endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(reqBodyBytes))
	if err != nil {
		return errors.Wrapf(err, "failed to init request for %s", endpoint)
	}
	req.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", o.apiKey))
	}
	for k, v := range o.headers {
		req.Header.Add(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "failed to call %s", endpoint)
	}
	defer resp.Body.Close()
	respBytes := readBytes(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("failed to call %s: status code %d: %s", endpoint, resp.StatusCode, string(respBytes))
	}

	if err := json.Unmarshal(respBytes, out); err != nil {
		return errors.Wrapf(err, "failed to unmarshal response: %s", string(respBytes))
	}
	return nil
}

func (o *gptuClient) chat(ctx context.Context, msg dto.ChatMessageIn) (*dto.ChatMessageOut, error) {
	var out dto.ChatMessageOut
	if err := o.postJSON(ctx, chatEndpoint, msg, &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, errors.Errorf("server returned error: %s", out.Error)
	}
	return &out, nil
}

// ChatCompletions sends the prompts to /uia/chat/completions. Without a
// schema it performs exactly one request and returns the raw articles. With a
// schema it runs in JSON mode: see chatJSON.
func (o *gptuClient) ChatCompletions(ctx context.Context, req dto.ChatRequest) (*dto.ChatResult, error) {
	if len(req.Prompts) == 0 {
		return nil, ErrEmptyPrompts
	}

	if req.Schema != nil {
		return o.chatJSON(ctx, req)
	}

	start := time.Now()
	out, err := o.chat(ctx, dto.ChatMessageIn{
		Prompts: req.Prompts,
		ChatURL: req.ChatURL,
	})
	if err != nil {
		return nil, err
	}
	return &dto.ChatResult{
		Articles: out.Articles,
		ChatURL:  out.ChatURL,
		Attempts: 1,
		Duration: time.Since(start),
	}, nil
}

// ImageGenerations sends the prompts to /uia/images/generations. There is no
// validation path for images, so a single request is made.
func (o *gptuClient) ImageGenerations(ctx context.Context, req dto.ImageRequest) (*dto.ImageResult, error) {
	if len(req.Prompts) == 0 {
		return nil, ErrEmptyPrompts
	}

	start := time.Now()
	var out dto.ImageMessageOut
	if err := o.postJSON(ctx, imagesEndpoint, dto.ChatMessageIn{
		Prompts: req.Prompts,
		ChatURL: req.ChatURL,
	}, &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, errors.Errorf("server returned error: %s", out.Error)
	}
	return &dto.ImageResult{
		Images:   out.Images,
		Duration: time.Since(start),
	}, nil
}

func readBytes(stream io.Reader) []byte {
	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(stream)
	return buf.Bytes()
}
