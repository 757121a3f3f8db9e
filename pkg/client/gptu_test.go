package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/gomega"

	"github.com/kolosmile/chatgpt-uapi-client/pkg/client/dto"
)

// uiServer is a scripted ChatGPT UI API backend. Each chat request is
// answered with the next article from the script; the last one is repeated
// once the script runs out.
type uiServer struct {
	mu       sync.Mutex
	requests []dto.ChatMessageIn
	articles []string
	images   []string
	chatURL  string
	status   int
}

func (s *uiServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/uia/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.status != 0 {
			w.WriteHeader(s.status)
			return
		}
		var in dto.ChatMessageIn
		_ = json.NewDecoder(r.Body).Decode(&in)
		s.requests = append(s.requests, in)

		idx := len(s.requests) - 1
		if idx >= len(s.articles) {
			idx = len(s.articles) - 1
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"articles": []any{s.articles[idx]},
			"chat_url": s.chatURL,
		})
	})
	mux.HandleFunc("/uia/images/generations", func(w http.ResponseWriter, r *http.Request) {
		var in dto.ChatMessageIn
		_ = json.NewDecoder(r.Body).Decode(&in)
		s.mu.Lock()
		s.requests = append(s.requests, in)
		s.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{
			"images": s.images,
		})
	})
	return mux
}

func (s *uiServer) requestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *uiServer) request(i int) dto.ChatMessageIn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[i]
}

func newTestClient(t *testing.T, srv *uiServer) (Client, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(srv.handler())
	t.Cleanup(ts.Close)
	return NewClient(ts.URL, "test", 10*time.Second), ts
}

func TestChatCompletions(t *testing.T) {
	RegisterTestingT(t)

	srv := &uiServer{articles: []string{"Hello there!"}, chatURL: "https://chatgpt.com/c/abc123"}
	c, _ := newTestClient(t, srv)

	res, err := c.ChatCompletions(context.Background(), dto.ChatRequest{
		Prompts: []string{"Hello!"},
	})
	Expect(err).To(BeNil())
	Expect(res.Articles).To(HaveLen(1))
	Expect(res.Articles[0].Text()).To(Equal("Hello there!"))
	Expect(res.ChatURL).To(Equal("https://chatgpt.com/c/abc123"))
	Expect(res.Attempts).To(Equal(1))
	Expect(res.Duration).To(BeNumerically(">=", 0))
	Expect(srv.requestCount()).To(Equal(1))
	Expect(srv.request(0).Prompts).To(Equal([]string{"Hello!"}))
}

func TestChatCompletionsContinuesConversation(t *testing.T) {
	RegisterTestingT(t)

	srv := &uiServer{articles: []string{"Sure."}}
	c, _ := newTestClient(t, srv)

	_, err := c.ChatCompletions(context.Background(), dto.ChatRequest{
		Prompts: []string{"More details please"},
		ChatURL: "https://chatgpt.com/c/prior",
	})
	Expect(err).To(BeNil())
	Expect(srv.request(0).ChatURL).To(Equal("https://chatgpt.com/c/prior"))
}

func TestChatCompletionsEmptyPrompts(t *testing.T) {
	RegisterTestingT(t)

	srv := &uiServer{articles: []string{"unused"}}
	c, _ := newTestClient(t, srv)

	_, err := c.ChatCompletions(context.Background(), dto.ChatRequest{})
	Expect(err).To(MatchError(ErrEmptyPrompts))
	Expect(srv.requestCount()).To(Equal(0))
}

func TestChatCompletionsTransportError(t *testing.T) {
	RegisterTestingT(t)

	srv := &uiServer{status: http.StatusInternalServerError}
	c, _ := newTestClient(t, srv)

	_, err := c.ChatCompletions(context.Background(), dto.ChatRequest{
		Prompts: []string{"Hello!"},
	})
	Expect(err).NotTo(BeNil())
	Expect(err.Error()).To(ContainSubstring("status code 500"))
}

func TestChatCompletionsServerReportedError(t *testing.T) {
	RegisterTestingT(t)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "browser session expired"})
	}))
	t.Cleanup(ts.Close)
	c := NewClient(ts.URL, "", 10*time.Second)

	_, err := c.ChatCompletions(context.Background(), dto.ChatRequest{
		Prompts: []string{"Hello!"},
	})
	Expect(err).NotTo(BeNil())
	Expect(err.Error()).To(ContainSubstring("browser session expired"))
}

func TestImageGenerations(t *testing.T) {
	RegisterTestingT(t)

	srv := &uiServer{images: []string{"https://example.com/cat.png", "https://example.com/dog.png"}}
	c, _ := newTestClient(t, srv)

	res, err := c.ImageGenerations(context.Background(), dto.ImageRequest{
		Prompts: []string{"a cat and a dog"},
	})
	Expect(err).To(BeNil())
	Expect(res.Images).To(HaveLen(2))
	Expect(res.Duration).To(BeNumerically(">=", 0))
	Expect(srv.requestCount()).To(Equal(1))
}

func TestImageGenerationsEmptyPrompts(t *testing.T) {
	RegisterTestingT(t)

	srv := &uiServer{}
	c, _ := newTestClient(t, srv)

	_, err := c.ImageGenerations(context.Background(), dto.ImageRequest{})
	Expect(err).To(MatchError(ErrEmptyPrompts))
	Expect(srv.requestCount()).To(Equal(0))
}

func TestCustomHeaders(t *testing.T) {
	RegisterTestingT(t)

	var gotHeader, gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Custom")
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]any{"articles": []any{"ok"}})
	}))
	t.Cleanup(ts.Close)

	c := NewClient(ts.URL+"/", "secret", 10*time.Second, WithHeaders(map[string]string{"X-Custom": "yes"}))
	_, err := c.ChatCompletions(context.Background(), dto.ChatRequest{Prompts: []string{"hi"}})
	Expect(err).To(BeNil())
	Expect(gotHeader).To(Equal("yes"))
	Expect(gotAuth).To(Equal("Bearer secret"))
}
