package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/savioxavier/termlink"

	"github.com/kolosmile/chatgpt-uapi-client/pkg/client/dto"
	"github.com/kolosmile/chatgpt-uapi-client/pkg/client/schema"
	"github.com/kolosmile/chatgpt-uapi-client/pkg/util"
)

type (
	errMsg error
)

var headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF88")).Background(lipgloss.Color("#444444"))

// Config carries the CLI settings for a chat session.
type Config struct {
	Url           string   `json:"url" yaml:"url"`
	ApiKey        string   `json:"apiKey" yaml:"apiKey"`
	Timeout       string   `json:"timeout" yaml:"timeout"`
	Headers       []string `json:"headers" yaml:"headers"`
	MaxRetries    int      `json:"maxRetries" yaml:"maxRetries"`
	NonStrict     bool     `json:"nonStrict" yaml:"nonStrict"`
	RetryCooldown string   `json:"retryCooldown" yaml:"retryCooldown"`
	Verbose       bool     `json:"verbose" yaml:"verbose"`
}

// CliClient is the bubbletea model behind the interactive chat session. Each
// prompt is sent to the chat completions endpoint; the conversation is kept
// alive between prompts through the chat URL returned by the server. Prompts
// prefixed with "/image " go to the image generations endpoint instead.
type CliClient struct {
	viewport              viewport.Model
	messages              []string
	textarea              textarea.Model
	senderStyle           lipgloss.Style
	responseStyle         lipgloss.Style
	errorStyle            lipgloss.Style
	err                   error
	gptu                  Client
	ctx                   context.Context
	chatURL               string
	lastResult            *dto.ChatResult
	responseSchema        schema.Schema
	outDir                string
	loader                spinner.Model
	inProgress            atomic.Bool
	promptHistory         []string
	promptHistoryPointer  int
	cfg                   Config
}

func BubbleClient(ctx context.Context, cfg Config, responseSchema schema.Schema) (tea.Model, error) {
	ta := textarea.New()
	ta.Placeholder = "Start typing a prompt... (or press Ctrl^C to exit, use Up and Down to navigate)"
	ta.Focus()

	ta.Prompt = "┃ "
	ta.CharLimit = 4096

	ta.SetWidth(128)
	ta.SetHeight(6)

	// Remove cursor line styling
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()

	ta.ShowLineNumbers = false

	vp := viewport.New(160, 30)
	vp.SetContent(`Welcome to the ChatGPT UI API client! Type a prompt and press Enter to send. Use "/image <prompt>" to generate images.`)

	ta.KeyMap.InsertNewline.SetEnabled(false)

	fmt.Printf("Connecting to %s...\n", cfg.Url)
	timeout := 30 * time.Second
	if dur, err := time.ParseDuration(cfg.Timeout); err == nil {
		timeout = dur
	}
	opts := []Option{WithHeaders(util.SliceToMap(cfg.Headers))}
	if cfg.Verbose {
		opts = append(opts, WithVerbose())
	}
	gptu := NewClient(cfg.Url, cfg.ApiKey, timeout, opts...)
	loader := spinner.New(
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("205"))),
		spinner.WithSpinner(spinner.Dot),
	)
	c := &CliClient{
		ctx:            ctx,
		gptu:           gptu,
		textarea:       ta,
		messages:       []string{},
		viewport:       vp,
		senderStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("5")),
		responseStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		errorStyle:     lipgloss.NewStyle().Background(lipgloss.Color("330000")).Foreground(lipgloss.Color("#FF3333")),
		loader:         loader,
		responseSchema: responseSchema,
		err:            nil,
		cfg:            cfg,
	}

	if outDir, err := os.MkdirTemp(os.TempDir(), "gptu-response"); err == nil {
		c.outDir = outDir
	} else {
		return nil, errors.Wrapf(err, "failed to init temp dir")
	}

	return c, nil
}

func (m *CliClient) Init() tea.Cmd {
	return textarea.Blink
}

func (m *CliClient) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)

	if m.ctx.Err() != nil {
		return m, tea.Quit
	}
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.loader, cmd = m.loader.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyUp:
			if m.promptHistoryPointer < len(m.promptHistory) {
				m.promptHistoryPointer++
				m.textarea.SetValue(m.promptHistory[len(m.promptHistory)-m.promptHistoryPointer])
			}
		case tea.KeyDown:
			if m.promptHistoryPointer > 0 {
				m.promptHistoryPointer--
				m.textarea.SetValue(m.promptHistory[len(m.promptHistory)-m.promptHistoryPointer-1])
			} else {
				m.textarea.SetValue("")
			}
		case tea.KeyEnter:
			m.inProgress.Store(true)
			currentValue := m.textarea.Value()
			m.loader.Tick()
			go func() {
				defer m.inProgress.Store(false)
				if imagePrompt, ok := strings.CutPrefix(currentValue, "/image "); ok {
					res, err := m.gptu.ImageGenerations(m.ctx, dto.ImageRequest{
						Prompts: []string{imagePrompt},
						ChatURL: m.chatURL,
					})
					m.processImages(res, err)
					return
				}
				res, err := m.gptu.ChatCompletions(m.ctx, dto.ChatRequest{
					Prompts:       []string{currentValue},
					ChatURL:       m.chatURL,
					Schema:        m.responseSchema,
					MaxRetries:    lo.ToPtr(m.cfg.MaxRetries),
					Strict:        lo.ToPtr(!m.cfg.NonStrict),
					RetryCooldown: lo.If(m.cfg.RetryCooldown == "", time.Duration(0)).ElseF(func() time.Duration {
						dur, _ := time.ParseDuration(m.cfg.RetryCooldown)
						return dur
					}),
				})
				m.processResponse(res, err)
			}()
			m.displaySpinner()
			m.promptHistory = append(m.promptHistory, currentValue)
			m.promptHistoryPointer = 0
			m.messages = append(m.messages, m.senderStyle.Render("You: ")+currentValue)
			m.updateMessages()
		}

	// We handle errors just like any other message
	case errMsg:
		m.err = msg
		return m, nil
	}

	return m, tea.Batch(tiCmd, vpCmd)
}

func (m *CliClient) displaySpinner() {
	go func() {
		for m.inProgress.Load() {
			time.Sleep(50 * time.Millisecond)
			m.Update(m.loader.Tick())
		}
	}()
}

func (m *CliClient) updateMessages() {
	if len(m.messages) > 10 {
		m.messages = m.messages[1:]
	}
	m.viewport.SetContent(strings.Join(m.messages, "\n"))
	m.textarea.Reset()
	m.viewport.GotoBottom()
}

func (m *CliClient) processResponse(res *dto.ChatResult, err error) {
	defer m.updateMessages()
	if err != nil {
		m.err = err
		m.messages = append(m.messages, m.errorStyle.Render("ERROR: "+err.Error()))
		return
	}
	m.lastResult = res
	if res.ChatURL != "" {
		m.chatURL = res.ChatURL
	}
	if m.responseSchema != nil {
		if res.Data == nil {
			m.messages = append(m.messages, m.errorStyle.Render("ChatGPT: ")+fmt.Sprintf("no valid JSON after %d attempts", res.Attempts))
			return
		}
		rendered, err := json.MarshalIndent(res.Data, "", "  ")
		if err != nil {
			m.messages = append(m.messages, m.responseStyle.Render("ChatGPT: ")+fmt.Sprintf("%v", res.Data))
			return
		}
		m.messages = append(m.messages, m.responseStyle.Render("ChatGPT: ")+string(rendered))
		return
	}
	for _, article := range res.Articles {
		m.messages = append(m.messages, m.responseStyle.Render("ChatGPT: ")+article.Text())
	}
}

func (m *CliClient) processImages(res *dto.ImageResult, err error) {
	defer m.updateMessages()
	if err != nil {
		m.err = err
		m.messages = append(m.messages, m.errorStyle.Render("ERROR: "+err.Error()))
		return
	}
	for i, image := range res.Images {
		// Images arrive either as URLs or as base64 payloads; only the
		// latter can be saved locally.
		if decoded, err := base64.StdEncoding.DecodeString(image); err == nil && len(decoded) > 0 {
			m.saveImage(fmt.Sprintf("image-%d-%d", time.Now().Unix(), i), decoded)
		} else {
			m.messages = append(m.messages, m.responseStyle.Render("ChatGPT: ")+image)
		}
	}
}

func (m *CliClient) saveImage(name string, data []byte) {
	fileName := filepath.Join(m.outDir, fmt.Sprintf("%s.png", name))
	var message string
	if err := os.WriteFile(fileName, data, 0o644); err != nil {
		message = fmt.Sprintf("failed to save image %q to %s: %q", name, fileName, err.Error())
	} else {
		message = fmt.Sprintf("image %q saved to ", name) +
			termlink.ColorLink(name, fmt.Sprintf("file://%s", fileName), "italic green")
	}
	m.messages = append(m.messages, m.responseStyle.Render("ChatGPT: ")+message)
}

func (m *CliClient) View() string {
	dialogView := m.textarea.View()
	if m.inProgress.Load() {
		dialogView = m.loader.View()
	}
	header := headerStyle.Render("Conversation: " + lo.If(m.chatURL == "", "<new>").Else(m.chatURL))
	if m.lastResult != nil {
		header += headerStyle.Render(fmt.Sprintf("; duration: %.2fs, attempts: %d", m.lastResult.Duration.Seconds(), m.lastResult.Attempts))
	}
	return header + fmt.Sprintf(
		"\n\n%s\n\n%s",
		m.viewport.View(),
		dialogView,
	) + "\n\n"
}
