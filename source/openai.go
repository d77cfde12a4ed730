package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/ZaguanLabs/lexicache"
)

// OpenAISource implements lookups using OpenAI's chat completion API.
type OpenAISource struct {
	client         *openai.Client
	model          string
	temperature    float32
	readerLanguage string
}

// OpenAIConfig holds configuration for the OpenAI source.
type OpenAIConfig struct {
	APIKey         string  // OpenAI API key
	Model          string  // Model to use (default: "gpt-4o-mini")
	Temperature    float32 // Temperature for generation (default: 0.3)
	BaseURL        string  // Custom base URL (optional)
	ReaderLanguage string  // Language bilingual entries explain in (default: "en")
}

// NewOpenAISource creates a new OpenAI source.
func NewOpenAISource(cfg OpenAIConfig) *OpenAISource {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	config.HTTPClient = &http.Client{Transport: userAgentTransport{base: http.DefaultTransport}}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.3
	}

	reader := cfg.ReaderLanguage
	if reader == "" {
		reader = "en"
	}

	return &OpenAISource{
		client:         openai.NewClientWithConfig(config),
		model:          model,
		temperature:    temperature,
		readerLanguage: reader,
	}
}

// entryPayload is the JSON object a lookup completion is asked to return.
type entryPayload struct {
	Content string          `json:"content"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Lookup requests a complete entry. The completion id becomes the version id
// and its creation time the version timestamp.
func (s *OpenAISource) Lookup(ctx context.Context, req lexicache.LookupRequest) (*lexicache.LookupResult, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: s.buildSystemPrompt(req, true)},
			{Role: openai.ChatMessageRoleUser, Content: buildUserMessage(req)},
		},
		Temperature: s.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, &lexicache.SourceError{
			Message:   "OpenAI API call failed",
			Cause:     err,
			Retryable: isRetryableError(err),
		}
	}

	if len(resp.Choices) == 0 {
		return nil, &lexicache.SourceError{
			Message:   "no response from OpenAI",
			Retryable: true,
		}
	}

	payload, err := parseResponse(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	v := lexicache.WordVersion{
		ID:      resp.ID,
		Content: payload.Content,
		Data:    payload.Data,
	}
	if resp.Created > 0 {
		v.CreatedAt = strconv.FormatInt(resp.Created, 10)
	}

	return &lexicache.LookupResult{
		Versions: []lexicache.WordVersion{v},
		Metadata: lexicache.RecordMetadata{LatestVersionID: resp.ID, ActiveVersionID: resp.ID},
	}, nil
}

// Stream requests an entry as streamed HTML and emits each content delta.
func (s *OpenAISource) Stream(ctx context.Context, req lexicache.LookupRequest, out chan<- string) error {
	stream, err := s.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: s.buildSystemPrompt(req, false)},
			{Role: openai.ChatMessageRoleUser, Content: buildUserMessage(req)},
		},
		Temperature: s.temperature,
		Stream:      true,
	})
	if err != nil {
		return &lexicache.SourceError{
			Message:   "OpenAI stream failed to start",
			Cause:     err,
			Retryable: isRetryableError(err),
		}
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return &lexicache.SourceError{
				Message:   "OpenAI stream interrupted",
				Cause:     err,
				Retryable: isRetryableError(err),
			}
		}

		for _, choice := range resp.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			if err := lexicache.Emit(ctx, out, choice.Delta.Content); err != nil {
				return err
			}
		}
	}
}

func (s *OpenAISource) buildSystemPrompt(req lexicache.LookupRequest, asJSON bool) string {
	termLang := lexicache.GetLanguageName(req.Language)

	var audience string
	switch req.Flavor {
	case lexicache.FlavorBilingual:
		readerLang := lexicache.GetLanguageName(s.readerLanguage)
		audience = fmt.Sprintf("The reader is a %s speaker learning %s. Write the explanations in %s and give a %s translation for every sense.", readerLang, termLang, readerLang, readerLang)
	case lexicache.FlavorKids:
		audience = fmt.Sprintf("The reader is a child. Write in simple %s with short sentences and everyday examples.", termLang)
	default:
		audience = fmt.Sprintf("The reader is fluent in %s. Write the explanations in %s.", termLang, termLang)
	}

	prompt := fmt.Sprintf(`# Role
You are an expert lexicographer writing entries for a %s dictionary.

# Audience
%s

# Task
Write a dictionary entry for the term provided by the user.

# Entry Guide
- **Senses**: List each distinct sense, most common first, with part of speech.
- **Examples**: Give one natural example sentence per sense.
- **Pronunciation**: Include IPA when the term is a single word.
- **Usage**: Note register (formal, slang, archaic) where it matters.`, termLang, audience)

	if lexicache.IsRTL(req.Language) {
		prompt += "\n- **Direction**: The term's language is written right-to-left. Add dir=\"rtl\" to elements containing it."
	}

	if asJSON {
		prompt += `

# Format
Return a valid JSON object with the key "content" holding the entry as an HTML fragment, and optionally "data" holding the structured senses.
Example: { "content": "<h2>term</h2><ol><li>...</li></ol>", "data": { "senses": [] } }
- Do NOT wrap in Markdown code blocks.`
	} else {
		prompt += `

# Format
Return only the entry as an HTML fragment. Do NOT wrap it in Markdown code blocks.`
	}

	return prompt
}

func buildUserMessage(req lexicache.LookupRequest) string {
	return strings.TrimSpace(req.Term)
}

func parseResponse(content string) (entryPayload, error) {
	var payload entryPayload
	if err := json.Unmarshal([]byte(content), &payload); err == nil && payload.Content != "" {
		return payload, nil
	}

	// Some models answer with another key; take the first string value.
	var obj map[string]any
	if err := json.Unmarshal([]byte(content), &obj); err == nil {
		for _, v := range obj {
			if s, ok := v.(string); ok && s != "" {
				return entryPayload{Content: s}, nil
			}
		}
	}

	return entryPayload{}, &lexicache.SourceError{
		Message:   "invalid response format from OpenAI",
		Retryable: false,
	}
}

// userAgentTransport stamps every request with the lexicache user agent.
type userAgentTransport struct {
	base http.RoundTripper
}

func (t userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", lexicache.UserAgent())
	return t.base.RoundTrip(req)
}

func isRetryableError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}

	// Check for common retryable conditions
	errStr := err.Error()
	retryablePatterns := []string{
		"rate limit",
		"timeout",
		"connection refused",
		"temporary",
		"503",
		"502",
		"429",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(strings.ToLower(errStr), pattern) {
			return true
		}
	}
	return false
}
