package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"google.golang.org/genai"
)

const (
	defaultHookModel = "gemini-2.5-flash"
	maxHookRunes     = 60
	maxHookWords     = 8
)

const hookPrompt = `You write hook titles for short vertical videos.
Read the clip transcript below and reply with ONE hook title that makes a viewer stay for the whole clip.

Rules:
- At most %d words
- No hashtags, no emojis, no surrounding quotes
- Plain text only, a single line

Transcript:
---
%s
---`

// HookSuggester proposes a hook title for a clip transcript.
type HookSuggester interface {
	SuggestHook(ctx context.Context, transcript string) (string, error)
}

// HookService asks Gemini for a hook title.
type HookService struct {
	client *genai.Client
	model  string
}

func NewHookService(ctx context.Context, apiKey, model string) (*HookService, error) {
	if model == "" {
		model = defaultHookModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &HookService{client: client, model: model}, nil
}

func (s *HookService) SuggestHook(ctx context.Context, transcript string) (string, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return "", fmt.Errorf("transcript is empty")
	}

	prompt := fmt.Sprintf(hookPrompt, maxHookWords, transcript)
	temperature := float32(0.9)
	result, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: &temperature,
	})
	if err != nil {
		return "", fmt.Errorf("gemini hook request failed: %w", err)
	}

	hook := cleanHook(result.Text())
	if hook == "" {
		return "", fmt.Errorf("empty hook from gemini")
	}

	log.Printf("[Hook] Suggested hook %q (model=%s)", hook, s.model)
	return hook, nil
}

// cleanHook keeps the first non-empty line, strips quotes and markdown
// emphasis, and caps the length.
func cleanHook(raw string) string {
	var line string
	for _, l := range strings.Split(raw, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			line = l
			break
		}
	}

	const cutset = "\"'“”‘’*_#` "
	line = strings.Trim(line, cutset)
	line = strings.TrimPrefix(line, "Hook:")
	line = strings.Trim(line, cutset)

	if words := strings.Fields(line); len(words) > maxHookWords {
		line = strings.Join(words[:maxHookWords], " ")
	}
	for utf8.RuneCountInString(line) > maxHookRunes {
		i := strings.LastIndexByte(line, ' ')
		if i <= 0 {
			line = string([]rune(line)[:maxHookRunes])
			break
		}
		line = line[:i]
	}
	return line
}
