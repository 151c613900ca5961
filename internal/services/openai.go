package services

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/bobarin/clipcaptions/internal/subtitles"
)

// Transcriber produces word-level timestamps for an audio file.
type Transcriber interface {
	TranscribeAudio(ctx context.Context, audioData []byte, filename, language string) ([]subtitles.RawWord, error)
}

type OpenAIService struct {
	client *openai.Client
}

func NewOpenAIService(apiKey string) *OpenAIService {
	return &OpenAIService{
		client: openai.NewClient(apiKey),
	}
}

// TranscribeAudio sends audio to OpenAI Whisper and returns word-level
// timestamps relative to the start of the audio.
func (s *OpenAIService) TranscribeAudio(ctx context.Context, audioData []byte, filename, language string) ([]subtitles.RawWord, error) {
	if language == "" {
		language = "en"
	}
	if filename == "" {
		filename = "audio.mp3"
	}

	resp, err := s.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		Reader:   bytes.NewReader(audioData),
		FilePath: filepath.Base(filename), // the API infers the container from the extension
		Format:   openai.AudioResponseFormatVerboseJSON,
		Language: language,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularityWord,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("whisper transcription failed: %w", err)
	}

	words := make([]subtitles.RawWord, 0, len(resp.Words))
	for _, w := range resp.Words {
		words = append(words, subtitles.RawWord{
			Text:  strings.TrimSpace(w.Word),
			Start: w.Start,
			End:   w.End,
		})
	}

	log.Printf("[Whisper] Transcribed %d words (duration: %.1fs, text: %q)",
		len(words), resp.Duration, truncateString(resp.Text, 80))

	return words, nil
}

// truncateString cuts s to maxLen runes so log lines never split a character.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
