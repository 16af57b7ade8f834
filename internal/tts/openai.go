// Package tts wraps the provider's speech endpoint behind a small
// interface so a deployment can run without any TTS at all.
package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// ErrEmptyText is reported before any upstream call when the input text is
// missing; callers map it to a 400, not a 500.
var ErrEmptyText = errors.New("tts: empty input text")

// Synthesizer turns text into encoded audio. Implementations report the
// content type of the bytes they produce.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
	ContentType() string
}

type OpenAISynthesizer struct {
	client *openai.Client
	model  string
	voice  string
}

func NewOpenAI(apiKey, baseURL, model, voice string) *OpenAISynthesizer {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAISynthesizer{
		client: openai.NewClientWithConfig(config),
		model:  model,
		voice:  voice,
	}
}

func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.model),
		Input:          text,
		Voice:          openai.SpeechVoice(s.voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create speech: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read speech response: %w", err)
	}
	return audio, nil
}

func (s *OpenAISynthesizer) ContentType() string { return "audio/mpeg" }
