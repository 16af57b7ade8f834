package llm

import (
	"context"
	"strings"
)

type Message struct {
	Role    string
	Content string
}

type Response struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type Client interface {
	Generate(ctx context.Context, messages []Message) (Response, error)
}

// EmptyReply is returned to the browser when the provider answers with an
// empty or missing content field.
const EmptyReply = "(no reply)"

// Reply performs one completion call with exactly two messages (system,
// user) and extracts the trimmed reply text. An empty upstream content
// field yields EmptyReply rather than an error; an upstream error is the
// caller's problem to map to a status code. No retries.
func Reply(ctx context.Context, c Client, systemPrompt, userMessage string) (string, error) {
	resp, err := c.Generate(ctx, []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userMessage},
	})
	if err != nil {
		return "", err
	}
	reply := strings.TrimSpace(resp.Content)
	if reply == "" {
		return EmptyReply, nil
	}
	return reply, nil
}
