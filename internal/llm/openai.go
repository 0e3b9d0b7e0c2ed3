package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"pt-planner/internal/apperr"
	"pt-planner/pkg"
)

// Request is a single blocking completion.
type Request struct {
	// Purpose names the call in logs, e.g. "diagnosis".
	Purpose   string
	System    string
	Prompt    string
	MaxTokens int
}

// Client is the boundary to the model provider.  Complete blocks until the
// full reply is available.  Stream yields reply fragments in arrival order
// and closes the channel when the provider finishes, fails or ctx is done.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
	Stream(ctx context.Context, messages []pkg.ChatMessage) <-chan string
	Enabled() bool
}

// Config holds the provider settings.
type Config struct {
	Enabled       bool
	APIKey        string
	BaseURL       string
	Model         string
	Temperature   float32
	Timeout       time.Duration
	StreamTimeout time.Duration
	MaxRetries    int
	// RetryInitialInterval is the first backoff delay between attempts.
	RetryInitialInterval time.Duration
}

const (
	defaultModel         = "gpt-4o-mini"
	defaultTimeout       = 60 * time.Second
	defaultStreamTimeout = 5 * time.Minute
	defaultRetryInterval = 500 * time.Millisecond

	apologyPrefix = "I'm sorry, I ran into a problem while responding: "
)

var errEmptyReply = errors.New("model returned an empty reply")

// OpenAIClient talks to an OpenAI-compatible chat completion API.  A
// missing API key does not prevent construction; calls fail with an
// Unavailable error instead so the rest of the service keeps working.
type OpenAIClient struct {
	client *openai.Client
	cfg    Config
	logger zerolog.Logger
}

// NewOpenAIClient constructs the provider client, filling in defaults for
// any unset model or timeout.
func NewOpenAIClient(cfg Config, logger zerolog.Logger) *OpenAIClient {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.StreamTimeout <= 0 {
		cfg.StreamTimeout = defaultStreamTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryInitialInterval <= 0 {
		cfg.RetryInitialInterval = defaultRetryInterval
	}

	c := &OpenAIClient{cfg: cfg, logger: logger.With().Str("component", "llm").Logger()}
	if cfg.APIKey != "" {
		oc := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			oc.BaseURL = cfg.BaseURL
		}
		c.client = openai.NewClientWithConfig(oc)
	}
	return c
}

// Enabled reports whether AI calls can be made.
func (c *OpenAIClient) Enabled() bool {
	return c.ready() == nil
}

func (c *OpenAIClient) ready() error {
	if !c.cfg.Enabled {
		return apperr.Unavailable("AI features are disabled")
	}
	if c.client == nil {
		return apperr.Unavailable("OPENAI_API_KEY environment variable not set")
	}
	return nil
}

// Complete sends one prompt and returns the assistant's reply.  Rate
// limits, server errors and network failures are retried with exponential
// backoff; every attempt gets its own timeout.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	if err := c.ready(); err != nil {
		return "", err
	}

	msgs := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	chatReq := openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    msgs,
		MaxTokens:   req.MaxTokens,
		Temperature: c.cfg.Temperature,
	}

	var reply string
	attempt := 0
	op := func() error {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()

		start := time.Now()
		resp, err := c.client.CreateChatCompletion(callCtx, chatReq)
		if err != nil {
			if ctx.Err() != nil || !retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
			return backoff.Permanent(errEmptyReply)
		}
		reply = resp.Choices[0].Message.Content
		c.logger.Debug().
			Str("purpose", req.Purpose).
			Str("model", c.cfg.Model).
			Int("attempt", attempt).
			Int("completion_tokens", resp.Usage.CompletionTokens).
			Dur("latency", time.Since(start)).
			Msg("completion received")
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.cfg.RetryInitialInterval
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(c.cfg.MaxRetries)), ctx)

	err := backoff.RetryNotify(op, policy, func(err error, next time.Duration) {
		c.logger.Warn().Err(err).
			Str("purpose", req.Purpose).
			Int("attempt", attempt).
			Dur("retry_in", next).
			Msg("model request failed, retrying")
	})
	if err != nil {
		c.logger.Error().Err(err).Str("purpose", req.Purpose).Int("attempts", attempt).Msg("model request failed")
		return "", apperr.Upstream("AI provider request failed", err)
	}
	return reply, nil
}

// Stream relays the chat reply fragment by fragment.  Provider failures are
// reported as one final apology fragment so the consumer always sees a
// clean end of stream.  Cancelling ctx stops reading from the provider and
// releases the connection.
func (c *OpenAIClient) Stream(ctx context.Context, messages []pkg.ChatMessage) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)

		if err := c.ready(); err != nil {
			send(ctx, out, apology(err, false))
			return
		}

		streamCtx, cancel := context.WithTimeout(ctx, c.cfg.StreamTimeout)
		defer cancel()

		stream, err := c.client.CreateChatCompletionStream(streamCtx, openai.ChatCompletionRequest{
			Model:       c.cfg.Model,
			Messages:    toOpenAIMessages(messages),
			Temperature: c.cfg.Temperature,
			Stream:      true,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error().Err(err).Msg("failed to open chat stream")
			send(ctx, out, apology(err, false))
			return
		}
		defer stream.Close()

		sent := false
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				if ctx.Err() != nil {
					c.logger.Debug().Msg("chat stream cancelled by client")
					return
				}
				c.logger.Error().Err(err).Msg("chat stream interrupted")
				send(ctx, out, apology(err, sent))
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			if delta := resp.Choices[0].Delta.Content; delta != "" {
				if !send(ctx, out, delta) {
					return
				}
				sent = true
			}
		}
	}()
	return out
}

func send(ctx context.Context, out chan<- string, s string) bool {
	select {
	case out <- s:
		return true
	case <-ctx.Done():
		return false
	}
}

func apology(err error, midStream bool) string {
	msg := apologyPrefix + describe(err)
	if midStream {
		return "\n\n" + msg
	}
	return msg
}

// describe renders a provider error as readable text.
func describe(err error) string {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("provider returned status %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Sprintf("provider returned status %d", reqErr.HTTPStatusCode)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "the request timed out"
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

func retryable(err error) bool {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	case errors.Is(err, errEmptyReply):
		return false
	default:
		// transport failure or per-attempt timeout
		return true
	}
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

func toOpenAIMessages(messages []pkg.ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := string(m.Role)
		if role != openai.ChatMessageRoleSystem && role != openai.ChatMessageRoleUser && role != openai.ChatMessageRoleAssistant {
			// coerce anything unknown to user
			role = openai.ChatMessageRoleUser
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}
