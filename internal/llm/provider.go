// Package llm is the model collaborator: it turns a prompt pair into a raw
// reply, consulting the response cache first.
package llm

import (
	"context"
	"sync"
	"sync/atomic"

	"agentsurvey/internal/model"
)

// Provider is the interface for all model backends
type Provider interface {
	// Model is the model identity used in cache keys
	Model() string
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// Request is one provider call
type Request struct {
	UserPrompt   string
	SystemPrompt string
	Schema       map[string]any
	Attachments  []*model.FileAttachment
}

// Response is a provider's raw reply and token usage
type Response struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// StaticProvider replies with fixed text. Used for tests and offline runs.
type StaticProvider struct {
	mu    sync.RWMutex
	reply string
	err   error
	calls atomic.Int64
}

// Ensure interface compliance
var _ Provider = (*StaticProvider)(nil)

func NewStaticProvider(reply string) *StaticProvider {
	return &StaticProvider{reply: reply}
}

func (p *StaticProvider) Model() string {
	return "test"
}

// SetReply changes the reply for later calls
func (p *StaticProvider) SetReply(reply string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reply = reply
	p.err = nil
}

// SetError makes later calls fail with err
func (p *StaticProvider) SetError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// Calls is the number of Generate calls so far
func (p *StaticProvider) Calls() int {
	return int(p.calls.Load())
}

func (p *StaticProvider) Generate(ctx context.Context, req *Request) (*Response, error) {
	p.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.err != nil {
		return nil, p.err
	}
	return &Response{
		Text:         p.reply,
		InputTokens:  len(req.UserPrompt+req.SystemPrompt) / 4,
		OutputTokens: len(p.reply) / 4,
	}, nil
}
