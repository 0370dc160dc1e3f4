package llm

import (
	"context"
	"encoding/base64"
	"fmt"

	"agentsurvey/internal/cache"
	"agentsurvey/internal/config"
	"agentsurvey/internal/errs"
	"agentsurvey/internal/fingerprint"
	"agentsurvey/internal/model"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CallRequest is one administration's model call
type CallRequest struct {
	UserPrompt   string
	SystemPrompt string
	Iteration    int
	Cache        cache.ResponseCache // nil disables caching
	Schema       map[string]any
	SchemaID     string
	Attachments  []*model.FileAttachment

	// Fresh skips the cache lookup but still reports the cache key
	Fresh bool
}

// CallResult is the raw reply of a call and where it came from
type CallResult struct {
	Reply        string
	CacheUsed    bool
	CacheKey     string
	Model        string
	InputTokens  int
	OutputTokens int
	Cost         float64
}

// Caller is the model collaborator contract the invigilator depends on
type Caller interface {
	Model() string
	Call(ctx context.Context, req *CallRequest) (*CallResult, error)
}

// Client implements Caller on top of a Provider
type Client struct {
	provider   Provider
	parameters map[string]any
	pricing    config.ModelPricing
	logger     *zap.Logger
	group      singleflight.Group
}

// Ensure interface compliance
var _ Caller = (*Client)(nil)

// NewClient wraps provider. parameters are the call settings that take part
// in cache keys.
func NewClient(provider Provider, parameters map[string]any, pricing config.ModelPricing, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		provider:   provider,
		parameters: parameters,
		pricing:    pricing,
		logger:     logger,
	}
}

// NewClientFromConfig builds the client the configuration asks for
func NewClientFromConfig(ctx context.Context, cfg *config.AIConfig, logger *zap.Logger) (*Client, error) {
	var provider Provider
	switch cfg.Provider {
	case config.ProviderGemini:
		p, err := NewGeminiProvider(ctx, cfg)
		if err != nil {
			return nil, err
		}
		provider = p
	case config.ProviderStatic:
		provider = NewStaticProvider(cfg.StaticReply)
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
	return NewClient(provider, cfg.Parameters(), cfg.Pricing, logger), nil
}

func (c *Client) Model() string {
	return c.provider.Model()
}

// Key is the cache key of req
func (c *Client) Key(req *CallRequest) (string, error) {
	in := fingerprint.Input{
		Model:        c.provider.Model(),
		Parameters:   c.parameters,
		UserPrompt:   req.UserPrompt,
		SystemPrompt: req.SystemPrompt,
		Iteration:    req.Iteration,
		SchemaID:     req.SchemaID,
	}
	for _, fa := range req.Attachments {
		data, err := base64.StdEncoding.DecodeString(fa.Base64)
		if err != nil {
			data = []byte(fa.Base64)
		}
		in.Attachments = append(in.Attachments, fingerprint.Bytes(data))
	}
	return fingerprint.Key(in)
}

// Call returns the cached reply for req when there is one, otherwise calls
// the provider. Concurrent identical calls share one provider call. Replies
// are never stored here: storing is up to the caller once the reply is validated.
func (c *Client) Call(ctx context.Context, req *CallRequest) (*CallResult, error) {
	key, err := c.Key(req)
	if err != nil {
		return nil, errs.Wrap(err, errs.CategoryInternal, "fingerprint", "", false)
	}

	if req.Cache != nil && !req.Fresh {
		entry, err := req.Cache.Lookup(ctx, key)
		if err != nil {
			c.logger.Warn("response cache lookup failed", zap.String("key", key), zap.Error(err))
		} else if entry != nil {
			return &CallResult{
				Reply:     entry.RawReply,
				CacheUsed: true,
				CacheKey:  key,
				Model:     c.provider.Model(),
			}, nil
		}
	}

	// Identical concurrent calls share one provider request. It runs apart
	// from any one caller's cancellation; each caller stops waiting on its own.
	shared := context.WithoutCancel(ctx)
	flight := c.group.DoChan(key, func() (interface{}, error) {
		return c.provider.Generate(shared, &Request{
			UserPrompt:   req.UserPrompt,
			SystemPrompt: req.SystemPrompt,
			Schema:       req.Schema,
			Attachments:  req.Attachments,
		})
	})
	var v interface{}
	select {
	case <-ctx.Done():
		return nil, errs.Wrap(fmt.Errorf("model %s: %w", c.provider.Model(), ctx.Err()), errs.CategoryModelCall, "cancelled", "", false)
	case r := <-flight:
		v, err = r.Val, r.Err
	}
	if err != nil {
		return nil, errs.Wrap(fmt.Errorf("model %s: %w", c.provider.Model(), err), errs.CategoryModelCall, "provider_error",
			"check the model configuration and retry", true)
	}
	resp, _ := v.(*Response)
	if resp == nil {
		return nil, errs.New(errs.CategoryModelCall, "empty_response", "model %s returned no response", c.provider.Model())
	}

	return &CallResult{
		Reply:        resp.Text,
		CacheKey:     key,
		Model:        c.provider.Model(),
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
		Cost:         c.pricing.Cost(resp.InputTokens, resp.OutputTokens),
	}, nil
}
