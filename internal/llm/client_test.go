package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"agentsurvey/internal/cache"
	"agentsurvey/internal/config"
	"agentsurvey/internal/errs"
	"agentsurvey/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(reply string) (*Client, *StaticProvider) {
	p := NewStaticProvider(reply)
	return NewClient(p, map[string]any{"temperature": 0.5}, config.ModelPricing{InputPerMillion: 1e6, OutputPerMillion: 2e6}, nil), p
}

func TestCallUsesCacheBeforeProvider(t *testing.T) {
	ctx := context.Background()
	c, p := newTestClient("42")
	rc := cache.NewMemoryResponseCache()
	req := &CallRequest{UserPrompt: "How old?", Iteration: 0, Cache: rc}

	res, err := c.Call(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "42", res.Reply)
	assert.False(t, res.CacheUsed)
	assert.NotEmpty(t, res.CacheKey)
	assert.Equal(t, 1, p.Calls())
	assert.Equal(t, 0, rc.Len(), "the client never stores")

	_, err = rc.Store(ctx, res.CacheKey, &cache.Entry{RawReply: "cached"})
	require.NoError(t, err)

	res, err = c.Call(ctx, req)
	require.NoError(t, err)
	assert.True(t, res.CacheUsed)
	assert.Equal(t, "cached", res.Reply)
	assert.Zero(t, res.Cost)
	assert.Equal(t, 1, p.Calls())

	req.Fresh = true
	res, err = c.Call(ctx, req)
	require.NoError(t, err)
	assert.False(t, res.CacheUsed)
	assert.Equal(t, 2, p.Calls())
}

func TestKeyIsDeterministic(t *testing.T) {
	c, _ := newTestClient("")
	base := CallRequest{UserPrompt: "u", SystemPrompt: "s", Iteration: 1, SchemaID: "abc"}

	k1, err := c.Key(&base)
	require.NoError(t, err)
	same := base
	k2, err := c.Key(&same)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)

	variants := []CallRequest{
		{UserPrompt: "u2", SystemPrompt: "s", Iteration: 1, SchemaID: "abc"},
		{UserPrompt: "u", SystemPrompt: "s2", Iteration: 1, SchemaID: "abc"},
		{UserPrompt: "u", SystemPrompt: "s", Iteration: 2, SchemaID: "abc"},
		{UserPrompt: "u", SystemPrompt: "s", Iteration: 1, SchemaID: "def"},
		{UserPrompt: "u", SystemPrompt: "s", Iteration: 1, SchemaID: "abc",
			Attachments: []*model.FileAttachment{{Name: "a.png", Base64: "aGk=", MimeType: "image/png"}}},
	}
	for i := range variants {
		k, err := c.Key(&variants[i])
		require.NoError(t, err)
		assert.NotEqual(t, k1, k, "variant %d", i)
	}
}

func TestCallCosts(t *testing.T) {
	c, _ := newTestClient("12345678")
	res, err := c.Call(context.Background(), &CallRequest{UserPrompt: "abcd"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.InputTokens)
	assert.Equal(t, 2, res.OutputTokens)
	assert.InDelta(t, 5.0, res.Cost, 1e-9)
	assert.Equal(t, "test", res.Model)
}

func TestProviderErrorIsModelCall(t *testing.T) {
	c, p := newTestClient("")
	p.SetError(errors.New("connection reset"))

	_, err := c.Call(context.Background(), &CallRequest{UserPrompt: "x"})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.CategoryModelCall))
	assert.True(t, errs.RetryableOf(err))
}

// gatedProvider blocks every call until release is closed
type gatedProvider struct {
	entered chan struct{}
	release chan struct{}
}

func (p *gatedProvider) Model() string { return "gated" }

func (p *gatedProvider) Generate(ctx context.Context, req *Request) (*Response, error) {
	select {
	case p.entered <- struct{}{}:
	default:
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.release:
		return &Response{Text: "shared"}, nil
	}
}

// lookupSignal reports each cache lookup and never hits
type lookupSignal struct {
	cache.ResponseCache
	looked chan struct{}
}

func (l *lookupSignal) Lookup(ctx context.Context, key string) (*cache.Entry, error) {
	l.looked <- struct{}{}
	return nil, nil
}

func TestSharedCallSurvivesFirstCallerCancel(t *testing.T) {
	p := &gatedProvider{entered: make(chan struct{}, 1), release: make(chan struct{})}
	c := NewClient(p, nil, config.ModelPricing{}, nil)
	rc := &lookupSignal{ResponseCache: cache.NewMemoryResponseCache(), looked: make(chan struct{}, 2)}
	req := &CallRequest{UserPrompt: "same", Cache: rc}

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Call(firstCtx, req)
		firstErr <- err
	}()
	<-rc.looked
	<-p.entered

	type outcome struct {
		res *CallResult
		err error
	}
	second := make(chan outcome, 1)
	go func() {
		res, err := c.Call(context.Background(), req)
		second <- outcome{res, err}
	}()
	<-rc.looked
	time.Sleep(20 * time.Millisecond)

	cancel()
	select {
	case err := <-firstErr:
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
		assert.Equal(t, "cancelled", errs.CodeOf(err))
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting")
	}

	close(p.release)
	select {
	case out := <-second:
		require.NoError(t, out.err)
		assert.Equal(t, "shared", out.res.Reply)
	case <-time.After(time.Second):
		t.Fatal("second caller never returned")
	}
}

func TestNewClientFromConfig(t *testing.T) {
	c, err := NewClientFromConfig(context.Background(), &config.AIConfig{Provider: config.ProviderStatic, StaticReply: "ok"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "test", c.Model())

	_, err = NewClientFromConfig(context.Background(), &config.AIConfig{Provider: "carrier-pigeon"}, nil)
	assert.Error(t, err)
}
