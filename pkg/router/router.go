// Package router decides which provider executes a query, calls it under a
// deadline, prices the result and records the outcome.
package router

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/datagata/gata/pkg/apperr"
	"github.com/datagata/gata/pkg/flags"
	"github.com/datagata/gata/pkg/models"
	"github.com/datagata/gata/pkg/provider"
)

const (
	// DefaultTimeout bounds an adapter call when neither request nor options set one.
	DefaultTimeout = 30 * time.Second
	// DefaultPricePerMillion is the USD price per million tokens for metered
	// providers without a configured price.
	DefaultPricePerMillion = 20.0
)

var errNoResolver = errors.New("no flag resolver configured")

// State is a step of a request's lifecycle.
type State string

const (
	StateReceived       State = "received"
	StateConfigResolved State = "config_resolved"
	StateDispatched     State = "dispatched"
	StateCompleted      State = "completed"
	StateFailed         State = "failed"
)

// Recorder receives one outcome per dispatched request.
type Recorder interface {
	Record(models.ProviderOutcome)
}

// Options wires a Router.
type Options struct {
	Resolver flags.Resolver
	// Fallback is served when Resolver fails. Nil means resolution failures
	// surface as ConfigUnavailableError.
	Fallback *flags.AIConfig
	Adapters map[provider.Kind]provider.Adapter
	Recorder Recorder
	Tracker  flags.Tracker
	Timeout  time.Duration
	// Pricing is USD per million tokens by provider.
	Pricing map[provider.Kind]float64
	Logger  *zap.Logger
}

// Request is one query to execute.
type Request struct {
	Query      string
	TableNames []string
	Context    flags.Context
	// Timeout overrides Options.Timeout when positive.
	Timeout time.Duration
}

// Router executes queries against the configured provider.
type Router struct {
	opts Options
	log  *zap.Logger
	now  func() time.Time
}

// New creates a Router.
func New(opts Options) *Router {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{opts: opts, log: log, now: time.Now}
}

// Resolve returns the provider and parameters that would serve c.
func (r *Router) Resolve(ctx context.Context, c flags.Context) (provider.Kind, flags.AIConfig, error) {
	cfg, err := r.resolveConfig(ctx, c)
	if err != nil {
		return "", flags.AIConfig{}, err
	}
	kind, ok := provider.ParseKind(cfg.Provider)
	if !ok {
		return "", cfg, &apperr.UnknownProviderError{Provider: cfg.Provider}
	}
	if _, ok := r.opts.Adapters[kind]; !ok {
		return "", cfg, &apperr.UnknownProviderError{Provider: cfg.Provider}
	}
	return kind, cfg, nil
}

func (r *Router) resolveConfig(ctx context.Context, c flags.Context) (flags.AIConfig, error) {
	if r.opts.Resolver == nil {
		if r.opts.Fallback != nil {
			return *r.opts.Fallback, nil
		}
		return flags.AIConfig{}, &apperr.ConfigUnavailableError{Cause: errNoResolver}
	}
	cfg, err := r.opts.Resolver.Resolve(ctx, c)
	if err == nil {
		return cfg, nil
	}
	if r.opts.Fallback != nil {
		r.log.Warn("flag resolution failed, serving fallback config",
			zap.String("provider", r.opts.Fallback.Provider), zap.Error(err))
		return *r.opts.Fallback, nil
	}
	return flags.AIConfig{}, &apperr.ConfigUnavailableError{Cause: err}
}

type result struct {
	resp *provider.Response
	err  error
}

// Execute runs req through resolve, dispatch and record.
func (r *Router) Execute(ctx context.Context, req Request) (*models.QueryResponse, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, apperr.Validation("query", "is required")
	}
	log := r.log.With(zap.String("user", req.Context.UserKey))
	log.Debug("query state", zap.String("state", string(StateReceived)))
	r.track(ctx, flags.EventQueryStarted, req.Context, map[string]any{"query": req.Query}, nil)

	kind, cfg, err := r.Resolve(ctx, req.Context)
	if err != nil {
		log.Debug("query state", zap.String("state", string(StateFailed)), zap.Error(err))
		r.track(ctx, flags.EventQueryFailed, req.Context, map[string]any{"error": apperr.Kind(err)}, nil)
		return nil, err
	}
	log = log.With(zap.String("provider", string(kind)))
	log.Debug("query state", zap.String("state", string(StateConfigResolved)))

	params := provider.Params{
		Model:          cfg.Model.ModelID,
		MaxTokens:      cfg.MaxTokens,
		Temperature:    cfg.Temperature,
		PromptTemplate: cfg.PromptTemplate,
		TableNames:     req.TableNames,
	}
	timeout := r.opts.Timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := r.now()
	log.Debug("query state", zap.String("state", string(StateDispatched)), zap.Duration("timeout", timeout))

	done := make(chan result, 1)
	adapter := r.opts.Adapters[kind]
	go func() {
		resp, err := adapter.Execute(callCtx, req.Query, params)
		done <- result{resp: resp, err: err}
	}()

	var res result
	select {
	case res = <-done:
	case <-callCtx.Done():
		res.err = callCtx.Err()
	}
	elapsed := r.now().Sub(start)
	latencyMs := float64(elapsed.Microseconds()) / 1000

	if res.err == nil && res.resp == nil {
		res.err = provider.ErrMalformedResponse
	}
	// A result the caller will never receive is not a completion.
	if res.err == nil && ctx.Err() != nil {
		res.err = ctx.Err()
	}

	outcome := models.ProviderOutcome{
		Provider:  string(kind),
		LatencyMs: latencyMs,
		Timestamp: r.now().UTC(),
		Tier:      req.Context.Tier,
	}

	if res.err != nil {
		outcome.Success = false
		r.record(outcome)
		log.Debug("query state", zap.String("state", string(StateFailed)), zap.Error(res.err))
		r.track(ctx, flags.EventQueryFailed, req.Context, map[string]any{"provider": string(kind), "error": res.err.Error()}, &latencyMs)
		return nil, &apperr.ProviderExecutionError{Provider: string(kind), Cause: res.err}
	}

	cost := r.Cost(kind, res.resp.TokensUsed)
	outcome.Success = true
	if cost != nil {
		outcome.CostUSD = *cost
	}
	r.record(outcome)
	log.Debug("query state", zap.String("state", string(StateCompleted)), zap.Float64("latency_ms", latencyMs))
	r.track(ctx, flags.EventQueryCompleted, req.Context, map[string]any{
		"provider":   string(kind),
		"tokensUsed": res.resp.TokensUsed,
		"cost":       cost,
		"success":    true,
	}, &latencyMs)

	return &models.QueryResponse{
		Result:     res.resp.Text,
		Provider:   string(kind),
		LatencyMs:  int64(math.Round(latencyMs)),
		TokensUsed: res.resp.TokensUsed,
		CostUSD:    cost,
	}, nil
}

// Cost estimates the USD cost of a call. Local providers cost 0; metered
// providers without a token count have no estimate.
func (r *Router) Cost(kind provider.Kind, tokens *int) *float64 {
	if !kind.Metered() {
		zero := 0.0
		return &zero
	}
	if tokens == nil {
		return nil
	}
	price, ok := r.opts.Pricing[kind]
	if !ok {
		price = DefaultPricePerMillion
	}
	c := float64(*tokens) / 1_000_000 * price
	return &c
}

func (r *Router) record(o models.ProviderOutcome) {
	if r.opts.Recorder != nil {
		r.opts.Recorder.Record(o)
	}
}

func (r *Router) track(ctx context.Context, event string, c flags.Context, data map[string]any, metric *float64) {
	if r.opts.Tracker != nil {
		r.opts.Tracker.Track(ctx, event, c, data, metric)
	}
}
