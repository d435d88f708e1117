package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/dmitrymomot/gengate/pkg/assets"
	"github.com/dmitrymomot/gengate/pkg/logger"
	"github.com/dmitrymomot/gengate/pkg/plans"
	"github.com/dmitrymomot/gengate/pkg/provider"
	"github.com/dmitrymomot/gengate/pkg/statemachine"
	"github.com/dmitrymomot/gengate/pkg/usage"
)

// Catalog is the read side of the plan table. *plans.Catalog satisfies it.
type Catalog interface {
	LimitsFor(tier plans.Tier) (plans.Plan, error)
	Verify(tier plans.Tier) error
	Compare(current, target plans.Tier) (*plans.PlanComparison, error)
	All() []plans.Plan
}

// Mirror copies a provider asset to durable storage and returns its new URL.
type Mirror interface {
	Mirror(ctx context.Context, a assets.Asset) (string, error)
}

// Dispatcher enforces quotas and runs requests through the backend chain of
// their kind. It holds no per-request state and is safe for concurrent use.
type Dispatcher struct {
	store   usage.Store
	catalog Catalog
	clients map[provider.Backend]provider.Client
	opts    *options
}

// New wires a dispatcher. Clients are keyed by their backend; at most one
// client per backend.
func New(store usage.Store, catalog Catalog, clients []provider.Client, opts ...Option) (*Dispatcher, error) {
	if store == nil || catalog == nil {
		return nil, ErrNilDependency
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	byBackend := make(map[provider.Backend]provider.Client, len(clients))
	for _, c := range clients {
		if c == nil {
			return nil, ErrNilDependency
		}
		if _, dup := byBackend[c.Backend()]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateClient, c.Backend())
		}
		byBackend[c.Backend()] = c
	}

	return &Dispatcher{store: store, catalog: catalog, clients: byBackend, opts: o}, nil
}

// Chain returns the configured clients for kind in preference order.
func (d *Dispatcher) Chain(kind provider.Kind) []provider.Client {
	var chain []provider.Client
	for _, b := range d.opts.routes[kind] {
		if c, ok := d.clients[b]; ok {
			chain = append(chain, c)
		}
	}
	return chain
}

// run carries one request through the lifecycle.
type run struct {
	req     Request
	log     *slog.Logger
	machine *statemachine.Machine[State, event]
}

func (d *Dispatcher) start(ctx context.Context, req Request) *run {
	log := d.opts.log.With(
		logger.Component("dispatcher"),
		logger.UserID(req.UserID),
		logger.Kind(req.Kind),
	)
	return &run{
		req: req,
		log: log,
		machine: lifecycle.Start(func(from, to State, _ event) {
			log.DebugContext(ctx, "generation state changed",
				slog.String("from", string(from)),
				logger.State(to))
		}),
	}
}

func (r *run) resolve(res *Result) *Result {
	res.State = r.machine.Current()
	return res
}

// Generate runs one request to a terminal state. Expected failures are
// reported in the Result, never as an error.
func (d *Dispatcher) Generate(ctx context.Context, req Request) *Result {
	started := d.opts.now()
	req.Prompt = provider.NormalizePrompt(req.Prompt)

	r := d.start(ctx, req)
	res := r.resolve(d.generate(ctx, r))

	elapsed := d.opts.now().Sub(started)
	d.opts.metrics.observeResult(req.Kind, res, elapsed)

	if res.Success {
		r.log.InfoContext(ctx, "generation succeeded",
			logger.Backend(res.Provider),
			slog.String("model", res.ModelID),
			logger.CostUSD(res.CostUSD),
			logger.Duration(elapsed))
	} else {
		r.log.InfoContext(ctx, "generation failed",
			slog.String("error_kind", string(res.ErrorKind)),
			slog.String("detail", res.Detail),
			logger.Duration(elapsed))
	}
	return res
}

func (d *Dispatcher) generate(ctx context.Context, r *run) *Result {
	req := r.req
	if err := validate(req); err != nil {
		r.machine.MustFire(evFail)
		return failure(KindInvalidRequest, err.Error())
	}

	acc, err := d.store.GetOrCreate(ctx, req.UserID, req.Identity)
	if err != nil {
		r.machine.MustFire(evFail)
		return d.storeFailure(ctx, r, err)
	}
	plan, err := d.catalog.LimitsFor(acc.Plan)
	if err != nil {
		r.machine.MustFire(evFail)
		return d.storeFailure(ctx, r, err)
	}

	textTier := resolveTextTier(req, plan)
	dim, amount := d.dimension(req, textTier)

	res, err := d.store.CheckAndReserve(ctx, req.UserID, dim, amount)
	if err != nil {
		if qe, ok := usage.IsQuotaError(err); ok {
			r.machine.MustFire(evRefused)
			kind := KindQuotaExceeded
			if errors.Is(qe, usage.ErrFeatureNotOnPlan) {
				kind = KindFeatureNotOnPlan
			}
			r.log.DebugContext(ctx, "quota refused",
				logger.Tier(acc.Plan),
				logger.Dimension(dim),
				logger.Error(qe))
			return failure(kind, qe.Error())
		}
		r.machine.MustFire(evFail)
		return d.storeFailure(ctx, r, err)
	}
	r.machine.MustFire(evReserved)
	r.log = r.log.With(logger.ReservationID(res.ID.String()), logger.Tier(acc.Plan))

	chain := d.Chain(req.Kind)
	if len(chain) == 0 {
		d.release(ctx, r, res)
		r.machine.MustFire(evFail)
		return failure(KindProviderUnavailable, fmt.Sprintf("%s: %s", ErrNoBackend, req.Kind))
	}

	return d.dispatch(ctx, r, chain, res, acc.Plan, textTier)
}

// dispatch walks the chain until one backend succeeds. The reservation is
// committed exactly once on success and released otherwise.
func (d *Dispatcher) dispatch(ctx context.Context, r *run, chain []provider.Client, res usage.Reservation, tier plans.Tier, textTier TextTier) *Result {
	var causes []error
	for i, client := range chain {
		if i == 0 {
			r.machine.MustFire(evPrimary)
		} else {
			r.machine.MustFire(evFallback)
			d.opts.metrics.observeFallback(r.req.Kind)
		}

		job, out := d.attempt(ctx, r, client, tier, textTier)
		if out.Succeeded() {
			return d.succeed(ctx, r, client, res, job, out)
		}
		causes = append(causes, out.Err)

		if ctx.Err() != nil {
			break
		}
	}

	d.release(ctx, r, res)
	r.machine.MustFire(evFail)

	kind := KindProviderUnavailable
	if ctx.Err() != nil {
		kind = KindTimeout
	}
	return failure(kind, joinCauses(causes))
}

// attempt submits and polls one backend under its own deadline.
func (d *Dispatcher) attempt(ctx context.Context, r *run, client provider.Client, tier plans.Tier, textTier TextTier) (provider.Job, provider.Outcome) {
	b := client.Backend()

	attemptCtx, cancel := context.WithTimeout(ctx, d.opts.deadlines[r.req.Kind])
	defer cancel()
	deadline, _ := attemptCtx.Deadline()

	job := provider.NewJob(r.req.Kind, r.req.Prompt, d.opts.models(b, tier, textTier), d.opts.now())
	if r.req.Kind == provider.KindText && textTier == TextLong {
		job.MaxTokens = d.tokenBudget(r.req)
	}

	log := r.log.With(logger.Backend(b), slog.String("model", job.ModelID))

	var out provider.Outcome
	h, err := client.Submit(attemptCtx, job)
	if err != nil {
		out = provider.Failure(provider.AsError(b, err))
	} else {
		log.DebugContext(ctx, "job submitted", logger.JobID(h.ID))
		out = client.Poll(attemptCtx, h, deadline)
		if !out.Succeeded() && out.Err == nil {
			out.Err = provider.Unavailable(b, provider.ErrRemoteJob)
		}
	}
	d.opts.metrics.observeAttempt(b, out)

	if !out.Succeeded() {
		log.WarnContext(ctx, "provider attempt failed",
			slog.String("error_kind", string(out.Err.Kind)),
			logger.Error(out.Err))
	}
	return job, out
}

func (d *Dispatcher) succeed(ctx context.Context, r *run, client provider.Client, res usage.Reservation, job provider.Job, out provider.Outcome) *Result {
	cost := client.EstimateCost(job, out)

	// The asset exists; charge it even if the caller went away.
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.opts.commitWait)
	defer cancel()

	if err := d.store.Commit(commitCtx, res); err != nil {
		d.opts.metrics.observeCommitFailure()
		r.log.ErrorContext(ctx, "usage commit failed after successful generation",
			logger.Backend(client.Backend()),
			logger.Dimension(res.Dimension),
			slog.Int64("amount", res.Amount),
			logger.Error(err))
		r.machine.MustFire(evFail)
		return failure(KindProviderUnavailable, errors.Join(ErrCommitFailed, err).Error())
	}
	r.machine.MustFire(evSucceed)

	result := &Result{
		Success:  true,
		AssetURL: out.AssetURL,
		Text:     out.Text,
		CostUSD:  cost,
		Provider: client.Backend(),
		ModelID:  job.ModelID,
	}
	d.mirror(context.WithoutCancel(ctx), r, result)
	return result
}

func (d *Dispatcher) mirror(ctx context.Context, r *run, result *Result) {
	if d.opts.mirror == nil || result.AssetURL == "" || r.req.Kind == provider.KindText {
		return
	}
	url, err := d.opts.mirror.Mirror(ctx, assets.Asset{
		UserID:    r.req.UserID,
		Kind:      string(r.req.Kind),
		SourceURL: result.AssetURL,
	})
	if err != nil {
		r.log.WarnContext(ctx, "asset mirror failed, keeping provider url", logger.Error(err))
		return
	}
	result.SourceURL = result.AssetURL
	result.AssetURL = url
}

func (d *Dispatcher) release(ctx context.Context, r *run, res usage.Reservation) {
	relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.opts.commitWait)
	defer cancel()
	if err := d.store.Release(relCtx, res); err != nil {
		// the reservation expires on its own
		r.log.WarnContext(ctx, "reservation release failed", logger.Error(err))
	}
}

func (d *Dispatcher) storeFailure(ctx context.Context, r *run, err error) *Result {
	r.log.ErrorContext(ctx, "usage store failed", logger.Error(err))
	return failure(KindProviderUnavailable, errors.Join(ErrStoreFailed, err).Error())
}

func (d *Dispatcher) dimension(req Request, textTier TextTier) (plans.Dimension, int64) {
	switch req.Kind {
	case provider.KindImage:
		return plans.MonthlyImages, 1
	case provider.KindVideo:
		return plans.MonthlyVideos, 1
	case provider.KindMusic:
		return plans.MonthlyMusic, 1
	}
	switch textTier {
	case TextDeep:
		return plans.DailyTextB, 1
	case TextLong:
		return plans.MonthlyDeepTokens, int64(d.tokenBudget(req))
	default:
		return plans.DailyTextA, 1
	}
}

func (d *Dispatcher) tokenBudget(req Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return d.opts.tokenBudget
}

// resolveTextTier turns TextAuto into fast when the plan offers it and deep
// otherwise. Explicit tiers are kept even when the plan lacks them so the
// quota check reports FeatureNotOnPlan.
func resolveTextTier(req Request, plan plans.Plan) TextTier {
	if req.Kind != provider.KindText {
		return ""
	}
	if req.TextTier != "" && req.TextTier != TextAuto {
		return req.TextTier
	}
	if plan.Limit(plans.DailyTextA) != 0 {
		return TextFast
	}
	return TextDeep
}

func validate(req Request) error {
	switch req.Kind {
	case provider.KindImage, provider.KindVideo, provider.KindMusic, provider.KindText:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, req.Kind)
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return ErrEmptyPrompt
	}
	if _, err := ParseTextTier(string(req.TextTier)); err != nil {
		return err
	}
	if req.MaxTokens < 0 || req.MaxTokens > MaxTokenBudget {
		return fmt.Errorf("%w: %d", ErrTokenBudget, req.MaxTokens)
	}
	return nil
}

func joinCauses(causes []error) string {
	msgs := make([]string, 0, len(causes))
	for _, c := range causes {
		if c != nil {
			msgs = append(msgs, c.Error())
		}
	}
	return strings.Join(slices.Compact(msgs), "; ")
}
