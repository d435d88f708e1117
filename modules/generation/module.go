// Package generation exposes the dispatcher to collaborators over HTTP.
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/gengate/pkg/logger"
	"github.com/dmitrymomot/gengate/pkg/plans"
	"github.com/dmitrymomot/gengate/pkg/provider"
	"github.com/dmitrymomot/gengate/pkg/usage"
	gen "github.com/dmitrymomot/gengate/svc/generation"
)

const maxBodyBytes = 64 << 10

var errBadRequest = errors.New("modules.generation.errors.bad_request")

// Service is the part of *gen.Dispatcher the API needs.
type Service interface {
	Generate(ctx context.Context, req gen.Request) *gen.Result
	Account(ctx context.Context, userID int64, id usage.Identity) (*usage.Account, error)
	Status(ctx context.Context, userID int64) (*gen.Status, error)
	Upgrade(ctx context.Context, userID int64, tier plans.Tier) error
	Preview(current, target plans.Tier) (*plans.PlanComparison, error)
	Plans() []plans.Plan
	Models() []provider.Model
}

// API serves the /v1 routes.
type API struct {
	svc Service
	log *slog.Logger
}

// NewAPI returns the versioned API. A nil logger discards.
func NewAPI(svc Service, log *slog.Logger) *API {
	if log == nil {
		log = logger.Discard()
	}
	return &API{svc: svc, log: log.With(logger.Component("api"))}
}

// Handle implements Mountable.
func (a *API) Handle() http.Handler {
	r := chi.NewRouter()
	r.Get("/plans", a.listPlans)
	r.Get("/plans/compare", a.comparePlans)
	r.Get("/models", a.listModels)

	r.Route("/users/{id}", func(r chi.Router) {
		r.Post("/", a.ensureAccount)
		r.Get("/", a.status)
		r.Post("/generate", a.generate)
		r.Put("/plan", a.changePlan)
	})
	return r
}

type generateRequest struct {
	Kind      string `json:"kind"`
	Prompt    string `json:"prompt"`
	TextTier  string `json:"text_tier,omitempty"`
	MaxTokens int    `json:"max_tokens,omitempty"`
	usage.Identity
}

type planRequest struct {
	Plan string `json:"plan"`
}

func (a *API) ensureAccount(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		failErr(w, err)
		return
	}
	var id usage.Identity
	if err := decode(r, &id, true); err != nil {
		failErr(w, err)
		return
	}
	acc, err := a.svc.Account(r.Context(), uid, id)
	if err != nil {
		a.log.ErrorContext(r.Context(), "get or create account", logger.UserID(uid), logger.Error(err))
		failErr(w, err)
		return
	}
	ok(w, acc)
}

func (a *API) status(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		failErr(w, err)
		return
	}
	st, err := a.svc.Status(r.Context(), uid)
	if err != nil {
		failErr(w, err)
		return
	}
	ok(w, st)
}

func (a *API) generate(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		failErr(w, err)
		return
	}
	var body generateRequest
	if err := decode(r, &body, false); err != nil {
		failErr(w, err)
		return
	}
	kind, err := provider.ParseKind(body.Kind)
	if err != nil {
		fail(w, http.StatusBadRequest, "unknown_kind", fmt.Sprintf("unknown kind %q", body.Kind))
		return
	}
	tier, err := gen.ParseTextTier(body.TextTier)
	if err != nil {
		fail(w, http.StatusBadRequest, "unknown_text_tier", fmt.Sprintf("unknown text tier %q", body.TextTier))
		return
	}

	start := time.Now()
	res := a.svc.Generate(r.Context(), gen.Request{
		UserID:    uid,
		Identity:  body.Identity,
		Kind:      kind,
		Prompt:    body.Prompt,
		TextTier:  tier,
		MaxTokens: body.MaxTokens,
	})
	a.log.InfoContext(r.Context(), "generate",
		logger.UserID(uid),
		logger.Kind(kind),
		logger.State(res.State),
		slog.Bool("success", res.Success),
		logger.Duration(time.Since(start)))

	writeJSON(w, resultStatus(res), Envelope{Data: res})
}

func (a *API) changePlan(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		failErr(w, err)
		return
	}
	var body planRequest
	if err := decode(r, &body, false); err != nil {
		failErr(w, err)
		return
	}
	tier, err := plans.ParseTier(body.Plan)
	if err != nil {
		failErr(w, err)
		return
	}
	if err := a.svc.Upgrade(r.Context(), uid, tier); err != nil {
		failErr(w, err)
		return
	}
	st, err := a.svc.Status(r.Context(), uid)
	if err != nil {
		failErr(w, err)
		return
	}
	ok(w, st)
}

func (a *API) listPlans(w http.ResponseWriter, _ *http.Request) {
	ok(w, a.svc.Plans())
}

func (a *API) comparePlans(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := plans.ParseTier(q.Get("from"))
	if err != nil {
		failErr(w, err)
		return
	}
	to, err := plans.ParseTier(q.Get("to"))
	if err != nil {
		failErr(w, err)
		return
	}
	cmp, err := a.svc.Preview(from, to)
	if err != nil {
		failErr(w, err)
		return
	}
	ok(w, cmp)
}

func (a *API) listModels(w http.ResponseWriter, _ *http.Request) {
	ok(w, a.svc.Models())
}

func userID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid user id %q", errBadRequest, raw)
	}
	return id, nil
}

// decode reads a JSON body. An empty body is accepted when optional is set.
func decode(r *http.Request, v any, optional bool) error {
	if r.Body == nil || (optional && r.ContentLength == 0) {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}
