package generation_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/gengate/modules/generation"
	"github.com/dmitrymomot/gengate/pkg/httpserver"
	"github.com/dmitrymomot/gengate/pkg/provider"
	"github.com/dmitrymomot/gengate/pkg/requestid"
	"github.com/dmitrymomot/gengate/pkg/usage"
	"github.com/dmitrymomot/gengate/pkg/usage/usagetest"
	gen "github.com/dmitrymomot/gengate/svc/generation"
)

type stubClient struct {
	backend provider.Backend
	fail    bool
	hang    bool
}

func (c *stubClient) Backend() provider.Backend { return c.backend }

func (c *stubClient) Models() []provider.Model {
	return []provider.Model{{ID: "m-" + string(c.backend), Backend: c.backend, Unit: "image", Price: 0.01}}
}

func (c *stubClient) Submit(context.Context, provider.Job) (provider.Handle, error) {
	if c.fail {
		return provider.Handle{}, provider.Unavailable(c.backend, errors.New("503"))
	}
	return provider.Handle{Backend: c.backend, ID: "j1"}, nil
}

func (c *stubClient) Poll(ctx context.Context, _ provider.Handle, _ time.Time) provider.Outcome {
	if c.hang {
		<-ctx.Done()
		return provider.Failure(provider.TimedOut(c.backend, ctx.Err()))
	}
	return provider.Success("https://cdn.example/" + string(c.backend) + ".png")
}

func (c *stubClient) EstimateCost(provider.Job, provider.Outcome) float64 { return 0.003 }

func newServer(t *testing.T, clients []provider.Client, opts ...gen.Option) *httptest.Server {
	t.Helper()
	catalog := usagetest.Catalog(t)
	store := usage.NewMemoryStore(catalog)
	reg := prometheus.NewRegistry()
	opts = append(opts, gen.WithMetrics(gen.NewMetrics("test", reg)))
	d, err := gen.New(store, catalog, clients, opts...)
	require.NoError(t, err)

	srv := httptest.NewServer(generation.Router(generation.RouterOptions{
		API:     generation.NewAPI(d, nil),
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Probes: map[string]httpserver.Probe{
			"store": func(context.Context) error { return nil },
		},
	}))
	t.Cleanup(srv.Close)
	return srv
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func call(t *testing.T, srv *httptest.Server, method, path, body string) (int, envelope) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func generate(t *testing.T, srv *httptest.Server, uid, body string) (int, gen.Result) {
	t.Helper()
	code, env := call(t, srv, http.MethodPost, "/v1/users/"+uid+"/generate", body)
	var res gen.Result
	require.NoError(t, json.Unmarshal(env.Data, &res))
	return code, res
}

func imageClients() []provider.Client {
	return []provider.Client{&stubClient{backend: provider.BackendFalImage}}
}

func TestAccountLifecycle(t *testing.T) {
	t.Parallel()
	srv := newServer(t, imageClients())

	code, env := call(t, srv, http.MethodGet, "/v1/users/7", "")
	assert.Equal(t, http.StatusNotFound, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "account_not_found", env.Error.Code)

	code, env = call(t, srv, http.MethodPost, "/v1/users/7", `{"username":"neo","first_name":"Thomas"}`)
	require.Equal(t, http.StatusOK, code)
	var acc usage.Account
	require.NoError(t, json.Unmarshal(env.Data, &acc))
	assert.Equal(t, int64(7), acc.UserID)
	assert.Equal(t, "neo", acc.Username)
	assert.Equal(t, "free", string(acc.Plan))

	code, env = call(t, srv, http.MethodGet, "/v1/users/7", "")
	require.Equal(t, http.StatusOK, code)
	var st gen.Status
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.NotEmpty(t, st.Usage)

	code, _ = call(t, srv, http.MethodPost, "/v1/users/8", "")
	assert.Equal(t, http.StatusOK, code, "identity body is optional")
}

func TestGenerateStatuses(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		srv := newServer(t, imageClients())
		code, res := generate(t, srv, "1", `{"kind":"image","prompt":"a red fox"}`)
		assert.Equal(t, http.StatusOK, code)
		assert.True(t, res.Success)
		assert.Equal(t, provider.BackendFalImage, res.Provider)
		assert.Contains(t, res.AssetURL, "fal-image")
	})

	t.Run("quota exceeded is 402", func(t *testing.T) {
		t.Parallel()
		srv := newServer(t, imageClients())
		for range 5 {
			code, _ := generate(t, srv, "2", `{"kind":"image","prompt":"cat"}`)
			require.Equal(t, http.StatusOK, code)
		}
		code, res := generate(t, srv, "2", `{"kind":"image","prompt":"cat"}`)
		assert.Equal(t, http.StatusPaymentRequired, code)
		assert.Equal(t, gen.KindQuotaExceeded, res.ErrorKind)
	})

	t.Run("feature not on plan is 403", func(t *testing.T) {
		t.Parallel()
		srv := newServer(t, append(imageClients(), &stubClient{backend: provider.BackendFalVideo}))
		code, res := generate(t, srv, "3", `{"kind":"video","prompt":"waves"}`)
		assert.Equal(t, http.StatusForbidden, code)
		assert.Equal(t, gen.KindFeatureNotOnPlan, res.ErrorKind)
	})

	t.Run("feature not on plan is 403 without a video backend", func(t *testing.T) {
		t.Parallel()
		srv := newServer(t, imageClients())
		code, res := generate(t, srv, "31", `{"kind":"video","prompt":"waves"}`)
		assert.Equal(t, http.StatusForbidden, code)
		assert.Equal(t, gen.KindFeatureNotOnPlan, res.ErrorKind)
	})

	t.Run("oversized token budget is 400", func(t *testing.T) {
		t.Parallel()
		srv := newServer(t, imageClients())
		code, res := generate(t, srv, "32", `{"kind":"text","prompt":"x","text_tier":"long","max_tokens":9223372036854775807}`)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, gen.KindInvalidRequest, res.ErrorKind)
	})

	t.Run("all backends down is 502", func(t *testing.T) {
		t.Parallel()
		srv := newServer(t, []provider.Client{
			&stubClient{backend: provider.BackendFalImage, fail: true},
			&stubClient{backend: provider.BackendReplicateImage, fail: true},
		})
		code, res := generate(t, srv, "4", `{"kind":"image","prompt":"x"}`)
		assert.Equal(t, http.StatusBadGateway, code)
		assert.Equal(t, gen.KindProviderUnavailable, res.ErrorKind)
	})

	t.Run("attempt deadline falls through to 502", func(t *testing.T) {
		t.Parallel()
		srv := newServer(t,
			[]provider.Client{&stubClient{backend: provider.BackendFalImage, hang: true}},
			gen.WithRoute(provider.KindImage, provider.BackendFalImage),
			gen.WithDeadline(provider.KindImage, 50*time.Millisecond),
		)
		code, res := generate(t, srv, "5", `{"kind":"image","prompt":"x"}`)
		assert.Equal(t, http.StatusBadGateway, code)
		assert.Equal(t, gen.KindProviderUnavailable, res.ErrorKind)
	})

	t.Run("empty prompt is 400", func(t *testing.T) {
		t.Parallel()
		srv := newServer(t, imageClients())
		code, res := generate(t, srv, "6", `{"kind":"image","prompt":"  "}`)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, gen.KindInvalidRequest, res.ErrorKind)
	})
}

func TestGenerateRejectsBadInput(t *testing.T) {
	t.Parallel()
	srv := newServer(t, imageClients())

	tests := []struct {
		name string
		path string
		body string
		code string
	}{
		{"unknown kind", "/v1/users/1/generate", `{"kind":"hologram","prompt":"x"}`, "unknown_kind"},
		{"unknown text tier", "/v1/users/1/generate", `{"kind":"text","prompt":"x","text_tier":"turbo"}`, "unknown_text_tier"},
		{"malformed json", "/v1/users/1/generate", `{"kind":`, "bad_request"},
		{"bad user id", "/v1/users/abc/generate", `{"kind":"image","prompt":"x"}`, "bad_request"},
		{"negative user id", "/v1/users/-3/generate", `{"kind":"image","prompt":"x"}`, "bad_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			code, env := call(t, srv, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestChangePlan(t *testing.T) {
	t.Parallel()
	srv := newServer(t, append(imageClients(), &stubClient{backend: provider.BackendFalVideo}))

	code, _ := call(t, srv, http.MethodPut, "/v1/users/9/plan", `{"plan":"premium"}`)
	assert.Equal(t, http.StatusNotFound, code, "unknown user")

	code, _ = call(t, srv, http.MethodPost, "/v1/users/9", "")
	require.Equal(t, http.StatusOK, code)

	code, env := call(t, srv, http.MethodPut, "/v1/users/9/plan", `{"plan":"platinum"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "unknown_plan", env.Error.Code)

	code, env = call(t, srv, http.MethodPut, "/v1/users/9/plan", `{"plan":"PRO"}`)
	require.Equal(t, http.StatusOK, code)
	var st gen.Status
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Equal(t, "pro", string(st.Account.Plan))
}

func TestCatalogRoutes(t *testing.T) {
	t.Parallel()
	srv := newServer(t, []provider.Client{
		&stubClient{backend: provider.BackendFalImage},
		&stubClient{backend: provider.BackendReplicateImage},
	})

	code, env := call(t, srv, http.MethodGet, "/v1/plans", "")
	require.Equal(t, http.StatusOK, code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 7)

	code, env = call(t, srv, http.MethodGet, "/v1/models", "")
	require.Equal(t, http.StatusOK, code)
	var models []provider.Model
	require.NoError(t, json.Unmarshal(env.Data, &models))
	require.Len(t, models, 2)
	assert.Equal(t, provider.BackendFalImage, models[0].Backend)

	code, _ = call(t, srv, http.MethodGet, "/v1/plans/compare?from=free&to=mini", "")
	assert.Equal(t, http.StatusOK, code)

	code, _ = call(t, srv, http.MethodGet, "/v1/plans/compare?from=free&to=gold", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestOperationalRoutes(t *testing.T) {
	t.Parallel()
	srv := newServer(t, imageClients())

	resp, err := srv.Client().Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(requestid.Header))

	resp, err = srv.Client().Get(srv.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	generate(t, srv, "1", `{"kind":"image","prompt":"fox"}`)

	resp, err = srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	buf := new(strings.Builder)
	_, err = io.Copy(buf, resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "test_generation_requests_total")
}
