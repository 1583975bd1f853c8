package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arda-labs/reorder-cli/internal/archive"
	"github.com/arda-labs/reorder-cli/internal/jobstore"
	"github.com/arda-labs/reorder-cli/internal/model"
	"github.com/arda-labs/reorder-cli/internal/orchestrator"
	"github.com/arda-labs/reorder-cli/internal/resilience"
	"github.com/arda-labs/reorder-cli/internal/suppliers"
	"github.com/arda-labs/reorder-cli/pkg/mailbox"
)

// stubProvider implements mailbox.Provider for handler tests.
type stubProvider struct {
	searchErr error
	refs      []mailbox.EmailRef
}

func (p *stubProvider) Search(context.Context, string, int) ([]mailbox.EmailRef, error) {
	if p.searchErr != nil {
		return nil, p.searchErr
	}
	return p.refs, nil
}

func (p *stubProvider) Fetch(_ context.Context, id string) (*mailbox.Email, error) {
	return &mailbox.Email{ID: id, Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}, nil
}

// stubExtractor implements extraction.Extractor for handler tests.
type stubExtractor struct{}

func (stubExtractor) Extract(_ context.Context, email *mailbox.Email) (*model.ExtractedOrder, error) {
	return &model.ExtractedOrder{
		ID:              "order-" + email.ID,
		OriginalEmailID: email.ID,
		Supplier:        "Uline",
		OrderDate:       email.Date,
		Confidence:      0.9,
		Items:           []model.OrderItem{{Name: "Tape", NormalizedName: "tape", Quantity: 1, Unit: "each"}},
	}, nil
}

func newTestEnv(t *testing.T, provider mailbox.Provider) *appEnv {
	t.Helper()

	arc, err := archive.Open(filepath.Join(t.TempDir(), "orders.db"))
	require.NoError(t, err)
	t.Cleanup(func() { arc.Close() }) //nolint:errcheck
	require.NoError(t, arc.Migrate(context.Background()))

	store := jobstore.New(jobstore.Options{})
	catalog := suppliers.DefaultCatalog()
	orch := orchestrator.New(store, provider, stubExtractor{}, catalog, arc, orchestrator.Config{
		RetryUnit: time.Millisecond,
	})

	return &appEnv{
		Store:        store,
		Orchestrator: orch,
		Archive:      arc,
		Catalog:      catalog,
	}
}

func doRequest(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServeHealth(t *testing.T) {
	h := newRouter(newTestEnv(t, &stubProvider{}))

	rec := doRequest(h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestServeStartAndPoll(t *testing.T) {
	env := newTestEnv(t, &stubProvider{refs: []mailbox.EmailRef{{ID: "e1"}}})
	h := newRouter(env)

	rec := doRequest(h, http.MethodPost, "/jobs",
		`{"owner_key":"user-1","category":"priority_suppliers","domains":["uline.com"]}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var job model.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, model.JobStatusRunning, job.Status)

	require.Eventually(t, func() bool {
		rec := doRequest(h, http.MethodGet, "/jobs/"+job.ID, "")
		if rec.Code != http.StatusOK {
			return false
		}
		var polled model.Job
		if err := json.Unmarshal(rec.Body.Bytes(), &polled); err != nil {
			return false
		}
		return polled.Status == model.JobStatusCompleted
	}, 5*time.Second, 5*time.Millisecond)

	rec = doRequest(h, http.MethodGet, "/jobs/latest?owner=user-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServeStartValidation(t *testing.T) {
	h := newRouter(newTestEnv(t, &stubProvider{}))

	rec := doRequest(h, http.MethodPost, "/jobs", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(h, http.MethodPost, "/jobs", `{"category":"priority_suppliers"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "owner_key")

	rec = doRequest(h, http.MethodPost, "/jobs", `{"owner_key":"u","category":"bogus"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown category")
}

func TestServeStartErrorMapping(t *testing.T) {
	t.Run("rate limited maps to 429", func(t *testing.T) {
		provider := &stubProvider{searchErr: resilience.NewRateLimitError(eris.New("429"), 0)}
		h := newRouter(newTestEnv(t, provider))

		rec := doRequest(h, http.MethodPost, "/jobs",
			`{"owner_key":"u","category":"marketplace","domains":["amazon.com"]}`)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	})

	t.Run("auth failure maps to 401", func(t *testing.T) {
		provider := &stubProvider{searchErr: resilience.NewAuthError(eris.New("401"))}
		h := newRouter(newTestEnv(t, provider))

		rec := doRequest(h, http.MethodPost, "/jobs",
			`{"owner_key":"u","category":"marketplace","domains":["amazon.com"]}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestServeJobNotFound(t *testing.T) {
	h := newRouter(newTestEnv(t, &stubProvider{}))

	rec := doRequest(h, http.MethodGet, "/jobs/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(h, http.MethodGet, "/jobs/latest?owner=nobody", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(h, http.MethodGet, "/jobs/latest", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServeReport(t *testing.T) {
	env := newTestEnv(t, &stubProvider{})
	h := newRouter(env)

	price := 5.0
	_, err := env.Archive.SaveOrders(context.Background(), []model.ExtractedOrder{{
		ID:              "o1",
		OriginalEmailID: "e1",
		Supplier:        "Uline",
		OrderDate:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Confidence:      0.9,
		Items:           []model.OrderItem{{Name: "Tape", NormalizedName: "tape", Quantity: 3, Unit: "each", UnitPrice: &price}},
	}})
	require.NoError(t, err)

	rec := doRequest(h, http.MethodGet, "/report", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var profiles []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profiles))
	require.Len(t, profiles, 1)
	assert.Equal(t, "tape", profiles[0]["name"])
}
