package http_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kleiohttp "github.com/epistimio/kleio/internal/adapters/http"
	"github.com/epistimio/kleio/internal/adapters/memory"
	"github.com/epistimio/kleio/internal/logging"
	"github.com/epistimio/kleio/pkg/domain"
	"github.com/epistimio/kleio/pkg/trial"
)

func newServer(t *testing.T) (*httptest.Server, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	handler := kleiohttp.NewHandler(store, logging.NewNop(), prometheus.NewRegistry())
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, store
}

func seedTrial(t *testing.T, store *memory.Store, tags []string, args ...string) *trial.Handle {
	t.Helper()
	ctx := context.Background()
	tr := domain.NewTrial(args, nil, domain.Refers{})
	require.NoError(t, store.Register(ctx, tr))
	h := trial.NewHandle(tr, store)
	require.NoError(t, h.SaveReport(ctx))
	if len(tags) > 0 {
		require.NoError(t, h.AddTags(ctx, tags...))
	}
	return h
}

func TestHealthz(t *testing.T) {
	srv, _ := newServer(t)

	resp, err := srv.Client().Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
}

func TestListTrials(t *testing.T) {
	srv, store := newServer(t)
	seedTrial(t, store, []string{"exp1"}, "python", "a.py")
	seedTrial(t, store, []string{"exp2"}, "python", "b.py")

	resp, err := srv.Client().Get(srv.URL + "/v1/trials")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	var reports []domain.Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reports))
	assert.Len(t, reports, 2)

	resp, err = srv.Client().Get(srv.URL + "/v1/trials?tags=exp1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reports))
	require.Len(t, reports, 1)
	assert.Equal(t, []string{"python", "a.py"}, reports[0].Commandline)
}

func TestGetTrial_ShortID(t *testing.T) {
	srv, store := newServer(t)
	h := seedTrial(t, store, nil, "python", "train.py")

	resp, err := srv.Client().Get(srv.URL + "/v1/trials/" + h.ShortID())
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	var detail struct {
		Trial *domain.Trial `json:"trial"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&detail))
	require.NotNil(t, detail.Trial)
	assert.Equal(t, h.ID(), detail.Trial.ID)
}

func TestGetTrial_NotFound(t *testing.T) {
	srv, _ := newServer(t)

	resp, err := srv.Client().Get(srv.URL + "/v1/trials/ffffffff")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 404, resp.StatusCode)
}

func TestStdoutStream_SincePolling(t *testing.T) {
	srv, store := newServer(t)
	h := seedTrial(t, store, nil, "python", "train.py")
	ctx := context.Background()
	require.NoError(t, h.Reserve(ctx))
	require.NoError(t, h.Run(ctx))
	require.NoError(t, h.LogOutput(ctx, domain.AttrStdout, "line 1"))
	require.NoError(t, h.LogOutput(ctx, domain.AttrStdout, "line 2"))

	resp, err := srv.Client().Get(srv.URL + "/v1/trials/" + h.ShortID() + "/stdout")
	require.NoError(t, err)
	body := readAll(t, resp)
	assert.Equal(t, "line 1\nline 2\n", body)

	// Resume after the first sequence number, like tail -f does.
	resp, err = srv.Client().Get(srv.URL + "/v1/trials/" + h.ShortID() + "/stdout?since=1")
	require.NoError(t, err)
	body = readAll(t, resp)
	assert.Equal(t, "line 2\n", body)
	assert.Equal(t, "2", resp.Header.Get("X-Kleio-Last-Seq"))
}

func TestStatistics(t *testing.T) {
	srv, store := newServer(t)
	h := seedTrial(t, store, nil, "python", "train.py")
	ctx := context.Background()
	require.NoError(t, h.Reserve(ctx))
	require.NoError(t, h.Run(ctx))
	require.NoError(t, h.LogStatistic(ctx, map[string]float64{"loss": 0.5}, time.Time{}))
	require.NoError(t, h.LogStatistic(ctx, map[string]float64{"loss": 0.4}, time.Time{}))

	resp, err := srv.Client().Get(srv.URL + "/v1/trials/" + h.ShortID() + "/statistics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	var series map[string][]domain.Point
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&series))
	require.Len(t, series["loss"], 2)
	assert.Equal(t, 0.4, series["loss"][1].Value)
}

func readAll(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}
