package dune

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Jaberkh/Nut-test/pkg/httpx"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	hc := httpx.New(zap.NewNop(), httpx.Opts{
		Timeout:     time.Second,
		MaxAttempts: 1,
	})
	return NewClient(zap.NewNop(), hc, "test-key", srv.URL)
}

func TestExecute(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/query/4837362/execute", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Dune-API-Key"))
		_ = json.NewEncoder(w).Encode(map[string]string{"execution_id": "exec-1"})
	})

	id, err := c.Execute(context.Background(), "4837362")
	require.NoError(t, err)
	assert.Equal(t, "exec-1", id)
}

func TestExecuteEmptyExecutionID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{})
	})

	_, err := c.Execute(context.Background(), "4837362")
	assert.Error(t, err)
}

func TestResultsPending(t *testing.T) {
	for _, st := range []string{"EXECUTING", "PENDING"} {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]string{"state": st})
		})

		rows, pending, err := c.Results(context.Background(), "exec-1")
		require.NoError(t, err)
		assert.True(t, pending, "state %s", st)
		assert.Nil(t, rows)
	}
}

func TestResultsDone(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/execution/exec-1/results", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"state": "QUERY_STATE_COMPLETED",
			"result": {"rows": [
				{"fid": 123, "sent_peanut_count": 40, "daily_peanut_count": 7, "all_time_peanut_count": 900, "rank": 12},
				{"parent_fid": "456", "sent_peanut_count": 1}
			]}
		}`))
	})

	rows, pending, err := c.Results(context.Background(), "exec-1")
	require.NoError(t, err)
	require.False(t, pending)
	require.Len(t, rows, 2)

	// Numeric fid decodes to its string form.
	assert.Equal(t, "123", rows[0].IdentityKey())
	assert.Equal(t, 40, rows[0].SentPeanutCount)
	assert.Equal(t, 12, rows[0].Rank)

	// Missing fid falls back to the parent identity.
	assert.Equal(t, "456", rows[1].IdentityKey())
}

func TestResultsHTTPError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, _, err := c.Results(context.Background(), "exec-1")
	assert.Error(t, err)
}

func TestFlexIDDecoding(t *testing.T) {
	var row PeanutRow
	require.NoError(t, json.Unmarshal([]byte(`{"fid": "abc"}`), &row))
	assert.Equal(t, FlexID("abc"), row.Fid)

	require.NoError(t, json.Unmarshal([]byte(`{"fid": 77}`), &row))
	assert.Equal(t, FlexID("77"), row.Fid)

	require.NoError(t, json.Unmarshal([]byte(`{"fid": null}`), &row))
	assert.Equal(t, FlexID(""), row.Fid)
}
