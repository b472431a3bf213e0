package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWarmupCommand(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("offset") == "20" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"count":1302,"next":null,"previous":null,"results":[{"name":"bulbasaur","url":""}]}`))
	}))
	t.Cleanup(upstream.Close)

	t.Setenv("APP_ENV", "test")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("POKEAPI_BASE_URL", upstream.URL)
	t.Setenv("GEMINI_API_KEY", "")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"warmup", "--pages", "2", "--cache-backend", "memory"})
	require.NoError(t, cmd.Execute())

	var report warmupReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	require.NotNil(t, report.ListPages)
	assert.Equal(t, 2, report.ListPages.PagesRequested)
	assert.Equal(t, 1, report.ListPages.PagesWarmed)
	assert.Equal(t, 1, report.ListPages.PagesFailed)
	assert.Nil(t, report.Famous)
}

func TestWarmupCommand_FamousNeedsKey(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("GEMINI_API_KEY", "")

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"warmup", "--famous", "--cache-backend", "memory"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestRootRejectsBadConfig(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("CACHE_BACKEND", "memcached")

	cmd := newRootCmd()
	cmd.SetArgs([]string{"warmup"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CACHE_BACKEND")
}
