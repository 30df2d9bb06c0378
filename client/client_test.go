package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wizenheimer/zipline"
)

// stubService records search requests and plays back canned results.
type stubService struct {
	loads    int
	searches []searchData
	result   zipline.SearchResult
}

func (s *stubService) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /load", func(w http.ResponseWriter, _ *http.Request) {
		s.loads++
	})
	mux.HandleFunc("POST /search", func(w http.ResponseWriter, r *http.Request) {
		var req searchData
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		s.searches = append(s.searches, req)
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(s.result))
	})
	return mux
}

func runScript(t *testing.T, stub *stubService, script string) string {
	t.Helper()
	ts := httptest.NewServer(stub.handler(t))
	t.Cleanup(ts.Close)

	var out strings.Builder
	err := New(ts.URL).Run(strings.NewReader(script), &out)
	require.NoError(t, err)
	return out.String()
}

func TestRun_SearchPrintsMatches(t *testing.T) {
	stub := &stubService{
		result: zipline.SearchResult{
			Matches: []zipline.Match{
				{FileName: "a.zip", Score: 1.5},
				{FileName: "b.zip", Score: 0.25},
			},
			Total: 2,
		},
	}

	out := runScript(t, stub, "search src,lib\nexit\n")

	assert.Contains(t, out, "Found a.zip, with score 1.5")
	assert.Contains(t, out, "Found b.zip, with score 0.25")

	require.Len(t, stub.searches, 1)
	assert.Equal(t, []string{"src", "lib"}, stub.searches[0].Terms)
}

func TestRun_NoResults(t *testing.T) {
	stub := &stubService{result: zipline.SearchResult{Matches: []zipline.Match{}}}

	out := runScript(t, stub, "search nothing\nexit\n")
	assert.Contains(t, out, "No results found")
}

func TestRun_Load(t *testing.T) {
	stub := &stubService{}

	out := runScript(t, stub, "load\nexit\n")
	assert.Contains(t, out, "Index succesfully loaded")
	assert.Equal(t, 1, stub.loads)
}

func TestRun_SettingsFlowIntoSearch(t *testing.T) {
	stub := &stubService{result: zipline.SearchResult{Matches: []zipline.Match{}}}

	runScript(t, stub, "max_length 5\nmin_score 1.25\nsearch x\nexit\n")

	require.Len(t, stub.searches, 1)
	req := stub.searches[0]
	require.NotNil(t, req.MaxLength)
	assert.Equal(t, 5, *req.MaxLength)
	require.NotNil(t, req.MinScore)
	assert.Equal(t, 1.25, *req.MinScore)
}

func TestRun_InvalidInput(t *testing.T) {
	stub := &stubService{result: zipline.SearchResult{Matches: []zipline.Match{}}}

	out := runScript(t, stub, "frobnicate\nsearch\nmax_length ten\nmin_score much\nexit\n")

	// Unknown command, bare search, and bad min_score all print the
	// generic complaint; bad max_length has its own.
	assert.Equal(t, 3, strings.Count(out, "Invalid command\n"))
	assert.Contains(t, out, "Can't parse as integer")
	assert.Empty(t, stub.searches)
}

func TestRun_ExitStopsReading(t *testing.T) {
	stub := &stubService{}

	out := runScript(t, stub, "exit\nsearch after,exit\n")
	assert.NotContains(t, out, "Found")
	assert.Empty(t, stub.searches)
}
