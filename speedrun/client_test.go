package speedrun

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func runJSON(id string, verified time.Time) map[string]any {
	return map[string]any{
		"id":      id,
		"weblink": "https://www.speedrun.com/hades/run/" + id,
		"game": map[string]any{"data": map[string]any{
			"id":    "o1y9j9v6",
			"names": map[string]any{"international": "Hades"},
		}},
		"category": map[string]any{"data": map[string]any{
			"id":   "cat1",
			"name": "Any Heat",
			"variables": map[string]any{"data": []any{
				map[string]any{
					"id":             "heat",
					"name":           "Heat",
					"is-subcategory": true,
					"values": map[string]any{"values": map[string]any{
						"h8": map[string]any{"label": "8 Heat"},
					}},
				},
			}},
		}},
		"status": map[string]any{
			"status":      "verified",
			"examiner":    "mod1",
			"verify-date": verified.Format(time.RFC3339),
		},
		"players": map[string]any{"data": []any{
			map[string]any{"rel": "user", "id": "u1", "names": map[string]any{"international": "Museus"}},
		}},
		"date":   "2024-04-30",
		"times":  map[string]any{"primary": "PT20M", "primary_t": 1200.5},
		"values": map[string]any{"heat": "h8"},
	}
}

type fakeService struct {
	t      *testing.T
	server *httptest.Server

	mu       sync.Mutex
	requests map[string]int
	queries  []string

	// pages by direction, each page a list of runs
	pages map[string][][]map[string]any
}

func newFakeService(t *testing.T) *fakeService {
	t.Helper()
	f := &fakeService{
		t:        t,
		requests: make(map[string]int),
		pages:    make(map[string][][]map[string]any),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/runs", f.handleRuns)
	mux.HandleFunc("/leaderboards/", f.handleLeaderboard)
	mux.HandleFunc("/users/", f.handleUser)
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeService) client() *Client {
	return NewClient(WithBaseURL(f.server.URL), WithRequestsPerMinute(0))
}

func (f *fakeService) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[path]
}

func (f *fakeService) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests[r.URL.Path]++
	f.queries = append(f.queries, r.URL.RawQuery)
}

func (f *fakeService) write(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	require.NoError(f.t, json.NewEncoder(w).Encode(v))
}

func (f *fakeService) handleRuns(w http.ResponseWriter, r *http.Request) {
	f.record(r)
	q := r.URL.Query()
	pages := f.pages[q.Get("direction")]
	index, _ := strconv.Atoi(q.Get("page"))
	if index >= len(pages) {
		f.write(w, map[string]any{"data": []any{}, "pagination": map[string]any{"links": []any{}}})
		return
	}

	data := pages[index]
	if max, _ := strconv.Atoi(q.Get("max")); max > 0 && max < len(data) {
		data = data[:max]
	}
	links := []any{}
	if index+1 < len(pages) {
		next := q
		next.Set("page", strconv.Itoa(index+1))
		links = append(links, map[string]any{"rel": "next", "uri": f.server.URL + "/runs?" + next.Encode()})
	}
	f.write(w, map[string]any{
		"data":       data,
		"pagination": map[string]any{"offset": index * 200, "links": links},
	})
}

func (f *fakeService) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	f.record(r)
	f.write(w, map[string]any{"data": map[string]any{"runs": []any{
		map[string]any{"place": 1, "run": map[string]any{"id": "fast"}},
		map[string]any{"place": 2, "run": map[string]any{"id": "r1"}},
	}}})
}

func (f *fakeService) handleUser(w http.ResponseWriter, r *http.Request) {
	f.record(r)
	if r.URL.Path != "/users/mod1" {
		http.NotFound(w, r)
		return
	}
	f.write(w, map[string]any{"data": map[string]any{"id": "mod1", "names": map[string]any{"international": "Museus"}}})
}

func collect(t *testing.T, seq func(func(*Run, error) bool)) []*Run {
	t.Helper()
	var runs []*Run
	for run, err := range seq {
		require.NoError(t, err)
		runs = append(runs, run)
	}
	return runs
}

func TestListVerifiedRunsSinceYieldsNewerRunsAscending(t *testing.T) {
	f := newFakeService(t)
	f.pages["desc"] = [][]map[string]any{
		{runJSON("r5", t0.Add(5*time.Second)), runJSON("r4", t0.Add(4*time.Second))},
		{runJSON("r3", t0.Add(3*time.Second)), runJSON("r0", t0), runJSON("old", t0.Add(-time.Second))},
		{runJSON("never", t0.Add(-time.Hour))},
	}

	since := t0
	runs := collect(t, f.client().ListVerifiedRuns(context.Background(), "o1y9j9v6", &since))

	require.Len(t, runs, 3)
	assert.Equal(t, "r3", runs[0].ID)
	assert.Equal(t, "r4", runs[1].ID)
	assert.Equal(t, "r5", runs[2].ID)
	for i, run := range runs {
		assert.True(t, run.VerifyDate().After(since), "run %s not after watermark", run.ID)
		if i > 0 {
			assert.True(t, run.VerifyDate().After(runs[i-1].VerifyDate()))
		}
	}
	assert.Equal(t, 2, f.count("/runs"), "pages past the watermark must not be fetched")
}

func TestListVerifiedRunsSinceNothingNew(t *testing.T) {
	f := newFakeService(t)
	f.pages["desc"] = [][]map[string]any{{runJSON("r0", t0)}}

	since := t0
	runs := collect(t, f.client().ListVerifiedRuns(context.Background(), "o1y9j9v6", &since))
	assert.Empty(t, runs)
}

func TestListVerifiedRunsSinceIgnoresBrokenRunsBelowWatermark(t *testing.T) {
	f := newFakeService(t)
	legacy := runJSON("legacy", t0)
	legacy["status"] = map[string]any{"status": "verified", "examiner": "mod1", "verify-date": nil}
	stale := runJSON("stale", t0.Add(-time.Minute))
	delete(stale, "game")
	f.pages["desc"] = [][]map[string]any{
		{runJSON("new", t0.Add(time.Second)), runJSON("old", t0), legacy, stale},
	}

	since := t0
	runs := collect(t, f.client().ListVerifiedRuns(context.Background(), "o1y9j9v6", &since))

	require.Len(t, runs, 1)
	assert.Equal(t, "new", runs[0].ID)
}

func TestListVerifiedRunsSinceStopsAtRunWithoutVerifyDate(t *testing.T) {
	f := newFakeService(t)
	legacy := runJSON("legacy", t0.Add(time.Hour))
	legacy["status"] = map[string]any{"status": "verified", "examiner": "mod1", "verify-date": nil}
	f.pages["desc"] = [][]map[string]any{
		{runJSON("new", t0.Add(2*time.Hour)), legacy, runJSON("older", t0.Add(time.Second))},
	}

	since := t0
	runs := collect(t, f.client().ListVerifiedRuns(context.Background(), "o1y9j9v6", &since))

	require.Len(t, runs, 1)
	assert.Equal(t, "new", runs[0].ID)
}

func TestListVerifiedRunsWithoutSinceWalksAllPagesOldestFirst(t *testing.T) {
	f := newFakeService(t)
	f.pages["asc"] = [][]map[string]any{
		{runJSON("a", t0), runJSON("b", t0.Add(time.Second))},
		{runJSON("c", t0.Add(2 * time.Second))},
	}

	runs := collect(t, f.client().ListVerifiedRuns(context.Background(), "o1y9j9v6", nil))

	require.Len(t, runs, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{runs[0].ID, runs[1].ID, runs[2].ID})
	assert.Equal(t, 2, f.count("/runs"))
}

func TestListVerifiedRunsStopsWhenConsumerStops(t *testing.T) {
	f := newFakeService(t)
	f.pages["asc"] = [][]map[string]any{
		{runJSON("a", t0)},
		{runJSON("b", t0.Add(time.Second))},
	}

	for run, err := range f.client().ListVerifiedRuns(context.Background(), "o1y9j9v6", nil) {
		require.NoError(t, err)
		assert.Equal(t, "a", run.ID)
		break
	}
	assert.Equal(t, 1, f.count("/runs"))
}

func TestListVerifiedRunsRejectsMalformedRun(t *testing.T) {
	f := newFakeService(t)
	broken := runJSON("bad", t0.Add(time.Second))
	delete(broken, "game")
	f.pages["desc"] = [][]map[string]any{{broken}}

	since := t0
	var gotErr error
	for _, err := range f.client().ListVerifiedRuns(context.Background(), "o1y9j9v6", &since) {
		gotErr = err
	}

	var validationErr *ValidationError
	require.ErrorAs(t, gotErr, &validationErr)
}

func TestGetLeaderboardSubcategoryOrderDoesNotMatter(t *testing.T) {
	f := newFakeService(t)
	c := f.client()
	ctx := context.Background()

	first := map[string]string{}
	first["a"] = "1"
	first["b"] = "2"
	second := map[string]string{}
	second["b"] = "2"
	second["a"] = "1"

	one, err := c.GetLeaderboard(ctx, "g", "c", first, t0)
	require.NoError(t, err)
	two, err := c.GetLeaderboard(ctx, "g", "c", second, t0)
	require.NoError(t, err)

	assert.Equal(t, one, two)
	assert.Equal(t, 1, f.count("/leaderboards/g/category/c"))
	assert.Contains(t, f.queries[0], "var-a=1&var-b=2")
	assert.Contains(t, f.queries[0], "date=2024-05-01T12%3A00%3A00Z")
}

func TestGetLeaderboardCacheClearedByListing(t *testing.T) {
	f := newFakeService(t)
	c := f.client()
	ctx := context.Background()

	_, err := c.GetLeaderboard(ctx, "g", "c", nil, t0)
	require.NoError(t, err)
	_, err = c.GetLeaderboard(ctx, "g", "c", nil, t0)
	require.NoError(t, err)
	assert.Equal(t, 1, f.count("/leaderboards/g/category/c"))

	since := t0
	c.ListVerifiedRuns(ctx, "g", &since)

	placements, err := c.GetLeaderboard(ctx, "g", "c", nil, t0)
	require.NoError(t, err)
	assert.Equal(t, 2, f.count("/leaderboards/g/category/c"))
	assert.Equal(t, []Placement{{Place: 1, RunID: "fast"}, {Place: 2, RunID: "r1"}}, placements)
}

func TestNormalizeSubcategories(t *testing.T) {
	tests := []struct {
		name string
		in   map[string]string
		want string
	}{
		{"empty", nil, ""},
		{"single", map[string]string{"x": "1"}, "var-x=1"},
		{"sorted", map[string]string{"z": "9", "a": "1", "m": "5"}, "var-a=1&var-m=5&var-z=9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeSubcategories(tt.in))
		})
	}
}

func TestResolveUserName(t *testing.T) {
	f := newFakeService(t)
	c := f.client()

	assert.Equal(t, "Museus", c.ResolveUserName(context.Background(), "mod1"))
	assert.Equal(t, "unknown", c.ResolveUserName(context.Background(), "ghost"))

	_, err := c.UserName(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServerErrorsAreTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	c := NewClient(WithBaseURL(server.URL), WithRequestsPerMinute(0))
	_, err := c.UserName(context.Background(), "mod1")

	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.False(t, IsTransient(errors.New("plain")))
}

func TestThrottledRequestIsRetried(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"data":{"id":"mod1","names":{"international":"Museus"}}}`)
	}))
	defer server.Close()

	c := NewClient(WithBaseURL(server.URL), WithRequestsPerMinute(0))
	name, err := c.UserName(context.Background(), "mod1")

	require.NoError(t, err)
	assert.Equal(t, "Museus", name)
	assert.Equal(t, 2, calls)
}

func TestGetLatestVerifiedRun(t *testing.T) {
	f := newFakeService(t)
	f.pages["desc"] = [][]map[string]any{{runJSON("newest", t0.Add(time.Hour)), runJSON("older", t0)}}

	run, err := f.client().GetLatestVerifiedRun(context.Background(), "o1y9j9v6")
	require.NoError(t, err)
	assert.Equal(t, "newest", run.ID)
	assert.Equal(t, 1200.5, run.Times.PrimaryT)
	assert.Equal(t, time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC), run.DatePlayed())
}

func TestGetLatestVerifiedRunEmpty(t *testing.T) {
	f := newFakeService(t)

	_, err := f.client().GetLatestVerifiedRun(context.Background(), "o1y9j9v6")
	assert.ErrorIs(t, err, ErrNotFound)
}
