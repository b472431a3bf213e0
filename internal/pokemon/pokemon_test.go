package pokemon

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"pokeproxy/internal/cache"
	"pokeproxy/internal/pokeapi"
	"pokeproxy/pkg/logging/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeUpstream records calls and answers from func fields.
type fakeUpstream struct {
	mu          sync.Mutex
	listCalls   [][2]int
	detailCalls []string

	listFn   func(limit, offset int) (*pokeapi.ListResponse, error)
	detailFn func(name string) (*pokeapi.Detail, error)
}

func (f *fakeUpstream) ListPokemons(_ context.Context, limit, offset int) (*pokeapi.ListResponse, error) {
	f.mu.Lock()
	f.listCalls = append(f.listCalls, [2]int{limit, offset})
	f.mu.Unlock()
	return f.listFn(limit, offset)
}

func (f *fakeUpstream) GetPokemonByName(_ context.Context, name string) (*pokeapi.Detail, error) {
	f.mu.Lock()
	f.detailCalls = append(f.detailCalls, name)
	f.mu.Unlock()
	return f.detailFn(name)
}

func (f *fakeUpstream) listCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listCalls)
}

func (f *fakeUpstream) detailCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.detailCalls)
}

// brokenStore fails or panics on every call.
type brokenStore struct {
	panics bool
}

func (s brokenStore) Get(context.Context, string) (string, bool, error) {
	if s.panics {
		panic("store exploded")
	}
	return "", false, errors.New("ECONNREFUSED")
}

func (s brokenStore) Set(context.Context, string, string, time.Duration) error {
	return errors.New("ECONNREFUSED")
}

func (s brokenStore) Del(context.Context, string) (int64, error) { return 0, errors.New("ECONNREFUSED") }
func (s brokenStore) Close() error                                { return nil }

// testCtx carries a logger bound to t.
func testCtx(t *testing.T) context.Context {
	return logging.WithLogger(context.Background(), zaptest.NewLogger(t))
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func bulbasaurPage() *pokeapi.ListResponse {
	return &pokeapi.ListResponse{
		Count:    1302,
		Next:     strPtr("https://pokeapi.co/api/v2/pokemon?offset=20&limit=20"),
		Previous: nil,
		Results: []pokeapi.NamedResource{
			{Name: "bulbasaur", URL: "https://pokeapi.co/api/v2/pokemon/1/"},
			{Name: "ivysaur", URL: "https://pokeapi.co/api/v2/pokemon/2/"},
		},
	}
}

func pikachu() *pokeapi.Detail {
	return &pokeapi.Detail{
		ID:             25,
		Name:           "pikachu",
		Height:         4,
		Weight:         60,
		BaseExperience: 112,
		Sprites: pokeapi.Sprites{
			FrontDefault: strPtr("https://img/front/25.png"),
			Other: &pokeapi.OtherSprites{
				OfficialArtwork: &pokeapi.Artwork{FrontDefault: strPtr("https://img/art/25.png")},
			},
		},
		Stats: []pokeapi.Stat{
			{BaseStat: 35, Effort: 0, Stat: pokeapi.NamedResource{Name: "hp"}},
			{BaseStat: 90, Effort: 2, Stat: pokeapi.NamedResource{Name: "speed"}},
		},
		Types: []pokeapi.Type{{Slot: 1, Type: pokeapi.NamedResource{Name: "electric"}}},
		Abilities: []pokeapi.Ability{
			{Ability: pokeapi.NamedResource{Name: "static"}, IsHidden: false, Slot: 1},
			{Ability: pokeapi.NamedResource{Name: "lightning-rod"}, IsHidden: true, Slot: 3},
		},
	}
}

type harness struct {
	store    *cache.MemoryStore
	writer   *cache.Writer
	upstream *fakeUpstream
	list     *ListUseCase
	detail   *DetailUseCase
}

func newHarness(t *testing.T, store cache.Store) *harness {
	t.Helper()
	h := &harness{
		upstream: &fakeUpstream{
			listFn:   func(int, int) (*pokeapi.ListResponse, error) { return bulbasaurPage(), nil },
			detailFn: func(string) (*pokeapi.Detail, error) { return pikachu(), nil },
		},
	}
	if store == nil {
		h.store = cache.NewMemoryStore(time.Minute)
		t.Cleanup(func() { _ = h.store.Close() })
		store = h.store
	}
	h.writer = cache.NewWriter(store, cache.WriterConfig{Workers: 2, QueueSize: 32})
	t.Cleanup(func() { _ = h.writer.Close(context.Background()) })

	aside := cache.NewAside(store, h.writer)
	h.list = NewListUseCase(h.upstream, aside)
	h.detail = NewDetailUseCase(h.upstream, aside)
	return h
}

// flush waits for queued cache writes.
func (h *harness) flush(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, h.writer.Close(ctx))
}

func TestList_EndToEndTransform(t *testing.T) {
	h := newHarness(t, nil)

	got, err := h.list.Execute(testCtx(t), ListInput{})
	require.NoError(t, err)

	assert.Equal(t, ListResult{
		Pokemons:    []string{"bulbasaur", "ivysaur"},
		Total:       1302,
		HasNext:     true,
		HasPrevious: false,
	}, got)
	assert.Equal(t, [][2]int{{20, 0}}, h.upstream.listCalls)

	h.flush(t)
	raw, ok, err := h.store.Get(testCtx(t), "pokemon:list:limit:20:offset:0")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"pokemons":["bulbasaur","ivysaur"],"total":1302,"hasNext":true,"hasPrevious":false}`, raw)
}

func TestList_Idempotent(t *testing.T) {
	h := newHarness(t, nil)
	ctx := testCtx(t)
	in := ListInput{Limit: intPtr(15), Offset: intPtr(30)}

	first, err := h.list.Execute(ctx, in)
	require.NoError(t, err)
	h.flush(t)

	second, err := h.list.Execute(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, h.upstream.listCount())

	_, ok, _ := h.store.Get(ctx, "pokemon:list:limit:15:offset:30")
	assert.True(t, ok)
}

func TestList_ValidationBoundary(t *testing.T) {
	cases := []struct {
		name   string
		in     ListInput
		valid  bool
		reason string
	}{
		{"limit 9", ListInput{Limit: intPtr(9)}, false, "Limit must be between 10 and 20"},
		{"limit 10", ListInput{Limit: intPtr(10)}, true, ""},
		{"limit 20", ListInput{Limit: intPtr(20)}, true, ""},
		{"limit 21", ListInput{Limit: intPtr(21)}, false, "Limit must be between 10 and 20"},
		{"offset -1", ListInput{Offset: intPtr(-1)}, false, "Offset must be non-negative"},
		{"offset 0", ListInput{Offset: intPtr(0)}, true, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, nil)
			_, err := h.list.Execute(testCtx(t), tc.in)
			if tc.valid {
				require.NoError(t, err)
				assert.Equal(t, 1, h.upstream.listCount())
				return
			}
			require.Error(t, err)
			assert.True(t, IsKind(err, KindValidation))
			assert.Equal(t, tc.reason, err.Error())
			assert.Equal(t, 0, h.upstream.listCount())
			h.flush(t)
			assert.Equal(t, 0, h.store.Len())
		})
	}
}

func TestList_UpstreamFailureIsUnexpected(t *testing.T) {
	h := newHarness(t, nil)
	h.upstream.listFn = func(int, int) (*pokeapi.ListResponse, error) {
		return nil, &pokeapi.UpstreamError{Op: "list", StatusCode: 503}
	}

	_, err := h.list.Execute(testCtx(t), ListInput{})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindUnexpected))

	var ue *pokeapi.UpstreamError
	assert.ErrorAs(t, err, &ue)

	h.flush(t)
	assert.Equal(t, 0, h.store.Len())
}

func TestList_CacheFailureTolerance(t *testing.T) {
	h := newHarness(t, brokenStore{})

	got, err := h.list.Execute(testCtx(t), ListInput{})
	require.NoError(t, err)
	assert.Equal(t, []string{"bulbasaur", "ivysaur"}, got.Pokemons)
	assert.Equal(t, 1, h.upstream.listCount())
	h.flush(t)
}

func TestDetail_CacheFailureTolerance(t *testing.T) {
	h := newHarness(t, brokenStore{})

	got, err := h.detail.Execute(testCtx(t), DetailInput{Name: "Pikachu"})
	require.NoError(t, err)
	assert.Equal(t, 25, got.ID)
	assert.Equal(t, "pikachu", got.Name)
	assert.Equal(t, 1, h.upstream.detailCount())
	h.flush(t)
}

func TestList_PanickingCacheFallsBackToUpstream(t *testing.T) {
	h := newHarness(t, brokenStore{panics: true})

	got, err := h.list.Execute(testCtx(t), ListInput{})
	require.NoError(t, err)
	assert.Equal(t, 1302, got.Total)
	assert.Equal(t, 1, h.upstream.listCount())
}

func TestList_FetchPanicIsNotRetried(t *testing.T) {
	h := newHarness(t, nil)
	h.upstream.listFn = func(int, int) (*pokeapi.ListResponse, error) {
		panic("upstream decoder bug")
	}

	assert.Panics(t, func() {
		_, _ = h.list.Execute(testCtx(t), ListInput{})
	})
	assert.Equal(t, 1, h.upstream.listCount())
}

func TestDetail_KeyDeterminism(t *testing.T) {
	ctx := testCtx(t)
	for _, raw := range []string{"pikachu", " pikachu ", "PIKACHU", "PiKaChU"} {
		t.Run(raw, func(t *testing.T) {
			h := newHarness(t, nil)
			_, err := h.detail.Execute(ctx, DetailInput{Name: raw})
			require.NoError(t, err)
			h.flush(t)

			_, ok, err := h.store.Get(ctx, "pokemon:byName:pikachu")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, 1, h.store.Len())
			assert.Equal(t, []string{"pikachu"}, h.upstream.detailCalls)
		})
	}
}

func TestDetail_Validation(t *testing.T) {
	cases := map[string]string{
		"":         "Pokemon name is required",
		"   ":      "Pokemon name is required",
		"pika chu": "Pokemon name must contain only letters, numbers, and hyphens",
		"pika_chu": "Pokemon name must contain only letters, numbers, and hyphens",
		"mr.mime":  "Pokemon name must contain only letters, numbers, and hyphens",
		"../admin": "Pokemon name must contain only letters, numbers, and hyphens",
	}
	for raw, msg := range cases {
		t.Run(raw, func(t *testing.T) {
			h := newHarness(t, nil)
			_, err := h.detail.Execute(testCtx(t), DetailInput{Name: raw})
			require.Error(t, err)
			assert.True(t, IsKind(err, KindValidation))
			assert.Equal(t, msg, err.Error())
			assert.Equal(t, 0, h.upstream.detailCount())
		})
	}
}

func TestDetail_NotFound(t *testing.T) {
	h := newHarness(t, nil)
	h.upstream.detailFn = func(string) (*pokeapi.Detail, error) {
		return nil, &pokeapi.UpstreamError{Op: "detail", StatusCode: 404, Err: pokeapi.ErrNotFound}
	}

	_, err := h.detail.Execute(testCtx(t), DetailInput{Name: "MissingNo"})
	require.Error(t, err)

	appErr := AsAppError(err)
	assert.Equal(t, KindNotFound, appErr.Kind)
	assert.Equal(t, `Pokemon with name "missingno" not found`, appErr.Message)

	h.flush(t)
	assert.Equal(t, 0, h.store.Len())
}

func TestDetail_UpstreamFailureIsUnexpected(t *testing.T) {
	h := newHarness(t, nil)
	h.upstream.detailFn = func(string) (*pokeapi.Detail, error) {
		return nil, errors.New("dial tcp: connection refused")
	}

	_, err := h.detail.Execute(testCtx(t), DetailInput{Name: "pikachu"})
	assert.True(t, IsKind(err, KindUnexpected))
	assert.Equal(t, "dial tcp: connection refused", err.Error())
}

func TestDetail_Transform(t *testing.T) {
	h := newHarness(t, nil)

	got, err := h.detail.Execute(testCtx(t), DetailInput{Name: "pikachu"})
	require.NoError(t, err)

	assert.Equal(t, 25, got.ID)
	assert.Equal(t, 112, got.BaseExperience)
	require.NotNil(t, got.Image)
	assert.Equal(t, "https://img/art/25.png", *got.Image)
	assert.Equal(t, []Stat{{Name: "hp", BaseStat: 35, Effort: 0}, {Name: "speed", BaseStat: 90, Effort: 2}}, got.Stats)
	assert.Equal(t, []string{"electric"}, got.Types)
	assert.Equal(t, []Ability{
		{Name: "lightning-rod", IsHidden: true, Slot: 3},
		{Name: "static", IsHidden: false, Slot: 1},
	}, got.Abilities)
}

func TestDetail_AbilitiesOrdering(t *testing.T) {
	d := pikachu()
	d.Abilities = []pokeapi.Ability{
		{Ability: pokeapi.NamedResource{Name: "overgrow"}, Slot: 1},
		{Ability: pokeapi.NamedResource{Name: "chlorophyll"}, IsHidden: true, Slot: 3},
		{Ability: pokeapi.NamedResource{Name: "Blaze"}, Slot: 2},
	}

	got := toDetailResult(d)
	names := make([]string, 0, len(got.Abilities))
	for _, a := range got.Abilities {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"Blaze", "chlorophyll", "overgrow"}, names)
}

func TestDetail_ImageFallback(t *testing.T) {
	d := pikachu()
	d.Sprites.Other = nil
	got := toDetailResult(d)
	require.NotNil(t, got.Image)
	assert.Equal(t, "https://img/front/25.png", *got.Image)

	d.Sprites.Other = &pokeapi.OtherSprites{OfficialArtwork: &pokeapi.Artwork{}}
	got = toDetailResult(d)
	require.NotNil(t, got.Image)
	assert.Equal(t, "https://img/front/25.png", *got.Image)

	d.Sprites.FrontDefault = nil
	got = toDetailResult(d)
	assert.Nil(t, got.Image)

	raw, err := json.Marshal(got)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"image":null`)
}

func TestDetail_CachedResultSurvivesRoundTrip(t *testing.T) {
	h := newHarness(t, nil)
	ctx := testCtx(t)

	first, err := h.detail.Execute(ctx, DetailInput{Name: "pikachu"})
	require.NoError(t, err)
	h.flush(t)

	second, err := h.detail.Execute(ctx, DetailInput{Name: "Pikachu"})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, h.upstream.detailCount())
}

func TestAsAppError(t *testing.T) {
	assert.Nil(t, AsAppError(nil))

	wrapped := AsAppError(errors.New("boom"))
	assert.Equal(t, KindUnexpected, wrapped.Kind)
	assert.Equal(t, "boom", wrapped.Message)

	v := validation("bad")
	assert.Same(t, v, AsAppError(v))
}
