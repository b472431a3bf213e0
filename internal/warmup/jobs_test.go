package warmup

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"pokeproxy/internal/pokemon"
	"pokeproxy/pkg/logging/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// testCtx carries a logger bound to t.
func testCtx(t *testing.T) context.Context {
	return logging.WithLogger(context.Background(), zaptest.NewLogger(t))
}

type fakeLister struct {
	mu      sync.Mutex
	offsets []int
	limits  []int
	fn      func(offset int) error
}

func (f *fakeLister) Execute(_ context.Context, in pokemon.ListInput) (pokemon.ListResult, error) {
	limit, offset := pokemon.DefaultLimit, pokemon.DefaultOffset
	if in.Limit != nil {
		limit = *in.Limit
	}
	if in.Offset != nil {
		offset = *in.Offset
	}
	f.mu.Lock()
	f.offsets = append(f.offsets, offset)
	f.limits = append(f.limits, limit)
	f.mu.Unlock()
	if f.fn != nil {
		if err := f.fn(offset); err != nil {
			return pokemon.ListResult{}, err
		}
	}
	return pokemon.ListResult{Pokemons: []string{"bulbasaur"}}, nil
}

func (f *fakeLister) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.offsets)
}

type fakeDetailer struct {
	mu    sync.Mutex
	names []string
	fn    func(name string) error
}

func (f *fakeDetailer) Execute(_ context.Context, in pokemon.DetailInput) (pokemon.DetailResult, error) {
	f.mu.Lock()
	f.names = append(f.names, in.Name)
	f.mu.Unlock()
	if f.fn != nil {
		if err := f.fn(in.Name); err != nil {
			return pokemon.DetailResult{}, err
		}
	}
	return pokemon.DetailResult{Name: in.Name}, nil
}

type fakeGenerator struct {
	text string
	err  error
}

func (g fakeGenerator) GenerateText(context.Context, string) (string, error) {
	return g.text, g.err
}

func TestListPagesJob_OffsetsAndLimit(t *testing.T) {
	list := &fakeLister{}
	out := NewListPagesJob(list).Execute(testCtx(t), 3)

	assert.Equal(t, []int{0, 20, 40}, list.offsets)
	assert.Equal(t, []int{20, 20, 20}, list.limits)
	assert.Equal(t, 3, out.PagesRequested)
	assert.Equal(t, 3, out.PagesWarmed)
	assert.Equal(t, 0, out.PagesFailed)
	assert.Equal(t, []PageDetail{
		{Page: 0, Offset: 0, Success: true},
		{Page: 1, Offset: 20, Success: true},
		{Page: 2, Offset: 40, Success: true},
	}, out.Details)
}

func TestListPagesJob_ZeroCount(t *testing.T) {
	list := &fakeLister{}
	out := NewListPagesJob(list).Execute(testCtx(t), 0)

	assert.Zero(t, list.calls())
	assert.Equal(t, ListPagesOutcome{Details: []PageDetail{}}, out)
}

func TestListPagesJob_PartialFailure(t *testing.T) {
	list := &fakeLister{fn: func(offset int) error {
		switch offset {
		case 20:
			return &pokemon.AppError{Kind: pokemon.KindUnexpected, Message: "boom"}
		case 40:
			panic("page exploded")
		}
		return nil
	}}
	out := NewListPagesJob(list).Execute(testCtx(t), 4)

	assert.Equal(t, 4, list.calls())
	assert.Equal(t, 2, out.PagesWarmed)
	assert.Equal(t, 2, out.PagesFailed)
	assert.Equal(t, []bool{true, false, false, true}, successes(out.Details))
}

func TestListPagesJob_StopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(testCtx(t))
	list := &fakeLister{fn: func(offset int) error {
		if offset == 20 {
			cancel()
		}
		return nil
	}}
	out := NewListPagesJob(list).Execute(ctx, 5)

	assert.Equal(t, 2, list.calls())
	assert.Equal(t, 5, out.PagesRequested)
	assert.Equal(t, 2, out.PagesWarmed)
	assert.Equal(t, 3, out.PagesFailed)
	assert.Equal(t, out.PagesRequested, out.PagesWarmed+out.PagesFailed)
	assert.Equal(t, []bool{true, true, false, false, false}, successes(out.Details))
	assert.Equal(t, 80, out.Details[4].Offset)
}

func successes(details []PageDetail) []bool {
	out := make([]bool, 0, len(details))
	for _, d := range details {
		out = append(out, d.Success)
	}
	return out
}

func TestFamousJob_WarmsEveryName(t *testing.T) {
	gen := fakeGenerator{text: `["pikachu","charizard","mewtwo"]`}
	list := &fakeLister{}
	detail := &fakeDetailer{}

	out, err := NewFamousJob(gen, list, detail).Execute(testCtx(t))
	require.NoError(t, err)

	assert.Equal(t, []string{"pikachu", "charizard", "mewtwo"}, out.Names)
	assert.Equal(t, []string{"pikachu", "charizard", "mewtwo"}, out.Warmed)
	assert.Empty(t, out.Failed)
	assert.True(t, out.ListCacheWarmed)

	assert.Equal(t, []int{0}, list.offsets)
	assert.Equal(t, []int{20}, list.limits)

	got := append([]string(nil), detail.names...)
	sort.Strings(got)
	assert.Equal(t, []string{"charizard", "mewtwo", "pikachu"}, got)
}

func TestFamousJob_PartialFailure(t *testing.T) {
	gen := fakeGenerator{text: "Here: [\"pikachu\", \"missingno\", \"eevee\", \"mew\"]"}
	list := &fakeLister{fn: func(int) error { return errors.New("redis down") }}
	detail := &fakeDetailer{fn: func(name string) error {
		switch name {
		case "missingno":
			return &pokemon.AppError{Kind: pokemon.KindNotFound, Message: `Pokemon with name "missingno" not found`}
		case "mew":
			panic("detail exploded")
		}
		return nil
	}}

	out, err := NewFamousJob(gen, list, detail).Execute(testCtx(t))
	require.NoError(t, err)

	assert.False(t, out.ListCacheWarmed)
	assert.Equal(t, []string{"pikachu", "eevee"}, out.Warmed)
	require.Len(t, out.Failed, 2)
	assert.Equal(t, Failure{Name: "missingno", Reason: `Pokemon with name "missingno" not found`}, out.Failed[0])
	assert.Equal(t, "mew", out.Failed[1].Name)
	assert.Contains(t, out.Failed[1].Reason, "detail exploded")
}

func TestFamousJob_BadModelOutput(t *testing.T) {
	list := &fakeLister{}
	detail := &fakeDetailer{}

	_, err := NewFamousJob(fakeGenerator{text: "I cannot help with that."}, list, detail).Execute(testCtx(t))
	require.ErrorIs(t, err, ErrNotNameArray)
	assert.Zero(t, list.calls())
	assert.Empty(t, detail.names)
}

func TestFamousJob_GeneratorError(t *testing.T) {
	genErr := errors.New("quota exceeded")
	_, err := NewFamousJob(fakeGenerator{err: genErr}, &fakeLister{}, &fakeDetailer{}).Execute(testCtx(t))
	require.ErrorIs(t, err, genErr)
}

func TestGuard(t *testing.T) {
	assert.NoError(t, guard(func() error { return nil }))

	want := errors.New("plain")
	assert.ErrorIs(t, guard(func() error { return want }), want)

	err := guard(func() error { panic("kaboom") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
}
