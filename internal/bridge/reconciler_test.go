package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/skillforge/skillbridge/internal/executor"
	"github.com/skillforge/skillbridge/internal/metadata"
	"github.com/skillforge/skillbridge/internal/skills"
)

type fakeRegistry struct {
	mu      sync.Mutex
	records []skills.Record
	err     error
	calls   int
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeRegistry) set(records []skills.Record, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = records
	f.err = err
}

func (f *fakeRegistry) ReadAll(ctx context.Context) ([]skills.Record, error) {
	f.mu.Lock()
	f.calls++
	records, err, block, entered := f.records, f.err, f.block, f.entered
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		<-block
	}
	return records, err
}

type fakeFetcher struct {
	docs  map[string]*metadata.Document
	calls atomic.Int32
}

func (f *fakeFetcher) Fetch(_ context.Context, pointer string) *metadata.Document {
	f.calls.Add(1)
	return f.docs[pointer]
}

type registration struct {
	tool    mcp.Tool
	handler server.ToolHandlerFunc
}

type fakeRegistrar struct {
	mu    sync.Mutex
	tools map[string]registration
	order []string
	adds  int
}

func newFakeRegistrar() *fakeRegistrar {
	return &fakeRegistrar{tools: make(map[string]registration)}
}

func (f *fakeRegistrar) AddTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adds++
	f.tools[tool.Name] = registration{tool: tool, handler: handler}
	f.order = append(f.order, tool.Name)
}

func (f *fakeRegistrar) get(name string) (registration, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.tools[name]
	return r, ok
}

type capturingHandlers struct {
	mu    sync.Mutex
	bound map[string]skills.Skill
}

func (c *capturingHandlers) Handler(skill skills.Skill) server.ToolHandlerFunc {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bound == nil {
		c.bound = make(map[string]skills.Skill)
	}
	c.bound[skill.Key()] = skill
	return func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText(skill.Name), nil
	}
}

type recordingObserver struct {
	mu      sync.Mutex
	results []Result
}

func (o *recordingObserver) OnSync(_ context.Context, active, registered, discovered int, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results = append(o.results, Result{Active: active, Registered: registered, Discovered: discovered, Err: err})
}

func rec(id int64, uri string, active bool) skills.Record {
	return skills.Record{
		ID:          big.NewInt(id),
		Creator:     "0x000000000000000000000000000000000000dEaD",
		PricePerUse: big.NewInt(10000000000000000),
		MetadataURI: uri,
		IsActive:    active,
		TotalCalls:  big.NewInt(0),
	}
}

func newTestReconciler(t *testing.T, reg *fakeRegistry, fetcher *fakeFetcher, handlers HandlerFactory, registrar Registrar, obs Observer) *Reconciler {
	t.Helper()
	logger := zaptest.NewLogger(t)
	return NewReconciler(reg, skills.NewCache(fetcher, logger), handlers, registrar, Options{
		Concurrency: 4,
		Observer:    obs,
		Logger:      logger,
	})
}

func TestSyncRegistersAndExecutesSkill(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hello", body["input"])
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"result": "HELLO"})
	}))
	defer backend.Close()

	reg := &fakeRegistry{records: []skills.Record{rec(7, "ipfs://upper", true)}}
	fetcher := &fakeFetcher{docs: map[string]*metadata.Document{
		"ipfs://upper": {Name: "Uppercase Text", Description: "Uppercases text", Category: "Text"},
	}}
	registrar := newFakeRegistrar()
	exec := executor.NewClient(backend.URL, "0xbuyer")

	r := newTestReconciler(t, reg, fetcher, exec, registrar, nil)
	res := r.Sync(context.Background())

	require.NoError(t, res.Err)
	assert.Equal(t, Result{Active: 1, Registered: 1, Discovered: 1, Known: 1}, res)

	got, ok := registrar.get("uppercase-text")
	require.True(t, ok)
	assert.Equal(t, "Uppercases text | Category: Text | Price: 0.01 MON per use | Skill #7", got.tool.Description)
	assert.Contains(t, got.tool.InputSchema.Required, "input")

	req := mcp.CallToolRequest{}
	req.Params.Name = "uppercase-text"
	req.Params.Arguments = map[string]interface{}{"input": "hello"}
	out, err := got.handler(context.Background(), req)
	require.NoError(t, err)
	require.False(t, out.IsError)
	text := out.Content[0].(mcp.TextContent).Text
	assert.Contains(t, text, `"result": "HELLO"`)

	id, ok := r.Binding("uppercase-text")
	require.True(t, ok)
	assert.Equal(t, "7", id)
}

func TestSyncFiltersInactive(t *testing.T) {
	reg := &fakeRegistry{records: []skills.Record{
		rec(1, "a", true),
		rec(2, "b", false),
		rec(3, "c", true),
	}}
	fetcher := &fakeFetcher{docs: map[string]*metadata.Document{
		"a": {Name: "Alpha"},
		"b": {Name: "Beta"},
		"c": {Name: "Gamma"},
	}}
	registrar := newFakeRegistrar()

	r := newTestReconciler(t, reg, fetcher, &capturingHandlers{}, registrar, nil)
	res := r.Sync(context.Background())

	require.NoError(t, res.Err)
	assert.Equal(t, 2, res.Active)
	assert.Equal(t, []string{"alpha", "gamma"}, registrar.order)
	assert.Equal(t, int32(3), fetcher.calls.Load(), "inactive records are enriched too")

	active := r.Active()
	require.Len(t, active, 2)
	assert.Equal(t, "1", active[0].Key())
	assert.Equal(t, "3", active[1].Key())
}

func TestSyncDefaultsWithoutMetadata(t *testing.T) {
	reg := &fakeRegistry{records: []skills.Record{rec(42, "", true)}}
	registrar := newFakeRegistrar()

	r := newTestReconciler(t, reg, &fakeFetcher{}, &capturingHandlers{}, registrar, nil)
	r.Sync(context.Background())

	got, ok := registrar.get("skill-42")
	require.True(t, ok)
	assert.Equal(t, "No description available | Category: General | Price: 0.01 MON per use | Skill #42", got.tool.Description)
}

func TestSyncRefreshesEveryPass(t *testing.T) {
	reg := &fakeRegistry{records: []skills.Record{rec(1, "a", true)}}
	fetcher := &fakeFetcher{docs: map[string]*metadata.Document{"a": {Name: "Alpha"}}}
	handlers := &capturingHandlers{}
	registrar := newFakeRegistrar()
	obs := &recordingObserver{}

	r := newTestReconciler(t, reg, fetcher, handlers, registrar, obs)
	first := r.Sync(context.Background())

	updated := rec(1, "a", true)
	updated.PricePerUse = big.NewInt(2000000000000000000)
	reg.set([]skills.Record{updated}, nil)

	second := r.Sync(context.Background())

	assert.Equal(t, 1, first.Discovered)
	assert.Equal(t, 0, second.Discovered)
	assert.Equal(t, 1, second.Registered)
	assert.Equal(t, 2, registrar.adds)
	assert.Equal(t, int32(2), fetcher.calls.Load(), "cache is cleared at the start of each pass")

	got, _ := registrar.get("alpha")
	assert.Contains(t, got.tool.Description, "Price: 2 MON per use")
	assert.Equal(t, "2000000000000000000", handlers.bound["1"].PricePerUse.String())

	require.Len(t, obs.results, 2)
	assert.Equal(t, 0, obs.results[1].Discovered)
}

func TestSyncRegistryFailureKeepsTools(t *testing.T) {
	reg := &fakeRegistry{records: []skills.Record{rec(1, "a", true)}}
	fetcher := &fakeFetcher{docs: map[string]*metadata.Document{"a": {Name: "Alpha"}}}
	registrar := newFakeRegistrar()
	obs := &recordingObserver{}

	r := newTestReconciler(t, reg, fetcher, &capturingHandlers{}, registrar, obs)
	r.Sync(context.Background())
	lastSync := r.LastSync()

	reg.set(nil, errors.New("rpc unavailable"))
	res := r.Sync(context.Background())

	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "rpc unavailable")
	assert.Equal(t, 1, res.Known)
	assert.Equal(t, 1, registrar.adds)
	_, ok := registrar.get("alpha")
	assert.True(t, ok)
	assert.Equal(t, lastSync, r.LastSync())
	assert.Len(t, r.Active(), 1)

	require.Len(t, obs.results, 2)
	assert.Error(t, obs.results[1].Err)
}

func TestSyncKnownToolsNeverShrink(t *testing.T) {
	reg := &fakeRegistry{records: []skills.Record{rec(1, "a", true), rec(2, "b", true)}}
	fetcher := &fakeFetcher{docs: map[string]*metadata.Document{
		"a": {Name: "Alpha"},
		"b": {Name: "Beta"},
	}}

	r := newTestReconciler(t, reg, fetcher, &capturingHandlers{}, newFakeRegistrar(), nil)
	r.Sync(context.Background())

	reg.set([]skills.Record{rec(1, "a", true), rec(2, "b", false)}, nil)
	res := r.Sync(context.Background())

	assert.Equal(t, 1, res.Active)
	assert.Equal(t, 2, res.Known)
	assert.Equal(t, []string{"alpha", "beta"}, r.KnownTools())
}

func TestSyncNameCollisions(t *testing.T) {
	reg := &fakeRegistry{records: []skills.Record{
		rec(4, "a", true),
		rec(9, "b", true),
		rec(12, "c", true),
	}}
	fetcher := &fakeFetcher{docs: map[string]*metadata.Document{
		"a": {Name: "Summarize!"},
		"b": {Name: "summarize"},
		"c": {Name: "???"},
	}}
	registrar := newFakeRegistrar()

	r := newTestReconciler(t, reg, fetcher, &capturingHandlers{}, registrar, nil)
	r.Sync(context.Background())

	assert.Equal(t, []string{"summarize", "summarize-9", "skill-12"}, registrar.order)

	id, _ := r.Binding("summarize")
	assert.Equal(t, "4", id)
	id, _ = r.Binding("summarize-9")
	assert.Equal(t, "9", id)
}

func TestSyncSuffixNeverReplacesAnotherSkill(t *testing.T) {
	reg := &fakeRegistry{records: []skills.Record{
		rec(1, "a", true),
		rec(2, "b", true),
		rec(3, "c", true),
	}}
	fetcher := &fakeFetcher{docs: map[string]*metadata.Document{
		"a": {Name: "Foo"},
		"b": {Name: "Foo 3"},
		"c": {Name: "Foo"},
	}}
	registrar := newFakeRegistrar()

	r := newTestReconciler(t, reg, fetcher, &capturingHandlers{}, registrar, nil)
	res := r.Sync(context.Background())

	require.NoError(t, res.Err)
	assert.Equal(t, []string{"foo", "foo-3", "foo-3-2"}, registrar.order)
	assert.Len(t, registrar.tools, 3)
	assert.Equal(t, 3, res.Registered)

	for name, want := range map[string]string{"foo": "1", "foo-3": "2", "foo-3-2": "3"} {
		id, ok := r.Binding(name)
		require.True(t, ok, name)
		assert.Equal(t, want, id, name)
	}

	out, err := registrar.tools["foo-3"].handler(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	assert.Equal(t, "Foo 3", out.Content[0].(mcp.TextContent).Text)
}

func TestSyncSkipsWhilePassInFlight(t *testing.T) {
	reg := &fakeRegistry{
		records: []skills.Record{rec(1, "a", true)},
		block:   make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	fetcher := &fakeFetcher{docs: map[string]*metadata.Document{"a": {Name: "Alpha"}}}
	registrar := newFakeRegistrar()

	r := newTestReconciler(t, reg, fetcher, &capturingHandlers{}, registrar, nil)

	done := make(chan Result)
	go func() { done <- r.Sync(context.Background()) }()

	select {
	case <-reg.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first pass never reached the registry")
	}

	skipped := r.Sync(context.Background())
	assert.True(t, skipped.Skipped)

	close(reg.block)
	first := <-done

	assert.False(t, first.Skipped)
	assert.Equal(t, 1, first.Registered)
	assert.Equal(t, 1, reg.calls)
	assert.Equal(t, 1, registrar.adds)
}

// gatedFetcher holds fetches of one pointer until gate is closed.
type gatedFetcher struct {
	fakeFetcher
	pointer string
	gate    chan struct{}
	entered chan struct{}
}

func (g *gatedFetcher) Fetch(ctx context.Context, pointer string) *metadata.Document {
	if pointer == g.pointer && g.gate != nil {
		g.entered <- struct{}{}
		<-g.gate
	}
	return g.fakeFetcher.Fetch(ctx, pointer)
}

func TestSyncOverlappingPassKeepsCacheWhole(t *testing.T) {
	reg := &fakeRegistry{records: []skills.Record{
		rec(1, "a", true),
		rec(2, "b", true),
		rec(3, "c", false),
	}}
	fetcher := &gatedFetcher{
		fakeFetcher: fakeFetcher{docs: map[string]*metadata.Document{
			"a": {Name: "Alpha"},
			"b": {Name: "Beta"},
			"c": {Name: "Gamma"},
		}},
		pointer: "b",
	}
	logger := zaptest.NewLogger(t)
	cache := skills.NewCache(fetcher, logger)
	r := NewReconciler(reg, cache, &capturingHandlers{}, newFakeRegistrar(), Options{Concurrency: 4, Logger: logger})

	require.NoError(t, r.Sync(context.Background()).Err)
	before := []string{"1", "2", "3"}
	for _, id := range before {
		_, ok := cache.Get(id)
		require.True(t, ok, "skill %s cached by the first pass", id)
	}

	fetcher.gate = make(chan struct{})
	fetcher.entered = make(chan struct{}, 1)

	done := make(chan Result)
	go func() { done <- r.Sync(context.Background()) }()

	select {
	case <-fetcher.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("pass never reached the metadata fetch")
	}

	assert.True(t, r.Sync(context.Background()).Skipped)

	close(fetcher.gate)
	first := <-done
	require.NoError(t, first.Err)
	assert.False(t, first.Skipped)

	want := map[string]string{"1": "Alpha", "2": "Beta", "3": "Gamma"}
	for _, id := range before {
		s, ok := cache.Get(id)
		require.True(t, ok, "skill %s missing after overlapping passes", id)
		assert.Equal(t, want[id], s.Name)
	}
	assert.Equal(t, 3, cache.Len())
	assert.Equal(t, 2, reg.calls, "the skipped pass never read the registry")
}

func TestSyncRecoversFromPanic(t *testing.T) {
	reg := &fakeRegistry{records: []skills.Record{rec(1, "a", true)}}
	fetcher := &fakeFetcher{docs: map[string]*metadata.Document{"a": {Name: "Alpha"}}}

	r := newTestReconciler(t, reg, fetcher, panickingHandlers{}, newFakeRegistrar(), nil)

	var res Result
	require.NotPanics(t, func() { res = r.Sync(context.Background()) })
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "panicked")

	reg.set(nil, nil)
	assert.False(t, r.Sync(context.Background()).Skipped, "guard is released after a panic")
}

type panickingHandlers struct{}

func (panickingHandlers) Handler(skills.Skill) server.ToolHandlerFunc {
	panic("boom")
}

func TestDescribeIncludesTags(t *testing.T) {
	r := NewReconciler(nil, nil, nil, nil, Options{CurrencySymbol: "ETH"})
	s := skills.Defaults(rec(5, "", true))
	s.Tags = []string{"nlp", "text"}

	assert.Equal(t,
		"No description available | Category: General | Price: 0.01 ETH per use | Tags: nlp, text | Skill #5",
		r.describe(s))
}
