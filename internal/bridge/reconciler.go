package bridge

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	sentryutil "github.com/skillforge/skillbridge/internal/sentry"
	"github.com/skillforge/skillbridge/internal/skills"
)

// DefaultConcurrency caps in-flight enrichments during one pass.
const DefaultConcurrency = 8

// RegistryReader returns the full registry contents.
type RegistryReader interface {
	ReadAll(ctx context.Context) ([]skills.Record, error)
}

// Enricher resolves records into skills and can be invalidated.
type Enricher interface {
	Enrich(ctx context.Context, rec skills.Record) skills.Skill
	Clear()
}

// HandlerFactory builds the invocation handler bound to one skill snapshot.
type HandlerFactory interface {
	Handler(skill skills.Skill) server.ToolHandlerFunc
}

// Registrar exposes tools to agents. Registering an existing name replaces
// its definition and handler.
type Registrar interface {
	AddTool(tool mcp.Tool, handler server.ToolHandlerFunc)
}

// Observer is notified after every completed pass.
type Observer interface {
	OnSync(ctx context.Context, active, registered, discovered int, err error)
}

// Options configures a Reconciler.
type Options struct {
	Concurrency    int
	CurrencySymbol string
	Observer       Observer
	Logger         *zap.Logger
}

// Result summarizes one sync pass.
type Result struct {
	Active     int
	Registered int
	Discovered int
	Known      int
	Skipped    bool
	Err        error
}

// Reconciler keeps the registered tool set in line with the registry.
// It owns the known-tool set; nothing here is package state.
type Reconciler struct {
	registry  RegistryReader
	cache     Enricher
	handlers  HandlerFactory
	registrar Registrar
	observer  Observer
	logger    *zap.Logger

	concurrency int
	symbol      string

	running sync.Mutex

	mu       sync.RWMutex
	known    map[string]struct{}
	active   []skills.Skill
	bindings map[string]string
	lastSync time.Time
}

// NewReconciler wires a reconciler.
func NewReconciler(registry RegistryReader, cache Enricher, handlers HandlerFactory, registrar Registrar, opts Options) *Reconciler {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.CurrencySymbol == "" {
		opts.CurrencySymbol = "MON"
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Reconciler{
		registry:    registry,
		cache:       cache,
		handlers:    handlers,
		registrar:   registrar,
		observer:    opts.Observer,
		logger:      opts.Logger,
		concurrency: opts.Concurrency,
		symbol:      opts.CurrencySymbol,
		known:       make(map[string]struct{}),
		bindings:    make(map[string]string),
	}
}

// Sync runs one pass to completion. Only one pass runs at a time: a call
// made while another pass is in flight returns immediately with Skipped set.
// Failures are logged and reported in Result.Err; they never escape.
func (r *Reconciler) Sync(ctx context.Context) (res Result) {
	if !r.running.TryLock() {
		r.logger.Warn("sync already in progress, skipping pass")
		return Result{Skipped: true, Known: r.KnownCount()}
	}
	defer r.running.Unlock()

	defer func() {
		if p := recover(); p != nil {
			res = Result{Err: fmt.Errorf("sync panicked: %v", p), Known: r.KnownCount()}
			r.logger.Error("sync pass panicked", zap.Any("panic", p))
		}
		if res.Err != nil {
			sentryutil.CaptureError(res.Err, map[string]string{"component": "sync"}, nil)
		}
		if r.observer != nil {
			r.observer.OnSync(ctx, res.Active, res.Registered, res.Discovered, res.Err)
		}
	}()

	return r.sync(ctx)
}

func (r *Reconciler) sync(ctx context.Context) Result {
	start := time.Now()

	r.cache.Clear()

	records, err := r.registry.ReadAll(ctx)
	if err != nil {
		r.logger.Error("failed to read skill registry", zap.Error(err))
		return Result{Err: fmt.Errorf("failed to read registry: %w", err), Known: r.KnownCount()}
	}

	active := skills.Active(r.enrichAll(ctx, records))
	names := skills.ToolNames(active)

	res := Result{Active: len(active)}
	for i, s := range active {
		name := names[i]
		r.registrar.AddTool(r.tool(name, s), r.handlers.Handler(s))
		res.Registered++

		if r.remember(name, s.Key()) {
			res.Discovered++
			r.logger.Info("registered new tool",
				zap.String("tool", name),
				zap.String("skill_id", s.Key()),
				zap.String("skill", s.Name))
		}
	}

	r.mu.Lock()
	r.active = active
	r.lastSync = time.Now()
	res.Known = len(r.known)
	r.mu.Unlock()

	r.logger.Info("skill sync complete",
		zap.Int("records", len(records)),
		zap.Int("active", res.Active),
		zap.Int("new", res.Discovered),
		zap.Int("known", res.Known),
		zap.Duration("duration", time.Since(start)))
	return res
}

// enrichAll enriches every record concurrently, bounded by r.concurrency,
// and returns the results in input order.
func (r *Reconciler) enrichAll(ctx context.Context, records []skills.Record) []skills.Skill {
	out := make([]skills.Skill, len(records))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, rec := range records {
		g.Go(func() error {
			out[i] = r.cache.Enrich(ctx, rec)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (r *Reconciler) remember(name, skillID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[name] = skillID
	if _, ok := r.known[name]; ok {
		return false
	}
	r.known[name] = struct{}{}
	return true
}

func (r *Reconciler) tool(name string, s skills.Skill) mcp.Tool {
	return mcp.NewTool(name,
		mcp.WithDescription(r.describe(s)),
		mcp.WithString("input",
			mcp.Required(),
			mcp.Description("Input passed to the skill"),
		),
	)
}

func (r *Reconciler) describe(s skills.Skill) string {
	var b strings.Builder
	b.WriteString(s.Description)
	fmt.Fprintf(&b, " | Category: %s", s.Category)
	fmt.Fprintf(&b, " | Price: %s %s per use", skills.FormatPrice(s.PricePerUse), r.symbol)
	if len(s.Tags) > 0 {
		fmt.Fprintf(&b, " | Tags: %s", strings.Join(s.Tags, ", "))
	}
	fmt.Fprintf(&b, " | Skill #%s", s.Key())
	return b.String()
}

// Active returns the active skills seen by the last successful pass.
func (r *Reconciler) Active() []skills.Skill {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]skills.Skill, len(r.active))
	for i, s := range r.active {
		out[i] = s.Clone()
	}
	return out
}

// KnownTools returns every tool name ever registered, sorted.
func (r *Reconciler) KnownTools() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.known))
	for name := range r.known {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// KnownCount returns the size of the known-tool set.
func (r *Reconciler) KnownCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.known)
}

// Binding returns the skill id a tool name was last bound to.
func (r *Reconciler) Binding(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.bindings[name]
	return id, ok
}

// LastSync returns when the last successful pass finished.
func (r *Reconciler) LastSync() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastSync
}
