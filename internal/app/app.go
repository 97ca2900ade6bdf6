package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"nutriplan/internal/catalogue"
	"nutriplan/internal/config"
	"nutriplan/internal/plan"
	"nutriplan/internal/planner"
	"nutriplan/internal/shared"

	"go.uber.org/zap"
)

var (
	// ErrInvalidPlan means a plan to save is empty or names a dish that is
	// missing from the catalogue or not allowed in its slot.
	ErrInvalidPlan = errors.New("invalid plan")
	// ErrPlanNotFound means no plan in the merged view has the given id.
	ErrPlanNotFound = errors.New("plan not found")
)

// Assigner produces a menu for a date range.
type Assigner interface {
	Assign(ctx context.Context, dishes []catalogue.Dish, start time.Time, days int, history []plan.Plan) (planner.Result, error)
}

// PlanSaver delivers a plan to the shared sheet.
type PlanSaver interface {
	Save(ctx context.Context, endpoint string, p plan.Plan) bool
}

// StateStore persists local state between runs.
type StateStore interface {
	SavePlans(ctx context.Context, plans []plan.Plan) error
	LoadPlans(ctx context.Context) ([]plan.Plan, error)
	SaveSources(ctx context.Context, src config.Sources) error
	LoadSources(ctx context.Context) (config.Sources, bool, error)
	SaveCatalogue(ctx context.Context, dishes []catalogue.Dish) error
	LoadCatalogue(ctx context.Context) ([]catalogue.Dish, error)
}

// UsageRecorder stores generation token usage.
type UsageRecorder interface {
	RecordMeta(ctx context.Context, meta shared.AgentMeta) error
}

// App holds the application's dependencies and the in-memory plan view.
type App struct {
	fetcher  catalogue.TableFetcher
	loader   *catalogue.Loader
	decoder  *plan.Decoder
	engine   Assigner
	saver    PlanSaver
	state    StateStore
	usage    UsageRecorder
	logger   *zap.Logger
	now      func() time.Time
	defaults config.Sources

	// persistMu serializes plan view changes with their write to state, so
	// an older snapshot never overwrites a newer one.
	persistMu sync.Mutex

	mu      sync.RWMutex
	sources config.Sources
	dishes  []catalogue.Dish
	plans   []plan.Plan
}

// NewApp creates a new App. usage may be nil.
func NewApp(
	fetcher catalogue.TableFetcher,
	engine Assigner,
	saver PlanSaver,
	state StateStore,
	usage UsageRecorder,
	sources config.Sources,
	logger *zap.Logger,
) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{
		fetcher:  fetcher,
		loader:   catalogue.NewLoader(fetcher, logger),
		decoder:  plan.NewDecoder(logger),
		engine:   engine,
		saver:    saver,
		state:    state,
		usage:    usage,
		logger:   logger,
		now:      time.Now,
		defaults: sources,
		sources:  sources,
	}
}

// Restore loads persisted sources, cached catalogue and local plans. Saved
// locators override the configured ones field by field.
func (a *App) Restore(ctx context.Context) error {
	src, ok, err := a.state.LoadSources(ctx)
	if err != nil {
		return err
	}
	dishes, err := a.state.LoadCatalogue(ctx)
	if err != nil {
		return err
	}
	plans, err := a.state.LoadPlans(ctx)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if ok {
		a.sources = overlay(a.defaults, src)
	}
	a.dishes = dishes
	a.plans = plans

	a.logger.Debug("Local state restored",
		zap.Int("dishes", len(dishes)),
		zap.Int("plans", len(plans)),
		zap.Bool("saved_sources", ok))
	return nil
}

// Sources returns the locators in effect.
func (a *App) Sources() config.Sources {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sources
}

// UpdateSources persists new locators and makes them current. An empty
// locator stands for the configured one, now and after a restart.
func (a *App) UpdateSources(ctx context.Context, src config.Sources) error {
	if err := a.state.SaveSources(ctx, src); err != nil {
		return err
	}

	a.mu.Lock()
	a.sources = overlay(a.defaults, src)
	current := a.sources
	a.mu.Unlock()

	a.logger.Info("Sources updated",
		zap.String("lunch", current.Lunch),
		zap.String("dinner", current.Dinner),
		zap.String("history", current.History))
	return nil
}

// Catalogue returns the current catalogue, fresh or cached.
func (a *App) Catalogue() []catalogue.Dish {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.dishes
}

// SyncCatalogue reloads the catalogue from the lunch and dinner sources.
// On failure the cached catalogue stays in place.
func (a *App) SyncCatalogue(ctx context.Context) ([]catalogue.Dish, error) {
	src := a.Sources()

	dishes, err := a.loader.Load(ctx, src.Lunch, src.Dinner)
	if err != nil {
		return nil, err
	}
	catalogue.SortByName(dishes)

	if err := a.state.SaveCatalogue(ctx, dishes); err != nil {
		a.logger.Warn("Failed to cache catalogue", zap.Error(err))
	}

	a.mu.Lock()
	a.dishes = dishes
	a.mu.Unlock()

	if len(dishes) == 0 {
		a.logger.Warn("No dishes found in sources")
	}
	return dishes, nil
}

// Plans returns the merged plan view, newest entries first.
func (a *App) Plans() []plan.Plan {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.plans
}

// RefreshHistory decodes the shared history table and reconciles it with
// the current view. On fetch failure the previous view is kept and the
// error returned.
func (a *App) RefreshHistory(ctx context.Context) ([]plan.Plan, error) {
	src := a.Sources()
	if src.History == "" {
		return a.Plans(), nil
	}

	rows, err := a.fetcher.Fetch(ctx, src.History)
	if err != nil {
		a.logger.Warn("Failed to load shared history", zap.Error(err))
		return a.Plans(), fmt.Errorf("failed to fetch history: %w", err)
	}
	remote := a.decoder.Decode(rows)

	var merged []plan.Plan
	if err := a.commit(ctx, func(plans []plan.Plan) []plan.Plan {
		merged = plan.Reconcile(plans, remote)
		return merged
	}); err != nil {
		a.logger.Warn("Failed to persist plans", zap.Error(err))
	}

	a.logger.Info("History refreshed",
		zap.Int("remote", len(remote)),
		zap.Int("merged", len(merged)))
	return merged, nil
}

// Generate assigns dishes from the current catalogue for days days from start.
func (a *App) Generate(ctx context.Context, start time.Time, days int) (planner.Result, error) {
	a.mu.RLock()
	dishes, history := a.dishes, a.plans
	a.mu.RUnlock()

	res, err := a.engine.Assign(ctx, dishes, start, days, history)
	if err != nil {
		return planner.Result{}, err
	}

	if a.usage != nil && !res.Meta.Empty() {
		if err := a.usage.RecordMeta(ctx, res.Meta); err != nil {
			a.logger.Warn("Failed to record usage", zap.Error(err))
		}
	}
	return res, nil
}

// SavePlan stores a new local plan and then offers it to the save endpoint.
// Every dish is resolved against the current catalogue by name and must be
// allowed in its slot. remoteOK reports delivery; the local copy is kept
// either way.
func (a *App) SavePlan(ctx context.Context, name, startDate string, days []plan.DayAssignment) (p plan.Plan, remoteOK bool, err error) {
	if len(days) == 0 {
		return plan.Plan{}, false, fmt.Errorf("%w: plan has no days", ErrInvalidPlan)
	}

	resolved, err := resolveDays(a.Catalogue(), days)
	if err != nil {
		return plan.Plan{}, false, err
	}
	p = plan.New(name, startDate, resolved, a.now())

	if err := a.commit(ctx, func(plans []plan.Plan) []plan.Plan {
		return append([]plan.Plan{p}, plans...)
	}); err != nil {
		return p, false, fmt.Errorf("failed to persist plan: %w", err)
	}

	remoteOK = a.saver.Save(ctx, a.Sources().SaveURL, p)
	if remoteOK {
		// Best effort; a failure is already logged and the local copy stays.
		_, _ = a.RefreshHistory(ctx)
	}
	return p, remoteOK, nil
}

// DeletePlan removes a plan from the merged view and persists the local
// plans that remain. A cloud plan reappears on the next history refresh.
func (a *App) DeletePlan(ctx context.Context, id string) error {
	found := false
	err := a.commit(ctx, func(plans []plan.Plan) []plan.Plan {
		out := make([]plan.Plan, 0, len(plans))
		for _, p := range plans {
			if p.ID == id {
				found = true
				continue
			}
			out = append(out, p)
		}
		return out
	})
	if err != nil {
		return fmt.Errorf("failed to persist plans: %w", err)
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrPlanNotFound, id)
	}

	a.logger.Info("Plan deleted", zap.String("plan_id", id))
	return nil
}

// commit applies change to the plan view and persists the result while
// holding persistMu.
func (a *App) commit(ctx context.Context, change func([]plan.Plan) []plan.Plan) error {
	a.persistMu.Lock()
	defer a.persistMu.Unlock()

	a.mu.Lock()
	a.plans = change(a.plans)
	merged := a.plans
	a.mu.Unlock()

	return a.state.SavePlans(ctx, merged)
}

// Stats counts dish usage across the merged history.
func (a *App) Stats() []plan.MealStat {
	return plan.Stats(a.Plans())
}

func overlay(base, over config.Sources) config.Sources {
	if over.Lunch != "" {
		base.Lunch = over.Lunch
	}
	if over.Dinner != "" {
		base.Dinner = over.Dinner
	}
	if over.History != "" {
		base.History = over.History
	}
	if over.SaveURL != "" {
		base.SaveURL = over.SaveURL
	}
	return base
}

func resolveDays(dishes []catalogue.Dish, days []plan.DayAssignment) ([]plan.DayAssignment, error) {
	byKey := make(map[string]catalogue.Dish, len(dishes))
	for _, d := range dishes {
		byKey[catalogue.Key(d.Name)] = d
	}

	out := make([]plan.DayAssignment, len(days))
	for i, day := range days {
		lunch, err := resolveDish(byKey, day.Lunch, catalogue.Lunch)
		if err != nil {
			return nil, fmt.Errorf("%w: day %d: %v", ErrInvalidPlan, i+1, err)
		}
		dinner, err := resolveDish(byKey, day.Dinner, catalogue.Dinner)
		if err != nil {
			return nil, fmt.Errorf("%w: day %d: %v", ErrInvalidPlan, i+1, err)
		}
		out[i] = plan.DayAssignment{Date: day.Date, Lunch: lunch, Dinner: dinner}
	}
	return out, nil
}

func resolveDish(byKey map[string]catalogue.Dish, d catalogue.Dish, meal catalogue.Meal) (catalogue.Dish, error) {
	if strings.TrimSpace(d.Name) == "" {
		return catalogue.Dish{}, fmt.Errorf("no %s dish", meal)
	}
	found, ok := byKey[catalogue.Key(d.Name)]
	if !ok {
		return catalogue.Dish{}, fmt.Errorf("%q is not in the catalogue", d.Name)
	}
	if !found.Allows(meal) {
		return catalogue.Dish{}, fmt.Errorf("%q cannot be served as %s", d.Name, meal)
	}
	return found, nil
}
