package resume

import (
	"context"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// Phase is the engine's coarse state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRunning
	PhaseAwaitingNavigation
)

func (p Phase) String() string {
	switch p {
	case PhaseRunning:
		return "running"
	case PhaseAwaitingNavigation:
		return "awaiting-navigation"
	default:
		return "no-active-tour"
	}
}

// TaskResolver looks a task up by slug. A slug that no longer resolves
// abandons the resume attempt.
type TaskResolver func(slug string) (Task, bool)

// Navigator abstracts the page the engine is driving.
type Navigator interface {
	// CurrentLocation returns the page's current URL.
	CurrentLocation() string
	// Navigate performs a full navigation, after which the engine
	// instance is gone and OnPageLoad on a fresh instance takes over.
	Navigate(target string) error
}

// Presenter renders the tour step. The concrete implementation wraps
// the third-party step-highlighting library.
type Presenter interface {
	Show(step Step, index, total int)
	Hide()
}

// Document answers whether a selector currently resolves, for polling
// after navigation while async content renders.
type Document interface {
	Has(selector string) bool
}

const (
	// DefaultWaitTimeout bounds the post-navigation wait for the
	// resumed step's element.
	DefaultWaitTimeout = 5 * time.Second

	// DefaultPollInterval is the element polling cadence.
	DefaultPollInterval = 150 * time.Millisecond
)

// Options configures an Engine.
type Options struct {
	WaitTimeout  time.Duration
	PollInterval time.Duration
	Logger       *zap.Logger
}

// Engine is the cross-page tour state machine. It is driven from the
// page's single event loop and is not safe for concurrent use.
type Engine struct {
	storage   Storage
	resolve   TaskResolver
	nav       Navigator
	presenter Presenter
	logger    *zap.Logger
	now       func() time.Time

	waitTimeout  time.Duration
	pollInterval time.Duration

	phase Phase
	task  Task
	index int
}

// NewEngine assembles the state machine.
func NewEngine(storage Storage, resolve TaskResolver, nav Navigator, presenter Presenter, opts Options) *Engine {
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = DefaultWaitTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Engine{
		storage:      storage,
		resolve:      resolve,
		nav:          nav,
		presenter:    presenter,
		logger:       opts.Logger,
		now:          time.Now,
		waitTimeout:  opts.WaitTimeout,
		pollInterval: opts.PollInterval,
		phase:        PhaseIdle,
	}
}

// Phase reports the engine's current state.
func (e *Engine) Phase() Phase { return e.phase }

// StepIndex reports the current step while running.
func (e *Engine) StepIndex() int { return e.index }

// Start begins the named tour at its first step. Starting while another
// tour awaits navigation overwrites its checkpoint; only one tour can
// be in flight per browser context.
func (e *Engine) Start(slug string) bool {
	task, ok := e.resolve(slug)
	if !ok || len(task.Steps) == 0 {
		e.logger.Warn("tour start refused", zap.String("slug", slug), zap.Bool("known", ok))
		return false
	}
	e.task = task
	e.index = 0
	e.phase = PhaseRunning
	e.present()
	return true
}

// Advance moves to the next step. Past the last step the tour completes
// and any persisted checkpoint is cleared unconditionally.
func (e *Engine) Advance() {
	if e.phase != PhaseRunning {
		return
	}
	e.index++
	if e.index >= len(e.task.Steps) {
		e.finish()
		return
	}
	e.present()
}

// Dismiss ends the tour early, clearing any persisted checkpoint.
func (e *Engine) Dismiss() {
	e.finish()
}

// OnPageLoad consumes a persisted checkpoint, if any, before normal
// auto-start logic runs. It returns true when a tour was resumed. The
// checkpoint is cleared before resuming so it is consumed exactly once
// even if the resume itself fails partway.
func (e *Engine) OnPageLoad(ctx context.Context, doc Document) bool {
	state, ok, err := e.storage.Load()
	if err != nil {
		e.logger.Warn("resume state unreadable", zap.Error(err))
		e.storage.Clear()
		return false
	}
	if !ok {
		return false
	}
	if err := e.storage.Clear(); err != nil {
		e.logger.Warn("resume state clear failed", zap.Error(err))
	}

	task, known := e.resolve(state.TaskSlug)
	if !known || state.StepIndex < 0 || state.StepIndex >= len(task.Steps) {
		e.logger.Info("resume abandoned",
			zap.String("slug", state.TaskSlug),
			zap.Int("step", state.StepIndex),
			zap.Bool("known", known),
		)
		return false
	}

	e.task = task
	e.index = state.StepIndex
	e.phase = PhaseRunning

	step := task.Steps[state.StepIndex]
	if doc != nil && step.Selector != "" {
		// Best effort: present whatever is available once the wait ends.
		e.waitForElement(ctx, doc, step.Selector)
	}
	e.presenter.Show(step, e.index, len(e.task.Steps))
	return true
}

// present shows the current step, or persists state and navigates when
// the step lives on another page.
func (e *Engine) present() {
	step := e.task.Steps[e.index]
	if step.URL != "" && !samePage(e.nav.CurrentLocation(), step.URL) {
		state := State{
			TaskSlug:  e.task.Slug,
			StepIndex: e.index,
			StartedAt: e.now(),
		}
		if err := e.storage.Save(state); err != nil {
			e.logger.Warn("resume state save failed", zap.Error(err))
		}
		e.phase = PhaseAwaitingNavigation
		if err := e.nav.Navigate(step.URL); err != nil {
			e.logger.Warn("navigation failed", zap.String("target", step.URL), zap.Error(err))
			e.storage.Clear()
			e.phase = PhaseRunning
			e.presenter.Show(step, e.index, len(e.task.Steps))
		}
		return
	}
	e.presenter.Show(step, e.index, len(e.task.Steps))
}

func (e *Engine) finish() {
	e.storage.Clear()
	e.presenter.Hide()
	e.phase = PhaseIdle
	e.task = Task{}
	e.index = 0
}

// waitForElement polls the document until the selector resolves or the
// bounded timeout passes.
func (e *Engine) waitForElement(ctx context.Context, doc Document, selector string) bool {
	if doc.Has(selector) {
		return true
	}
	deadline := time.NewTimer(e.waitTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(e.pollInterval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return false
		case <-tick.C:
			if doc.Has(selector) {
				return true
			}
		}
	}
}

// samePage compares path and query only; a step targeting the current
// page under a different fragment or origin spelling must not trigger
// a navigation loop.
func samePage(current, target string) bool {
	cu, err := url.Parse(current)
	if err != nil {
		return false
	}
	tu, err := url.Parse(target)
	if err != nil {
		return false
	}
	return cu.Path == tu.Path && cu.RawQuery == tu.RawQuery
}
