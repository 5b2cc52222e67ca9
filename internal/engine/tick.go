package engine

import (
	"context"
	"log/slog"
	"math"
	"time"
)

// Frame defaults.
const (
	DefaultFrameInterval    = 100 * time.Millisecond
	DefaultFrameBudget      = 50 * time.Millisecond
	DefaultMaxStepsPerFrame = 10000
	DefaultTaskBudget       = 64
)

// Engine drives a World in real time. Each frame it drains queued host tasks,
// then advances the clock by Speed×interval days, capped by an update count
// and a wall-clock slice. Everything touching the world runs on the Run
// goroutine; other goroutines go through World.Tasks.
type Engine struct {
	World *World

	Speed            float64       // Simulated days per real second; 0 = paused
	Interval         time.Duration // Frame interval
	FrameBudget      time.Duration // Wall time a frame may spend updating
	MaxStepsPerFrame int
	TaskBudget       int

	// Called on the simulation goroutine.
	OnFrame func(steps int)   // After every frame that ran updates
	OnYear  func(year int64) // Once per year crossed, in order

	target   Date
	carry    float64
	lastYear int64
}

// NewEngine creates an engine for w with default frame settings, paused.
func NewEngine(w *World) *Engine {
	return &Engine{
		World:            w,
		Interval:         DefaultFrameInterval,
		FrameBudget:      DefaultFrameBudget,
		MaxStepsPerFrame: DefaultMaxStepsPerFrame,
		TaskBudget:       DefaultTaskBudget,
		target:           w.Date,
		lastYear:         int64(w.Date / DaysPerYear),
	}
}

// Run loops frames until ctx is done.
func (e *Engine) Run(ctx context.Context) {
	slog.Info("simulation engine started", "date", e.World.Date.String(), "speed", e.Speed)
	ticker := time.NewTicker(e.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			e.World.Tasks.Execute(0)
			slog.Info("simulation engine stopped", "date", e.World.Date.String(), "events", e.World.EventsTriggered)
			return
		case <-ticker.C:
			e.Frame()
		}
	}
}

// Frame runs one frame. Returns the number of updates it ran.
func (e *Engine) Frame() int {
	w := e.World
	w.Tasks.Execute(e.TaskBudget)
	if e.Speed <= 0 {
		return 0
	}

	// A target not reached last frame is kept; the backlog does not grow.
	if e.target <= w.Date {
		e.carry += e.Speed * e.Interval.Seconds()
		whole := math.Floor(e.carry)
		e.carry -= whole
		e.target = w.Date + Date(min(whole, float64(MaxUpdateSpan)))
	}
	if e.target <= w.Date {
		return 0
	}

	steps, reached := w.AdvanceWithBudget(e.target, e.MaxStepsPerFrame, e.FrameBudget)
	if !reached {
		slog.Debug("frame budget exhausted", "steps", steps, "date", w.Date.String(), "target", e.target.String())
	}

	// Every year crossed gets its own call, even when a frame spans several.
	if year := int64(w.Date / DaysPerYear); year > e.lastYear {
		for y := e.lastYear + 1; y <= year; y++ {
			if e.OnYear != nil {
				e.OnYear(y)
			}
		}
		e.lastYear = year
	}
	if steps > 0 && e.OnFrame != nil {
		e.OnFrame(steps)
	}
	return steps
}

// SetSpeed changes the speed from any goroutine; it applies at the next frame.
func (e *Engine) SetSpeed(daysPerSecond float64) {
	if math.IsNaN(daysPerSecond) || daysPerSecond < 0 {
		daysPerSecond = 0
	}
	e.World.Tasks.Enqueue(func() {
		e.Speed = daysPerSecond
		e.carry = 0
		slog.Info("engine speed changed", "days_per_second", daysPerSecond)
	})
}
