package progress

import (
	"context"
	"time"
)

type contextKey string

const (
	startTimeKey contextKey = "progress_start_time"
	callbackKey  contextKey = "progress_callback"
)

type Phase string

const (
	PhaseRefreshing Phase = "refreshing"
	PhaseSearching  Phase = "searching"
	PhaseAttempting Phase = "attempting"
	PhasePacing     Phase = "pacing"
	PhaseCompleted  Phase = "completed"
)

// Event describes the state of a running session at a point in time.
type Event struct {
	Phase   Phase
	Step    string
	Current int
	Total   int
	// Progress is the overall completion ratio, between 0 and 1.
	Progress float64
	Elapsed  time.Duration
	// Remaining is an estimation based on the elapsed time, zero when unknown.
	Remaining time.Duration
	Details   map[string]any
}

type Callback func(event Event)

// WithTracking attaches callback to ctx. Trackers created from the returned
// context emit their events through it.
func WithTracking(ctx context.Context, callback Callback) context.Context {
	ctx = context.WithValue(ctx, startTimeKey, time.Now())
	ctx = context.WithValue(ctx, callbackKey, callback)
	return ctx
}

type Tracker struct {
	startTime time.Time
	callback  Callback
}

func NewTracker(ctx context.Context) *Tracker {
	startTime, _ := ctx.Value(startTimeKey).(time.Time)
	callback, _ := ctx.Value(callbackKey).(Callback)

	if startTime.IsZero() {
		startTime = time.Now()
	}

	return &Tracker{
		startTime: startTime,
		callback:  callback,
	}
}

// Emit sends an event for the current/total step of phase.
func (t *Tracker) Emit(phase Phase, step string, current, total int, details map[string]any) {
	if t.callback == nil {
		return
	}

	var ratio float64
	if total > 0 {
		ratio = float64(current) / float64(total)
	}

	elapsed := time.Since(t.startTime)

	var remaining time.Duration
	if ratio > 0 && ratio < 1.0 {
		remaining = time.Duration(float64(elapsed)/ratio) - elapsed
	}

	t.callback(Event{
		Phase:     phase,
		Step:      step,
		Current:   current,
		Total:     total,
		Progress:  ratio,
		Elapsed:   elapsed,
		Remaining: remaining,
		Details:   details,
	})
}

// Channel returns a buffered channel of events and the callback feeding it.
// Events are dropped when the channel is full.
func Channel() (<-chan Event, Callback) {
	ch := make(chan Event, 10)

	callback := func(event Event) {
		select {
		case ch <- event:
		default:
		}
	}

	return ch, callback
}
