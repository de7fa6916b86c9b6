package modeladapter

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/germanamz/contentcrew/pkg/apiclient"
	"github.com/germanamz/contentcrew/pkg/chats/chat"
	"github.com/germanamz/contentcrew/pkg/chats/message"
	"github.com/germanamz/contentcrew/pkg/modeladapter/usage"
	"github.com/germanamz/contentcrew/pkg/tools/toolbox"
)

var _ Completer = (*RateLimitedCompleter)(nil)

type tokenEntry struct {
	timestamp time.Time
	tokens    usage.TokenCount
}

// RateLimitOpts configures the RateLimitedCompleter.
type RateLimitOpts struct {
	InputTPM   int           // Input tokens per minute (0 = no limit).
	OutputTPM  int           // Output tokens per minute (0 = no limit).
	RPM        int           // Requests per minute (0 = no limit).
	MaxRetries int           // Max retries on 429 (default 3).
	BaseDelay  time.Duration // Initial backoff delay (default 1s).
}

// RateLimitedCompleter wraps a Completer with proactive TPM/RPM throttling
// over a one-minute sliding window and reactive 429 retry with exponential
// backoff and jitter.
type RateLimitedCompleter struct {
	inner      Completer
	opts       RateLimitOpts
	mu         sync.Mutex
	completeMu sync.Mutex
	window     []tokenEntry
	fallback   usage.Tracker

	nowFunc   func() time.Time
	sleepFunc func(ctx context.Context, d time.Duration) error
	randFunc  func() float64
}

// NewRateLimitedCompleter wraps a Completer with rate limiting.
func NewRateLimitedCompleter(inner Completer, opts RateLimitOpts) *RateLimitedCompleter {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}

	return &RateLimitedCompleter{
		inner:     inner,
		opts:      opts,
		nowFunc:   time.Now,
		sleepFunc: contextSleep,
		randFunc:  rand.Float64,
	}
}

// SetNowFunc overrides the time source (for testing).
func (r *RateLimitedCompleter) SetNowFunc(fn func() time.Time) { r.nowFunc = fn }

// SetSleepFunc overrides the sleep function (for testing).
func (r *RateLimitedCompleter) SetSleepFunc(fn func(ctx context.Context, d time.Duration) error) {
	r.sleepFunc = fn
}

// SetRandFunc overrides the jitter source (for testing).
func (r *RateLimitedCompleter) SetRandFunc(fn func() float64) { r.randFunc = fn }

func contextSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// pruneWindow drops entries older than one minute. Must be called with mu held.
func (r *RateLimitedCompleter) pruneWindow(now time.Time) {
	cutoff := now.Add(-time.Minute)
	i := 0
	for i < len(r.window) && !r.window[i].timestamp.After(cutoff) {
		i++
	}
	if i > 0 {
		r.window = append(r.window[:0:0], r.window[i:]...)
	}
}

// hasCapacity reports whether another request fits in the window. Must be
// called with mu held.
func (r *RateLimitedCompleter) hasCapacity() bool {
	var total usage.TokenCount
	for _, e := range r.window {
		total = total.Add(e.tokens)
	}

	inputOK := r.opts.InputTPM <= 0 || total.InputTokens < r.opts.InputTPM
	outputOK := r.opts.OutputTPM <= 0 || total.OutputTokens < r.opts.OutputTPM
	rpmOK := r.opts.RPM <= 0 || len(r.window) < r.opts.RPM

	return inputOK && outputOK && rpmOK
}

func (r *RateLimitedCompleter) waitForCapacity(ctx context.Context) error {
	if r.opts.InputTPM <= 0 && r.opts.OutputTPM <= 0 && r.opts.RPM <= 0 {
		return nil
	}

	const minWait = 10 * time.Millisecond

	for {
		r.mu.Lock()
		now := r.nowFunc()
		r.pruneWindow(now)
		if r.hasCapacity() {
			r.mu.Unlock()
			return nil
		}

		// The oldest entry leaving the window is the earliest moment capacity frees up.
		var waitDur time.Duration
		if len(r.window) > 0 {
			waitDur = r.window[0].timestamp.Add(time.Minute).Sub(now)
		}
		r.mu.Unlock()

		if err := r.sleepFunc(ctx, max(waitDur, minWait)); err != nil {
			return err
		}
	}
}

func (r *RateLimitedCompleter) record(tc usage.TokenCount) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.window = append(r.window, tokenEntry{timestamp: r.nowFunc(), tokens: tc})
}

// jitter applies ±25% random jitter to a duration.
func (r *RateLimitedCompleter) jitter(d time.Duration) time.Duration {
	factor := 0.75 + r.randFunc()*0.5 //nolint:mnd // jitter range: ±25%
	return time.Duration(float64(d) * factor)
}

// Complete implements Completer with proactive TPM/RPM throttling and 429 retry.
func (r *RateLimitedCompleter) Complete(ctx context.Context, c *chat.Chat, tools []toolbox.Tool) (message.Message, error) {
	if err := r.waitForCapacity(ctx); err != nil {
		return message.Message{}, err
	}

	var lastErr error
	for attempt := range r.opts.MaxRetries + 1 {
		msg, err := r.completeOnce(ctx, c, tools)
		if err == nil {
			if sleepErr := r.adaptFromServerInfo(ctx); sleepErr != nil {
				return message.Message{}, sleepErr
			}
			return msg, nil
		}

		var rle *apiclient.RateLimitError
		if !errors.As(err, &rle) {
			return message.Message{}, err
		}

		lastErr = err

		if attempt >= r.opts.MaxRetries {
			break
		}

		backoff := r.jitter(max(
			r.opts.BaseDelay*time.Duration(math.Pow(2, float64(attempt))), //nolint:mnd // exponential backoff
			rle.RetryAfter,
		))

		if err := r.sleepFunc(ctx, backoff); err != nil {
			return message.Message{}, err
		}
	}

	return message.Message{}, lastErr
}

// completeOnce calls the inner completer and records the tokens it consumed.
func (r *RateLimitedCompleter) completeOnce(ctx context.Context, c *chat.Chat, tools []toolbox.Tool) (message.Message, error) {
	r.completeMu.Lock()
	defer r.completeMu.Unlock()

	ur, hasUsage := r.inner.(UsageReporter)

	var before usage.TokenCount
	if hasUsage {
		before = ur.UsageTracker().Total()
	}

	msg, err := r.inner.Complete(ctx, c, tools)
	if err == nil {
		var spent usage.TokenCount
		if hasUsage {
			after := ur.UsageTracker().Total()
			spent = usage.TokenCount{
				InputTokens:  after.InputTokens - before.InputTokens,
				OutputTokens: after.OutputTokens - before.OutputTokens,
			}
		}
		r.record(spent)
	}

	return msg, err
}

// adaptFromServerInfo sleeps until the provider's reset time when the last
// response reported near-zero remaining capacity.
func (r *RateLimitedCompleter) adaptFromServerInfo(ctx context.Context) error {
	reporter, ok := r.inner.(RateLimitInfoReporter)
	if !ok {
		return nil
	}

	info := reporter.LastRateLimitInfo()
	if info == nil {
		return nil
	}

	now := r.nowFunc()
	var sleepUntil time.Time

	if info.RemainingRequests <= 1 && info.RequestsReset.After(now) {
		sleepUntil = info.RequestsReset
	}

	if info.RemainingTokens <= 1 && info.TokensReset.After(now) && info.TokensReset.After(sleepUntil) {
		sleepUntil = info.TokensReset
	}

	if sleepUntil.IsZero() {
		return nil
	}

	return r.sleepFunc(ctx, sleepUntil.Sub(now))
}

// UsageTracker forwards to the inner completer if it reports usage.
func (r *RateLimitedCompleter) UsageTracker() *usage.Tracker {
	if ur, ok := r.inner.(UsageReporter); ok {
		return ur.UsageTracker()
	}
	return &r.fallback
}

// ModelName forwards to the inner completer if it reports usage.
func (r *RateLimitedCompleter) ModelName() string {
	if ur, ok := r.inner.(UsageReporter); ok {
		return ur.ModelName()
	}
	return ""
}
