// Package usage accumulates token counts reported by LLM calls, per run and
// per agent.
package usage

import "sync"

// TokenCount holds input and output token counts.
type TokenCount struct {
	InputTokens  int
	OutputTokens int
}

// Total returns the sum of input and output tokens.
func (tc TokenCount) Total() int {
	return tc.InputTokens + tc.OutputTokens
}

// Add returns the element-wise sum of tc and other.
func (tc TokenCount) Add(other TokenCount) TokenCount {
	return TokenCount{
		InputTokens:  tc.InputTokens + other.InputTokens,
		OutputTokens: tc.OutputTokens + other.OutputTokens,
	}
}

type entry struct {
	agent string
	count TokenCount
}

// Tracker records the token count of every call. It is safe for concurrent
// use.
type Tracker struct {
	mu      sync.Mutex
	entries []entry
}

// Add records a call not attributed to any agent.
func (t *Tracker) Add(tc TokenCount) {
	t.Record("", tc)
}

// Record records a call made on behalf of agent.
func (t *Tracker) Record(agent string, tc TokenCount) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = append(t.entries, entry{agent: agent, count: tc})
}

// Last returns the most recent call's count; false when nothing was recorded.
func (t *Tracker) Last() (TokenCount, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.entries) == 0 {
		return TokenCount{}, false
	}
	return t.entries[len(t.entries)-1].count, true
}

func (t *Tracker) Total() TokenCount {
	t.mu.Lock()
	defer t.mu.Unlock()

	var total TokenCount
	for _, e := range t.entries {
		total = total.Add(e.count)
	}
	return total
}

// ByAgent sums the counts per agent role. Unattributed calls are keyed "".
func (t *Tracker) ByAgent() map[string]TokenCount {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]TokenCount)
	for _, e := range t.entries {
		out[e.agent] = out[e.agent].Add(e.count)
	}
	return out
}
