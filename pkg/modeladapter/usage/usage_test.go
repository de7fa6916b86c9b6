package usage

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracker_Empty(t *testing.T) {
	var tr Tracker

	_, ok := tr.Last()
	assert.False(t, ok)
	assert.Equal(t, TokenCount{}, tr.Total())
	assert.Empty(t, tr.ByAgent())
}

func TestTracker_Total(t *testing.T) {
	var tr Tracker
	tr.Add(TokenCount{InputTokens: 10, OutputTokens: 5})
	tr.Add(TokenCount{InputTokens: 20, OutputTokens: 15})

	last, ok := tr.Last()
	assert.True(t, ok)
	assert.Equal(t, 35, last.Total())
	assert.Equal(t, TokenCount{InputTokens: 30, OutputTokens: 20}, tr.Total())
}

func TestTracker_ByAgent(t *testing.T) {
	var tr Tracker
	tr.Record("Senior Research Analyst", TokenCount{InputTokens: 100, OutputTokens: 20})
	tr.Record("Senior Research Analyst", TokenCount{InputTokens: 300, OutputTokens: 40})
	tr.Record("Content Writer", TokenCount{InputTokens: 500, OutputTokens: 900})
	tr.Add(TokenCount{InputTokens: 1})

	assert.Equal(t, map[string]TokenCount{
		"Senior Research Analyst": {InputTokens: 400, OutputTokens: 60},
		"Content Writer":          {InputTokens: 500, OutputTokens: 900},
		"":                        {InputTokens: 1},
	}, tr.ByAgent())
	assert.Equal(t, 1761, tr.Total().Total())
}

func TestTracker_Concurrent(t *testing.T) {
	var tr Tracker
	var wg sync.WaitGroup

	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Record("writer", TokenCount{InputTokens: 1, OutputTokens: 1})
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, tr.Total().Total())
	assert.Equal(t, 100, tr.ByAgent()["writer"].Total())
}
