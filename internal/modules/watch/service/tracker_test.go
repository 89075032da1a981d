package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pve_client/internal/models"
)

func TestAnalyzerTrackerStartsOnePoll(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	type ready struct {
		id  int64
		res models.AnalyzerResult
	}
	got := make(chan ready, 2)
	api := &fakeAnalyzerAPI{readyAt: 2}
	tr := NewAnalyzerTracker(h, api, 5*time.Millisecond, func(id int64, res models.AnalyzerResult) {
		got <- ready{id, res}
	}, nil)
	defer tr.Close()

	require.True(t, tr.Track(7))
	assert.False(t, tr.Track(7), "second track while polling")
	assert.False(t, tr.Track(0))

	select {
	case r := <-got:
		assert.Equal(t, int64(7), r.id)
		assert.Equal(t, 1.4, r.res["sharpe"])
	case <-time.After(2 * time.Second):
		t.Fatal("analyzer result was not delivered")
	}

	require.Eventually(t, func() bool { return !h.Watching(AnalyzerKey(7)) }, time.Second, 5*time.Millisecond)
	assert.Empty(t, got)
}

func TestAnalyzerTrackerClose(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	tr := NewAnalyzerTracker(h, &fakeAnalyzerAPI{readyAt: 1 << 30}, time.Hour, nil, nil)
	require.True(t, tr.Track(7))
	require.True(t, h.Watching(AnalyzerKey(7)))

	tr.Close()
	require.Eventually(t, func() bool { return !h.Watching(AnalyzerKey(7)) }, time.Second, 5*time.Millisecond)
	assert.False(t, tr.Track(7))
}
