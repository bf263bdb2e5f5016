package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fitness(v float64) *float64 {
	return &v
}

func TestSummarizeRuns(t *testing.T) {
	runs := []*Run{
		{ID: 5, Status: RunStatusQueued},
		{ID: 4, Status: RunStatusSucceeded, BestFitness: fitness(90000)},
		{ID: 3, Status: RunStatusFailed, BestFitness: fitness(1)},
		{ID: 2, Status: RunStatusSucceeded, BestFitness: fitness(75000.5)},
		{ID: 1, Status: RunStatusSucceeded, BestFitness: fitness(75000.5)},
	}

	summary := SummarizeRuns(runs)
	assert.Equal(t, 5, summary.Total)
	assert.Equal(t, map[RunStatus]int{
		RunStatusQueued:    1,
		RunStatusRunning:   0,
		RunStatusSucceeded: 3,
		RunStatusFailed:    1,
	}, summary.Counts)

	// 失败运行的代价不参与比较，代价相同时保留先出现的运行
	require.NotNil(t, summary.BestFitness)
	assert.Equal(t, 75000.5, *summary.BestFitness)
	assert.Equal(t, int64(2), summary.BestRunID)

	*runs[3].BestFitness = 0
	assert.Equal(t, 75000.5, *summary.BestFitness)
}

func TestSummarizeRunsEmpty(t *testing.T) {
	summary := SummarizeRuns(nil)
	assert.Zero(t, summary.Total)
	assert.Nil(t, summary.BestFitness)
	assert.Len(t, summary.Counts, 4)
}

func TestNewUserProfile(t *testing.T) {
	user := &User{ID: 1, Username: "zhangsan"}
	runs := []*Run{{ID: 3}, {ID: 2}, {ID: 1}}

	profile := NewUserProfile(user, runs, 2)
	assert.Same(t, user, profile.User)
	assert.Equal(t, 3, profile.Runs.Total)
	require.Len(t, profile.RecentRuns, 2)
	assert.Equal(t, int64(3), profile.RecentRuns[0].ID)

	assert.Len(t, NewUserProfile(user, runs, 10).RecentRuns, 3)
	assert.Empty(t, NewUserProfile(user, nil, 10).RecentRuns)
}
