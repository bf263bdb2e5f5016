package immune

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/antibody"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/strategy"
)

func newDataset(rng *rand.Rand, n int) *domain.Dataset {
	ds := &domain.Dataset{Families: make([]domain.Family, n)}
	for i := range ds.Families {
		perm := rng.Perm(antibody.NumDays)
		var choices [domain.NumChoices]int
		for j := range choices {
			choices[j] = perm[j] + 1
		}
		ds.Families[i] = domain.Family{ID: i, Size: rng.Intn(7) + 2, Choices: choices}
	}
	return ds
}

func newSystem(t *testing.T, parameters Parameters, ds *domain.Dataset, opts ...Option) *System {
	t.Helper()

	set, err := strategy.Build(domain.RunParameters{
		Clonator:          "basic",
		Mutator:           "basic",
		Selector:          "basic",
		AffinityThreshold: 1e9,
		SelectType:        strategy.SelectPositive,
	})
	require.NoError(t, err)

	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	s, err := New(parameters, ds, set.Clonator, set.Mutator, set.Selector, opts...)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func withFitness(values ...float64) []*antibody.Antibody {
	population := make([]*antibody.Antibody, len(values))
	for i, v := range values {
		population[i] = &antibody.Antibody{Fitness: v}
	}
	return population
}

func TestAffinity(t *testing.T) {
	ds := &domain.Dataset{Families: make([]domain.Family, 4)}
	for i := range ds.Families {
		ds.Families[i] = domain.Family{ID: i, Size: 1}
	}

	var population []*antibody.Antibody
	for _, assignment := range [][]int{{1, 2, 3, 4}, {1, 2, 5, 6}, {1, 7, 8, 9}} {
		a, err := antibody.FromAssignment(ds, assignment)
		require.NoError(t, err)
		a.Affinity = 100
		population = append(population, a)
	}

	avg := Affinity(population)
	assert.Equal(t, 3, population[0].Affinity)
	assert.Equal(t, 3, population[1].Affinity)
	assert.Equal(t, 2, population[2].Affinity)
	assert.InDelta(t, 8.0/3.0, avg, 1e-12)

	// 重复计算不会累加
	assert.InDelta(t, avg, Affinity(population), 1e-12)
	assert.Equal(t, 0.0, Affinity(nil))
}

func TestReplaceIfBetter(t *testing.T) {
	population := withFitness(10, 20, 30)
	clones := [][]*antibody.Antibody{
		withFitness(11, 12),
		withFitness(25, 15, 15),
		withFitness(30),
	}

	next := ReplaceIfBetter(population, clones)
	require.Len(t, next, 3)
	assert.Same(t, population[0], next[0])
	assert.Same(t, clones[1][1], next[1], "应当选择第一个最优克隆")
	assert.Same(t, population[2], next[2], "相等时保留原个体")

	for i := range next {
		assert.LessOrEqual(t, next[i].Fitness, population[i].Fitness)
	}
}

func TestEvaluate(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ds := newDataset(rng, 300)
	s := newSystem(t, Parameters{PopulationSize: 8, Generations: 1, Workers: 4}, ds, WithSeed(42))

	population, err := s.GeneratePopulation(context.Background(), 8)
	require.NoError(t, err)

	best, mean, err := s.Evaluate(context.Background(), population)
	require.NoError(t, err)

	sum := 0.0
	for _, a := range population {
		expected, err := a.Cost(ds)
		require.NoError(t, err)
		assert.Equal(t, expected, a.Fitness)
		assert.GreaterOrEqual(t, a.Fitness, best.Fitness)
		sum += a.Fitness
	}
	assert.InDelta(t, sum/8, mean, 1e-6)
}

func TestEvaluateReturnsFirstBest(t *testing.T) {
	s := newSystem(t, Parameters{PopulationSize: 4, Generations: 1}, newDataset(rand.New(rand.NewSource(1)), 10))
	values := map[*antibody.Antibody]float64{}
	population := withFitness(0, 0, 0, 0)
	for i, v := range []float64{5, 3, 3, 4} {
		values[population[i]] = v
	}
	s.cost = func(a *antibody.Antibody) (float64, error) { return values[a], nil }

	best, mean, err := s.Evaluate(context.Background(), population)
	require.NoError(t, err)
	assert.Same(t, population[1], best)
	assert.InDelta(t, 3.75, mean, 1e-12)
}

func TestEvaluateClonesKeepsGroups(t *testing.T) {
	s := newSystem(t, Parameters{PopulationSize: 4, Generations: 1, Workers: 3}, newDataset(rand.New(rand.NewSource(1)), 10))
	s.cost = func(a *antibody.Antibody) (float64, error) { return a.Fitness + 1, nil }

	clones := [][]*antibody.Antibody{
		withFitness(1, 2, 3),
		withFitness(10),
		withFitness(20, 30),
	}

	regrouped, err := s.EvaluateClones(context.Background(), clones)
	require.NoError(t, err)
	require.Len(t, regrouped, 3)
	for i, group := range regrouped {
		require.Len(t, group, len(clones[i]))
		for j, c := range group {
			assert.Same(t, clones[i][j], c)
		}
	}
	assert.Equal(t, 2.0, regrouped[0][0].Fitness)
	assert.Equal(t, 31.0, regrouped[2][1].Fitness)
}

func TestEvaluatePropagatesWorkerFailure(t *testing.T) {
	s := newSystem(t, Parameters{PopulationSize: 4, Generations: 1, Workers: 2}, newDataset(rand.New(rand.NewSource(1)), 10))
	population := withFitness(1, 2, 3, 4)

	boom := errors.New("boom")
	s.cost = func(a *antibody.Antibody) (float64, error) {
		if a == population[2] {
			return 0, boom
		}
		return a.Fitness, nil
	}
	_, _, err := s.Evaluate(context.Background(), population)
	require.ErrorIs(t, err, domain.ErrEvaluation)
	require.ErrorIs(t, err, boom)

	s.cost = func(a *antibody.Antibody) (float64, error) {
		if a == population[1] {
			panic("cost exploded")
		}
		return a.Fitness, nil
	}
	_, err = s.EvaluateClones(context.Background(), [][]*antibody.Antibody{population})
	require.ErrorIs(t, err, domain.ErrEvaluation)
}

func TestGeneratePopulationPropagatesFailure(t *testing.T) {
	ds := newDataset(rand.New(rand.NewSource(5)), 60)
	// 超过每天人数上限的家庭无法安排到任何一天
	ds.Families[30].Size = antibody.HardCeiling + 1

	s := newSystem(t, Parameters{PopulationSize: 6, Generations: 2, Workers: 3}, ds, WithSeed(5))

	population, err := s.GeneratePopulation(context.Background(), 6)
	require.ErrorIs(t, err, domain.ErrEvaluation)
	require.ErrorIs(t, err, domain.ErrDataset)
	assert.Nil(t, population)

	result, err := s.Optimize(context.Background())
	require.ErrorIs(t, err, domain.ErrEvaluation)
	require.ErrorIs(t, err, domain.ErrDataset)
	assert.Nil(t, result)
}

func TestReplenish(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	ds := newDataset(rng, 100)
	s := newSystem(t, Parameters{PopulationSize: 6, Generations: 1, Workers: 2}, ds, WithSeed(3))

	population, err := s.GeneratePopulation(context.Background(), 2)
	require.NoError(t, err)

	replenished, err := s.Replenish(context.Background(), population)
	require.NoError(t, err)
	require.Len(t, replenished, 6)
	assert.Same(t, population[0], replenished[0])
	assert.Same(t, population[1], replenished[1])
	for _, a := range replenished {
		require.NotNil(t, a)
		assert.Equal(t, 100, a.Len())
	}

	full, err := s.Replenish(context.Background(), replenished)
	require.NoError(t, err)
	assert.Len(t, full, 6)
}

func TestNewRejectsInvalidParameters(t *testing.T) {
	ds := newDataset(rand.New(rand.NewSource(1)), 10)
	set, err := strategy.Build(domain.RunParameters{Clonator: "basic", Mutator: "basic", Selector: "basic"})
	require.NoError(t, err)

	_, err = New(Parameters{PopulationSize: 0, Generations: 1}, ds, set.Clonator, set.Mutator, set.Selector)
	require.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = New(Parameters{PopulationSize: 1, Generations: 0}, ds, set.Clonator, set.Mutator, set.Selector)
	require.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = New(Parameters{PopulationSize: 1, Generations: 1, Workers: -1}, ds, set.Clonator, set.Mutator, set.Selector)
	require.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = New(Parameters{PopulationSize: 1, Generations: 1}, ds, nil, set.Mutator, set.Selector)
	require.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = New(Parameters{PopulationSize: 1, Generations: 1}, &domain.Dataset{}, set.Clonator, set.Mutator, set.Selector)
	require.ErrorIs(t, err, domain.ErrDataset)
}

func TestOptimize(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ds := newDataset(rng, 500)

	var reported []domain.GenerationMetrics
	reporter := ReporterFunc(func(ctx context.Context, metrics domain.GenerationMetrics) error {
		reported = append(reported, metrics)
		return errors.New("上报失败不影响优化")
	})

	s := newSystem(t, Parameters{PopulationSize: 6, Generations: 3, Workers: 4}, ds, WithSeed(42), WithReporter(reporter))

	result, err := s.Optimize(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result.Best)
	require.Len(t, result.Metrics, 3)
	assert.Equal(t, result.Metrics, reported)

	for i, m := range result.Metrics {
		assert.Equal(t, i+1, m.Generation)
		assert.LessOrEqual(t, m.MinFitness, m.AvgFitness)
	}
	assert.Equal(t, result.Metrics[2].MinFitness, result.Best.Fitness)

	cost, err := result.Best.Cost(ds)
	require.NoError(t, err)
	assert.Equal(t, cost, result.Best.Fitness)
	for day := 0; day < antibody.NumDays; day++ {
		assert.LessOrEqual(t, result.Best.Occupancy(day), antibody.HardCeiling)
	}
}

func TestOptimizeIsReproducibleWithSeed(t *testing.T) {
	ds := newDataset(rand.New(rand.NewSource(9)), 300)

	run := func(workers int) *Result {
		s := newSystem(t, Parameters{PopulationSize: 5, Generations: 2, Workers: workers}, ds, WithSeed(2024))
		result, err := s.Optimize(context.Background())
		require.NoError(t, err)
		return result
	}

	first := run(1)
	second := run(4)
	assert.Equal(t, first.Metrics, second.Metrics)
	assert.Equal(t, first.Best.Assignment(), second.Best.Assignment())
}

func TestOptimizeStopsWhenCancelled(t *testing.T) {
	ds := newDataset(rand.New(rand.NewSource(9)), 100)
	s := newSystem(t, Parameters{PopulationSize: 4, Generations: 5}, ds)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := s.Optimize(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, result)
}
