package immune

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/alitto/pond"

	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/antibody"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/strategy"
)

type System struct {
	parameters Parameters
	ds         *domain.Dataset

	clonator strategy.Clonator
	mutator  strategy.Mutator
	selector strategy.Selector

	pool     *pond.WorkerPool
	rng      *rand.Rand // 只在迭代所在的 goroutine 中使用
	logger   *slog.Logger
	reporter Reporter

	cost func(a *antibody.Antibody) (float64, error)
}

type Option func(s *System)

func WithLogger(logger *slog.Logger) Option {
	return func(s *System) {
		s.logger = logger
	}
}

func WithReporter(reporter Reporter) Option {
	return func(s *System) {
		s.reporter = reporter
	}
}

// WithSeed 固定随机数种子，相同的种子和参数会得到相同的结果，与 worker 数量无关
func WithSeed(seed int64) Option {
	return func(s *System) {
		s.rng = rand.New(rand.NewSource(seed))
	}
}

func New(parameters Parameters, ds *domain.Dataset, clonator strategy.Clonator, mutator strategy.Mutator, selector strategy.Selector, opts ...Option) (*System, error) {
	if err := parameters.validate(); err != nil {
		return nil, err
	}
	if clonator == nil || mutator == nil || selector == nil {
		return nil, fmt.Errorf("%w: 克隆、变异、选择策略都必须提供", domain.ErrConfiguration)
	}
	if ds == nil || len(ds.Families) == 0 {
		return nil, fmt.Errorf("%w: 数据集中没有家庭", domain.ErrDataset)
	}
	if parameters.Workers == 0 {
		parameters.Workers = 1
	}

	s := &System{
		parameters: parameters,
		ds:         ds,
		clonator:   clonator,
		mutator:    mutator,
		selector:   selector,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cost = func(a *antibody.Antibody) (float64, error) {
		return a.Cost(s.ds)
	}

	s.pool = pond.New(parameters.Workers, parameters.PopulationSize*2)

	return s, nil
}

// Close 停止 worker pool，等待正在执行的任务结束
func (s *System) Close() {
	s.pool.StopAndWait()
}

// Optimize 执行完整的迭代过程
//
// 每一代依次进行：评估 -> 克隆 -> 变异 -> 评估克隆 -> 择优替换 -> 计算亲和度 -> 选择 -> 补充，
// ctx 在每一代开始前检查，取消时直接返回 ctx 的错误
func (s *System) Optimize(ctx context.Context) (*Result, error) {
	s.logger.Info("开始优化",
		"families", len(s.ds.Families),
		"populationSize", s.parameters.PopulationSize,
		"generations", s.parameters.Generations,
		"workers", s.parameters.Workers,
		"clonator", s.clonator.Name(),
		"mutator", s.mutator.Name(),
		"selector", s.selector.Name(),
	)

	population, err := s.GeneratePopulation(ctx, s.parameters.PopulationSize)
	if err != nil {
		return nil, err
	}
	Affinity(population)

	result := &Result{Metrics: make([]domain.GenerationMetrics, 0, s.parameters.Generations)}

	for gen := 1; gen <= s.parameters.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		best, mean, err := s.Evaluate(ctx, population)
		if err != nil {
			return nil, err
		}
		// 选择可能会淘汰这个个体
		result.Best = best.Clone()
		s.logger.Debug("评估完成", "generation", gen, "minFitness", best.Fitness, "avgFitness", mean)

		clones, err := s.clonator.Clone(population)
		if err != nil {
			return nil, err
		}
		if err := checkShape(population, clones); err != nil {
			return nil, err
		}

		clones, err = s.mutator.Mutate(clones, s.ds, s.rng)
		if err != nil {
			return nil, err
		}
		if err := checkShape(population, clones); err != nil {
			return nil, err
		}

		clones, err = s.EvaluateClones(ctx, clones)
		if err != nil {
			return nil, err
		}
		s.logger.Debug("克隆评估完成", "generation", gen, "clones", countClones(clones))

		population = ReplaceIfBetter(population, clones)
		avgAffinity := Affinity(population)

		population = s.selector.Select(population)
		selected := len(population)

		population, err = s.Replenish(ctx, population)
		if err != nil {
			return nil, err
		}

		metrics := domain.GenerationMetrics{
			Generation:  gen,
			MinFitness:  best.Fitness,
			AvgFitness:  mean,
			AvgAffinity: avgAffinity,
		}
		result.Metrics = append(result.Metrics, metrics)

		s.logger.Info("完成一代迭代",
			"generation", gen,
			"minFitness", metrics.MinFitness,
			"avgFitness", metrics.AvgFitness,
			"avgAffinity", metrics.AvgAffinity,
			"selected", selected,
		)

		if s.reporter != nil {
			if err := s.reporter.Report(ctx, metrics); err != nil {
				s.logger.Warn("上报迭代统计量失败", "generation", gen, "error", err)
			}
		}
	}

	s.logger.Info("优化结束", "bestFitness", result.Best.Fitness)

	return result, nil
}

// GeneratePopulation 并行生成 n 个随机个体
//
// 每个任务使用独立的随机数生成器，种子按提交顺序从主随机数生成器中取得，因此结果与调度顺序无关
func (s *System) GeneratePopulation(ctx context.Context, n int) ([]*antibody.Antibody, error) {
	population := make([]*antibody.Antibody, n)
	group, gctx := s.pool.GroupContext(ctx)

	for i := 0; i < n; i++ {
		seed := s.rng.Int63()
		group.Submit(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%w: 生成第 %d 个个体时发生 panic: %v", domain.ErrEvaluation, i, r)
				}
			}()

			if err := gctx.Err(); err != nil {
				return err
			}

			a, err := antibody.Generate(s.ds, rand.New(rand.NewSource(seed)))
			if err != nil {
				return fmt.Errorf("%w: 生成第 %d 个个体失败: %w", domain.ErrEvaluation, i, err)
			}
			population[i] = a
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return population, nil
}

// Replenish 生成新的个体把种群补充到设定的大小
func (s *System) Replenish(ctx context.Context, population []*antibody.Antibody) ([]*antibody.Antibody, error) {
	missing := s.parameters.PopulationSize - len(population)
	if missing <= 0 {
		return population, nil
	}

	fresh, err := s.GeneratePopulation(ctx, missing)
	if err != nil {
		return nil, err
	}
	return append(population, fresh...), nil
}

// ReplaceIfBetter 对每个个体，如果它的克隆中最好的一个严格优于它，就用该克隆替换
func ReplaceIfBetter(population []*antibody.Antibody, clones [][]*antibody.Antibody) []*antibody.Antibody {
	next := make([]*antibody.Antibody, len(population))
	for i, a := range population {
		next[i] = a
		if i >= len(clones) {
			continue
		}
		for _, c := range clones[i] {
			if c.Fitness < next[i].Fitness {
				next[i] = c
			}
		}
	}
	return next
}

func checkShape(population []*antibody.Antibody, clones [][]*antibody.Antibody) error {
	if len(clones) != len(population) {
		return fmt.Errorf("%w: 克隆分组数 %d 与种群大小 %d 不一致", domain.ErrEvaluation, len(clones), len(population))
	}
	for i, group := range clones {
		if len(group) == 0 {
			return fmt.Errorf("%w: 第 %d 个个体没有克隆", domain.ErrEvaluation, i)
		}
	}
	return nil
}

func countClones(clones [][]*antibody.Antibody) int {
	n := 0
	for _, group := range clones {
		n += len(group)
	}
	return n
}
