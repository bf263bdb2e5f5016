package immune

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/antibody"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/domain"
)

// Evaluate 并行计算种群中每个个体的适应度，返回第一个适应度最小的个体以及平均适应度
//
// 任意一个个体计算失败都会取消整批任务并返回 ErrEvaluation
func (s *System) Evaluate(ctx context.Context, population []*antibody.Antibody) (*antibody.Antibody, float64, error) {
	if len(population) == 0 {
		return nil, 0, fmt.Errorf("%w: 种群为空", domain.ErrEvaluation)
	}

	if err := s.evaluateBatch(ctx, population); err != nil {
		return nil, 0, err
	}

	best := population[0]
	fitness := make([]float64, len(population))
	for i, a := range population {
		fitness[i] = a.Fitness
		if a.Fitness < best.Fitness {
			best = a
		}
	}

	return best, stat.Mean(fitness, nil), nil
}

// EvaluateClones 把所有克隆展平后一次性评估，再按每组的大小还原成原来的分组结构
func (s *System) EvaluateClones(ctx context.Context, clones [][]*antibody.Antibody) ([][]*antibody.Antibody, error) {
	manifest := make([]int, len(clones))
	total := 0
	for i, group := range clones {
		manifest[i] = len(group)
		total += len(group)
	}

	flat := make([]*antibody.Antibody, 0, total)
	for _, group := range clones {
		flat = append(flat, group...)
	}

	if err := s.evaluateBatch(ctx, flat); err != nil {
		return nil, err
	}

	regrouped := make([][]*antibody.Antibody, len(manifest))
	offset := 0
	for i, size := range manifest {
		regrouped[i] = flat[offset : offset+size : offset+size]
		offset += size
	}
	return regrouped, nil
}

func (s *System) evaluateBatch(ctx context.Context, batch []*antibody.Antibody) error {
	group, gctx := s.pool.GroupContext(ctx)

	for i, a := range batch {
		group.Submit(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%w: 计算第 %d 个个体的代价时发生 panic: %v", domain.ErrEvaluation, i, r)
				}
			}()

			if err := gctx.Err(); err != nil {
				return err
			}

			cost, err := s.cost(a)
			if err != nil {
				return fmt.Errorf("%w: 计算第 %d 个个体的代价失败: %w", domain.ErrEvaluation, i, err)
			}
			a.Fitness = cost
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return err
	}
	// 外部取消时被跳过的任务不会产生错误
	return ctx.Err()
}
