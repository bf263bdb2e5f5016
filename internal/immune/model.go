package immune

import (
	"context"
	"fmt"

	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/antibody"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/domain"
)

// Parameters 免疫算法参数
type Parameters struct {
	PopulationSize int // 种群大小
	Generations    int // 迭代次数
	Workers        int // 并行计算代价与生成个体的 goroutine 数量，为 0 时取 1
}

func (p Parameters) validate() error {
	if p.PopulationSize <= 0 {
		return fmt.Errorf("%w: 种群大小必须为正数，当前为 %d", domain.ErrConfiguration, p.PopulationSize)
	}
	if p.Generations <= 0 {
		return fmt.Errorf("%w: 迭代次数必须为正数，当前为 %d", domain.ErrConfiguration, p.Generations)
	}
	if p.Workers < 0 {
		return fmt.Errorf("%w: worker 数量不能为负数，当前为 %d", domain.ErrConfiguration, p.Workers)
	}
	return nil
}

// Result 一次优化的结果
//
// Best 是最后一代在克隆之前评估得到的最优个体（深拷贝），不是整个过程中出现过的最优个体
type Result struct {
	Best    *antibody.Antibody
	Metrics []domain.GenerationMetrics
}

// Reporter 每一代结束时接收统计量
type Reporter interface {
	Report(ctx context.Context, metrics domain.GenerationMetrics) error
}

type ReporterFunc func(ctx context.Context, metrics domain.GenerationMetrics) error

func (f ReporterFunc) Report(ctx context.Context, metrics domain.GenerationMetrics) error {
	return f(ctx, metrics)
}
