package report

import (
	"context"
	"log/slog"

	"github.com/sourcegraph/conc/pool"

	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/immune"
)

// Multi 把统计量同时发送给多个 reporter，等待全部完成后返回合并的错误
type Multi []immune.Reporter

func (m Multi) Report(ctx context.Context, metrics domain.GenerationMetrics) error {
	p := pool.New().WithErrors()
	for _, r := range m {
		if r == nil {
			continue
		}
		p.Go(func() error {
			return r.Report(ctx, metrics)
		})
	}
	return p.Wait()
}

// LogReporter 把每一代的统计量写到日志中
type LogReporter struct {
	logger *slog.Logger
}

func NewLogReporter(logger *slog.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

func (r *LogReporter) Report(ctx context.Context, metrics domain.GenerationMetrics) error {
	r.logger.InfoContext(ctx, "迭代统计",
		"runID", metrics.RunID,
		"generation", metrics.Generation,
		"minFitness", metrics.MinFitness,
		"avgFitness", metrics.AvgFitness,
		"avgAffinity", metrics.AvgAffinity,
	)
	return nil
}

// MetricsStore 持久化每一代统计量的存储
type MetricsStore interface {
	InsertGenerationMetrics(metrics *domain.GenerationMetrics) error
}

// RepositoryReporter 把统计量写入数据库，RunID 由 reporter 填充
type RepositoryReporter struct {
	store MetricsStore
	runID int64
}

func NewRepositoryReporter(store MetricsStore, runID int64) *RepositoryReporter {
	return &RepositoryReporter{store: store, runID: runID}
}

func (r *RepositoryReporter) Report(ctx context.Context, metrics domain.GenerationMetrics) error {
	metrics.RunID = r.runID
	return r.store.InsertGenerationMetrics(&metrics)
}
