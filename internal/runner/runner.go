package runner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/immune"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/queue"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/report"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/strategy"
)

// ErrStaleJob 消息中的任务与数据库中的运行记录不一致，或运行已经被处理过
var ErrStaleJob = errors.New("过期的优化任务")

// Store 运行一次优化所需的持久化操作，由 repository.Repository 实现
type Store interface {
	GetRunByID(id int64) (*domain.Run, error)
	GetDatasetByID(id int64) (*domain.Dataset, error)
	GetUserByID(id int64) (*domain.User, error)
	StartRun(run *domain.Run) error
	FinishRun(run *domain.Run) error
	InsertSolution(solution *domain.Solution) error
	report.MetricsStore
}

type Publisher interface {
	PublishJSON(ctx context.Context, queue string, v any) error
}

type Runner struct {
	store     Store
	publisher Publisher
	progress  redis.Cmdable
	workers   int
	logger    *slog.Logger

	progressExpiration time.Duration
	progressTimeout    time.Duration
}

type Option func(*Runner)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithProgress 每一代的统计量同时写入 redis，供接口查询运行进度
func WithProgress(client redis.Cmdable, expiration time.Duration, timeout time.Duration) Option {
	return func(r *Runner) {
		r.progress = client
		r.progressExpiration = expiration
		r.progressTimeout = timeout
	}
}

func WithWorkers(workers int) Option {
	return func(r *Runner) {
		r.workers = workers
	}
}

func New(store Store, publisher Publisher, opts ...Option) *Runner {
	r := &Runner{
		store:     store,
		publisher: publisher,
		workers:   1,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle 执行一个优化任务
//
// 任务对应的运行必须处于 queued 状态，否则返回 ErrStaleJob。优化失败时运行被标记为 failed 并返回错误，
// 成功时保存最终解并把运行标记为 succeeded。两种情况都会给提交者发送邮件通知
func (r *Runner) Handle(ctx context.Context, job domain.OptimizeJob) error {
	run, err := r.store.GetRunByID(job.RunID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: 运行 %d 不存在", ErrStaleJob, job.RunID)
		}
		return err
	}
	if run.JobID != job.JobID {
		return fmt.Errorf("%w: 运行 %d 的任务 ID 不匹配", ErrStaleJob, job.RunID)
	}

	if err := r.store.StartRun(run); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: 运行 %d 已经开始过", ErrStaleJob, run.ID)
		}
		return err
	}

	logger := r.logger.With("runID", run.ID, "jobID", run.JobID.String())
	logger.Info("收到优化任务", "datasetID", run.DatasetID, "parameters", run.Parameters)

	ds, result, optimizeErr := r.optimize(ctx, run, logger)
	if optimizeErr == nil {
		optimizeErr = r.store.InsertSolution(&domain.Solution{
			RunID:       run.ID,
			Assignments: result.Best.Assignment(),
			Fitness:     result.Best.Fitness,
		})
	}

	if optimizeErr != nil {
		run.Status = domain.RunStatusFailed
		run.Error = optimizeErr.Error()
		logger.Error("优化失败", "error", optimizeErr)
	} else {
		fitness := result.Best.Fitness
		run.Status = domain.RunStatusSucceeded
		run.BestFitness = &fitness
		logger.Info("优化完成", "bestFitness", fitness, "generations", len(result.Metrics))
	}

	if err := r.store.FinishRun(run); err != nil {
		return errors.Join(optimizeErr, err)
	}

	r.notify(ctx, run, ds, result, logger)

	return optimizeErr
}

func (r *Runner) optimize(ctx context.Context, run *domain.Run, logger *slog.Logger) (*domain.Dataset, *immune.Result, error) {
	ds, err := r.store.GetDatasetByID(run.DatasetID)
	if err != nil {
		return nil, nil, fmt.Errorf("读取数据集 %d 失败: %w", run.DatasetID, err)
	}

	set, err := strategy.Build(run.Parameters)
	if err != nil {
		return ds, nil, err
	}

	reporters := report.Multi{
		report.NewLogReporter(logger),
		report.NewRepositoryReporter(r.store, run.ID),
	}
	if r.progress != nil {
		reporters = append(reporters, report.NewRedisReporter(r.progress, run.ID, r.progressExpiration, r.progressTimeout))
	}

	opts := []immune.Option{
		immune.WithLogger(logger),
		immune.WithReporter(reporters),
	}
	if run.Parameters.Seed != 0 {
		opts = append(opts, immune.WithSeed(run.Parameters.Seed))
	}

	params := immune.Parameters{
		PopulationSize: run.Parameters.PopulationSize,
		Generations:    run.Parameters.Generations,
		Workers:        r.workers,
	}
	system, err := immune.New(params, ds, set.Clonator, set.Mutator, set.Selector, opts...)
	if err != nil {
		return ds, nil, err
	}
	defer system.Close()

	result, err := system.Optimize(ctx)
	if err != nil {
		return ds, nil, err
	}
	return ds, result, nil
}

// notify 邮件通知只是尽力而为，发送失败不影响运行结果
func (r *Runner) notify(ctx context.Context, run *domain.Run, ds *domain.Dataset, result *immune.Result, logger *slog.Logger) {
	user, err := r.store.GetUserByID(run.UserID)
	if err != nil {
		logger.Warn("无法获取运行提交者", "userID", run.UserID, "error", err)
		return
	}

	datasetName := fmt.Sprintf("#%d", run.DatasetID)
	if ds != nil {
		datasetName = ds.Name
	}

	msg := domain.MailMessage{To: user.Email}
	switch run.Status {
	case domain.RunStatusSucceeded:
		msg.Type = domain.MailTypeRunFinished
		msg.Data = domain.RunFinishedMailData{
			FullName:    user.FullName,
			RunID:       run.ID,
			DatasetName: datasetName,
			BestFitness: *run.BestFitness,
			Generations: len(result.Metrics),
		}
	default:
		msg.Type = domain.MailTypeRunFailed
		msg.Data = domain.RunFailedMailData{
			FullName:    user.FullName,
			RunID:       run.ID,
			DatasetName: datasetName,
			Error:       run.Error,
		}
	}

	// 任务可能因为关闭 worker 而取消，邮件仍然需要投递
	if err := r.publisher.PublishJSON(context.WithoutCancel(ctx), queue.EmailQueue, msg); err != nil {
		logger.Warn("无法投递通知邮件", "error", err)
	}
}
