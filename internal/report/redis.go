package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/domain"
)

// ErrNoProgress 运行还没有上报过任何一代，或者进度已经过期
var ErrNoProgress = errors.New("没有运行进度")

func ProgressKey(runID int64) string {
	return fmt.Sprintf("run_%d_progress", runID)
}

// RedisReporter 把最新一代的统计量写到 redis 中，供接口查询运行进度
type RedisReporter struct {
	client     redis.Cmdable
	runID      int64
	expiration time.Duration
	timeout    time.Duration
}

func NewRedisReporter(client redis.Cmdable, runID int64, expiration time.Duration, timeout time.Duration) *RedisReporter {
	return &RedisReporter{
		client:     client,
		runID:      runID,
		expiration: expiration,
		timeout:    timeout,
	}
}

func (r *RedisReporter) Report(ctx context.Context, metrics domain.GenerationMetrics) error {
	metrics.RunID = r.runID

	data, err := json.Marshal(metrics)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	return r.client.Set(ctx, ProgressKey(r.runID), data, r.expiration).Err()
}

// GetProgress 读取某次运行最新一代的统计量
func GetProgress(ctx context.Context, client redis.Cmdable, runID int64) (*domain.GenerationMetrics, error) {
	data, err := client.Get(ctx, ProgressKey(runID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoProgress
		}
		return nil, err
	}

	metrics := &domain.GenerationMetrics{}
	if err := json.Unmarshal(data, metrics); err != nil {
		return nil, err
	}
	return metrics, nil
}
