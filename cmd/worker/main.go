package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/sourcegraph/conc"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/config"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/queue"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/repository"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/runner"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	/**********************************************
	 * 创建 logger
	 **********************************************/
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	/**********************************************
	 * 读取配置文件
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", "error", err)
		return
	}

	/**********************************************
	 * 连接数据库
	 **********************************************/
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("无法创建数据库连接池", "error", err)
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	pingCtx, pingCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer pingCancel()
	if err := dbpool.PingContext(pingCtx); err != nil {
		logger.Error("无法连接到数据库", "error", err)
		return
	}

	repo := repository.NewRepository(cfg, dbpool)

	/**********************************************
	 * 连接 redis
	 **********************************************/
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       0,
	})
	defer rdb.Close()

	/**********************************************
	 * 连接 RabbitMQ
	 **********************************************/
	conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
	if err != nil {
		logger.Error("无法连接到 RabbitMQ", "error", err)
		return
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Error("无法创建通道", "error", err)
		return
	}
	defer ch.Close()

	for _, name := range []string{queue.EmailQueue, queue.OptimizeQueue} {
		if _, err := queue.Declare(ch, name); err != nil {
			logger.Error("无法声明队列", "queue", name, "error", err)
			return
		}
	}

	// 一次只取一个任务，优化本身已经是并行的
	if err := ch.Qos(1, 0, false); err != nil {
		logger.Error("无法设置预取数量", "error", err)
		return
	}

	msgs, err := ch.Consume(
		queue.OptimizeQueue, // 队列
		"",                  // 消费者标识，由 RabbitMQ 自动分配
		false,               // 手动确认
		false,               // 是否独占队列
		false,               // no-local
		false,               // 是否不等待
		nil,                 // 额外参数
	)
	if err != nil {
		logger.Error("无法消费消息", "error", err)
		return
	}

	r := runner.New(repo, queue.NewPublisher(ch, time.Duration(cfg.RabbitMQ.PublishTimeout)*time.Second),
		runner.WithLogger(logger),
		runner.WithWorkers(cfg.Optimizer.Workers),
		runner.WithProgress(rdb,
			time.Duration(cfg.Progress.Expiration)*time.Second,
			time.Duration(cfg.Redis.OperationExpiration)*time.Second,
		),
	)

	// 监听 CTRL+C
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// 关闭时取消正在进行的优化，对应的运行会被标记为失败
	ctx, cancel := context.WithCancel(context.Background())
	var wg conc.WaitGroup

	wg.Go(func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					logger.Warn("消息通道已关闭")
					return
				}

				job := domain.OptimizeJob{}
				if err := json.Unmarshal(msg.Body, &job); err != nil {
					logger.Error("任务反序列化失败", "error", err, "body", string(msg.Body))
					_ = msg.Nack(false, false)
					continue
				}

				logger.Info("收到消息", "runID", job.RunID, "jobID", job.JobID.String())
				if err := r.Handle(ctx, job); err != nil {
					// 运行已经被标记为失败或者是过期任务，重新入队没有意义
					logger.Error("任务执行失败", "runID", job.RunID, "error", err)
					_ = msg.Nack(false, false)
					continue
				}

				_ = msg.Ack(false)
			}
		}
	})

	logger.Info("等待优化任务...（按 CTRL+C 退出）")
	<-sigChan

	logger.Info("正在关闭 optimize worker...")
	cancel()
	wg.Wait()
	logger.Info("optimize worker 已成功关闭")
}
