package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/config"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/repository"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/seed"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	var op int
	var n int
	var file string
	var name string
	var rngSeed int64

	flag.IntVar(&op, "op", 0, "要执行的操作 (1: 插入随机用户, 2: 插入随机数据集, 3: 从 CSV 导入数据集)")
	flag.IntVar(&n, "n", 5, "要插入的用户数量，或随机数据集的家庭数量")
	flag.StringVar(&file, "file", "", "要导入的家庭表 CSV 文件")
	flag.StringVar(&name, "name", "", "导入的数据集名称，默认使用文件名")
	flag.Int64Var(&rngSeed, "seed", 0, "生成随机数据集的种子，0 表示使用当前时间")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 读取配置文件
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 创建数据库连接池
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("无法创建数据库连接池", "error", err)
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	// sql.Open 只是创建数据库连接池对象，并不会立即连接到数据库，因此需要显式地 ping 一下
	if err := dbpool.PingContext(ctx); err != nil {
		logger.Error("无法连接到数据库", "error", err)
		return
	}

	repo := repository.NewRepository(cfg, dbpool)

	switch op {
	case 0:
		slog.Error("未指定操作")
	case 1:
		if n <= 0 {
			slog.Error("请输入合法的用户数量")
			return
		}

		cnt := 0
		for i := 0; i < n; i++ {
			user, err := utils.GenerateRandomUser(cfg.Seed.User.Password, cfg.Email.UserDomain)
			if err != nil {
				slog.Error("无法生成随机用户", slog.String("error", err.Error()))
				continue
			}

			if err := repo.CreateUser(user); err != nil {
				slog.Error("无法插入用户", slog.String("error", err.Error()))
				continue
			}

			cnt++
		}

		slog.Info("插入用户成功", slog.Int("count", cnt))
	case 2:
		if n <= 0 {
			n = seed.DefaultFamilyCount
		}
		if rngSeed == 0 {
			rngSeed = time.Now().UnixNano()
		}

		if _, err := seed.RandomDataset(repo, rand.New(rand.NewSource(rngSeed)), n); err != nil {
			slog.Error("无法插入随机数据集", slog.String("error", err.Error()))
		}
	case 3:
		if file == "" {
			slog.Error("请通过 -file 指定要导入的 CSV 文件")
			return
		}

		if _, err := seed.ImportDataset(repo, file, name); err != nil {
			slog.Error("无法导入数据集", slog.String("error", err.Error()))
		}
	default:
		slog.Error("指定的操作非法")
	}
}
