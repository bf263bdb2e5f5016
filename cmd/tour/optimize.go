package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/config"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/immune"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/report"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/strategy"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/utils"
)

func newOptimizeCmd() *cobra.Command {
	var (
		datasetPath string
		logLevel    string
		flags       config.Optimizer
	)

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "在本地对一个家庭表运行免疫算法",
		Long: "在本地对一个家庭表运行免疫算法，结果写入输出目录：\n" +
			"分配方案 <slug>_solution.csv、代价曲线 <slug>_progress.pdf 和日志 <slug>.log。\n" +
			"参数默认值取自 OPTIMIZER_ 前缀的环境变量，命令行参数优先。",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptimizerConfig()
			if err != nil {
				return err
			}
			applyFlags(cmd, cfg, &flags)
			if err := cfg.Validate(); err != nil {
				return err
			}

			var level slog.Level
			if err := level.UnmarshalText([]byte(logLevel)); err != nil {
				return fmt.Errorf("无效的日志级别 %q", logLevel)
			}

			return optimize(cmd.Context(), cmd.OutOrStdout(), cfg, datasetPath, level)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&datasetPath, "dataset", "d", "", "家庭表 CSV 文件")
	f.StringVar(&logLevel, "log-level", "info", "日志级别 (debug, info, warn, error)")
	f.IntVar(&flags.PopulationSize, "population-size", 50, "种群大小")
	f.IntVar(&flags.Generations, "generations", 100, "迭代次数")
	f.IntVar(&flags.Workers, "workers", 1, "并行计算的 goroutine 数量")
	f.StringVar(&flags.Clonator, "clonator", "basic", fmt.Sprintf("克隆策略 %v", strategy.ClonatorNames()))
	f.StringVar(&flags.Mutator, "mutator", "basic", fmt.Sprintf("变异策略 %v", strategy.MutatorNames()))
	f.StringVar(&flags.Selector, "selector", "basic", fmt.Sprintf("选择策略 %v", strategy.SelectorNames()))
	f.Float64Var(&flags.AffinityThreshold, "affinity-threshold", 0, "亲和度阈值，percentile 选择策略中为百分位数")
	f.StringVar(&flags.SelectType, "select-type", strategy.SelectPositive, "选择模式 (positive, negative)")
	f.IntVar(&flags.CloneCount, "clone-count", strategy.DefaultCloneCount, "每个个体的克隆数量")
	f.IntVar(&flags.MutationCount, "mutation-count", strategy.DefaultMutationCount, "每个克隆变异的家庭数量")
	f.Int64Var(&flags.Seed, "seed", 0, "随机数种子，0 表示使用当前时间")
	f.StringVarP(&flags.OutputDirectory, "output-directory", "o", "output", "输出目录")
	_ = cmd.MarkFlagRequired("dataset")

	return cmd
}

// applyFlags 只有显式给出的命令行参数才覆盖环境变量中的配置
func applyFlags(cmd *cobra.Command, cfg *config.Optimizer, flags *config.Optimizer) {
	changed := cmd.Flags().Changed

	if changed("population-size") {
		cfg.PopulationSize = flags.PopulationSize
	}
	if changed("generations") {
		cfg.Generations = flags.Generations
	}
	if changed("workers") {
		cfg.Workers = flags.Workers
	}
	if changed("clonator") {
		cfg.Clonator = flags.Clonator
	}
	if changed("mutator") {
		cfg.Mutator = flags.Mutator
	}
	if changed("selector") {
		cfg.Selector = flags.Selector
	}
	if changed("affinity-threshold") {
		cfg.AffinityThreshold = flags.AffinityThreshold
	}
	if changed("select-type") {
		cfg.SelectType = flags.SelectType
	}
	if changed("clone-count") {
		cfg.CloneCount = flags.CloneCount
	}
	if changed("mutation-count") {
		cfg.MutationCount = flags.MutationCount
	}
	if changed("seed") {
		cfg.Seed = flags.Seed
	}
	if changed("output-directory") {
		cfg.OutputDirectory = flags.OutputDirectory
	}
}

func optimize(ctx context.Context, stdout io.Writer, cfg *config.Optimizer, datasetPath string, level slog.Level) error {
	ds, err := utils.LoadFamiliesFile(datasetPath)
	if err != nil {
		return err
	}

	// 在生成任何个体之前检查策略名称
	set, err := strategy.Build(cfg.RunParameters())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.OutputDirectory, 0o755); err != nil {
		return err
	}
	base := filepath.Join(cfg.OutputDirectory, ds.Slug)

	logFile, err := os.Create(base + ".log")
	if err != nil {
		return err
	}
	defer logFile.Close()

	logger := slog.New(slog.NewTextHandler(io.MultiWriter(stdout, logFile), &slog.HandlerOptions{Level: level}))

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	logger.Info("读取数据集完成", "dataset", ds.Name, "families", len(ds.Families), "people", ds.TotalPeople(), "seed", seed)

	plot := report.NewPlotReporter(fmt.Sprintf("workshop tour: %s", ds.Slug))

	system, err := immune.New(
		immune.Parameters{
			PopulationSize: cfg.PopulationSize,
			Generations:    cfg.Generations,
			Workers:        cfg.Workers,
		},
		ds, set.Clonator, set.Mutator, set.Selector,
		immune.WithLogger(logger),
		immune.WithReporter(plot),
		immune.WithSeed(seed),
	)
	if err != nil {
		return err
	}
	defer system.Close()

	result, err := system.Optimize(ctx)
	if err != nil {
		logger.Error("优化失败", "error", err)
		return err
	}

	solutionPath := base + "_solution.csv"
	solutionFile, err := os.Create(solutionPath)
	if err != nil {
		return err
	}
	defer solutionFile.Close()

	if err := utils.WriteSolution(solutionFile, result.Best.Assignment()); err != nil {
		return err
	}

	plotPath := base + "_progress.pdf"
	if err := plot.Save(plotPath); err != nil {
		return err
	}

	logger.Info("结果已保存", "bestFitness", result.Best.Fitness, "solution", solutionPath, "plot", plotPath)
	return nil
}
