package domain

import (
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// RunParameters 一次优化所使用的参数，与 config.Optimizer 中的字段一一对应
type RunParameters struct {
	PopulationSize    int     `json:"populationSize"`
	Generations       int     `json:"generations"`
	Clonator          string  `json:"clonator"`
	Mutator           string  `json:"mutator"`
	Selector          string  `json:"selector"`
	AffinityThreshold float64 `json:"affinityThreshold"`
	SelectType        string  `json:"selectType"`
	CloneCount        int     `json:"cloneCount"`
	MutationCount     int     `json:"mutationCount"`
	Seed              int64   `json:"seed"`
}

type Run struct {
	ID          int64         `json:"id"`
	JobID       uuid.UUID     `json:"jobID"`
	DatasetID   int64         `json:"datasetID"`
	UserID      int64         `json:"userID"`
	Parameters  RunParameters `json:"parameters"`
	Status      RunStatus     `json:"status"`
	BestFitness *float64      `json:"bestFitness"`
	Error       string        `json:"error"`
	CreatedAt   time.Time     `json:"createdAt"`
	FinishedAt  *time.Time    `json:"finishedAt"`
	Version     int32         `json:"-"`
}

// GenerationMetrics 每一代结束时上报的统计量
type GenerationMetrics struct {
	RunID       int64   `json:"runID,omitempty"`
	Generation  int     `json:"generation"`
	MinFitness  float64 `json:"minFitness"`
	AvgFitness  float64 `json:"avgFitness"`
	AvgAffinity float64 `json:"avgAffinity"`
}

// Solution 最终解，Assignments[i] 为第 i 个家庭被分配到的日期编号（1~100）
type Solution struct {
	RunID       int64   `json:"runID"`
	Assignments []int   `json:"assignments"`
	Fitness     float64 `json:"fitness"`
}

// OptimizeJob 投递到 optimize_queue 的任务
type OptimizeJob struct {
	JobID uuid.UUID `json:"jobID"`
	RunID int64     `json:"runID"`
}

// RunSummary 按状态统计的运行数量，BestFitness 只考虑已成功的运行
type RunSummary struct {
	Total       int               `json:"total"`
	Counts      map[RunStatus]int `json:"counts"`
	BestFitness *float64          `json:"bestFitness"`
	BestRunID   int64             `json:"bestRunID,omitempty"`
}

func SummarizeRuns(runs []*Run) RunSummary {
	summary := RunSummary{
		Total: len(runs),
		Counts: map[RunStatus]int{
			RunStatusQueued:    0,
			RunStatusRunning:   0,
			RunStatusSucceeded: 0,
			RunStatusFailed:    0,
		},
	}

	for _, run := range runs {
		summary.Counts[run.Status]++
		if run.Status != RunStatusSucceeded || run.BestFitness == nil {
			continue
		}
		if summary.BestFitness == nil || *run.BestFitness < *summary.BestFitness {
			fitness := *run.BestFitness
			summary.BestFitness = &fitness
			summary.BestRunID = run.ID
		}
	}
	return summary
}
