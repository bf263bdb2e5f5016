package handler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/queue"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/report"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/strategy"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/utils"
)

func (h *Handler) GetStrategies(w http.ResponseWriter, r *http.Request) {
	h.successResponse(w, r, "获取策略列表成功", map[string][]string{
		"clonators":   strategy.ClonatorNames(),
		"mutators":    strategy.MutatorNames(),
		"selectors":   strategy.SelectorNames(),
		"selectTypes": {strategy.SelectPositive, strategy.SelectNegative},
	})
}

// CreateRun 创建一次优化运行并投递到 optimize_queue，未给出的参数使用服务配置中的默认值
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DatasetID         int64    `json:"datasetID" validate:"required,gt=0"`
		PopulationSize    *int     `json:"populationSize" validate:"omitempty,gt=0"`
		Generations       *int     `json:"generations" validate:"omitempty,gt=0"`
		Clonator          *string  `json:"clonator" validate:"omitempty,min=1"`
		Mutator           *string  `json:"mutator" validate:"omitempty,min=1"`
		Selector          *string  `json:"selector" validate:"omitempty,min=1"`
		AffinityThreshold *float64 `json:"affinityThreshold" validate:"omitempty,gte=0"`
		SelectType        *string  `json:"selectType" validate:"omitempty,oneof=positive negative"`
		CloneCount        *int     `json:"cloneCount" validate:"omitempty,gt=0"`
		MutationCount     *int     `json:"mutationCount" validate:"omitempty,gt=0"`
		Seed              *int64   `json:"seed"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	params := h.config.Optimizer.RunParameters()
	if req.PopulationSize != nil {
		params.PopulationSize = *req.PopulationSize
	}
	if req.Generations != nil {
		params.Generations = *req.Generations
	}
	if req.Clonator != nil {
		params.Clonator = *req.Clonator
	}
	if req.Mutator != nil {
		params.Mutator = *req.Mutator
	}
	if req.Selector != nil {
		params.Selector = *req.Selector
	}
	if req.AffinityThreshold != nil {
		params.AffinityThreshold = *req.AffinityThreshold
	}
	if req.SelectType != nil {
		params.SelectType = *req.SelectType
	}
	if req.CloneCount != nil {
		params.CloneCount = *req.CloneCount
	}
	if req.MutationCount != nil {
		params.MutationCount = *req.MutationCount
	}
	if req.Seed != nil {
		params.Seed = *req.Seed
	}

	// 提前构造一次策略，名称错误时直接拒绝而不是等 worker 失败
	if _, err := strategy.Build(params); err != nil {
		h.badRequest(w, r, err)
		return
	}

	userID, err := h.currentUserID(r)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	run := &domain.Run{
		JobID:      uuid.New(),
		DatasetID:  req.DatasetID,
		UserID:     userID,
		Parameters: params,
	}

	if err := h.repository.CreateRun(run); err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.As(err, &pgErr) && pgErr.ConstraintName == "runs_dataset_id_fkey":
			h.badRequest(w, r, errors.New("数据集不存在"))
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	job := domain.OptimizeJob{JobID: run.JobID, RunID: run.ID}
	if err := h.publisher.PublishJSON(r.Context(), queue.OptimizeQueue, job); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "运行已提交", run)
}

func (h *Handler) GetAllRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.repository.GetAllRuns()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取运行列表成功", runs)
}

func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run := r.Context().Value(RunCtx).(*domain.Run)
	h.successResponse(w, r, "获取运行信息成功", run)
}

func (h *Handler) GetRunMetrics(w http.ResponseWriter, r *http.Request) {
	run := r.Context().Value(RunCtx).(*domain.Run)

	metrics, err := h.repository.GetGenerationMetrics(run.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取运行统计成功", metrics)
}

// GetRunProgress 从 redis 中读取最新一代的统计量
func (h *Handler) GetRunProgress(w http.ResponseWriter, r *http.Request) {
	run := r.Context().Value(RunCtx).(*domain.Run)

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(h.config.Redis.OperationExpiration)*time.Second)
	defer cancel()

	progress, err := report.GetProgress(ctx, h.redisClient, run.ID)
	if err != nil {
		switch {
		case errors.Is(err, report.ErrNoProgress):
			h.successResponse(w, r, "暂无运行进度", nil)
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "获取运行进度成功", progress)
}

// GetRunSolution 默认以 CSV 下载最终解，format=json 时返回 JSON
func (h *Handler) GetRunSolution(w http.ResponseWriter, r *http.Request) {
	run := r.Context().Value(RunCtx).(*domain.Run)

	solution, err := h.repository.GetSolution(run.ID)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "运行尚未产生结果")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	if r.URL.Query().Get("format") == "json" {
		h.successResponse(w, r, "获取运行结果成功", solution)
		return
	}

	attachment(w, "text/csv; charset=utf-8", fmt.Sprintf("run_%d_solution.csv", run.ID))
	if err := utils.WriteSolution(w, solution.Assignments); err != nil {
		h.logInternalServerError(r, err)
	}
}
