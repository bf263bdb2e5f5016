package repository

import (
	"database/sql"
	"encoding/json"

	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/domain"
)

const runColumns = `
	id, job_id, dataset_id, user_id, parameters, status, best_fitness, error, created_at, finished_at, version
`

func scanRun(scan func(dst ...any) error) (*domain.Run, error) {
	run := &domain.Run{}
	var parameters []byte

	dst := []any{
		&run.ID,
		&run.JobID,
		&run.DatasetID,
		&run.UserID,
		&parameters,
		&run.Status,
		&run.BestFitness,
		&run.Error,
		&run.CreatedAt,
		&run.FinishedAt,
		&run.Version,
	}
	if err := scan(dst...); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(parameters, &run.Parameters); err != nil {
		return nil, err
	}

	return run, nil
}

// CreateRun 插入一条状态为 queued 的运行记录
func (r *Repository) CreateRun(run *domain.Run) error {
	parameters, err := json.Marshal(run.Parameters)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO runs (job_id, dataset_id, user_id, parameters, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, version
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	run.Status = domain.RunStatusQueued
	args := []any{run.JobID, run.DatasetID, run.UserID, string(parameters), run.Status}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&run.ID, &run.CreatedAt, &run.Version); err != nil {
		return err
	}

	return nil
}

func (r *Repository) GetRunByID(id int64) (*domain.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = $1`

	ctx, cancel := r.queryContext()
	defer cancel()

	return scanRun(r.dbpool.QueryRowContext(ctx, query, id).Scan)
}

func (r *Repository) GetAllRuns() ([]*domain.Run, error) {
	return r.queryRuns(`SELECT ` + runColumns + ` FROM runs ORDER BY id DESC`)
}

// GetRunsByUserID 某个用户提交的全部运行，从新到旧排列
func (r *Repository) GetRunsByUserID(userID int64) ([]*domain.Run, error) {
	return r.queryRuns(`SELECT `+runColumns+` FROM runs WHERE user_id = $1 ORDER BY id DESC`, userID)
}

func (r *Repository) queryRuns(query string, args ...any) ([]*domain.Run, error) {
	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]*domain.Run, 0)
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return runs, nil
}

// StartRun 把排队中的运行标记为运行中，运行不存在或者已经开始过时返回 sql.ErrNoRows
func (r *Repository) StartRun(run *domain.Run) error {
	query := `
		UPDATE runs
		SET status = $1, version = version + 1
		WHERE id = $2 AND status = $3
		RETURNING version
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	if err := r.dbpool.QueryRowContext(ctx, query, domain.RunStatusRunning, run.ID, domain.RunStatusQueued).Scan(&run.Version); err != nil {
		return err
	}
	run.Status = domain.RunStatusRunning

	return nil
}

// FinishRun 记录运行的最终状态、最优适应度和错误信息
func (r *Repository) FinishRun(run *domain.Run) error {
	query := `
		UPDATE runs
		SET status = $1, best_fitness = $2, error = $3, finished_at = NOW(), version = version + 1
		WHERE id = $4
		RETURNING finished_at, version
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	args := []any{run.Status, run.BestFitness, run.Error, run.ID}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&run.FinishedAt, &run.Version); err != nil {
		return err
	}

	return nil
}

func (r *Repository) InsertGenerationMetrics(metrics *domain.GenerationMetrics) error {
	query := `
		INSERT INTO generation_metrics (run_id, generation, min_fitness, avg_fitness, avg_affinity)
		VALUES ($1, $2, $3, $4, $5)
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	args := []any{metrics.RunID, metrics.Generation, metrics.MinFitness, metrics.AvgFitness, metrics.AvgAffinity}
	if _, err := r.dbpool.ExecContext(ctx, query, args...); err != nil {
		return err
	}

	return nil
}

func (r *Repository) GetGenerationMetrics(runID int64) ([]*domain.GenerationMetrics, error) {
	query := `
		SELECT generation, min_fitness, avg_fitness, avg_affinity
		FROM generation_metrics
		WHERE run_id = $1
		ORDER BY generation
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	metrics := make([]*domain.GenerationMetrics, 0)
	for rows.Next() {
		m := &domain.GenerationMetrics{RunID: runID}
		if err := rows.Scan(&m.Generation, &m.MinFitness, &m.AvgFitness, &m.AvgAffinity); err != nil {
			return nil, err
		}
		metrics = append(metrics, m)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return metrics, nil
}

// InsertSolution 保存运行的最终解，会覆盖之前保存的解
func (r *Repository) InsertSolution(solution *domain.Solution) error {
	ctx, cancel := r.transactionContext()
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// 先将之前的解删除，solution_assignments 随之级联删除
	query := `DELETE FROM solutions WHERE run_id = $1`
	if _, err := tx.ExecContext(ctx, query, solution.RunID); err != nil {
		return err
	}

	query = `INSERT INTO solutions (run_id, fitness) VALUES ($1, $2)`
	if _, err := tx.ExecContext(ctx, query, solution.RunID, solution.Fitness); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO solution_assignments (run_id, family_id, assigned_day)
		VALUES ($1, $2, $3)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for family, day := range solution.Assignments {
		if _, err := stmt.ExecContext(ctx, solution.RunID, family, day); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	return nil
}

// GetSolution 读取运行的最终解，还没有解时返回 sql.ErrNoRows
func (r *Repository) GetSolution(runID int64) (*domain.Solution, error) {
	ctx, cancel := r.transactionContext()
	defer cancel()

	solution := &domain.Solution{RunID: runID}

	query := `SELECT fitness FROM solutions WHERE run_id = $1`
	if err := r.dbpool.QueryRowContext(ctx, query, runID).Scan(&solution.Fitness); err != nil {
		return nil, err
	}

	query = `
		SELECT assigned_day FROM solution_assignments
		WHERE run_id = $1
		ORDER BY family_id
	`
	rows, err := r.dbpool.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	solution.Assignments = make([]int, 0)
	for rows.Next() {
		var day int
		if err := rows.Scan(&day); err != nil {
			return nil, err
		}
		solution.Assignments = append(solution.Assignments, day)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(solution.Assignments) == 0 {
		return nil, sql.ErrNoRows
	}

	return solution, nil
}
