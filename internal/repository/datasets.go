package repository

import (
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/domain"
)

// CreateDataset 在一个事务中插入数据集和它的所有家庭
func (r *Repository) CreateDataset(ds *domain.Dataset) error {
	ctx, cancel := r.transactionContext()
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		INSERT INTO datasets (name, slug)
		VALUES ($1, $2)
		RETURNING id, created_at, version
	`
	if err := tx.QueryRowContext(ctx, query, ds.Name, ds.Slug).Scan(&ds.ID, &ds.CreatedAt, &ds.Version); err != nil {
		return err
	}

	// 家庭数量通常为 5000，预编译后逐行插入
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO families (
			dataset_id, family_id, n_people,
			choice_0, choice_1, choice_2, choice_3, choice_4,
			choice_5, choice_6, choice_7, choice_8, choice_9
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, family := range ds.Families {
		args := []any{ds.ID, family.ID, family.Size}
		for _, choice := range family.Choices {
			args = append(args, choice)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	return nil
}

func (r *Repository) GetAllDatasets() ([]*domain.DatasetMeta, error) {
	query := `
		SELECT d.id, d.name, d.slug, d.created_at, COUNT(f.family_id), COALESCE(SUM(f.n_people), 0)
		FROM datasets d
		LEFT JOIN families f ON d.id = f.dataset_id
		GROUP BY d.id
		ORDER BY d.id
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	datasets := make([]*domain.DatasetMeta, 0)
	for rows.Next() {
		meta := &domain.DatasetMeta{}
		dst := []any{&meta.ID, &meta.Name, &meta.Slug, &meta.CreatedAt, &meta.FamilyCount, &meta.PeopleCount}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		datasets = append(datasets, meta)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return datasets, nil
}

// GetDatasetByID 返回数据集及其按 family_id 排序的家庭，数据集不存在时返回 sql.ErrNoRows
func (r *Repository) GetDatasetByID(id int64) (*domain.Dataset, error) {
	ctx, cancel := r.transactionContext()
	defer cancel()

	ds := &domain.Dataset{ID: id}

	query := `SELECT name, slug, created_at, version FROM datasets WHERE id = $1`
	if err := r.dbpool.QueryRowContext(ctx, query, id).Scan(&ds.Name, &ds.Slug, &ds.CreatedAt, &ds.Version); err != nil {
		return nil, err
	}

	query = `
		SELECT
			family_id, n_people,
			choice_0, choice_1, choice_2, choice_3, choice_4,
			choice_5, choice_6, choice_7, choice_8, choice_9
		FROM families
		WHERE dataset_id = $1
		ORDER BY family_id
	`
	rows, err := r.dbpool.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ds.Families = make([]domain.Family, 0)
	for rows.Next() {
		family := domain.Family{}
		dst := []any{&family.ID, &family.Size}
		for k := range family.Choices {
			dst = append(dst, &family.Choices[k])
		}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		ds.Families = append(ds.Families, family)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return ds, nil
}
