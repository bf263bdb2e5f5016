package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/config"
)

type Repository struct {
	cfg    *config.Config
	dbpool *sql.DB
}

func NewRepository(cfg *config.Config, dbpool *sql.DB) *Repository {
	return &Repository{
		cfg:    cfg,
		dbpool: dbpool,
	}
}

// queryContext 单条语句使用的超时 context
func (r *Repository) queryContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
}

// transactionContext 事务使用的超时 context
func (r *Repository) transactionContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
}
