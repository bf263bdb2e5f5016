package repository

import (
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/domain"
)

const userColumns = `id, username, password_hash, full_name, email, role, is_active, created_at, version`

func scanUser(scan func(dst ...any) error) (*domain.User, error) {
	user := &domain.User{}

	dst := []any{&user.ID, &user.Username, &user.PasswordHash, &user.FullName, &user.Email, &user.Role, &user.IsActive, &user.CreatedAt, &user.Version}
	if err := scan(dst...); err != nil {
		return nil, err
	}

	return user, nil
}

func (r *Repository) GetUserByID(id int64) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	ctx, cancel := r.queryContext()
	defer cancel()

	return scanUser(r.dbpool.QueryRowContext(ctx, query, id).Scan)
}

// GetUserByUsername 登录时使用，不区分账号是否已停用，由调用方判断
func (r *Repository) GetUserByUsername(username string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	ctx, cancel := r.queryContext()
	defer cancel()

	return scanUser(r.dbpool.QueryRowContext(ctx, query, username).Scan)
}

// UpdateUserPassword 使用乐观锁更新密码，版本号不一致时返回 sql.ErrNoRows
func (r *Repository) UpdateUserPassword(user *domain.User) error {
	query := `
		UPDATE users
		SET password_hash = $1, version = version + 1
		WHERE id = $2 AND version = $3
		RETURNING version
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	return r.dbpool.QueryRowContext(ctx, query, user.PasswordHash, user.ID, user.Version).Scan(&user.Version)
}

// GetAllUsers 管理员在前，同一角色内按创建顺序排列
func (r *Repository) GetAllUsers() ([]*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY role = $1 DESC, id`

	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, domain.RoleAdmin)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]*domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows.Scan)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return users, nil
}

// CreateUser 插入新用户，用户名或邮箱重复时返回带有 users_username_key / users_email_key 约束名的 pgconn.PgError
func (r *Repository) CreateUser(user *domain.User) error {
	query := `
		INSERT INTO users (username, password_hash, full_name, email, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, is_active, created_at, version
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	args := []any{user.Username, user.PasswordHash, user.FullName, user.Email, user.Role}
	return r.dbpool.QueryRowContext(ctx, query, args...).Scan(&user.ID, &user.IsActive, &user.CreatedAt, &user.Version)
}
