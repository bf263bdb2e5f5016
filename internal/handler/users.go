package handler

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/queue"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/utils"
	"golang.org/x/crypto/bcrypt"
)

func (h *Handler) GetAllUserInfo(w http.ResponseWriter, r *http.Request) {
	users, err := h.repository.GetAllUsers()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取用户列表成功", users)
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username" validate:"required"`
		FullName string `json:"fullName" validate:"required"`
		Email    string `json:"email" validate:"required,email"`
		Role     string `json:"role" validate:"required,oneof=管理员 访客"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	// 生成随机密码
	password := utils.GenerateRandomPassword(h.config.NewUser.PasswordLength)

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	user := &domain.User{
		Username:     req.Username,
		PasswordHash: string(hashedPassword),
		FullName:     req.FullName,
		Email:        req.Email,
		Role:         domain.Role(req.Role),
	}

	if err := h.repository.CreateUser(user); err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.As(err, &pgErr):
			switch {
			case pgErr.ConstraintName == "users_username_key":
				h.badRequest(w, r, errors.New("用户名已存在"))
			case pgErr.ConstraintName == "users_email_key":
				h.badRequest(w, r, errors.New("邮箱已存在"))
			default:
				h.internalServerError(w, r, err)
			}
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	// 通过邮件把初始密码发给用户
	mailMessage := domain.MailMessage{
		Type: domain.MailTypeCreateUser,
		To:   user.Email,
		Data: domain.CreateUserMailData{
			FullName: req.FullName,
			Username: req.Username,
			Password: password,
		},
	}
	if err := h.publisher.PublishJSON(r.Context(), queue.EmailQueue, mailMessage); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "用户创建成功", user)
}

// GetUserInfo 与 GetMyInfo 一样附带该用户提交过的运行
func (h *Handler) GetUserInfo(w http.ResponseWriter, r *http.Request) {
	user := r.Context().Value(UserInfoCtx).(*domain.User)

	runs, err := h.repository.GetRunsByUserID(user.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取用户信息成功", domain.NewUserProfile(user, runs, recentRunLimit))
}

// UpdateUserPassword 管理员重置其他用户的密码，不需要旧密码
func (h *Handler) UpdateUserPassword(w http.ResponseWriter, r *http.Request) {
	user := r.Context().Value(UserInfoCtx).(*domain.User)

	var req struct {
		Password string `json:"password" validate:"required,min=8"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	h.savePassword(w, r, user, req.Password)
}
