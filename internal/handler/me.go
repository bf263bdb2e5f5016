package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

const recentRunLimit = 10

// GetMyInfo 返回当前用户的信息，以及其提交过的运行的汇总和最近的运行
func (h *Handler) GetMyInfo(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	runs, err := h.repository.GetRunsByUserID(myInfo.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取个人信息成功", domain.NewUserProfile(myInfo, runs, recentRunLimit))
}

func (h *Handler) UpdateMyPassword(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	var req struct {
		OldPassword string `json:"oldPassword" validate:"required"`
		NewPassword string `json:"newPassword" validate:"required,min=8,nefield=OldPassword"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(myInfo.PasswordHash), []byte(req.OldPassword)); err != nil {
		h.errorResponse(w, r, "旧密码错误")
		return
	}

	h.savePassword(w, r, myInfo, req.NewPassword)
}

// savePassword 哈希并保存新密码，期间用户被其他请求修改过时提示重试
func (h *Handler) savePassword(w http.ResponseWriter, r *http.Request, user *domain.User, password string) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	user.PasswordHash = string(hashedPassword)
	if err := h.repository.UpdateUserPassword(user); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "用户信息已被修改，请刷新后重试")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "修改密码成功", nil)
}
