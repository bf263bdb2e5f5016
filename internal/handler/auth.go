package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type AuthClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// signToken 为用户签发 HS256 令牌
func (h *Handler) signToken(userID int64, role string, expiration time.Time) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AuthClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiration),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Subject:   strconv.FormatInt(userID, 10),
		},
	})
	return token.SignedString([]byte(h.config.JWT.Secret))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	// 验证用户名和密码
	user, err := h.repository.GetUserByUsername(req.Username)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "用户名不存在或密码错误")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		switch {
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			h.errorResponse(w, r, "用户名不存在或密码错误")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	if !user.IsActive {
		h.errorResponse(w, r, "账户已被停用")
		return
	}

	expiration := time.Now().Add(time.Duration(h.config.JWT.Expiration) * time.Second)
	ss, err := h.signToken(user.ID, string(user.Role), expiration)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	// 通过 http-only 的 cookie 返回给客户端
	cookie := &http.Cookie{
		Name:     tokenCookieName,
		Value:    ss,
		Expires:  expiration,
		Path:     "/",
		HttpOnly: true,
		Secure:   false,
	}

	if h.config.Environment == "production" {
		cookie.Secure = true
		cookie.SameSite = http.SameSiteStrictMode
	}

	http.SetCookie(w, cookie)

	h.successResponse(w, r, "登录成功", user)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:    tokenCookieName,
		Value:   "",
		Expires: time.Now().Add(-time.Hour),
		Path:    "/",
	})

	h.successResponse(w, r, "登出成功", nil)
}
