package handler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/domain"
)

type ResponseWriter struct {
	http.ResponseWriter
	StatusCode int
}

func (rw *ResponseWriter) WriteHeader(statusCode int) {
	rw.StatusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (h *Handler) logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &ResponseWriter{ResponseWriter: w, StatusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		duration := time.Since(start)
		slog.Info("已处理请求", "status", rw.StatusCode, "ip", r.RemoteAddr, "method", r.Method, "path", r.URL.Path, "duration", duration)
	})
}

func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				h.internalServerError(w, r, fmt.Errorf("panic: %v", err))
				fmt.Print(string(debug.Stack())) // 这里如果用 slog 的话会很乱
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(tokenCookieName)
		if err != nil {
			switch {
			case errors.Is(err, http.ErrNoCookie):
				h.errorResponse(w, r, "用户未登录")
			default:
				h.internalServerError(w, r, err)
			}
			return
		}

		claims := &AuthClaims{}
		_, err = jwt.ParseWithClaims(cookie.Value, claims, func(t *jwt.Token) (interface{}, error) {
			return []byte(h.config.JWT.Secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			h.errorResponse(w, r, "无效的令牌")
			return
		}

		// 将 claims 中的 role 和 sub 附在 context 中
		ctx := r.Context()
		ctx = context.WithValue(ctx, RoleCtxKey, claims.Role)
		ctx = context.WithValue(ctx, SubCtxKey, claims.Subject)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// currentUserID 返回令牌中的用户 ID
func (h *Handler) currentUserID(r *http.Request) (int64, error) {
	sub, _ := r.Context().Value(SubCtxKey).(string)
	return strconv.ParseInt(sub, 10, 64)
}

func (h *Handler) myInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub, err := h.currentUserID(r)
		if err != nil {
			h.internalServerError(w, r, err)
			return
		}

		myInfo, err := h.repository.GetUserByID(sub)
		if err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows):
				h.errorResponse(w, r, "个人信息不存在")
			default:
				h.internalServerError(w, r, err)
			}
			return
		}

		ctx := context.WithValue(r.Context(), MyInfoCtx, myInfo)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) RequiredRole(roles []domain.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			roleCtx, _ := r.Context().Value(RoleCtxKey).(string)
			if !slices.Contains(roles, domain.Role(roleCtx)) {
				h.errorResponse(w, r, "权限不足")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// pathID 解析路由中的 {id}
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("无效的 ID")
	}
	return id, nil
}

func (h *Handler) userInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := pathID(r)
		if err != nil {
			h.errorResponse(w, r, "用户ID无效")
			return
		}

		user, err := h.repository.GetUserByID(userID)
		if err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows):
				h.errorResponse(w, r, "用户不存在")
			default:
				h.internalServerError(w, r, err)
			}
			return
		}

		ctx := context.WithValue(r.Context(), UserInfoCtx, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) preventOperateInitialAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := r.Context().Value(UserInfoCtx).(*domain.User)
		if user.Username == h.config.InitialAdmin.Username {
			h.errorResponse(w, r, "禁止操作初始管理员")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) dataset(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		datasetID, err := pathID(r)
		if err != nil {
			h.errorResponse(w, r, "数据集ID无效")
			return
		}

		ds, err := h.repository.GetDatasetByID(datasetID)
		if err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows):
				h.errorResponse(w, r, "数据集不存在")
			default:
				h.internalServerError(w, r, err)
			}
			return
		}

		ctx := context.WithValue(r.Context(), DatasetCtx, ds)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) run(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		runID, err := pathID(r)
		if err != nil {
			h.errorResponse(w, r, "运行ID无效")
			return
		}

		run, err := h.repository.GetRunByID(runID)
		if err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows):
				h.errorResponse(w, r, "运行不存在")
			default:
				h.internalServerError(w, r, err)
			}
			return
		}

		ctx := context.WithValue(r.Context(), RunCtx, run)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
