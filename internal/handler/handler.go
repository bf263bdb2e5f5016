package handler

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/config"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/repository"
)

const tokenCookieName = "__ecnc_workshop_tour_token"

// Publisher 消息队列的生产者
type Publisher interface {
	PublishJSON(ctx context.Context, queue string, v any) error
}

type Handler struct {
	validate    *validator.Validate
	config      *config.Config
	repository  *repository.Repository
	translator  ut.Translator
	publisher   Publisher
	redisClient redis.Cmdable

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, repo *repository.Repository, publisher Publisher, rdb redis.Cmdable) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	zh := zh.New()
	uni := ut.New(zh, zh)
	trans, _ := uni.GetTranslator("zh")
	if err := zh_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	return &Handler{
		validate:    validate,
		config:      cfg,
		repository:  repo,
		translator:  trans,
		publisher:   publisher,
		redisClient: rdb,

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)

	adminOnly := h.RequiredRole([]domain.Role{domain.RoleAdmin})

	// 认证相关
	h.Mux.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
	})

	// 以下 API 必须要在登录后才允许调用
	h.Mux.Group(func(r chi.Router) {
		r.Use(h.auth)
		r.Route("/my-info", func(r chi.Router) {
			r.Use(h.myInfo)
			r.Get("/", h.GetMyInfo)
			r.Patch("/password", h.UpdateMyPassword)
		})

		r.Route("/users", func(r chi.Router) {
			r.With(adminOnly).Post("/", h.CreateUser)
			r.Get("/", h.GetAllUserInfo)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.userInfo)
				r.Get("/", h.GetUserInfo)
				r.With(h.preventOperateInitialAdmin).With(adminOnly).Patch("/password", h.UpdateUserPassword)
			})
		})

		r.Get("/strategies", h.GetStrategies)

		r.Route("/datasets", func(r chi.Router) {
			r.With(adminOnly).Post("/", h.CreateDataset)
			r.Get("/", h.GetAllDatasets)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.dataset)
				r.Get("/", h.GetDataset)
				r.Get("/export", h.ExportDataset)
			})
		})

		r.Route("/runs", func(r chi.Router) {
			r.With(adminOnly).Post("/", h.CreateRun)
			r.Get("/", h.GetAllRuns)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.run)
				r.Get("/", h.GetRun)
				r.Get("/metrics", h.GetRunMetrics)
				r.Get("/progress", h.GetRunProgress)
				r.Get("/solution", h.GetRunSolution)
			})
		})
	})
}
