package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/config"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

type fakePublisher struct {
	queues   []string
	messages []any
}

func (p *fakePublisher) PublishJSON(ctx context.Context, queue string, v any) error {
	p.queues = append(p.queues, queue)
	p.messages = append(p.messages, v)
	return nil
}

// newTestHandler 构造一个不连接数据库和 redis 的 Handler，只能测试在访问存储之前就返回的路径
func newTestHandler(t *testing.T) (*Handler, *fakePublisher) {
	t.Helper()

	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.Expiration = 3600
	cfg.Optimizer = config.Optimizer{
		PopulationSize: 10,
		Generations:    10,
		Workers:        1,
		Clonator:       "basic",
		Mutator:        "basic",
		Selector:       "basic",
		SelectType:     "positive",
		CloneCount:     5,
		MutationCount:  5,
	}

	publisher := &fakePublisher{}
	h, err := NewHandler(cfg, nil, publisher, nil)
	require.NoError(t, err)
	h.RegisterRoutes()

	return h, publisher
}

func (h *Handler) tokenCookie(t *testing.T, role domain.Role) *http.Cookie {
	t.Helper()

	ss, err := h.signToken(1, string(role), time.Now().Add(time.Hour))
	require.NoError(t, err)
	return &http.Cookie{Name: tokenCookieName, Value: ss}
}

func serve(h *Handler, req *http.Request) (*httptest.ResponseRecorder, Response) {
	rec := httptest.NewRecorder()
	h.Mux.ServeHTTP(rec, req)

	resp := Response{}
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	return rec, resp
}

func TestAuthRequiresCookie(t *testing.T) {
	h, _ := newTestHandler(t)

	_, resp := serve(h, httptest.NewRequest(http.MethodGet, "/strategies", nil))
	assert.False(t, resp.Success)
	assert.Equal(t, "用户未登录", resp.Message)
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/strategies", nil)
	req.AddCookie(&http.Cookie{Name: tokenCookieName, Value: "not-a-jwt"})

	_, resp := serve(h, req)
	assert.False(t, resp.Success)
	assert.Equal(t, "无效的令牌", resp.Message)
}

func TestAuthRejectsTokenSignedWithOtherSecret(t *testing.T) {
	h, _ := newTestHandler(t)
	other, _ := newTestHandler(t)
	other.config.JWT.Secret = "another-secret"

	req := httptest.NewRequest(http.MethodGet, "/strategies", nil)
	req.AddCookie(other.tokenCookie(t, domain.RoleAdmin))

	_, resp := serve(h, req)
	assert.Equal(t, "无效的令牌", resp.Message)
}

func TestGetStrategies(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/strategies", nil)
	req.AddCookie(h.tokenCookie(t, domain.RoleViewer))

	rec, resp := serve(h, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, resp.Success)

	data := resp.Data.(map[string]any)
	assert.Contains(t, data["clonators"], "basic")
	assert.Contains(t, data["mutators"], "advanced_preference")
	assert.Contains(t, data["selectors"], "percentile")
	assert.ElementsMatch(t, []any{"positive", "negative"}, data["selectTypes"])
}

func TestAdminOnlyRoutes(t *testing.T) {
	h, publisher := newTestHandler(t)

	for _, path := range []string{"/datasets", "/runs", "/users"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{}`))
			req.AddCookie(h.tokenCookie(t, domain.RoleViewer))

			_, resp := serve(h, req)
			assert.False(t, resp.Success)
			assert.Equal(t, "权限不足", resp.Message)
		})
	}
	assert.Empty(t, publisher.messages)
}

func TestCreateRunRejectsInvalidRequest(t *testing.T) {
	cases := map[string]string{
		"缺少数据集":  `{"populationSize": 10}`,
		"种群规模非正": `{"datasetID": 1, "populationSize": 0}`,
		"选择模式非法": `{"datasetID": 1, "selectType": "sideways"}`,
		"未知的克隆策略": `{"datasetID": 1, "clonator": "nope"}`,
		"未知的变异策略": `{"datasetID": 1, "mutator": "nope"}`,
		"百分位越界":  `{"datasetID": 1, "selector": "percentile", "affinityThreshold": 150}`,
		"不是 JSON": `datasetID=1`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			h, publisher := newTestHandler(t)

			req := httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader(body))
			req.AddCookie(h.tokenCookie(t, domain.RoleAdmin))

			_, resp := serve(h, req)
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Message)
			assert.Empty(t, publisher.messages)
		})
	}
}

func TestCreateRunReportsUnknownStrategyName(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader(`{"datasetID": 1, "selector": "roulette"}`))
	req.AddCookie(h.tokenCookie(t, domain.RoleAdmin))

	_, resp := serve(h, req)
	assert.Contains(t, resp.Message, "未知的策略")
	assert.Contains(t, resp.Message, "roulette")
}

func TestInvalidPathID(t *testing.T) {
	h, _ := newTestHandler(t)

	cases := map[string]string{
		"/datasets/abc": "数据集ID无效",
		"/runs/0":       "运行ID无效",
		"/users/-1":     "用户ID无效",
	}
	for path, message := range cases {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.AddCookie(h.tokenCookie(t, domain.RoleViewer))

		_, resp := serve(h, req)
		assert.Equal(t, message, resp.Message, path)
	}
}

func TestLogoutExpiresCookie(t *testing.T) {
	h, _ := newTestHandler(t)

	rec, resp := serve(h, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))
	require.True(t, resp.Success)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, tokenCookieName, cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.True(t, cookies[0].Expires.Before(time.Now()))
}

func TestRecovererReturnsInternalServerError(t *testing.T) {
	h, _ := newTestHandler(t)
	h.Mux.Get("/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	rec, resp := serve(h, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, "服务器内部错误", resp.Message)
}

func TestUpdateMyPasswordChecksPasswords(t *testing.T) {
	h, _ := newTestHandler(t)

	hashed, err := bcrypt.GenerateFromPassword([]byte("old-password"), bcrypt.MinCost)
	require.NoError(t, err)
	me := &domain.User{ID: 1, PasswordHash: string(hashed)}

	cases := []struct {
		name string
		body string
	}{
		{"新旧密码相同", `{"oldPassword": "old-password", "newPassword": "old-password"}`},
		{"新密码过短", `{"oldPassword": "old-password", "newPassword": "short"}`},
		{"旧密码错误", `{"oldPassword": "wrong-password", "newPassword": "new-password"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPatch, "/my-info/password", strings.NewReader(tc.body))
			req = req.WithContext(context.WithValue(req.Context(), MyInfoCtx, me))

			rec := httptest.NewRecorder()
			h.UpdateMyPassword(rec, req)

			resp := Response{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Message)
		})
	}

	req := httptest.NewRequest(http.MethodPatch, "/my-info/password", strings.NewReader(cases[2].body))
	req = req.WithContext(context.WithValue(req.Context(), MyInfoCtx, me))
	rec := httptest.NewRecorder()
	h.UpdateMyPassword(rec, req)
	assert.Contains(t, rec.Body.String(), "旧密码错误")
	assert.Equal(t, string(hashed), me.PasswordHash)
}
