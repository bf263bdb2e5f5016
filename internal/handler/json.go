package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
)

const maxJSONBodySize = 1 << 20

func (h *Handler) logInternalServerError(r *http.Request, err error) {
	slog.Error("服务器内部错误", "method", r.Method, "path", r.URL.Path, "error", err)
}

func (h *Handler) readJSON(r *http.Request, v any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxJSONBodySize))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(v); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.As(err, &syntaxErr):
			return fmt.Errorf("请求体不是合法的 JSON（位置 %d）", syntaxErr.Offset)
		case errors.As(err, &typeErr):
			return fmt.Errorf("字段 %s 的类型错误", typeErr.Field)
		case errors.As(err, &maxBytesErr):
			return errors.New("请求体过大")
		default:
			return err
		}
	}
	return nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logInternalServerError(r, err)
	}
}

// attachment 设置下载文件所需的响应头
func attachment(w http.ResponseWriter, contentType string, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
}

type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func (h *Handler) errorResponse(w http.ResponseWriter, r *http.Request, msg string) {
	h.writeJSON(w, r, http.StatusOK, Response{
		Success: false,
		Message: msg,
		Data:    nil,
	})
}

func (h *Handler) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		h.errorResponse(w, r, err.Error())
		return
	}

	h.errorResponse(w, r, validationErrors[0].Translate(h.translator))
}

func (h *Handler) internalServerError(w http.ResponseWriter, r *http.Request, err error) {
	h.logInternalServerError(r, err)
	h.writeJSON(w, r, http.StatusInternalServerError, Response{
		Success: false,
		Message: "服务器内部错误",
		Data:    nil,
	})
}

func (h *Handler) successResponse(w http.ResponseWriter, r *http.Request, msg string, data any) {
	h.writeJSON(w, r, http.StatusOK, Response{
		Success: true,
		Message: msg,
		Data:    data,
	})
}
