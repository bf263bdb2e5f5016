package handler

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/utils"
)

const maxDatasetUploadSize = 32 << 20

// CreateDataset 通过 multipart 表单上传家庭表，file 字段为 CSV 文件，name 字段可选，默认取文件名
func (h *Handler) CreateDataset(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxDatasetUploadSize)
	if err := r.ParseMultipartForm(maxDatasetUploadSize); err != nil {
		h.badRequest(w, r, errors.New("无法解析上传的表单"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.badRequest(w, r, errors.New("缺少数据集文件"))
		return
	}
	defer file.Close()

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(header.Filename), filepath.Ext(header.Filename))
	}

	families, err := utils.ReadFamilies(file)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	ds := &domain.Dataset{
		Name:     name,
		Slug:     utils.Slugify(name),
		Families: families,
	}

	if err := h.repository.CreateDataset(ds); err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.As(err, &pgErr) && pgErr.ConstraintName == "datasets_slug_key":
			h.badRequest(w, r, fmt.Errorf("数据集 %s 已存在", name))
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "数据集上传成功", domain.DatasetMeta{
		ID:          ds.ID,
		Name:        ds.Name,
		Slug:        ds.Slug,
		CreatedAt:   ds.CreatedAt,
		FamilyCount: len(ds.Families),
		PeopleCount: ds.TotalPeople(),
	})
}

func (h *Handler) GetAllDatasets(w http.ResponseWriter, r *http.Request) {
	datasets, err := h.repository.GetAllDatasets()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取数据集列表成功", datasets)
}

func (h *Handler) GetDataset(w http.ResponseWriter, r *http.Request) {
	ds := r.Context().Value(DatasetCtx).(*domain.Dataset)
	h.successResponse(w, r, "获取数据集成功", ds)
}

// ExportDataset 以上传时的 CSV 格式导出家庭表
func (h *Handler) ExportDataset(w http.ResponseWriter, r *http.Request) {
	ds := r.Context().Value(DatasetCtx).(*domain.Dataset)

	attachment(w, "text/csv; charset=utf-8", ds.Slug+".csv")
	if err := utils.WriteFamilies(w, ds.Families); err != nil {
		h.logInternalServerError(r, err)
	}
}
