package seed

import (
	"log/slog"
	"math/rand"

	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/utils"
)

// DefaultFamilyCount 比赛数据集的家庭数量
const DefaultFamilyCount = 5000

type DatasetStore interface {
	CreateDataset(ds *domain.Dataset) error
}

// ImportDataset 读取家庭表 CSV 并写入数据库，name 为空时使用文件名
func ImportDataset(store DatasetStore, path string, name string) (*domain.Dataset, error) {
	ds, err := utils.LoadFamiliesFile(path)
	if err != nil {
		return nil, err
	}
	if name != "" {
		ds.Name = name
		ds.Slug = utils.Slugify(name)
	}

	if err := store.CreateDataset(ds); err != nil {
		return nil, err
	}

	slog.Info("导入数据集完成", "id", ds.ID, "name", ds.Name, "families", len(ds.Families), "people", ds.TotalPeople())
	return ds, nil
}

// RandomDataset 生成 n 个家庭的随机数据集并写入数据库
func RandomDataset(store DatasetStore, rng *rand.Rand, n int) (*domain.Dataset, error) {
	families := utils.GenerateRandomFamilies(rng, n)
	if err := utils.ValidateFamilies(families); err != nil {
		return nil, err
	}

	name := utils.GenerateRandomDatasetName()
	ds := &domain.Dataset{
		Name:     name,
		Slug:     utils.Slugify(name),
		Families: families,
	}

	if err := store.CreateDataset(ds); err != nil {
		return nil, err
	}

	slog.Info("插入随机数据集完成", "id", ds.ID, "name", ds.Name, "families", len(ds.Families))
	return ds, nil
}
