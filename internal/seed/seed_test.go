package seed

import (
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/utils"
)

type fakeStore struct {
	datasets []*domain.Dataset
	err      error
}

func (s *fakeStore) CreateDataset(ds *domain.Dataset) error {
	if s.err != nil {
		return s.err
	}
	ds.ID = int64(len(s.datasets) + 1)
	s.datasets = append(s.datasets, ds)
	return nil
}

func writeFamiliesFile(t *testing.T, name string, n int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()

	require.NoError(t, utils.WriteFamilies(file, utils.GenerateRandomFamilies(rand.New(rand.NewSource(3)), n)))
	return path
}

func TestImportDataset(t *testing.T) {
	store := &fakeStore{}
	path := writeFamiliesFile(t, "family data.csv", 120)

	ds, err := ImportDataset(store, path, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), ds.ID)
	assert.Equal(t, "family data", ds.Name)
	assert.Equal(t, "family-data", ds.Slug)
	assert.Len(t, ds.Families, 120)

	ds, err = ImportDataset(store, path, "圣诞工作坊")
	require.NoError(t, err)
	assert.Equal(t, "圣诞工作坊", ds.Name)
	assert.Equal(t, "sheng-dan-gong-zuo-fang", ds.Slug)
}

func TestImportDatasetErrors(t *testing.T) {
	_, err := ImportDataset(&fakeStore{}, filepath.Join(t.TempDir(), "missing.csv"), "")
	require.ErrorIs(t, err, domain.ErrDataset)

	boom := errors.New("boom")
	_, err = ImportDataset(&fakeStore{err: boom}, writeFamiliesFile(t, "ok.csv", 10), "")
	require.ErrorIs(t, err, boom)
}

func TestRandomDataset(t *testing.T) {
	store := &fakeStore{}

	ds, err := RandomDataset(store, rand.New(rand.NewSource(1)), 200)
	require.NoError(t, err)
	require.Len(t, store.datasets, 1)
	assert.Len(t, ds.Families, 200)
	assert.NotEmpty(t, ds.Slug)
	assert.Regexp(t, `^[a-z0-9-]+$`, ds.Slug)
}
