package utils

import (
	"cmp"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/domain"
)

const (
	familyIDHeader    = "family_id"
	familySizeHeader  = "n_people"
	assignedDayHeader = "assigned_day"
)

func choiceHeader(k int) string {
	return fmt.Sprintf("choice_%d", k)
}

// ReadFamilies 从 CSV 中读取家庭表
//
// 通过表头定位 family_id、choice_0~choice_9、n_people 这些列，列的顺序不限，多余的列会被忽略。
// 读取后按 family_id 排序并校验
func ReadFamilies(r io.Reader) ([]domain.Family, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	// 读取表头
	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: 读取表头失败: %w", domain.ErrDataset, err)
	}

	columns := make(map[string]int, len(headers))
	for i, header := range headers {
		columns[strings.TrimSpace(strings.TrimPrefix(header, "\ufeff"))] = i
	}

	required := []string{familyIDHeader, familySizeHeader}
	for k := 0; k < domain.NumChoices; k++ {
		required = append(required, choiceHeader(k))
	}
	for _, name := range required {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("%w: 缺少列 %s", domain.ErrDataset, name)
		}
	}

	families := []domain.Family{}
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: 读取第 %d 行失败: %w", domain.ErrDataset, line, err)
		}

		field := func(name string) (int, error) {
			value, err := strconv.Atoi(strings.TrimSpace(record[columns[name]]))
			if err != nil {
				return 0, fmt.Errorf("%w: 第 %d 行的 %s 不是整数", domain.ErrDataset, line, name)
			}
			return value, nil
		}

		family := domain.Family{}
		if family.ID, err = field(familyIDHeader); err != nil {
			return nil, err
		}
		if family.Size, err = field(familySizeHeader); err != nil {
			return nil, err
		}
		for k := 0; k < domain.NumChoices; k++ {
			if family.Choices[k], err = field(choiceHeader(k)); err != nil {
				return nil, err
			}
		}

		families = append(families, family)
	}

	slices.SortStableFunc(families, func(a, b domain.Family) int {
		return cmp.Compare(a.ID, b.ID)
	})

	if err := ValidateFamilies(families); err != nil {
		return nil, err
	}

	return families, nil
}

// LoadFamiliesFile 从文件中读取数据集，数据集名称为不带扩展名的文件名
func LoadFamiliesFile(path string) (*domain.Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrDataset, err)
	}
	defer file.Close()

	families, err := ReadFamilies(file)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return &domain.Dataset{
		Name:     name,
		Slug:     Slugify(name),
		Families: families,
	}, nil
}

// WriteFamilies 以 ReadFamilies 能读取的格式写出家庭表
func WriteFamilies(w io.Writer, families []domain.Family) error {
	writer := csv.NewWriter(w)

	headers := []string{familyIDHeader}
	for k := 0; k < domain.NumChoices; k++ {
		headers = append(headers, choiceHeader(k))
	}
	headers = append(headers, familySizeHeader)
	if err := writer.Write(headers); err != nil {
		return err
	}

	record := make([]string, len(headers))
	for _, family := range families {
		record[0] = strconv.Itoa(family.ID)
		for k, day := range family.Choices {
			record[k+1] = strconv.Itoa(day)
		}
		record[len(record)-1] = strconv.Itoa(family.Size)
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteSolution 写出分配方案，每行为 family_id,assigned_day，日期为 1~100 的编号
func WriteSolution(w io.Writer, assignment []int) error {
	writer := csv.NewWriter(w)

	if err := writer.Write([]string{familyIDHeader, assignedDayHeader}); err != nil {
		return err
	}
	for family, day := range assignment {
		if err := writer.Write([]string{strconv.Itoa(family), strconv.Itoa(day)}); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// ReadSolution 读取 WriteSolution 写出的分配方案，返回按 family_id 排列的日期编号
func ReadSolution(r io.Reader) ([]int, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: 读取表头失败: %w", domain.ErrDataset, err)
	}
	familyColumn, dayColumn := -1, -1
	for i, header := range headers {
		switch strings.TrimSpace(strings.TrimPrefix(header, "\ufeff")) {
		case familyIDHeader:
			familyColumn = i
		case assignedDayHeader:
			dayColumn = i
		}
	}
	if familyColumn < 0 || dayColumn < 0 {
		return nil, fmt.Errorf("%w: 分配方案必须包含 %s 和 %s 列", domain.ErrDataset, familyIDHeader, assignedDayHeader)
	}

	days := map[int]int{}
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: 读取第 %d 行失败: %w", domain.ErrDataset, line, err)
		}

		family, err := strconv.Atoi(strings.TrimSpace(record[familyColumn]))
		if err != nil {
			return nil, fmt.Errorf("%w: 第 %d 行的 %s 不是整数", domain.ErrDataset, line, familyIDHeader)
		}
		day, err := strconv.Atoi(strings.TrimSpace(record[dayColumn]))
		if err != nil {
			return nil, fmt.Errorf("%w: 第 %d 行的 %s 不是整数", domain.ErrDataset, line, assignedDayHeader)
		}
		if _, ok := days[family]; ok {
			return nil, fmt.Errorf("%w: 家庭 %d 出现了多次", domain.ErrDataset, family)
		}
		days[family] = day
	}

	assignment := make([]int, len(days))
	for family, day := range days {
		if family < 0 || family >= len(days) {
			return nil, fmt.Errorf("%w: 家庭 ID %d 不连续", domain.ErrDataset, family)
		}
		assignment[family] = day
	}
	return assignment, nil
}
