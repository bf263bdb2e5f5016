package utils

import (
	"fmt"

	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/antibody"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/domain"
)

// ValidateFamilies 检查家庭表：ID 必须是从 0 开始连续的位置编号，人数为正，偏好日期在 1~100 之间且互不相同
func ValidateFamilies(families []domain.Family) error {
	if len(families) == 0 {
		return fmt.Errorf("%w: 数据集中没有家庭", domain.ErrDataset)
	}

	for i, family := range families {
		if family.ID != i {
			return fmt.Errorf("%w: 第 %d 行的家庭 ID 为 %d，家庭 ID 必须从 0 开始连续编号", domain.ErrDataset, i+1, family.ID)
		}
		if family.Size <= 0 {
			return fmt.Errorf("%w: 家庭 %d 的人数必须为正数", domain.ErrDataset, family.ID)
		}
		if family.Size > antibody.HardCeiling {
			return fmt.Errorf("%w: 家庭 %d 的人数超过了每天的人数上限", domain.ErrDataset, family.ID)
		}

		seen := make(map[int]struct{}, domain.NumChoices)
		for k, day := range family.Choices {
			if day < 1 || day > antibody.NumDays {
				return fmt.Errorf("%w: 家庭 %d 的第 %d 个偏好日期 %d 不在 1~%d 之间", domain.ErrDataset, family.ID, k, day, antibody.NumDays)
			}
			if _, ok := seen[day]; ok {
				return fmt.Errorf("%w: 家庭 %d 的偏好日期 %d 重复", domain.ErrDataset, family.ID, day)
			}
			seen[day] = struct{}{}
		}
	}

	return nil
}

// ValidateAssignment 检查分配方案：每个家庭都被安排到 1~100 中的某一天，且每天的人数不超过上限
func ValidateAssignment(ds *domain.Dataset, assignment []int) error {
	a, err := antibody.FromAssignment(ds, assignment)
	if err != nil {
		return err
	}

	for day := 0; day < antibody.NumDays; day++ {
		if a.Occupancy(day) > antibody.HardCeiling {
			return fmt.Errorf("%w: 第 %d 天的人数 %d 超过了上限 %d", domain.ErrDataset, day+1, a.Occupancy(day), antibody.HardCeiling)
		}
	}

	return nil
}
