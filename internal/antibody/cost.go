package antibody

import (
	"fmt"
	"math"

	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/domain"
)

// ConsolationGift 家庭被安排在偏好名次 rank 的日期时需要补偿的礼物价值，rank 为 -1 表示不在偏好列表中
func ConsolationGift(rank int, size int) int {
	switch rank {
	case 0:
		return 0
	case 1:
		return 50
	case 2:
		return 50 + 9*size
	case 3:
		return 100 + 9*size
	case 4:
		return 200 + 9*size
	case 5:
		return 200 + 18*size
	case 6:
		return 300 + 18*size
	case 7:
		return 300 + 36*size
	case 8:
		return 400 + 36*size
	case 9:
		return 500 + (36+199)*size
	default:
		return 500 + (36+398)*size
	}
}

// PreferenceCost 所有家庭的补偿礼物之和
func (a *Antibody) PreferenceCost(ds *domain.Dataset) int {
	cost := 0
	for i, day := range a.families {
		family := &ds.Families[i]
		cost += ConsolationGift(family.Rank(day+1), family.Size)
	}
	return cost
}

// AccountingPenalty 会计惩罚
//
// 从最后一天往前遍历，每天贡献 (n - 125) / 400 * n^(0.5 + (n - n_next) / 50)，
// 最后一天的“下一天”视为它自己。人数为 0 的日期贡献为 0
func (a *Antibody) AccountingPenalty() float64 {
	if len(a.days) == 0 {
		return 0
	}

	penalty := 0.0
	next := a.days[len(a.days)-1].Size
	for i := len(a.days) - 1; i >= 0; i-- {
		n := a.days[i].Size
		if n > 0 {
			exponent := 0.5 + float64(n-next)/50.0
			penalty += float64(n-SoftFloor) / 400.0 * math.Pow(float64(n), exponent)
		}
		next = n
	}
	return penalty
}

// Cost 计算代价：偏好代价 + 会计惩罚
func (a *Antibody) Cost(ds *domain.Dataset) (float64, error) {
	if len(ds.Families) != len(a.families) {
		return 0, fmt.Errorf("%w: 个体包含 %d 个家庭，数据集包含 %d 个家庭", domain.ErrDataset, len(a.families), len(ds.Families))
	}

	return float64(a.PreferenceCost(ds)) + a.AccountingPenalty(), nil
}
