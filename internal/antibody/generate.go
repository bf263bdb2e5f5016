package antibody

import (
	"fmt"
	"math/rand"
	"slices"

	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/domain"
)

// Generate 随机构造一个个体
//
// 按家庭 ID 的顺序逐个安排：只要还有人数不超过软下限的日期，就只在这些日期中均匀抽取，
// 否则在全部 100 天中均匀抽取；抽到的日期加上该家庭后不超过硬上限才接受，否则重新抽取。
// 这样可以保证硬上限，但不保证每天都达到软下限
func Generate(ds *domain.Dataset, rng *rand.Rand) (*Antibody, error) {
	a := newEmpty(len(ds.Families))

	// 人数不超过软下限的日期，保持升序
	underFloor := make([]int, NumDays)
	for i := range underFloor {
		underFloor[i] = i
	}

	for i, family := range ds.Families {
		candidates := underFloor
		if len(candidates) > 0 && !a.anyFits(candidates, family.Size) {
			// 软下限以下的日期都放不下这个家庭，只能在全部日期中抽取
			candidates = nil
		}
		if len(candidates) == 0 && !a.anyFits(nil, family.Size) {
			return nil, fmt.Errorf("%w: 家庭 %d（%d 人）无法安排到任何一天", domain.ErrDataset, i, family.Size)
		}

		for {
			var day int
			if len(candidates) > 0 {
				day = candidates[rng.Intn(len(candidates))]
			} else {
				day = rng.Intn(NumDays)
			}

			if a.days[day].Size+family.Size > HardCeiling {
				continue
			}

			a.days[day].Size += family.Size
			a.days[day].Families = append(a.days[day].Families, i)
			a.families[i] = day

			if len(underFloor) > 0 && a.days[day].Size > SoftFloor {
				if idx, found := slices.BinarySearch(underFloor, day); found {
					underFloor = slices.Delete(underFloor, idx, idx+1)
				}
			}
			break
		}
	}

	return a, nil
}

// anyFits 判断 days 中是否存在能放下 size 人的日期，days 为空时检查全部日期
func (a *Antibody) anyFits(days []int, size int) bool {
	if days == nil {
		for _, day := range a.days {
			if day.Size+size <= HardCeiling {
				return true
			}
		}
		return false
	}

	for _, day := range days {
		if a.days[day].Size+size <= HardCeiling {
			return true
		}
	}
	return false
}
