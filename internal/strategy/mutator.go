package strategy

import (
	"fmt"
	"math/rand"

	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/antibody"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/domain"
)

func init() {
	RegisterMutator("basic", func(opts Options) (Mutator, error) {
		return &BasicMutator{count: opts.MutationCount}, nil
	})
	RegisterMutator("preference", func(opts Options) (Mutator, error) {
		return &PreferenceMutator{count: opts.MutationCount}, nil
	})
	RegisterMutator("advanced_preference", func(opts Options) (Mutator, error) {
		return &AdvancedPreferenceMutator{count: opts.MutationCount}, nil
	})
}

// BasicMutator 随机挑选 count 个不同的家庭，把每个家庭移动到另一个随机日期
type BasicMutator struct {
	count int
}

func (m *BasicMutator) Name() string { return "basic" }

func (m *BasicMutator) Mutate(clones [][]*antibody.Antibody, ds *domain.Dataset, rng *rand.Rand) ([][]*antibody.Antibody, error) {
	return mutateEach(clones, ds, func(a *antibody.Antibody) {
		for _, family := range pickDistinct(rng, a.Len(), m.count) {
			size := ds.Families[family].Size
			current := a.DayOf(family)

			days := make([]int, 0, antibody.NumDays)
			for day := 0; day < antibody.NumDays; day++ {
				if day != current && a.Occupancy(day)+size <= antibody.HardCeiling {
					days = append(days, day)
				}
			}
			if len(days) == 0 {
				continue
			}
			a.Move(ds, family, days[rng.Intn(len(days))])
		}
	})
}

// PreferenceMutator 随机挑选 count 个不同的家庭，把每个家庭移动到它的另一个偏好日期
type PreferenceMutator struct {
	count int
}

func (m *PreferenceMutator) Name() string { return "preference" }

func (m *PreferenceMutator) Mutate(clones [][]*antibody.Antibody, ds *domain.Dataset, rng *rand.Rand) ([][]*antibody.Antibody, error) {
	return mutateEach(clones, ds, func(a *antibody.Antibody) {
		for _, family := range pickDistinct(rng, a.Len(), m.count) {
			f := &ds.Families[family]
			// 按随机顺序尝试偏好日期，第一个放得下的就是目标
			for _, k := range rng.Perm(domain.NumChoices) {
				if a.Move(ds, family, f.Choices[k]-1) {
					break
				}
			}
		}
	})
}

// AdvancedPreferenceMutator 按当前补偿礼物的价值加权挑选家庭，
// 再按名次加权（名次越靠前权重越大）把家庭移动到一个偏好日期
type AdvancedPreferenceMutator struct {
	count int
}

func (m *AdvancedPreferenceMutator) Name() string { return "advanced_preference" }

func (m *AdvancedPreferenceMutator) Mutate(clones [][]*antibody.Antibody, ds *domain.Dataset, rng *rand.Rand) ([][]*antibody.Antibody, error) {
	return mutateEach(clones, ds, func(a *antibody.Antibody) {
		weights := make([]float64, a.Len())
		for i := range weights {
			f := &ds.Families[i]
			weights[i] = float64(antibody.ConsolationGift(f.Rank(a.DayOf(i)+1), f.Size))
		}

		for _, family := range pickWeighted(rng, weights, m.count) {
			f := &ds.Families[family]
			current := a.DayOf(family)

			rankWeights := make([]float64, domain.NumChoices)
			for k, choice := range f.Choices {
				day := choice - 1
				if day != current && a.Occupancy(day)+f.Size <= antibody.HardCeiling {
					rankWeights[k] = float64(domain.NumChoices - k)
				}
			}
			k := drawWeighted(rng, rankWeights)
			if k < 0 {
				continue
			}
			a.Move(ds, family, f.Choices[k]-1)
		}
	})
}

func mutateEach(clones [][]*antibody.Antibody, ds *domain.Dataset, mutate func(a *antibody.Antibody)) ([][]*antibody.Antibody, error) {
	for _, group := range clones {
		for _, a := range group {
			if a.Len() != len(ds.Families) {
				return nil, fmt.Errorf("%w: 个体包含 %d 个家庭，数据集包含 %d 个家庭", domain.ErrDataset, a.Len(), len(ds.Families))
			}
			mutate(a)
		}
	}
	return clones, nil
}

// pickDistinct 从 [0, n) 中均匀抽取 min(k, n) 个不同的下标
func pickDistinct(rng *rand.Rand, n int, k int) []int {
	k = min(k, n)
	picked := make([]int, 0, k)
	seen := make(map[int]struct{}, k)
	for len(picked) < k {
		i := rng.Intn(n)
		if _, ok := seen[i]; ok {
			continue
		}
		seen[i] = struct{}{}
		picked = append(picked, i)
	}
	return picked
}

// pickWeighted 按权重不放回地抽取至多 k 个下标，所有权重为 0 时退化为均匀抽取
func pickWeighted(rng *rand.Rand, weights []float64, k int) []int {
	remaining := make([]float64, len(weights))
	copy(remaining, weights)

	picked := make([]int, 0, k)
	for len(picked) < k {
		i := drawWeighted(rng, remaining)
		if i < 0 {
			break
		}
		remaining[i] = 0
		picked = append(picked, i)
	}

	if len(picked) < k {
		seen := make(map[int]struct{}, len(picked))
		for _, i := range picked {
			seen[i] = struct{}{}
		}
		for _, i := range rng.Perm(len(weights)) {
			if len(picked) == k {
				break
			}
			if _, ok := seen[i]; !ok {
				picked = append(picked, i)
			}
		}
	}
	return picked
}

// drawWeighted 按权重抽取一个下标，权重之和为 0 时返回 -1
func drawWeighted(rng *rand.Rand, weights []float64) int {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return -1
	}

	pick := rng.Float64() * total
	partial := 0.0
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		partial += w
		if partial >= pick {
			return i
		}
	}

	// 浮点误差时落到最后一个正权重上
	for i := len(weights) - 1; i >= 0; i-- {
		if weights[i] > 0 {
			return i
		}
	}
	return -1
}
