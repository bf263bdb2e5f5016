package strategy

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/antibody"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/domain"
)

func init() {
	RegisterSelector("basic", func(opts Options) (Selector, error) {
		if err := validateSelectType(opts.SelectType); err != nil {
			return nil, err
		}
		return &BasicSelector{threshold: opts.AffinityThreshold, selectType: opts.SelectType}, nil
	})
	RegisterSelector("percentile", func(opts Options) (Selector, error) {
		if err := validateSelectType(opts.SelectType); err != nil {
			return nil, err
		}
		if opts.AffinityThreshold < 0 || opts.AffinityThreshold > 100 {
			return nil, fmt.Errorf("%w: 百分位数 %v 不在 [0, 100] 范围内", domain.ErrConfiguration, opts.AffinityThreshold)
		}
		return &PercentileSelector{percentile: opts.AffinityThreshold, selectType: opts.SelectType}, nil
	})
}

func validateSelectType(selectType string) error {
	switch selectType {
	case SelectPositive, SelectNegative:
		return nil
	default:
		return fmt.Errorf("%w: 未知的选择方式 %q", domain.ErrConfiguration, selectType)
	}
}

// keep 按选择方式判断个体是否保留：positive 保留亲和度不超过阈值的个体，negative 保留超过阈值的个体
func keep(population []*antibody.Antibody, threshold float64, selectType string) []*antibody.Antibody {
	selected := make([]*antibody.Antibody, 0, len(population))
	for _, a := range population {
		affinity := float64(a.Affinity)
		if (selectType == SelectPositive && affinity <= threshold) ||
			(selectType == SelectNegative && affinity > threshold) {
			selected = append(selected, a)
		}
	}
	return selected
}

// BasicSelector 使用固定的亲和度阈值
type BasicSelector struct {
	threshold  float64
	selectType string
}

func (s *BasicSelector) Name() string { return "basic" }

func (s *BasicSelector) Select(population []*antibody.Antibody) []*antibody.Antibody {
	return keep(population, s.threshold, s.selectType)
}

// PercentileSelector 阈值取当前种群亲和度分布的某个百分位数
type PercentileSelector struct {
	percentile float64
	selectType string
}

func (s *PercentileSelector) Name() string { return "percentile" }

func (s *PercentileSelector) Select(population []*antibody.Antibody) []*antibody.Antibody {
	if len(population) == 0 {
		return population
	}

	affinities := make([]float64, len(population))
	for i, a := range population {
		affinities[i] = float64(a.Affinity)
	}
	slices.Sort(affinities)

	threshold := stat.Quantile(s.percentile/100, stat.Empirical, affinities, nil)
	return keep(population, threshold, s.selectType)
}
