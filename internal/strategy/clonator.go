package strategy

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/antibody"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/domain"
)

func init() {
	RegisterClonator("basic", func(opts Options) (Clonator, error) {
		return &BasicClonator{count: opts.CloneCount}, nil
	})
	RegisterClonator("rank", func(opts Options) (Clonator, error) {
		return &RankClonator{count: opts.CloneCount}, nil
	})
}

// BasicClonator 每个个体都生成固定数量的深拷贝
type BasicClonator struct {
	count int
}

func (c *BasicClonator) Name() string { return "basic" }

func (c *BasicClonator) Clone(population []*antibody.Antibody) ([][]*antibody.Antibody, error) {
	if c.count <= 0 {
		return nil, fmt.Errorf("%w: 克隆数量必须为正数", domain.ErrConfiguration)
	}

	clones := make([][]*antibody.Antibody, len(population))
	for i, a := range population {
		clones[i] = cloneN(a, c.count)
	}
	return clones, nil
}

// RankClonator 按适应度排名分配克隆数量，排名为 r（0 为最好）的个体得到 max(1, ceil(count / (r+1))) 个克隆
type RankClonator struct {
	count int
}

func (c *RankClonator) Name() string { return "rank" }

func (c *RankClonator) Clone(population []*antibody.Antibody) ([][]*antibody.Antibody, error) {
	if c.count <= 0 {
		return nil, fmt.Errorf("%w: 克隆数量必须为正数", domain.ErrConfiguration)
	}

	order := make([]int, len(population))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(i, j int) int {
		return cmp.Compare(population[i].Fitness, population[j].Fitness)
	})

	clones := make([][]*antibody.Antibody, len(population))
	for rank, i := range order {
		n := (c.count + rank) / (rank + 1)
		clones[i] = cloneN(population[i], max(1, n))
	}
	return clones, nil
}

func cloneN(a *antibody.Antibody, n int) []*antibody.Antibody {
	group := make([]*antibody.Antibody, n)
	for i := range group {
		group[i] = a.Clone()
	}
	return group
}
