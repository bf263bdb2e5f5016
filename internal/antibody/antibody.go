package antibody

import (
	"fmt"

	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/domain"
)

const (
	NumDays     = 100 // 可参观的天数
	SoftFloor   = 125 // 每天人数的软下限，只影响随机构造
	HardCeiling = 300 // 每天人数的硬上限，任何时候都不能超过
)

// Day 某一天的聚合信息
type Day struct {
	Size     int   // 当天的总人数
	Families []int // 当天被安排的家庭 ID
}

// Antibody 一个完整的候选解
//
// families 是正向索引（家庭 -> 日期下标 0~99），days 是反向索引（日期 -> 人数与家庭列表），
// 两者必须始终保持一致，因此只能通过本包提供的方法修改
type Antibody struct {
	families []int
	days     []Day

	Affinity int     // 与种群中其他个体的相似度之和，每次计算亲和度前清零
	Fitness  float64 // 适应度（即代价），越小越好
}

func newEmpty(nFamilies int) *Antibody {
	a := &Antibody{
		families: make([]int, nFamilies),
		days:     make([]Day, NumDays),
	}
	for i := range a.days {
		a.days[i].Families = make([]int, 0)
	}
	return a
}

// FromAssignment 根据每个家庭的日期编号（1~100）重建个体，反向索引按家庭 ID 顺序构造
func FromAssignment(ds *domain.Dataset, assignment []int) (*Antibody, error) {
	if len(assignment) != len(ds.Families) {
		return nil, fmt.Errorf("%w: 分配方案包含 %d 个家庭，数据集包含 %d 个家庭", domain.ErrDataset, len(assignment), len(ds.Families))
	}

	a := newEmpty(len(assignment))
	for i, dayNumber := range assignment {
		if dayNumber < 1 || dayNumber > NumDays {
			return nil, fmt.Errorf("%w: 家庭 %d 的日期 %d 超出范围", domain.ErrDataset, i, dayNumber)
		}
		day := dayNumber - 1
		a.families[i] = day
		a.days[day].Size += ds.Families[i].Size
		a.days[day].Families = append(a.days[day].Families, i)
	}

	return a, nil
}

// Len 家庭数量
func (a *Antibody) Len() int {
	return len(a.families)
}

// DayOf 返回家庭被安排的日期下标（0~99）
func (a *Antibody) DayOf(family int) int {
	return a.families[family]
}

// Occupancy 返回某一天的总人数
func (a *Antibody) Occupancy(day int) int {
	return a.days[day].Size
}

// Members 返回某一天的家庭列表的副本
func (a *Antibody) Members(day int) []int {
	members := make([]int, len(a.days[day].Families))
	copy(members, a.days[day].Families)
	return members
}

// Assignment 返回每个家庭被安排的日期编号（1~100），用于持久化
func (a *Antibody) Assignment() []int {
	assignment := make([]int, len(a.families))
	for i, day := range a.families {
		assignment[i] = day + 1
	}
	return assignment
}

// Move 把家庭移动到新的日期下标，如果会超过硬上限则不移动并返回 false
func (a *Antibody) Move(ds *domain.Dataset, family int, day int) bool {
	from := a.families[family]
	if from == day {
		return false
	}

	size := ds.Families[family].Size
	if a.days[day].Size+size > HardCeiling {
		return false
	}

	members := a.days[from].Families
	for i, id := range members {
		if id == family {
			a.days[from].Families = append(members[:i], members[i+1:]...)
			break
		}
	}
	a.days[from].Size -= size

	a.days[day].Families = append(a.days[day].Families, family)
	a.days[day].Size += size
	a.families[family] = day

	return true
}

// Clone 深拷贝
func (a *Antibody) Clone() *Antibody {
	c := &Antibody{
		families: make([]int, len(a.families)),
		days:     make([]Day, len(a.days)),
		Affinity: a.Affinity,
		Fitness:  a.Fitness,
	}
	copy(c.families, a.families)
	for i, day := range a.days {
		c.days[i].Size = day.Size
		c.days[i].Families = make([]int, len(day.Families))
		copy(c.days[i].Families, day.Families)
	}
	return c
}

// Similarity 两个个体中被安排在同一天的家庭数量
func (a *Antibody) Similarity(other *Antibody) int {
	n := min(len(a.families), len(other.families))

	count := 0
	for i := 0; i < n; i++ {
		if a.families[i] == other.families[i] {
			count++
		}
	}
	return count
}

// Less 按适应度比较
func (a *Antibody) Less(other *Antibody) bool {
	return a.Fitness < other.Fitness
}
