package domain

import "time"

// NumChoices 每个家庭填写的偏好日期数量
const NumChoices = 10

type Family struct {
	ID      int             `json:"id"`
	Size    int             `json:"size"`
	Choices [NumChoices]int `json:"choices"` // 偏好的日期编号（1~100），下标越小越偏好
}

// Rank 返回 day（日期编号）在偏好列表中的名次，不在列表中时返回 -1
func (f *Family) Rank(day int) int {
	for rank, choice := range f.Choices {
		if choice == day {
			return rank
		}
	}
	return -1
}

type Dataset struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Families  []Family  `json:"families,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Version   int32     `json:"-"`
}

// DatasetMeta 数据集的元数据，列表接口中不返回具体的家庭
type DatasetMeta struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	FamilyCount int       `json:"familyCount"`
	PeopleCount int       `json:"peopleCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

// TotalPeople 所有家庭人数之和
func (d *Dataset) TotalPeople() int {
	total := 0
	for _, f := range d.Families {
		total += f.Size
	}
	return total
}
