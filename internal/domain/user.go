package domain

import (
	"time"
)

type Role string

const (
	RoleAdmin  Role = "管理员"
	RoleViewer Role = "访客"
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"fullName"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	Version      int32     `json:"-"`
}

// UserProfile 个人信息页面返回的内容：用户本身、其提交过的运行的汇总以及最近的几次运行
type UserProfile struct {
	*User
	Runs       RunSummary `json:"runs"`
	RecentRuns []*Run     `json:"recentRuns"`
}

// NewUserProfile runs 需要按提交时间从新到旧排列
func NewUserProfile(user *User, runs []*Run, recent int) *UserProfile {
	return &UserProfile{
		User:       user,
		Runs:       SummarizeRuns(runs),
		RecentRuns: runs[:min(len(runs), max(recent, 0))],
	}
}
