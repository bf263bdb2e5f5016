package handler

type ContextKey string

var (
	RoleCtxKey  ContextKey = "role"
	SubCtxKey   ContextKey = "sub"
	MyInfoCtx   ContextKey = "myInfo"
	UserInfoCtx ContextKey = "userInfo"
	DatasetCtx  ContextKey = "dataset"
	RunCtx      ContextKey = "run"
)
