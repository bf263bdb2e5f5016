package domain

import "errors"

var (
	// ErrConfiguration 配置错误：未知的策略名称、非法的选择模式、非正的规模参数等，在优化开始前返回
	ErrConfiguration = errors.New("配置错误")
	// ErrDataset 数据集错误：缺少列、格式错误或取值越界
	ErrDataset = errors.New("数据集错误")
	// ErrEvaluation 生成个体或计算适应度的任务失败，整批任务随之中止
	ErrEvaluation = errors.New("评估错误")
)
