package strategy

import (
	"fmt"
	"math/rand"
	"slices"
	"sync"

	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/antibody"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/domain"
)

// ErrUnknownStrategy 请求了未注册的策略名称，属于配置错误
var ErrUnknownStrategy = fmt.Errorf("%w: 未知的策略", domain.ErrConfiguration)

// Clonator 为种群中的每个个体生成一组克隆
//
// 返回值的长度必须等于种群大小，且每一组都不能为空
type Clonator interface {
	Name() string
	Clone(population []*antibody.Antibody) ([][]*antibody.Antibody, error)
}

// Mutator 原地变异克隆，组的结构必须保持不变
type Mutator interface {
	Name() string
	Mutate(clones [][]*antibody.Antibody, ds *domain.Dataset, rng *rand.Rand) ([][]*antibody.Antibody, error)
}

// Selector 根据个体的亲和度筛选种群，结果的大小可以小于输入
type Selector interface {
	Name() string
	Select(population []*antibody.Antibody) []*antibody.Antibody
}

const (
	SelectPositive = "positive" // 保留亲和度不超过阈值的个体
	SelectNegative = "negative" // 保留亲和度超过阈值的个体

	DefaultCloneCount    = 5
	DefaultMutationCount = 5
)

// Options 构造策略时使用的参数，零值字段会被替换为默认值
type Options struct {
	CloneCount        int
	MutationCount     int
	AffinityThreshold float64
	SelectType        string
}

func (o Options) withDefaults() Options {
	if o.CloneCount <= 0 {
		o.CloneCount = DefaultCloneCount
	}
	if o.MutationCount <= 0 {
		o.MutationCount = DefaultMutationCount
	}
	if o.SelectType == "" {
		o.SelectType = SelectPositive
	}
	return o
}

type (
	ClonatorFactory func(opts Options) (Clonator, error)
	MutatorFactory  func(opts Options) (Mutator, error)
	SelectorFactory func(opts Options) (Selector, error)
)

var (
	mu        sync.RWMutex
	clonators = make(map[string]ClonatorFactory)
	mutators  = make(map[string]MutatorFactory)
	selectors = make(map[string]SelectorFactory)
)

// RegisterClonator 注册克隆策略，重复注册会覆盖之前的实现
func RegisterClonator(name string, factory ClonatorFactory) {
	mu.Lock()
	defer mu.Unlock()
	clonators[name] = factory
}

func RegisterMutator(name string, factory MutatorFactory) {
	mu.Lock()
	defer mu.Unlock()
	mutators[name] = factory
}

func RegisterSelector(name string, factory SelectorFactory) {
	mu.Lock()
	defer mu.Unlock()
	selectors[name] = factory
}

func NewClonator(name string, opts Options) (Clonator, error) {
	mu.RLock()
	factory, ok := clonators[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: 克隆策略 %q，可选 %v", ErrUnknownStrategy, name, ClonatorNames())
	}
	return factory(opts.withDefaults())
}

func NewMutator(name string, opts Options) (Mutator, error) {
	mu.RLock()
	factory, ok := mutators[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: 变异策略 %q，可选 %v", ErrUnknownStrategy, name, MutatorNames())
	}
	return factory(opts.withDefaults())
}

func NewSelector(name string, opts Options) (Selector, error) {
	mu.RLock()
	factory, ok := selectors[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: 选择策略 %q，可选 %v", ErrUnknownStrategy, name, SelectorNames())
	}
	return factory(opts.withDefaults())
}

func ClonatorNames() []string {
	mu.RLock()
	defer mu.RUnlock()
	return sortedKeys(clonators)
}

func MutatorNames() []string {
	mu.RLock()
	defer mu.RUnlock()
	return sortedKeys(mutators)
}

func SelectorNames() []string {
	mu.RLock()
	defer mu.RUnlock()
	return sortedKeys(selectors)
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Set 一次优化所需的全部策略
type Set struct {
	Clonator Clonator
	Mutator  Mutator
	Selector Selector
}

// Build 根据运行参数一次性构造三种策略，任何一个名称未知都会返回配置错误
func Build(params domain.RunParameters) (*Set, error) {
	opts := Options{
		CloneCount:        params.CloneCount,
		MutationCount:     params.MutationCount,
		AffinityThreshold: params.AffinityThreshold,
		SelectType:        params.SelectType,
	}

	clonator, err := NewClonator(params.Clonator, opts)
	if err != nil {
		return nil, err
	}
	mutator, err := NewMutator(params.Mutator, opts)
	if err != nil {
		return nil, err
	}
	selector, err := NewSelector(params.Selector, opts)
	if err != nil {
		return nil, err
	}

	return &Set{Clonator: clonator, Mutator: mutator, Selector: selector}, nil
}
