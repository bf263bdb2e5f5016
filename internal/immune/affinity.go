package immune

import "github.com/sysu-ecnc-dev/workshop-tour/backend/internal/antibody"

// Affinity 重新计算种群中每个个体的亲和度，返回平均亲和度
//
// 每一对个体的相似度同时累加到两个个体上，因此返回值为 Σ(两两相似度) * 2 / N
func Affinity(population []*antibody.Antibody) float64 {
	if len(population) == 0 {
		return 0
	}

	for _, a := range population {
		a.Affinity = 0
	}

	for i := 0; i < len(population); i++ {
		for j := i + 1; j < len(population); j++ {
			similarity := population[i].Similarity(population[j])
			population[i].Affinity += similarity
			population[j].Affinity += similarity
		}
	}

	total := 0
	for _, a := range population {
		total += a.Affinity
	}
	return float64(total) / float64(len(population))
}
