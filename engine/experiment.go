package engine

import (
	"math/rand"

	"github.com/sendloop/journey/model"
	"github.com/spaolacci/murmur3"
)

// pickVariant draws one variant by normalized weight. The generator is
// seeded from (enrollmentId, nodeId) so a re-draw before the assignment
// is persisted lands on the same variant; different enrollments still
// converge to the configured split.
func pickVariant(enrollmentId string, nodeId string, variants []model.Variant) model.Variant {
	seed := murmur3.Sum64([]byte(enrollmentId + ":" + nodeId))
	rng := rand.New(rand.NewSource(int64(seed)))

	var total float64
	for _, v := range variants {
		if v.Weight > 0 {
			total += v.Weight
		}
	}
	if total <= 0 {
		// all weights zero: distribute equally
		return variants[rng.Intn(len(variants))]
	}
	draw := rng.Float64() * total
	for _, v := range variants {
		if v.Weight <= 0 {
			continue
		}
		if draw < v.Weight {
			return v
		}
		draw -= v.Weight
	}
	return variants[len(variants)-1]
}
