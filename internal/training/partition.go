package training

import (
	"math"
	"math/rand/v2"
)

const (
	DefaultValidationFraction       = 0.2
	DefaultSeed               int64 = 42
)

// Partition splits examples into train and validation subsets.
//
// The same input, fraction and seed always produce the same split. Both
// outputs keep the input's relative order, are disjoint, and together cover
// the input. With two or more examples each side gets at least one; with
// fewer, everything goes to train. A fraction outside (0,1) falls back to
// DefaultValidationFraction.
func Partition(examples []Example, validationFraction float64, seed int64) (train, validation []Example) {
	n := len(examples)
	if n < 2 {
		return append([]Example(nil), examples...), []Example{}
	}
	if !(validationFraction > 0 && validationFraction < 1) {
		validationFraction = DefaultValidationFraction
	}

	// the epsilon keeps exact products (15*0.2) from rounding up an extra item
	nVal := int(math.Ceil(float64(n)*validationFraction - 1e-9))
	if nVal < 1 {
		nVal = 1
	}
	if nVal > n-1 {
		nVal = n - 1
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
	rng.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

	inVal := make([]bool, n)
	for _, i := range idx[:nVal] {
		inVal[i] = true
	}
	train = make([]Example, 0, n-nVal)
	validation = make([]Example, 0, nVal)
	for i, ex := range examples {
		if inVal[i] {
			validation = append(validation, ex)
		} else {
			train = append(train, ex)
		}
	}
	return train, validation
}
