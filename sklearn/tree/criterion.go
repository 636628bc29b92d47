package tree

import "math"

// accumulator tracks label statistics of the samples on each side of a
// candidate threshold while the sorted samples are swept left to right.
type accumulator interface {
	reset(y []float64, idx []int)
	move(label float64)
	impurities() (left, right float64)
}

type classAccumulator struct {
	gini        bool
	left, right []float64
	nl, nr      float64
}

func newClassAccumulator(criterion string, nClasses int) *classAccumulator {
	return &classAccumulator{
		gini:  criterion != "entropy",
		left:  make([]float64, nClasses),
		right: make([]float64, nClasses),
	}
}

func (a *classAccumulator) reset(y []float64, idx []int) {
	for k := range a.left {
		a.left[k] = 0
		a.right[k] = 0
	}
	for _, i := range idx {
		a.right[int(y[i])]++
	}
	a.nl, a.nr = 0, float64(len(idx))
}

func (a *classAccumulator) move(label float64) {
	k := int(label)
	a.left[k]++
	a.right[k]--
	a.nl++
	a.nr--
}

func (a *classAccumulator) impurities() (float64, float64) {
	return a.impurity(a.left, a.nl), a.impurity(a.right, a.nr)
}

func (a *classAccumulator) impurity(counts []float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	if a.gini {
		sum := 0.0
		for _, c := range counts {
			p := c / n
			sum += p * p
		}
		return 1 - sum
	}
	h := 0.0
	for _, c := range counts {
		if c > 0 {
			p := c / n
			h -= p * math.Log2(p)
		}
	}
	return h
}

// varianceAccumulator implements the squared error criterion.
type varianceAccumulator struct {
	lsum, lsq, rsum, rsq float64
	nl, nr               float64
}

func (a *varianceAccumulator) reset(y []float64, idx []int) {
	*a = varianceAccumulator{}
	for _, i := range idx {
		a.rsum += y[i]
		a.rsq += y[i] * y[i]
	}
	a.nr = float64(len(idx))
}

func (a *varianceAccumulator) move(v float64) {
	a.lsum += v
	a.lsq += v * v
	a.rsum -= v
	a.rsq -= v * v
	a.nl++
	a.nr--
}

func (a *varianceAccumulator) impurities() (float64, float64) {
	return variance(a.lsum, a.lsq, a.nl), variance(a.rsum, a.rsq, a.nr)
}

func variance(sum, sq, n float64) float64 {
	if n == 0 {
		return 0
	}
	mean := sum / n
	v := sq/n - mean*mean
	if v < 0 {
		return 0
	}
	return v
}
