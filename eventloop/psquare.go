package eventloop

// pSquareQuantile estimates a single quantile of a stream in constant space,
// using the P-square algorithm (Jain and Chlamtac, CACM 28(10), 1985). Five
// markers track the minimum, the p/2, p and (1+p)/2 quantiles, and the
// maximum; their heights are nudged with a piecewise-parabolic formula as
// observations arrive.
//
// Not safe for concurrent use.
type pSquareQuantile struct {
	heights [5]float64
	pos     [5]int
	desired [5]float64
	step    [5]float64
	p       float64
	count   int
}

func newPSquareQuantile(p float64) *pSquareQuantile {
	p = min(max(p, 0), 1)
	return &pSquareQuantile{
		p:    p,
		step: [5]float64{0, p / 2, p, (1 + p) / 2, 1},
	}
}

// Update adds an observation.
func (x *pSquareQuantile) Update(v float64) {
	x.count++

	// the first five observations seed the markers, kept sorted
	if x.count <= 5 {
		i := x.count - 1
		for i > 0 && x.heights[i-1] > v {
			x.heights[i] = x.heights[i-1]
			i--
		}
		x.heights[i] = v
		if x.count == 5 {
			for i := range x.pos {
				x.pos[i] = i
			}
			x.desired = [5]float64{0, 2 * x.p, 4 * x.p, 2 + 2*x.p, 4}
		}
		return
	}

	var cell int
	switch {
	case v < x.heights[0]:
		x.heights[0] = v
		cell = 0
	case v >= x.heights[4]:
		x.heights[4] = v
		cell = 3
	default:
		for cell = 0; cell < 3; cell++ {
			if v < x.heights[cell+1] {
				break
			}
		}
	}

	for i := cell + 1; i < 5; i++ {
		x.pos[i]++
	}
	for i := range x.desired {
		x.desired[i] += x.step[i]
	}

	for i := 1; i < 4; i++ {
		d := x.desired[i] - float64(x.pos[i])
		if (d >= 1 && x.pos[i+1]-x.pos[i] > 1) || (d <= -1 && x.pos[i-1]-x.pos[i] < -1) {
			sign := 1
			if d < 0 {
				sign = -1
			}
			h := x.parabolic(i, sign)
			if h <= x.heights[i-1] || h >= x.heights[i+1] {
				h = x.linear(i, sign)
			}
			x.heights[i] = h
			x.pos[i] += sign
		}
	}
}

func (x *pSquareQuantile) parabolic(i, sign int) float64 {
	d := float64(sign)
	n, prev, next := float64(x.pos[i]), float64(x.pos[i-1]), float64(x.pos[i+1])
	return x.heights[i] + d/(next-prev)*
		((n-prev+d)*(x.heights[i+1]-x.heights[i])/(next-n)+
			(next-n-d)*(x.heights[i]-x.heights[i-1])/(n-prev))
}

func (x *pSquareQuantile) linear(i, sign int) float64 {
	j := i + sign
	return x.heights[i] + float64(sign)*(x.heights[j]-x.heights[i])/float64(x.pos[j]-x.pos[i])
}

// Quantile returns the current estimate, exact for fewer than five
// observations.
func (x *pSquareQuantile) Quantile() float64 {
	switch {
	case x.count == 0:
		return 0
	case x.count < 5:
		return x.heights[int(float64(x.count-1)*x.p)]
	default:
		return x.heights[2]
	}
}

// pSquareMultiQuantile tracks several quantiles of one stream.
type pSquareMultiQuantile struct {
	estimators []*pSquareQuantile
	count      int
}

func newPSquareMultiQuantile(percentiles ...float64) *pSquareMultiQuantile {
	m := &pSquareMultiQuantile{estimators: make([]*pSquareQuantile, len(percentiles))}
	for i, p := range percentiles {
		m.estimators[i] = newPSquareQuantile(p)
	}
	return m
}

func (m *pSquareMultiQuantile) Update(v float64) {
	m.count++
	for _, e := range m.estimators {
		e.Update(v)
	}
}

// Quantile returns the estimate for the i-th configured percentile.
func (m *pSquareMultiQuantile) Quantile(i int) float64 {
	if i < 0 || i >= len(m.estimators) {
		return 0
	}
	return m.estimators[i].Quantile()
}

func (m *pSquareMultiQuantile) Count() int { return m.count }
