package strategy

// EMA is an exponential moving average with alpha = 2/(period+1), seeded
// with its first input.
type EMA struct {
	alpha  float64
	value  float64
	seeded bool
}

func NewEMA(period int) *EMA {
	if period < 1 {
		period = 1
	}
	return &EMA{alpha: 2 / float64(period+1)}
}

func (e *EMA) Update(x float64) float64 {
	if !e.seeded {
		e.value, e.seeded = x, true
		return x
	}
	e.value += e.alpha * (x - e.value)
	return e.value
}

func (e *EMA) Value() float64 { return e.value }

// RollingMean averages the last n inputs. It reads 0 until minCount inputs
// have been seen.
type RollingMean struct {
	buf      []float64
	next     int
	count    int
	minCount int
}

func NewRollingMean(n, minCount int) *RollingMean {
	if n < 1 {
		n = 1
	}
	return &RollingMean{buf: make([]float64, n), minCount: minCount}
}

func (r *RollingMean) Update(x float64) float64 {
	r.buf[r.next] = x
	r.next = (r.next + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
	if r.count < r.minCount {
		return 0
	}
	var sum float64
	for _, v := range r.buf[:r.count] {
		sum += v
	}
	return sum / float64(r.count)
}
