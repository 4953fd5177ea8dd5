package analyzer

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// GaussianSmooth convolves x with a normalized gaussian kernel of the given
// sigma. The kernel radius is 4*sigma and boundaries use reflect padding,
// so a constant input stays constant.
func GaussianSmooth(x []float64, sigma float64) []float64 {
	if len(x) == 0 || sigma <= 0 {
		out := make([]float64, len(x))
		copy(out, x)
		return out
	}

	radius := int(math.Ceil(4 * sigma))
	kernel := make([]float64, 2*radius+1)
	var sum float64
	for i := -radius; i <= radius; i++ {
		v := math.Exp(-float64(i*i) / (2 * sigma * sigma))
		kernel[i+radius] = v
		sum += v
	}
	for i := range kernel {
		kernel[i] /= sum
	}

	out := make([]float64, len(x))
	n := len(x)
	for i := range x {
		var acc float64
		for k := -radius; k <= radius; k++ {
			j := i + k
			// reflect: ... x[1] x[0] | x[0] x[1] ...
			for j < 0 || j >= n {
				if j < 0 {
					j = -j - 1
				}
				if j >= n {
					j = 2*n - j - 1
				}
			}
			acc += kernel[k+radius] * x[j]
		}
		out[i] = acc
	}
	return out
}

// AudioEnergy computes the sliding-window sum of squared amplitude over the
// waveform (50% overlap) and smooths the result. The returned series has one
// value per hop of window/2 samples.
func AudioEnergy(samples []float64, window int, sigma float64) []float64 {
	if window <= 0 || len(samples) <= window {
		return nil
	}
	hop := window / 2
	var energy []float64
	for i := 0; i < len(samples)-window; i += hop {
		var e float64
		for _, s := range samples[i : i+window] {
			e += s * s
		}
		energy = append(energy, e)
	}
	return GaussianSmooth(energy, sigma)
}

// LipMovement computes the movement signal of a sequence of flattened lip
// landmark vectors: the Euclidean norm of the difference between consecutive
// vectors, smoothed. The result has len(frames)-1 values.
func LipMovement(frames [][]float64, sigma float64) []float64 {
	if len(frames) < 2 {
		return nil
	}
	movement := make([]float64, 0, len(frames)-1)
	for i := 1; i < len(frames); i++ {
		prev, cur := frames[i-1], frames[i]
		n := len(cur)
		if len(prev) < n {
			n = len(prev)
		}
		var acc float64
		for j := 0; j < n; j++ {
			d := cur[j] - prev[j]
			acc += d * d
		}
		movement = append(movement, math.Sqrt(acc))
	}
	return GaussianSmooth(movement, sigma)
}

// Correlation computes the Pearson correlation of two series truncated to the
// shorter length, each z-score normalized first. Zero-variance input (or any
// other NaN outcome) maps to 0.0, never NaN. The result is in [-1, 1] and
// symmetric in its arguments.
func Correlation(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n < 2 {
		return 0
	}
	x := zscore(a[:n])
	y := zscore(b[:n])
	if x == nil || y == nil {
		return 0
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) {
		return 0
	}
	return r
}

// zscore returns (v - mean) / std, or nil for zero variance.
func zscore(v []float64) []float64 {
	mean, std := stat.MeanStdDev(v, nil)
	if std == 0 || math.IsNaN(std) {
		return nil
	}
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = (x - mean) / std
	}
	return out
}

// DTW computes the classic dynamic-time-warping distance between two numeric
// sequences, normalized by the sum of their lengths. The self-distance of any
// non-empty sequence is 0. Empty input yields +Inf.
func DTW(a, b []float64) float64 {
	n, m := len(a), len(b)
	if n == 0 || m == 0 {
		return math.Inf(1)
	}

	cost := make([][]float64, n+1)
	for i := range cost {
		cost[i] = make([]float64, m+1)
		for j := range cost[i] {
			cost[i][j] = math.Inf(1)
		}
	}
	cost[0][0] = 0

	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			d := math.Abs(a[i-1] - b[j-1])
			cost[i][j] = d + math.Min(cost[i-1][j], math.Min(cost[i][j-1], cost[i-1][j-1]))
		}
	}
	return cost[n][m] / float64(n+m)
}

// CosineSimilarity compares two feature vectors. Vectors of unequal length
// are compared over the shorter prefix; a zero-norm vector yields 0.
func CosineSimilarity(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
