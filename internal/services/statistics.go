package services

import (
	"math"
	"sort"

	"github.com/quantzone/zonekit/internal/models"
)

// Plain float64 numerics for the population analyses. Kept small and
// dependency-free; callers are responsible for handing in cleaned samples.

func mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stddev is the sample standard deviation.
func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	sum := 0.0
	for _, v := range values {
		diff := v - m
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func skewness(values []float64) float64 {
	n := float64(len(values))
	if n < 3 {
		return 0
	}
	m := mean(values)
	s := stddev(values)
	if s == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		z := (v - m) / s
		sum += z * z * z
	}
	return sum * n / ((n - 1) * (n - 2))
}

// kurtosis is excess kurtosis (normal = 0).
func kurtosis(values []float64) float64 {
	n := float64(len(values))
	if n < 4 {
		return 0
	}
	m := mean(values)
	s := stddev(values)
	if s == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		z := (v - m) / s
		sum += z * z * z * z
	}
	num := n * (n + 1) * sum
	den := (n - 1) * (n - 2) * (n - 3)
	correction := 3 * (n - 1) * (n - 1) / ((n - 2) * (n - 3))
	return num/den - correction
}

func weightedMean(values, weights []float64) float64 {
	if len(values) == 0 || len(values) != len(weights) {
		return math.NaN()
	}
	sum, wsum := 0.0, 0.0
	for i, v := range values {
		sum += v * weights[i]
		wsum += weights[i]
	}
	if wsum == 0 {
		return math.NaN()
	}
	return sum / wsum
}

func summarize(values []float64) models.FeatureSummary {
	if len(values) == 0 {
		return models.FeatureSummary{}
	}
	minV, maxV := values[0], values[0]
	for _, v := range values[1:] {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	return models.FeatureSummary{
		Count:  len(values),
		Mean:   mean(values),
		Std:    stddev(values),
		Min:    minV,
		Max:    maxV,
		Median: median(values),
	}
}

// normalCDF is the standard normal cumulative distribution function.
func normalCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

// jarqueBera tests a sample for normality. The statistic is asymptotically
// chi-square with two degrees of freedom, whose survival function has the
// closed form exp(-x/2).
func jarqueBera(values []float64) (statistic, pValue float64) {
	n := float64(len(values))
	if n < 4 {
		return 0, 1
	}
	s := skewness(values)
	k := kurtosis(values)
	statistic = n / 6 * (s*s + k*k/4)
	pValue = math.Exp(-statistic / 2)
	return statistic, pValue
}

// welchT runs Welch's unequal-variance t-test on two samples and returns the
// statistic and two-sided p-value.
func welchT(a, b []float64) (statistic, pValue float64) {
	na, nb := float64(len(a)), float64(len(b))
	if na < 2 || nb < 2 {
		return 0, 1
	}
	va := stddev(a) * stddev(a)
	vb := stddev(b) * stddev(b)
	se := math.Sqrt(va/na + vb/nb)
	if se == 0 {
		return 0, 1
	}
	statistic = (mean(a) - mean(b)) / se

	num := (va/na + vb/nb) * (va/na + vb/nb)
	den := va*va/(na*na*(na-1)) + vb*vb/(nb*nb*(nb-1))
	df := num / den
	if math.IsNaN(df) || df <= 0 {
		return statistic, 1
	}
	pValue = 2 * (1 - studentTCDF(math.Abs(statistic), df))
	return statistic, pValue
}

// mannWhitneyU runs the Mann-Whitney U test with the normal approximation,
// returning the z statistic and two-sided p-value.
func mannWhitneyU(a, b []float64) (statistic, pValue float64) {
	na, nb := float64(len(a)), float64(len(b))
	if na == 0 || nb == 0 {
		return 0, 1
	}

	type ranked struct {
		value float64
		fromA bool
	}
	all := make([]ranked, 0, len(a)+len(b))
	for _, v := range a {
		all = append(all, ranked{v, true})
	}
	for _, v := range b {
		all = append(all, ranked{v, false})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].value < all[j].value })

	// Average ranks over ties.
	ranks := make([]float64, len(all))
	for i := 0; i < len(all); {
		j := i
		for j < len(all) && all[j].value == all[i].value {
			j++
		}
		avg := float64(i+j+1) / 2 // ranks are 1-based
		for k := i; k < j; k++ {
			ranks[k] = avg
		}
		i = j
	}

	rankSumA := 0.0
	for i, r := range all {
		if r.fromA {
			rankSumA += ranks[i]
		}
	}

	u := rankSumA - na*(na+1)/2
	mu := na * nb / 2
	sigma := math.Sqrt(na * nb * (na + nb + 1) / 12)
	if sigma == 0 {
		return 0, 1
	}
	statistic = (u - mu) / sigma
	pValue = 2 * (1 - normalCDF(math.Abs(statistic)))
	return statistic, pValue
}

// dickeyFuller runs a lag-1 Dickey-Fuller test for a unit root in the given
// sequence. The null hypothesis is non-stationarity; statistics below the 5%
// critical value (-2.86, constant-only case) reject it.
func dickeyFuller(values []float64) (statistic float64, stationary bool) {
	if len(values) < 4 {
		return 0, false
	}
	n := len(values) - 1
	x := make([]float64, n) // y_{t-1}
	y := make([]float64, n) // delta y_t
	for t := 1; t <= n; t++ {
		x[t-1] = values[t-1]
		y[t-1] = values[t] - values[t-1]
	}

	// OLS of delta y on lagged level with intercept.
	mx, my := mean(x), mean(y)
	sxx, sxy := 0.0, 0.0
	for i := range x {
		sxx += (x[i] - mx) * (x[i] - mx)
		sxy += (x[i] - mx) * (y[i] - my)
	}
	if sxx == 0 {
		return 0, false
	}
	beta := sxy / sxx
	alpha := my - beta*mx

	rss := 0.0
	for i := range x {
		resid := y[i] - alpha - beta*x[i]
		rss += resid * resid
	}
	df := float64(n - 2)
	if df <= 0 || rss == 0 {
		return 0, false
	}
	se := math.Sqrt(rss / df / sxx)
	if se == 0 {
		return 0, false
	}
	statistic = beta / se
	return statistic, statistic < -2.86
}

// studentTCDF evaluates the Student t cumulative distribution function via
// the regularized incomplete beta function.
func studentTCDF(t, df float64) float64 {
	x := df / (df + t*t)
	p := 0.5 * regIncBeta(df/2, 0.5, x)
	if t > 0 {
		return 1 - p
	}
	return p
}

// regIncBeta is the regularized incomplete beta function I_x(a, b),
// evaluated with the standard continued-fraction expansion.
func regIncBeta(a, b, x float64) float64 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}
	lnBeta := lgamma(a+b) - lgamma(a) - lgamma(b)
	front := math.Exp(math.Log(x)*a+math.Log(1-x)*b+lnBeta) / a

	if x > (a+1)/(a+b+2) {
		return 1 - regIncBeta(b, a, 1-x)
	}

	// Lentz's algorithm for the continued fraction.
	const maxIter = 200
	const eps = 1e-12
	f, c, d := 1.0, 1.0, 0.0
	for i := 0; i <= maxIter; i++ {
		m := i / 2
		var numerator float64
		switch {
		case i == 0:
			numerator = 1
		case i%2 == 0:
			numerator = float64(m) * (b - float64(m)) * x / ((a + 2*float64(m) - 1) * (a + 2*float64(m)))
		default:
			numerator = -(a + float64(m)) * (a + b + float64(m)) * x / ((a + 2*float64(m)) * (a + 2*float64(m) + 1))
		}

		d = 1 + numerator*d
		if math.Abs(d) < 1e-30 {
			d = 1e-30
		}
		d = 1 / d
		c = 1 + numerator/c
		if math.Abs(c) < 1e-30 {
			c = 1e-30
		}
		f *= c * d
		if math.Abs(1-c*d) < eps {
			break
		}
	}
	return front * (f - 1)
}

func lgamma(x float64) float64 {
	v, _ := math.Lgamma(x)
	return v
}

// olsFit solves ordinary least squares with intercept via the normal
// equations (Gaussian elimination; predictor counts here are small).
// Returns coefficients aligned to the predictor columns, the intercept,
// and R squared.
func olsFit(predictors [][]float64, target []float64) (coefs []float64, intercept, r2 float64, ok bool) {
	n := len(target)
	p := len(predictors)
	if n < p+2 {
		return nil, 0, 0, false
	}
	for _, col := range predictors {
		if len(col) != n {
			return nil, 0, 0, false
		}
	}

	// Design matrix with leading intercept column.
	dim := p + 1
	xtx := make([][]float64, dim)
	xty := make([]float64, dim)
	for i := range xtx {
		xtx[i] = make([]float64, dim)
	}
	row := make([]float64, dim)
	for k := 0; k < n; k++ {
		row[0] = 1
		for j := 0; j < p; j++ {
			row[j+1] = predictors[j][k]
		}
		for i := 0; i < dim; i++ {
			for j := 0; j < dim; j++ {
				xtx[i][j] += row[i] * row[j]
			}
			xty[i] += row[i] * target[k]
		}
	}

	beta, solved := solveLinear(xtx, xty)
	if !solved {
		return nil, 0, 0, false
	}

	my := mean(target)
	ssTot, ssRes := 0.0, 0.0
	for k := 0; k < n; k++ {
		pred := beta[0]
		for j := 0; j < p; j++ {
			pred += beta[j+1] * predictors[j][k]
		}
		ssRes += (target[k] - pred) * (target[k] - pred)
		ssTot += (target[k] - my) * (target[k] - my)
	}
	if ssTot > 0 {
		r2 = 1 - ssRes/ssTot
	}
	return beta[1:], beta[0], r2, true
}

// solveLinear solves Ax = b by Gaussian elimination with partial pivoting.
func solveLinear(a [][]float64, b []float64) ([]float64, bool) {
	n := len(b)
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n+1)
		copy(m[i], a[i])
		m[i][n] = b[i]
	}

	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(m[r][col]) > math.Abs(m[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(m[pivot][col]) < 1e-12 {
			return nil, false
		}
		m[col], m[pivot] = m[pivot], m[col]

		for r := 0; r < n; r++ {
			if r == col {
				continue
			}
			factor := m[r][col] / m[col][col]
			for c := col; c <= n; c++ {
				m[r][c] -= factor * m[col][c]
			}
		}
	}

	x := make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = m[i][n] / m[i][i]
	}
	return x, true
}
