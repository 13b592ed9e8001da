package services

import (
	"math"
	"math/rand"
	"sort"

	"github.com/quantzone/zonekit/internal/models"
)

// clusterZones runs k-means over the requested feature subset. It returns
// nil plus a reason when the zone population cannot support the requested
// cluster count; the caller records that as a degraded analysis, not an
// error.
func clusterZones(zones []*models.Zone, cfg models.ClusteringConfig) (*models.ClusteringResult, string) {
	if cfg.NumClusters < 1 {
		return nil, "invalid cluster count"
	}
	if len(zones) < cfg.NumClusters {
		return nil, "insufficient zones"
	}

	features := cfg.Features
	if len(features) == 0 {
		features = sharedFeatureKeys(zones)
	}
	if len(features) == 0 {
		return nil, "no shared numeric features"
	}
	sort.Strings(features)

	// Assemble the observation matrix; zones missing a requested feature are
	// left out rather than imputed.
	var points [][]float64
	var ids []string
	for _, zone := range zones {
		row := make([]float64, len(features))
		complete := true
		for j, key := range features {
			v, ok := zone.Features[key]
			if !ok || math.IsNaN(v) {
				complete = false
				break
			}
			row[j] = v
		}
		if complete {
			points = append(points, row)
			ids = append(ids, zone.ID)
		}
	}
	if len(points) < cfg.NumClusters {
		return nil, "insufficient zones"
	}

	standardize(points)
	assignments, centroids := kMeans(points, cfg.NumClusters, 100)

	byID := make(map[string]int, len(ids))
	for i, id := range ids {
		byID[id] = assignments[i]
	}
	return &models.ClusteringResult{
		K:           cfg.NumClusters,
		Features:    features,
		Assignments: byID,
		Centroids:   centroids,
	}, ""
}

// sharedFeatureKeys returns the feature keys present on every zone, sorted.
func sharedFeatureKeys(zones []*models.Zone) []string {
	if len(zones) == 0 {
		return nil
	}
	var keys []string
	for key := range zones[0].Features {
		shared := true
		for _, zone := range zones[1:] {
			if _, ok := zone.Features[key]; !ok {
				shared = false
				break
			}
		}
		if shared {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// standardize scales each column to zero mean and unit variance in place.
func standardize(points [][]float64) {
	if len(points) == 0 {
		return
	}
	dims := len(points[0])
	for j := 0; j < dims; j++ {
		col := make([]float64, len(points))
		for i := range points {
			col[i] = points[i][j]
		}
		m, s := mean(col), stddev(col)
		if s == 0 {
			s = 1
		}
		for i := range points {
			points[i][j] = (points[i][j] - m) / s
		}
	}
}

// kMeans clusters points with a fixed seed so identical inputs always yield
// identical assignments.
func kMeans(points [][]float64, k, maxIter int) ([]int, [][]float64) {
	rng := rand.New(rand.NewSource(1))
	dims := len(points[0])

	// k-means++ style seeding.
	centroids := make([][]float64, 0, k)
	first := rng.Intn(len(points))
	centroids = append(centroids, append([]float64(nil), points[first]...))
	for len(centroids) < k {
		dists := make([]float64, len(points))
		total := 0.0
		for i, p := range points {
			best := math.MaxFloat64
			for _, c := range centroids {
				if d := sqDist(p, c); d < best {
					best = d
				}
			}
			dists[i] = best
			total += best
		}
		pick := 0
		if total > 0 {
			r := rng.Float64() * total
			for i, d := range dists {
				r -= d
				if r <= 0 {
					pick = i
					break
				}
			}
		} else {
			pick = rng.Intn(len(points))
		}
		centroids = append(centroids, append([]float64(nil), points[pick]...))
	}

	assignments := make([]int, len(points))
	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i, p := range points {
			best, bestDist := 0, math.MaxFloat64
			for c, centroid := range centroids {
				if d := sqDist(p, centroid); d < bestDist {
					best, bestDist = c, d
				}
			}
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}

		counts := make([]int, k)
		next := make([][]float64, k)
		for c := range next {
			next[c] = make([]float64, dims)
		}
		for i, p := range points {
			c := assignments[i]
			counts[c]++
			for j, v := range p {
				next[c][j] += v
			}
		}
		for c := range next {
			if counts[c] == 0 {
				copy(next[c], centroids[c])
				continue
			}
			for j := range next[c] {
				next[c][j] /= float64(counts[c])
			}
		}
		centroids = next

		if !changed {
			break
		}
	}
	return assignments, centroids
}

func sqDist(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
