package sac

import (
	"math"
	"math/rand"

	"github.com/eecn/Plane-Detection/mat"
	"github.com/eecn/Plane-Detection/pcd"
)

const (
	minSampleSize = 3
	// MaxLOSamples is the number of inliers refit during one local
	// optimization round.
	MaxLOSamples = 20
	maxLOIters   = 10
	confidence   = 0.95
)

// Segment finds the plane supported by the most inliers using RANSAC with
// local optimization. mask must hold at least ra.Len() entries and is left
// matching the returned plane and count. When normal is non-nil, planes
// whose normal deviates from it by more than normalThr are discarded.
// Returns a zero count when fewer than 3 points are available.
func Segment(rng *rand.Rand, ra pcd.Vec3RandomAccessor, mask []bool, thr float32, maxIterations int, normal *mat.Vec3, normalThr float64) (Plane, int) {
	n := ra.Len()
	if n < minSampleSize {
		return Plane{}, 0
	}

	pool := make([]int, n)
	for i := range pool {
		pool[i] = i
	}
	minSample := make([]int, minSampleSize)
	inlierSample := make([]int, 0, MaxLOSamples)

	var best Plane
	bestInls, numInls := 0, 0

	for iter := 0; iter < maxIterations; iter++ {
		for i := range minSample {
			minSample[i] = rng.Intn(n)
		}
		model, ok := FitPlane(ra, minSample)
		if !ok {
			continue
		}
		if normal != nil && !model.SameNormal(*normal, normalThr) {
			continue
		}

		numInls = Inliers(mask, model, ra, thr, bestInls)
		if numInls <= bestInls {
			continue
		}
		best = model
		bestInls = numInls

		// Local optimization: refit from random subsets of the current
		// inliers to shake off minimal-sample noise.
		for loIter := 0; loIter < maxLOIters; loIter++ {
			rng.Shuffle(len(pool), func(i, j int) {
				pool[i], pool[j] = pool[j], pool[i]
			})
			inlierSample = inlierSample[:0]
			for _, p := range pool {
				if mask[p] {
					inlierSample = append(inlierSample, p)
					if len(inlierSample) >= MaxLOSamples {
						break
					}
				}
			}

			lo, ok := FitPlane(ra, inlierSample)
			if !ok {
				continue
			}
			if normal != nil && !lo.SameNormal(*normal, normalThr) {
				continue
			}

			numInls = Inliers(mask, lo, ra, thr, bestInls)
			if bestInls < numInls {
				best = lo
				bestInls = numInls
			} else if bestInls == numInls {
				break
			}
		}

		// With bestInls inliers out of n points, 95% confidence needs at
		// most maxHyp further hypotheses. The budget only ever shrinks.
		w := float64(float32(bestInls) / float32(n))
		maxHyp := 3 * math.Log(1-confidence) / math.Log(1-math.Pow(w, minSampleSize))
		if !math.IsInf(maxHyp, 0) && maxHyp < float64(maxIterations) {
			maxIterations = int(maxHyp)
		}
	}

	// The mask may still belong to the last rejected hypothesis; rebuild it
	// for the returned plane so mask and count always agree.
	if bestInls != 0 && bestInls >= numInls {
		bestInls = Inliers(mask, best, ra, thr, 0)
	}
	return best, bestInls
}
