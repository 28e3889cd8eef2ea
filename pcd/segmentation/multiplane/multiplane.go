package multiplane

import (
	"errors"
	"math/rand"

	"github.com/eecn/Plane-Detection/mat"
	"github.com/eecn/Plane-Detection/pcd"
	"github.com/eecn/Plane-Detection/pcd/filter/voxelgrid"
	"github.com/eecn/Plane-Detection/pcd/sac"
)

// Refinement against the full-resolution cloud reuses the candidate as the
// initial model, so far fewer rounds are needed than in the search phase.
const refineLOIters = 3

type Options struct {
	// DistanceThreshold is the inlier distance to a plane. Must be > 0.
	DistanceThreshold float32
	// MaxIterations caps the RANSAC hypotheses per plane. Must be > 0.
	MaxIterations int
	// NumPlanes is the desired number of planes. Must be >= 1. Fewer may
	// be returned when the cloud does not support more.
	NumPlanes int
	// VoxelSize is the downsampling voxel edge used while searching for
	// candidate planes. Zero or negative disables downsampling.
	VoxelSize float32
	// Normal, when non-nil, constrains accepted planes to normals aligned
	// with it (either direction) within NormalThreshold.
	Normal          *mat.Vec3
	NormalThreshold float64
	// Seed makes the extraction deterministic when non-zero. With a zero
	// seed the process-wide source is used.
	Seed int64
}

func (o Options) Validate() error {
	if o.DistanceThreshold <= 0 {
		return errors.New("distance threshold must be positive")
	}
	if o.MaxIterations <= 0 {
		return errors.New("max iterations must be positive")
	}
	if o.NumPlanes < 1 {
		return errors.New("at least one plane must be requested")
	}
	return nil
}

// PlaneSupport pairs an extracted plane with its inlier count on the
// full-resolution cloud.
type PlaneSupport struct {
	Plane   sac.Plane
	Inliers int
}

// Segment extracts up to opt.NumPlanes dominant planes from the cloud.
//
// Candidate planes are first collected by repeated RANSAC on the optionally
// downsampled cloud, removing the inliers of each found plane before
// searching for the next. Every candidate is then re-optimized against the
// full-resolution cloud and ranked by inlier count.
//
// The returned labels hold one entry per input point: 0 for unassigned, or
// the 1-based rank of the plane the point belongs to (1 = most inliers).
// Planes are returned in rank order; entries with equal counts keep their
// discovery order.
func Segment(cloud *pcd.PointCloud, opt Options) ([]int, []PlaneSupport, error) {
	if err := opt.Validate(); err != nil {
		return nil, nil, err
	}
	seed := opt.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	rng := rand.New(rand.NewSource(seed))

	labels := make([]int, cloud.Len())

	candidates, err := collectCandidates(rng, cloud, opt)
	if err != nil {
		return nil, nil, err
	}
	if len(candidates) == 0 {
		return labels, nil, nil
	}

	planes := refineAndLabel(rng, cloud, candidates, labels, opt)
	return labels, planes, nil
}

// collectCandidates is the search phase: planes are found one by one on a
// shrinking working set, each round excluding the inliers found so far.
func collectCandidates(rng *rand.Rand, cloud *pcd.PointCloud, opt Options) ([]sac.Plane, error) {
	fit, err := voxelgrid.New(opt.VoxelSize).Filter(cloud)
	if err != nil {
		return nil, err
	}

	mask := make([]bool, fit.Len())
	var candidates []sac.Plane
	for numPlanes := 1; numPlanes <= opt.NumPlanes; numPlanes++ {
		plane, inls := sac.Segment(rng, fit, mask, opt.DistanceThreshold,
			opt.MaxIterations, opt.Normal, opt.NormalThreshold)
		if inls == 0 {
			break
		}
		candidates = append(candidates, plane)
		if numPlanes == opt.NumPlanes {
			break
		}
		fit = removeMasked(fit, mask, inls)
	}
	return candidates, nil
}

// refineAndLabel is the optimization phase: every candidate is refit on the
// remaining full-resolution points, inserted into the ranked plane list and
// its inliers are labeled with the plane's rank.
func refineAndLabel(rng *rand.Rand, cloud *pcd.PointCloud, candidates []sac.Plane, labels []int, opt Options) []PlaneSupport {
	pts := cloud
	origIdx := make([]int, cloud.Len())
	for i := range origIdx {
		origIdx[i] = i
	}
	mask := make([]bool, cloud.Len())
	inlierSample := make([]int, 0, sac.MaxLOSamples)

	var counts []int
	var planes []PlaneSupport

	for num, cand := range candidates {
		n := pts.Len()
		pool := make([]int, n)
		for i := range pool {
			pool[i] = i
		}

		best := cand
		bestInls := sac.Inliers(mask, best, pts, opt.DistanceThreshold, 0)
		loInls := 0
		for loIter := 0; loIter < refineLOIters; loIter++ {
			rng.Shuffle(len(pool), func(i, j int) {
				pool[i], pool[j] = pool[j], pool[i]
			})
			inlierSample = inlierSample[:0]
			for _, p := range pool {
				if mask[p] {
					inlierSample = append(inlierSample, p)
					if len(inlierSample) >= sac.MaxLOSamples {
						break
					}
				}
			}

			lo, ok := sac.FitPlane(pts, inlierSample)
			if !ok {
				continue
			}
			if opt.Normal != nil && !lo.SameNormal(*opt.Normal, opt.NormalThreshold) {
				continue
			}

			loInls = sac.Inliers(mask, lo, pts, opt.DistanceThreshold, bestInls)
			if bestInls < loInls {
				best = lo
				bestInls = loInls
			} else if bestInls == loInls {
				break
			}
		}
		// Unless the last optimization round confirmed the adopted model,
		// the mask belongs to a rejected refit; rebuild it without pruning.
		if bestInls >= loInls {
			bestInls = sac.Inliers(mask, best, pts, opt.DistanceThreshold, 0)
		}

		// Stable descending insertion: planes found later never move ahead
		// of an equal-count plane found earlier.
		e := 0
		for e < len(planes) && counts[e] >= bestInls {
			e++
		}
		counts = append(counts, 0)
		copy(counts[e+1:], counts[e:])
		counts[e] = bestInls
		planes = append(planes, PlaneSupport{})
		copy(planes[e+1:], planes[e:])
		planes[e] = PlaneSupport{Plane: best, Inliers: bestInls}

		// Planes previously ranked at or below the insertion point moved
		// down one rank; shift their labels so that label k always names
		// the k-th ranked plane.
		if e < len(planes)-1 {
			for i, l := range labels {
				if l > e {
					labels[i] = l + 1
				}
			}
		}
		rank := e + 1

		if num == len(candidates)-1 {
			for p := 0; p < n; p++ {
				if mask[p] {
					labels[origIdx[p]] = rank
				}
			}
			break
		}

		// Compact the working set; the original-index remap shrinks in
		// lockstep and removed inliers are labeled on the way out.
		next := pcd.New(n - bestInls)
		c := 0
		for p := 0; p < n; p++ {
			if mask[p] {
				labels[origIdx[p]] = rank
				continue
			}
			origIdx[c] = origIdx[p]
			next.SetVec3(c, pts.Vec3At(p))
			c++
		}
		pts = next
	}
	return planes
}

// removeMasked builds a new cloud from the unmasked points, preserving
// their relative order.
func removeMasked(pc *pcd.PointCloud, mask []bool, inls int) *pcd.PointCloud {
	out := pcd.New(pc.Len() - inls)
	c := 0
	for p := 0; p < pc.Len(); p++ {
		if !mask[p] {
			out.SetVec3(c, pc.Vec3At(p))
			c++
		}
	}
	return out
}
