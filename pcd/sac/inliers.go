package sac

import (
	"github.com/eecn/Plane-Detection/pcd"
)

// Inliers counts the points closer to the plane than thr and marks them in
// mask, which must hold at least ra.Len() entries.
//
// A positive bestSoFar enables pruning: the first 2/3 of the points are
// always evaluated, then scoring stops as soon as the count cannot reach
// bestSoFar even if every remaining point were an inlier. Points skipped by
// an early stop stay unmarked. With bestSoFar = 0 every point is evaluated,
// and the result is identical to what pruned scoring returns for any plane
// that beats bestSoFar.
func Inliers(mask []bool, plane Plane, ra pcd.Vec3RandomAccessor, thr float32, bestSoFar int) int {
	n := ra.Len()
	p := plane.Normalized()
	a, b, c, d := p[0], p[1], p[2], p[3]

	for i := 0; i < n; i++ {
		mask[i] = false
	}

	var num int
	cut := n * 2 / 3
	for i := 0; i < cut; i++ {
		v := ra.Vec3At(i)
		dist := a*v[0] + b*v[1] + c*v[2] + d
		if dist < 0 {
			dist = -dist
		}
		if dist < thr {
			mask[i] = true
			num++
		}
	}
	for i := cut; i < n; i++ {
		v := ra.Vec3At(i)
		dist := a*v[0] + b*v[1] + c*v[2] + d
		if dist < 0 {
			dist = -dist
		}
		if dist < thr {
			mask[i] = true
			num++
		}
		if num+n-i < bestSoFar {
			break
		}
	}
	return num
}
