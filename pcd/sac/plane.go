package sac

import (
	"math"

	gmat "gonum.org/v1/gonum/mat"

	"github.com/eecn/Plane-Detection/mat"
	"github.com/eecn/Plane-Detection/pcd"
)

// Plane holds the coefficients (a, b, c, d) of a*x + b*y + c*z + d = 0.
// The normal (a, b, c) is not kept at unit length between operations.
type Plane [4]float32

func (p Plane) Normal() mat.Vec3 {
	return mat.Vec3{p[0], p[1], p[2]}
}

// Normalized scales the coefficients so that the normal has unit length.
func (p Plane) Normalized() Plane {
	m := 1 / p.Normal().Norm()
	return Plane{p[0] * m, p[1] * m, p[2] * m, p[3] * m}
}

// Same reports whether q describes nearly the same plane. Both planes are
// normalized as homogeneous 4-vectors and compared by squared distance.
func (p Plane) Same(q Plane, tol float64) bool {
	var hp, hq float64
	for i := 0; i < 4; i++ {
		hp += float64(p[i]) * float64(p[i])
		hq += float64(q[i]) * float64(q[i])
	}
	hp, hq = math.Sqrt(hp), math.Sqrt(hq)
	var d float64
	for i := 0; i < 4; i++ {
		e := float64(p[i])/hp - float64(q[i])/hq
		d += e * e
	}
	return d < tol
}

// SameNormal reports whether the plane normal is aligned with target within
// tol, testing (dot² − |n|²|t|²)² ≤ tol·|n|²|t|². The test is scale
// invariant and accepts the anti-parallel direction as well.
func (p Plane) SameNormal(target mat.Vec3, tol float64) bool {
	dot := float64(p[0])*float64(target[0]) +
		float64(p[1])*float64(target[1]) +
		float64(p[2])*float64(target[2])
	nSq := float64(p[0])*float64(p[0]) +
		float64(p[1])*float64(p[1]) +
		float64(p[2])*float64(p[2])
	tSq := float64(target[0])*float64(target[0]) +
		float64(target[1])*float64(target[1]) +
		float64(target[2])*float64(target[2])
	cosSq := dot * dot
	ntSq := nSq * tSq
	return (cosSq-ntSq)*(cosSq-ntSq) <= tol*ntSq
}

// Collinearity tolerance on (a·b)² − |a|²|b|², absolute.
const collinearTol = 1e-4

// FitPlane estimates a plane from the sampled points by total least
// squares: the normal is the eigenvector of the smallest eigenvalue of the
// centered scatter matrix. Exactly-3-point samples are rejected when
// collinear. Returns false when no valid plane can be estimated.
func FitPlane(ra pcd.Vec3RandomAccessor, sample []int) (Plane, bool) {
	if len(sample) < 3 {
		return Plane{}, false
	}
	if len(sample) == 3 {
		p0, p1, p2 := ra.Vec3At(sample[0]), ra.Vec3At(sample[1]), ra.Vec3At(sample[2])
		ba, ca := p0.Sub(p1), p0.Sub(p2)
		d := float64(ba.Dot(ca))
		if math.Abs(d*d-float64(ba.NormSq())*float64(ca.NormSq())) < collinearTol {
			return Plane{}, false
		}
	}

	var sx, sy, sz float64
	for _, id := range sample {
		p := ra.Vec3At(id)
		sx += float64(p[0])
		sy += float64(p[1])
		sz += float64(p[2])
	}
	n := float64(len(sample))
	cx, cy, cz := sx/n, sy/n, sz/n

	var xx, xy, xz, yy, yz, zz float64
	for _, id := range sample {
		p := ra.Vec3At(id)
		dx, dy, dz := float64(p[0])-cx, float64(p[1])-cy, float64(p[2])-cz
		xx += dx * dx
		xy += dx * dy
		xz += dx * dz
		yy += dy * dy
		yz += dy * dz
		zz += dz * dz
	}

	scatter := gmat.NewSymDense(3, []float64{
		xx, xy, xz,
		xy, yy, yz,
		xz, yz, zz,
	})
	var eig gmat.EigenSym
	if !eig.Factorize(scatter, true) {
		return Plane{}, false
	}
	var vec gmat.Dense
	eig.VectorsTo(&vec)

	// Eigenvalues are in ascending order, so the first column spans the
	// direction of least variance.
	a, b, c := vec.At(0, 0), vec.At(1, 0), vec.At(2, 0)
	if math.IsInf(a, 0) || math.IsInf(b, 0) || math.IsInf(c, 0) ||
		math.IsNaN(a) || math.IsNaN(b) || math.IsNaN(c) ||
		(a == 0 && b == 0 && c == 0) {
		return Plane{}, false
	}

	return Plane{
		float32(a), float32(b), float32(c),
		float32(-a*cx - b*cy - c*cz),
	}, true
}
