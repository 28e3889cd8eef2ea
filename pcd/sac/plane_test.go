package sac

import (
	"math"
	"math/rand"
	"testing"

	"github.com/eecn/Plane-Detection/mat"
	"github.com/eecn/Plane-Detection/pcd"
)

func TestFitPlane_threePoints(t *testing.T) {
	pc := pcd.FromVec3Slice([]mat.Vec3{
		{0, 0, 2},
		{1, 0, 2},
		{0, 1, 2},
	})
	p, ok := FitPlane(pc, []int{0, 1, 2})
	if !ok {
		t.Fatal("FitPlane should succeed for non-collinear points")
	}

	n := p.Normalized()
	if c := math.Abs(float64(n[2])); c < 0.999 {
		t.Errorf("Expected normal along z, got: %v", p.Normal())
	}
	// All three points lie on the plane.
	for i := 0; i < 3; i++ {
		v := pc.Vec3At(i)
		d := math.Abs(float64(n[0]*v[0] + n[1]*v[1] + n[2]*v[2] + n[3]))
		if d > 1e-5 {
			t.Errorf("Point %d is off the fitted plane by %g", i, d)
		}
	}
}

func TestFitPlane_collinear(t *testing.T) {
	pc := pcd.FromVec3Slice([]mat.Vec3{
		{0, 0, 0},
		{1, 1, 1},
		{2, 2, 2},
		{1, 0, 0},
	})
	if _, ok := FitPlane(pc, []int{0, 1, 2}); ok {
		t.Error("Collinear sample must be rejected")
	}
	// A duplicated index reduces the sample to a line as well.
	if _, ok := FitPlane(pc, []int{0, 3, 3}); ok {
		t.Error("Sample with duplicated points must be rejected")
	}
	if _, ok := FitPlane(pc, []int{0, 1}); ok {
		t.Error("Sample with fewer than 3 indices must be rejected")
	}
}

func TestFitPlane_leastSquares(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	var pts []mat.Vec3
	ids := make([]int, 0, 200)
	for i := 0; i < 200; i++ {
		pts = append(pts, mat.Vec3{
			rng.Float32()*4 - 2,
			rng.Float32()*4 - 2,
			0.5 + (rng.Float32()-0.5)*0.02,
		})
		ids = append(ids, i)
	}
	pc := pcd.FromVec3Slice(pts)

	p, ok := FitPlane(pc, ids)
	if !ok {
		t.Fatal("FitPlane should succeed")
	}
	n := p.Normalized()
	if c := math.Abs(float64(n[2])); c < 0.999 {
		t.Errorf("Expected normal along z, got: %v", p.Normal())
	}
	// n[3]/n[2] is the signed plane offset along z.
	if off := float64(-n[3] / n[2]); math.Abs(off-0.5) > 0.01 {
		t.Errorf("Expected plane near z=0.5, got offset: %g", off)
	}
}

func TestPlane_SameNormal(t *testing.T) {
	p := Plane{0, 0, 2, -1} // z = 0.5, scaled normal

	for _, tt := range []struct {
		name     string
		target   mat.Vec3
		tol      float64
		expected bool
	}{
		{"aligned", mat.Vec3{0, 0, 1}, 0.06, true},
		{"alignedScaled", mat.Vec3{0, 0, 10}, 0.06, true},
		{"antiParallel", mat.Vec3{0, 0, -1}, 0.06, true},
		{"orthogonal", mat.Vec3{1, 0, 0}, 0.06, false},
		{"slightTilt", mat.Vec3{0.05, 0, 1}, 0.06, true},
		{"tiltTightTol", mat.Vec3{0.5, 0, 1}, 1e-6, false},
	} {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := p.SameNormal(tt.target, tt.tol); got != tt.expected {
				t.Errorf("SameNormal(%v, %g) = %v, expected %v", tt.target, tt.tol, got, tt.expected)
			}
		})
	}
}

func TestPlane_Same(t *testing.T) {
	p := Plane{0, 0, 1, -0.5}
	q := Plane{0, 0, 2, -1} // same plane, different scale
	r := Plane{0, 0, 1, 0.5}

	if !p.Same(q, 1e-7) {
		t.Error("Scaled coefficients describe the same plane")
	}
	if p.Same(r, 1e-7) {
		t.Error("Different offsets are not the same plane")
	}
}
