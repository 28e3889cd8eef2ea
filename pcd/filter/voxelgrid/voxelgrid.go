package voxelgrid

import (
	"math"

	"github.com/eecn/Plane-Detection/pcd"
	"github.com/eecn/Plane-Detection/pcd/filter"
)

type Options struct {
	LeafSize float32
}

type voxelGrid struct {
	Options
}

// New creates a downsampling filter keeping one representative point per
// occupied voxel of the given edge length. A non-positive leaf size makes
// the filter pass clouds through unchanged.
func New(leafSize float32) filter.Filter {
	return &voxelGrid{
		Options: Options{
			LeafSize: leafSize,
		},
	}
}

// Voxel indices are packed into 21 bits per axis. Indices are relative to
// the cloud minimum, so they are never negative.
func packKey(x, y, z int) uint64 {
	return uint64(x)&0x1fffff | (uint64(y)&0x1fffff)<<21 | (uint64(z)&0x1fffff)<<42
}

func (f *voxelGrid) Filter(pc *pcd.PointCloud) (*pcd.PointCloud, error) {
	if f.LeafSize <= 0 || pc.Len() == 0 {
		return pc, nil
	}
	min, _, err := pcd.MinMaxVec3(pc)
	if err != nil {
		return nil, err
	}

	buckets := make(map[uint64][]int, pc.Len()/50+1)
	// Buckets are emitted in first-touch order to keep the output
	// deterministic for a given input.
	order := make([]uint64, 0, pc.Len()/50+1)
	for i := 0; i < pc.Len(); i++ {
		p := pc.Vec3At(i).Sub(min)
		key := packKey(
			int(p[0]/f.LeafSize),
			int(p[1]/f.LeafSize),
			int(p[2]/f.LeafSize),
		)
		ids, ok := buckets[key]
		if !ok {
			order = append(order, key)
		}
		buckets[key] = append(ids, i)
	}

	out := pcd.New(len(buckets))
	for j, key := range order {
		ids := buckets[key]

		var sx, sy, sz float32
		for _, id := range ids {
			p := pc.Vec3At(id)
			sx += p[0]
			sy += p[1]
			sz += p[2]
		}
		n := float32(len(ids))
		cx, cy, cz := sx/n, sy/n, sz/n

		// The member closest to the centroid represents the voxel, so no
		// point absent from the input is ever introduced.
		best := ids[0]
		minDist := float32(math.MaxFloat32)
		for _, id := range ids {
			p := pc.Vec3At(id)
			dx, dy, dz := p[0]-cx, p[1]-cy, p[2]-cz
			d := dx*dx + dy*dy + dz*dz
			if d < minDist {
				minDist = d
				best = id
			}
		}
		out.SetVec3(j, pc.Vec3At(best))
	}
	return out, nil
}
