package pcd

import (
	"errors"

	"github.com/eecn/Plane-Detection/mat"
)

// ErrInvalidShape is returned when input data cannot be interpreted as
// 3-dimensional points.
var ErrInvalidShape = errors.New("invalid dimension of point")

type Vec3RandomAccessor interface {
	Vec3At(int) mat.Vec3
	Len() int
}

// PointCloud stores xyz coordinates as a flat row-major float32 buffer,
// three values per point. Point order is the caller's insertion order.
type PointCloud struct {
	Points int
	Data   []float32
}

func New(n int) *PointCloud {
	return &PointCloud{
		Points: n,
		Data:   make([]float32, 3*n),
	}
}

func FromVec3Slice(pts []mat.Vec3) *PointCloud {
	pc := New(len(pts))
	for i, p := range pts {
		pc.SetVec3(i, p)
	}
	return pc
}

// FromSlice interprets data as a rows×cols row-major matrix of point
// coordinates. A 3×n matrix is transposed to n×3. Data without a
// 3-sized dimension is rejected with ErrInvalidShape.
func FromSlice(data []float32, rows, cols int) (*PointCloud, error) {
	if rows < 0 || cols < 0 || len(data) != rows*cols {
		return nil, ErrInvalidShape
	}
	if rows < cols {
		rows, cols = cols, rows
		if cols != 3 {
			return nil, ErrInvalidShape
		}
		pc := New(rows)
		for i := 0; i < rows; i++ {
			pc.SetVec3(i, mat.Vec3{data[i], data[rows+i], data[2*rows+i]})
		}
		return pc, nil
	}
	if cols != 3 {
		return nil, ErrInvalidShape
	}
	pc := New(rows)
	copy(pc.Data, data)
	return pc, nil
}

func (pc *PointCloud) Len() int {
	return pc.Points
}

func (pc *PointCloud) Vec3At(i int) mat.Vec3 {
	return mat.Vec3{pc.Data[3*i], pc.Data[3*i+1], pc.Data[3*i+2]}
}

func (pc *PointCloud) SetVec3(i int, v mat.Vec3) {
	pc.Data[3*i] = v[0]
	pc.Data[3*i+1] = v[1]
	pc.Data[3*i+2] = v[2]
}
