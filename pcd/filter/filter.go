package filter

import (
	"github.com/eecn/Plane-Detection/pcd"
)

type Filter interface {
	Filter(*pcd.PointCloud) (*pcd.PointCloud, error)
}
