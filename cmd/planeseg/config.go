package main

import (
	"errors"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/eecn/Plane-Detection/mat"
	"github.com/eecn/Plane-Detection/pcd/segmentation/multiplane"
)

type config struct {
	Threshold       float32   `yaml:"threshold"`
	MaxIterations   int       `yaml:"max_iterations"`
	NumPlanes       int       `yaml:"num_planes"`
	VoxelSize       float32   `yaml:"voxel_size"`
	Normal          []float32 `yaml:"normal"`
	NormalThreshold float64   `yaml:"normal_threshold"`
	Seed            int64     `yaml:"seed"`
}

func defaultConfig() config {
	return config{
		Threshold:       0.05,
		MaxIterations:   1000,
		NumPlanes:       1,
		VoxelSize:       0,
		NormalThreshold: 0.06,
	}
}

func loadConfig(path string, c *config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, c)
}

func (c config) options() (multiplane.Options, error) {
	opt := multiplane.Options{
		DistanceThreshold: c.Threshold,
		MaxIterations:     c.MaxIterations,
		NumPlanes:         c.NumPlanes,
		VoxelSize:         c.VoxelSize,
		NormalThreshold:   c.NormalThreshold,
		Seed:              c.Seed,
	}
	switch len(c.Normal) {
	case 0:
	case 3:
		n := mat.NewVec3(c.Normal[0], c.Normal[1], c.Normal[2])
		opt.Normal = &n
	default:
		return opt, errors.New("normal must have exactly 3 components")
	}
	return opt, opt.Validate()
}
