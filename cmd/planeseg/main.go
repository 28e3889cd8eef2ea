package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/eecn/Plane-Detection/mat"
	"github.com/eecn/Plane-Detection/pcd"
	"github.com/eecn/Plane-Detection/pcd/segmentation/multiplane"
)

func main() {
	configPath := flag.String("config", "", "YAML parameter file")
	out := flag.String("out", "labels.txt", "output label file, one label per point")
	thr := flag.Float64("threshold", 0, "inlier distance threshold")
	iters := flag.Int("iterations", 0, "max RANSAC iterations per plane")
	num := flag.Int("planes", 0, "desired number of planes")
	voxel := flag.Float64("voxel", 0, "voxel edge for downsampling, <=0 disables")
	seed := flag.Int64("seed", 0, "random seed, 0 draws one from the default source")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] cloud.{pcd,xyz}\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg := defaultConfig()
	if *configPath != "" {
		if err := loadConfig(*configPath, &cfg); err != nil {
			log.Fatalf("config: %v", err)
		}
	}
	// Explicit flags win over the config file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "threshold":
			cfg.Threshold = float32(*thr)
		case "iterations":
			cfg.MaxIterations = *iters
		case "planes":
			cfg.NumPlanes = *num
		case "voxel":
			cfg.VoxelSize = float32(*voxel)
		case "seed":
			cfg.Seed = *seed
		}
	})
	opt, err := cfg.options()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	in := flag.Arg(0)
	cloud, err := readCloud(in)
	if err != nil {
		log.Fatalf("%s: %v", in, err)
	}
	log.Printf("loaded %d points from %s", cloud.Len(), in)

	labels, planes, err := multiplane.Segment(cloud, opt)
	if err != nil {
		log.Fatalf("segment: %v", err)
	}

	for i, p := range planes {
		log.Printf("plane %d: %gx + %gy + %gz + %g = 0 (%d inliers)",
			i+1, p.Plane[0], p.Plane[1], p.Plane[2], p.Plane[3], p.Inliers)
	}
	if len(planes) < opt.NumPlanes {
		log.Printf("found %d of %d requested planes", len(planes), opt.NumPlanes)
	}

	if err := writeLabels(*out, labels); err != nil {
		log.Fatalf("%s: %v", *out, err)
	}
}

func readCloud(path string) (*pcd.PointCloud, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".pcd") {
		return pcd.Parse(f)
	}
	return readXYZ(f)
}

// readXYZ parses whitespace-separated x y z rows, skipping a header line
// if present.
func readXYZ(f *os.File) (*pcd.PointCloud, error) {
	var pts []mat.Vec3
	sc := bufio.NewScanner(f)
	for line := 0; sc.Scan(); line++ {
		words := strings.Fields(sc.Text())
		if len(words) == 0 {
			continue
		}
		if len(words) < 3 {
			return nil, fmt.Errorf("line %d: expected 3 coordinates", line+1)
		}
		var v mat.Vec3
		ok := true
		for i := 0; i < 3; i++ {
			x, err := strconv.ParseFloat(words[i], 32)
			if err != nil {
				if line == 0 {
					ok = false // header line
					break
				}
				return nil, fmt.Errorf("line %d: %w", line+1, err)
			}
			v[i] = float32(x)
		}
		if ok {
			pts = append(pts, v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return pcd.FromVec3Slice(pts), nil
}

func writeLabels(path string, labels []int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, l := range labels {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return w.Flush()
}
