package pcd

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	lzf "github.com/zhuyie/golzf"

	ifloat "github.com/eecn/Plane-Detection/pcd/internal/float"
)

type Format int

const (
	Ascii Format = iota
	Binary
	BinaryCompressed
)

type pcdHeader struct {
	fields []string
	size   []int
	typ    []string
	count  []int
	width  int
	height int
	points int
	format Format
}

// Parse reads a PCD file and extracts the x, y, z fields into a PointCloud.
// Other fields are skipped.
func Parse(r io.Reader) (*PointCloud, error) {
	rb := bufio.NewReader(r)
	var h pcdHeader

L_HEADER:
	for {
		line, _, err := rb.ReadLine()
		if err != nil {
			return nil, err
		}
		args := strings.Fields(string(line))
		if len(args) == 0 || strings.HasPrefix(args[0], "#") {
			continue
		}
		if len(args) < 2 {
			return nil, errors.New("header field must have value")
		}
		switch args[0] {
		case "FIELDS":
			h.fields = args[1:]
		case "SIZE":
			h.size = make([]int, len(args)-1)
			for i, s := range args[1:] {
				if h.size[i], err = strconv.Atoi(s); err != nil {
					return nil, err
				}
			}
		case "TYPE":
			h.typ = args[1:]
		case "COUNT":
			h.count = make([]int, len(args)-1)
			for i, s := range args[1:] {
				if h.count[i], err = strconv.Atoi(s); err != nil {
					return nil, err
				}
			}
		case "WIDTH":
			if h.width, err = strconv.Atoi(args[1]); err != nil {
				return nil, err
			}
		case "HEIGHT":
			if h.height, err = strconv.Atoi(args[1]); err != nil {
				return nil, err
			}
		case "POINTS":
			if h.points, err = strconv.Atoi(args[1]); err != nil {
				return nil, err
			}
		case "DATA":
			switch args[1] {
			case "ascii":
				h.format = Ascii
			case "binary":
				h.format = Binary
			case "binary_compressed":
				h.format = BinaryCompressed
			default:
				return nil, errors.New("unknown data format")
			}
			break L_HEADER
		}
	}
	if len(h.fields) != len(h.size) {
		return nil, errors.New("size field size is wrong")
	}
	if len(h.fields) != len(h.typ) {
		return nil, errors.New("type field size is wrong")
	}
	if len(h.fields) != len(h.count) {
		return nil, errors.New("count field size is wrong")
	}
	if h.points == 0 {
		h.points = h.width * h.height
	}

	// Byte offset and ascii column of each coordinate field.
	var off, col [3]int
	var found int
	stride, column := 0, 0
	for i, name := range h.fields {
		switch name {
		case "x", "y", "z":
			j := int(name[0] - 'x')
			if h.typ[i] != "F" || h.size[i] != 4 {
				return nil, fmt.Errorf("field %s must be a 4-byte float", name)
			}
			off[j] = stride
			col[j] = column
			found++
		}
		stride += h.size[i] * h.count[i]
		column += h.count[i]
	}
	if found != 3 {
		return nil, errors.New("x, y, z fields are required")
	}

	pc := New(h.points)

	switch h.format {
	case Ascii:
		sc := bufio.NewScanner(rb)
		for p := 0; p < h.points; p++ {
			if !sc.Scan() {
				return nil, io.ErrUnexpectedEOF
			}
			words := strings.Fields(sc.Text())
			if len(words) < column {
				return nil, errors.New("wrong number of ascii values")
			}
			for j := 0; j < 3; j++ {
				f, err := strconv.ParseFloat(words[col[j]], 32)
				if err != nil {
					return nil, err
				}
				pc.Data[3*p+j] = float32(f)
			}
		}
	case Binary:
		b := make([]byte, stride*h.points)
		if _, err := io.ReadFull(rb, b); err != nil {
			return nil, err
		}
		// Clouds written by Marshal carry no extra fields; reinterpret the
		// whole payload instead of decoding point by point.
		if stride == 12 && off == [3]int{0, 4, 8} {
			copy(pc.Data, ifloat.ByteSliceAsFloat32Slice(b))
			break
		}
		for p := 0; p < h.points; p++ {
			base := p * stride
			for j := 0; j < 3; j++ {
				u := binary.LittleEndian.Uint32(b[base+off[j]:])
				pc.Data[3*p+j] = math.Float32frombits(u)
			}
		}
	case BinaryCompressed:
		var nCompressed, nUncompressed int32
		if err := binary.Read(rb, binary.LittleEndian, &nCompressed); err != nil {
			return nil, err
		}
		if err := binary.Read(rb, binary.LittleEndian, &nUncompressed); err != nil {
			return nil, err
		}
		b, err := io.ReadAll(rb)
		if err != nil {
			return nil, err
		}
		if int(nCompressed) > len(b) {
			return nil, errors.New("short compressed payload")
		}
		dec := make([]byte, nUncompressed)
		n, err := lzf.Decompress(b[:nCompressed], dec)
		if err != nil {
			return nil, err
		}
		if int(nUncompressed) != n {
			return nil, errors.New("wrong uncompressed size")
		}

		// Compressed payload is laid out field by field.
		head := make([]int, len(h.fields))
		pos := 0
		for i := range h.fields {
			head[i] = pos
			pos += h.size[i] * h.count[i] * h.points
		}
		fieldHead := func(name string) int {
			for i, fn := range h.fields {
				if fn == name {
					return head[i]
				}
			}
			return -1
		}
		hx, hy, hz := fieldHead("x"), fieldHead("y"), fieldHead("z")
		for p := 0; p < h.points; p++ {
			pc.Data[3*p] = math.Float32frombits(binary.LittleEndian.Uint32(dec[hx+4*p:]))
			pc.Data[3*p+1] = math.Float32frombits(binary.LittleEndian.Uint32(dec[hy+4*p:]))
			pc.Data[3*p+2] = math.Float32frombits(binary.LittleEndian.Uint32(dec[hz+4*p:]))
		}
	}

	return pc, nil
}

// Marshal writes the cloud as an xyz-only PCD file.
func Marshal(pc *PointCloud, w io.Writer, format Format) error {
	var dataName string
	switch format {
	case Ascii:
		dataName = "ascii"
	case Binary:
		dataName = "binary"
	case BinaryCompressed:
		dataName = "binary_compressed"
	default:
		return errors.New("unknown data format")
	}
	_, err := fmt.Fprintf(w,
		"VERSION .7\nFIELDS x y z\nSIZE 4 4 4\nTYPE F F F\nCOUNT 1 1 1\nWIDTH %d\nHEIGHT 1\nVIEWPOINT 0 0 0 1 0 0 0\nPOINTS %d\nDATA %s\n",
		pc.Points, pc.Points, dataName)
	if err != nil {
		return err
	}

	switch format {
	case Ascii:
		for p := 0; p < pc.Points; p++ {
			if _, err := fmt.Fprintf(w, "%g %g %g\n",
				pc.Data[3*p], pc.Data[3*p+1], pc.Data[3*p+2]); err != nil {
				return err
			}
		}
	case Binary:
		if _, err := w.Write(ifloat.Float32SliceAsByteSlice(pc.Data)); err != nil {
			return err
		}
	case BinaryCompressed:
		soa := make([]float32, 3*pc.Points)
		for p := 0; p < pc.Points; p++ {
			soa[p] = pc.Data[3*p]
			soa[pc.Points+p] = pc.Data[3*p+1]
			soa[2*pc.Points+p] = pc.Data[3*p+2]
		}
		raw := ifloat.Float32SliceAsByteSlice(soa)
		buf := make([]byte, len(raw)+len(raw)/16+64+3)
		n, err := lzf.Compress(raw, buf)
		if err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, int32(n)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, int32(len(raw))); err != nil {
			return err
		}
		if _, err := w.Write(buf[:n]); err != nil {
			return err
		}
	}
	return nil
}
