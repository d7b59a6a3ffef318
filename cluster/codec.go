package cluster

import (
	"encoding/binary"
	"fmt"
	"io"

	"web/powermap/site"
)

// Binary site record layout, little-endian throughout:
//
//	uint32  site count
//	int32   MinZoom, MaxZoom, MinSites
//	float64 Radius
//	int32   Extent, NodeSize
//	per site:
//	  uint32  ID
//	  float64 Lon, Lat
//	  string  Name            (uint32 length + bytes)
//	  uint32  technology count
//	  per technology: float64 value, string color, string label
//
// The same layout is used by the zstd snapshot stream and the mmap file.

func writeSites(w io.Writer, opts Options, sites []site.Feature) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(sites))); err != nil {
		return fmt.Errorf("failed to write site count: %w", err)
	}

	for _, v := range []int32{int32(opts.MinZoom), int32(opts.MaxZoom), int32(opts.MinSites)} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("failed to write options: %w", err)
		}
	}
	if err := binary.Write(w, binary.LittleEndian, opts.Radius); err != nil {
		return fmt.Errorf("failed to write options: %w", err)
	}
	for _, v := range []int32{int32(opts.Extent), int32(opts.NodeSize)} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("failed to write options: %w", err)
		}
	}

	for i := range sites {
		s := &sites[i]
		binary.Write(w, binary.LittleEndian, s.ID)
		binary.Write(w, binary.LittleEndian, s.Lon)
		binary.Write(w, binary.LittleEndian, s.Lat)
		if err := writeString(w, s.Name); err != nil {
			return err
		}
		binary.Write(w, binary.LittleEndian, uint32(len(s.Values)))
		for j, value := range s.Values {
			binary.Write(w, binary.LittleEndian, value)
			if err := writeString(w, s.Colors[j]); err != nil {
				return err
			}
			if err := writeString(w, s.Labels[j]); err != nil {
				return err
			}
		}
	}
	return nil
}

func readSites(r io.Reader) (Options, []site.Feature, error) {
	var opts Options

	var numSites uint32
	if err := binary.Read(r, binary.LittleEndian, &numSites); err != nil {
		return opts, nil, fmt.Errorf("failed to read site count: %w", err)
	}

	var minZoom, maxZoom, minSites, extent, nodeSize int32
	var radius float64
	for _, dst := range []interface{}{&minZoom, &maxZoom, &minSites, &radius, &extent, &nodeSize} {
		if err := binary.Read(r, binary.LittleEndian, dst); err != nil {
			return opts, nil, fmt.Errorf("failed to read options: %w", err)
		}
	}
	opts = Options{
		MinZoom:  int(minZoom),
		MaxZoom:  int(maxZoom),
		MinSites: int(minSites),
		Radius:   radius,
		Extent:   int(extent),
		NodeSize: int(nodeSize),
	}

	sites := make([]site.Feature, numSites)
	for i := range sites {
		s := &sites[i]
		if err := binary.Read(r, binary.LittleEndian, &s.ID); err != nil {
			return opts, nil, fmt.Errorf("failed to read site %d: %w", i, err)
		}
		binary.Read(r, binary.LittleEndian, &s.Lon)
		binary.Read(r, binary.LittleEndian, &s.Lat)

		name, err := readString(r)
		if err != nil {
			return opts, nil, fmt.Errorf("failed to read site %d name: %w", i, err)
		}
		s.Name = name

		var numTech uint32
		if err := binary.Read(r, binary.LittleEndian, &numTech); err != nil {
			return opts, nil, fmt.Errorf("failed to read site %d: %w", i, err)
		}
		s.Values = make([]float64, numTech)
		s.Colors = make([]string, numTech)
		s.Labels = make([]string, numTech)
		for j := uint32(0); j < numTech; j++ {
			if err := binary.Read(r, binary.LittleEndian, &s.Values[j]); err != nil {
				return opts, nil, fmt.Errorf("failed to read site %d values: %w", i, err)
			}
			if s.Colors[j], err = readString(r); err != nil {
				return opts, nil, fmt.Errorf("failed to read site %d colors: %w", i, err)
			}
			if s.Labels[j], err = readString(r); err != nil {
				return opts, nil, fmt.Errorf("failed to read site %d labels: %w", i, err)
			}
		}
	}

	return opts, sites, nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return fmt.Errorf("failed to write string length: %w", err)
	}
	if _, err := io.WriteString(w, s); err != nil {
		return fmt.Errorf("failed to write string: %w", err)
	}
	return nil
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// encodedSize returns the exact byte size of the record layout, used to
// pre-size the mmap file.
func encodedSize(sites []site.Feature) int64 {
	size := int64(4)          // site count
	size += 3*4 + 8 + 2*4     // options
	for i := range sites {
		s := &sites[i]
		size += 4 + 8 + 8                  // id, lon, lat
		size += 4 + int64(len(s.Name))     // name
		size += 4                          // technology count
		for j := range s.Values {
			size += 8
			size += 4 + int64(len(s.Colors[j]))
			size += 4 + int64(len(s.Labels[j]))
		}
	}
	return size
}
