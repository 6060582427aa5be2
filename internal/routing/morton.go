package routing

import (
	"math"
	"sort"
)

const mortonGridMax = 1<<16 - 1

// mortonPartitioner orders points along a Z-order curve over a 16-bit grid and
// cuts the order into k contiguous runs whose sizes differ by at most one.
// All four axis flips are tried; the one with the smallest summed chunk span wins.
type mortonPartitioner struct{}

type axisFlip struct{ lat, lng bool }

var axisFlips = [4]axisFlip{{false, false}, {true, false}, {false, true}, {true, true}}

func (mortonPartitioner) Partition(points []Point, k int) ([][]Point, error) {
	if err := checkPartitionInput(points, k); err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return emptyGroups(k), nil
	}

	b := boundsOf(points)
	var best [][]Point
	bestScore := math.Inf(1)
	for _, flip := range axisFlips {
		groups := cutRuns(zOrder(points, b, flip), k)
		score := 0.0
		for _, g := range groups {
			score += boundsOf(g).span()
		}
		if score < bestScore {
			best, bestScore = groups, score
		}
	}
	return best, nil
}

func zOrder(points []Point, b bbox, flip axisFlip) []Point {
	codes := make([]uint32, len(points))
	for i, p := range points {
		x := quantize(p.Lng, b.minLng, b.maxLng, flip.lng)
		y := quantize(p.Lat, b.minLat, b.maxLat, flip.lat)
		codes[i] = spreadBits(x) | spreadBits(y)<<1
	}

	idx := make([]int, len(points))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, c int) bool { return codes[idx[a]] < codes[idx[c]] })

	ordered := make([]Point, len(points))
	for i, j := range idx {
		ordered[i] = points[j]
	}
	return ordered
}

func quantize(v, lo, hi float64, flip bool) uint32 {
	var q uint32
	if hi > lo {
		q = uint32(math.Round((v - lo) / (hi - lo) * mortonGridMax))
	}
	if flip {
		q = mortonGridMax - q
	}
	return q
}

// spreadBits inserts a zero bit between each of the low 16 bits of v
func spreadBits(v uint32) uint32 {
	v &= 0x0000ffff
	v = (v | v<<8) & 0x00ff00ff
	v = (v | v<<4) & 0x0f0f0f0f
	v = (v | v<<2) & 0x33333333
	v = (v | v<<1) & 0x55555555
	return v
}

// cutRuns splits ordered into k contiguous runs; the first n%k runs get one extra
func cutRuns(ordered []Point, k int) [][]Point {
	n := len(ordered)
	base, extra := n/k, n%k
	groups := make([][]Point, k)
	start := 0
	for i := range groups {
		size := base
		if i < extra {
			size++
		}
		groups[i] = append([]Point{}, ordered[start:start+size]...)
		start += size
	}
	return groups
}
