package routing

import (
	"sync"
)

// improveEpsilon is the minimum gain (miles) a local-search move must achieve
const improveEpsilon = 1e-9

// maxImproveRounds bounds the 2-opt and Or-opt outer loops
const maxImproveRounds = 1000

// Sequencer orders a group of points into an open path (no return leg).
// It builds several seed tours, improves each with 2-opt then Or-opt,
// and keeps the shortest. Ties keep the earliest seed.
type Sequencer struct {
	// SeedCount is the number of nearest-neighbour starts; when above one,
	// farthest insertion and an angular sweep are tried as well
	SeedCount int
	// Parallel improves seeds concurrently; results are identical either way
	Parallel bool
}

// Locks pins a stop to an end of the sequenced path
type Locks struct {
	First *int64
	Last  *int64
}

// NewSequencer returns a sequencer; seedCount below one is treated as one
func NewSequencer(seedCount int, parallel bool) *Sequencer {
	if seedCount < 1 {
		seedCount = 1
	}
	return &Sequencer{SeedCount: seedCount, Parallel: parallel}
}

// Sequence returns a new slice holding the same points in visiting order
func (s *Sequencer) Sequence(points []Point, locks Locks) []Point {
	var best []Point
	if len(points) <= 2 {
		best = append([]Point{}, points...)
	} else {
		best = s.bestOf(s.seeds(points))
	}
	return applyLocks(best, locks)
}

func (s *Sequencer) seeds(points []Point) [][]Point {
	n := len(points)
	count := s.SeedCount
	if count < 1 {
		count = 1
	}
	if count > n {
		count = n
	}

	seeds := make([][]Point, 0, count+2)
	for i := 0; i < count; i++ {
		seeds = append(seeds, nearestNeighbour(points, i*n/count))
	}
	if count > 1 {
		seeds = append(seeds, farthestInsertion(points))
		seeds = append(seeds, sweepOrder(points))
	}
	return seeds
}

func (s *Sequencer) bestOf(seeds [][]Point) []Point {
	improved := make([][]Point, len(seeds))
	if s.Parallel && len(seeds) > 1 {
		var wg sync.WaitGroup
		for i := range seeds {
			i := i
			wg.Add(1)
			go func() {
				defer wg.Done()
				improved[i] = orOpt(twoOpt(seeds[i]))
			}()
		}
		wg.Wait()
	} else {
		for i := range seeds {
			improved[i] = orOpt(twoOpt(seeds[i]))
		}
	}

	best := improved[0]
	bestLen := PathMiles(best)
	for _, path := range improved[1:] {
		if l := PathMiles(path); l < bestLen-improveEpsilon {
			best, bestLen = path, l
		}
	}
	return best
}

// nearestNeighbour walks greedily from points[start]; ties keep the first point
func nearestNeighbour(points []Point, start int) []Point {
	n := len(points)
	visited := make([]bool, n)
	path := make([]Point, 0, n)

	cur := start
	visited[cur] = true
	path = append(path, points[cur])
	for len(path) < n {
		next, nextD := -1, 0.0
		for i := range points {
			if visited[i] {
				continue
			}
			if d := dist(points[cur], points[i]); next < 0 || d < nextD {
				next, nextD = i, d
			}
		}
		visited[next] = true
		path = append(path, points[next])
		cur = next
	}
	return path
}

// farthestInsertion starts from the mutually farthest pair and repeatedly
// inserts the point farthest from the path at its cheapest position
func farthestInsertion(points []Point) []Point {
	n := len(points)
	a, b, far := 0, 1, -1.0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if d := dist(points[i], points[j]); d > far {
				a, b, far = i, j, d
			}
		}
	}

	inPath := make([]bool, n)
	inPath[a], inPath[b] = true, true
	path := make([]Point, 0, n)
	path = append(path, points[a], points[b])

	minD := make([]float64, n)
	for i := range points {
		minD[i] = min(dist(points[i], points[a]), dist(points[i], points[b]))
	}

	for len(path) < n {
		pick, pickD := -1, -1.0
		for i := range points {
			if !inPath[i] && minD[i] > pickD {
				pick, pickD = i, minD[i]
			}
		}
		p := points[pick]
		inPath[pick] = true

		pos, cost := 0, dist(p, path[0])
		for i := 1; i < len(path); i++ {
			if c := dist(path[i-1], p) + dist(p, path[i]) - dist(path[i-1], path[i]); c < cost {
				pos, cost = i, c
			}
		}
		if c := dist(path[len(path)-1], p); c < cost {
			pos = len(path)
		}
		path = insertPoint(path, p, pos)

		for i := range points {
			if d := dist(points[i], p); d < minD[i] {
				minD[i] = d
			}
		}
	}
	return path
}

// twoOpt reverses sub-segments while that shortens the open path.
// The wrap-around edge is never considered.
func twoOpt(path []Point) []Point {
	p := append([]Point{}, path...)
	n := len(p)
	if n < 3 {
		return p
	}

	for round := 0; round < maxImproveRounds; round++ {
		improved := false
		for i := 0; i < n-1; i++ {
			for j := i + 1; j < n; j++ {
				if i == 0 && j == n-1 {
					continue
				}
				delta := 0.0
				if i > 0 {
					delta += dist(p[i-1], p[j]) - dist(p[i-1], p[i])
				}
				if j < n-1 {
					delta += dist(p[i], p[j+1]) - dist(p[j], p[j+1])
				}
				if delta < -improveEpsilon {
					reversePoints(p[i : j+1])
					improved = true
				}
			}
		}
		if !improved {
			break
		}
	}
	return p
}

// orOpt relocates runs of one to three consecutive points, in either
// orientation, to the cheapest position elsewhere in the path
func orOpt(path []Point) []Point {
	p := append([]Point{}, path...)
	n := len(p)
	if n < 3 {
		return p
	}

	for round := 0; round < maxImproveRounds; round++ {
		if !orOptMove(p) {
			break
		}
	}
	return p
}

// orOptMove applies the first improving relocation found, in place
func orOptMove(p []Point) bool {
	n := len(p)
	for segLen := 1; segLen <= 3 && segLen < n; segLen++ {
		for i := 0; i+segLen <= n; i++ {
			first, last := p[i], p[i+segLen-1]
			hasPrev, hasNext := i > 0, i+segLen < n

			gain := 0.0
			if hasPrev {
				gain += dist(p[i-1], first)
			}
			if hasNext {
				gain += dist(last, p[i+segLen])
			}
			if hasPrev && hasNext {
				gain -= dist(p[i-1], p[i+segLen])
			}

			// rest is p without the segment; at(x) indexes into it
			restLen := n - segLen
			at := func(x int) Point {
				if x < i {
					return p[x]
				}
				return p[x+segLen]
			}

			for g := 0; g <= restLen; g++ {
				for _, reversed := range [2]bool{false, true} {
					if g == i && !reversed {
						continue
					}
					head, tail := first, last
					if reversed {
						head, tail = last, first
					}
					cost := 0.0
					if g > 0 {
						cost += dist(at(g-1), head)
					}
					if g < restLen {
						cost += dist(tail, at(g))
					}
					if g > 0 && g < restLen {
						cost -= dist(at(g-1), at(g))
					}
					if cost-gain < -improveEpsilon {
						relocate(p, i, segLen, g, reversed)
						return true
					}
				}
			}
		}
	}
	return false
}

// relocate moves p[i:i+segLen] to gap g of the remaining path, in place
func relocate(p []Point, i, segLen, g int, reversed bool) {
	seg := append([]Point{}, p[i:i+segLen]...)
	if reversed {
		reversePoints(seg)
	}
	rest := make([]Point, 0, len(p)-segLen)
	rest = append(rest, p[:i]...)
	rest = append(rest, p[i+segLen:]...)

	out := p[:0]
	out = append(out, rest[:g]...)
	out = append(out, seg...)
	out = append(out, rest[g:]...)
}

func applyLocks(path []Point, locks Locks) []Point {
	if locks.Last != nil {
		if i := indexOfID(path, *locks.Last); i >= 0 {
			p := path[i]
			path = append(path[:i:i], path[i+1:]...)
			path = append(path, p)
		}
	}
	if locks.First != nil {
		if i := indexOfID(path, *locks.First); i >= 0 {
			p := path[i]
			rest := append(path[:i:i], path[i+1:]...)
			path = append([]Point{p}, rest...)
		}
	}
	return path
}

func indexOfID(path []Point, id int64) int {
	for i, p := range path {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func insertPoint(path []Point, p Point, pos int) []Point {
	out := make([]Point, 0, len(path)+1)
	out = append(out, path[:pos]...)
	out = append(out, p)
	out = append(out, path[pos:]...)
	return out
}

func removePoint(path []Point, pos int) []Point {
	out := make([]Point, 0, len(path)-1)
	out = append(out, path[:pos]...)
	out = append(out, path[pos+1:]...)
	return out
}

func reversePoints(p []Point) {
	for i, j := 0, len(p)-1; i < j; i, j = i+1, j-1 {
		p[i], p[j] = p[j], p[i]
	}
}
