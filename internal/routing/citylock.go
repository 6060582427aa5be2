package routing

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"delivery-planner/internal/models"
)

// cityLockedPartitioner splits candidates by city first, hands out route slots
// to cities in proportion to their candidate counts and partitions each city
// on its own. No group ever mixes cities.
type cityLockedPartitioner struct {
	inner Partitioner
}

func (p *cityLockedPartitioner) Partition(points []Point, k int) ([][]Point, error) {
	if err := checkPartitionInput(points, k); err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return emptyGroups(k), nil
	}

	buckets := groupByCity(points)
	if len(buckets) > k {
		return nil, &DegenerateGeometryError{
			Strategy: models.StrategyCityLocked,
			Reason:   fmt.Sprintf("%d cities for %d routes", len(buckets), k),
		}
	}
	if len(buckets) == 1 && len(points) > k && coincident(points) {
		return nil, &DegenerateGeometryError{Strategy: models.StrategyCityLocked, Reason: "all points coincide"}
	}

	counts := make([]int, len(buckets))
	for i, b := range buckets {
		counts[i] = len(b)
	}
	slots := allocateSlots(counts, k)

	groups := make([][]Point, 0, k)
	for i, b := range buckets {
		sub, err := p.inner.Partition(b, slots[i])
		var degenerate *DegenerateGeometryError
		if errors.As(err, &degenerate) {
			sub, err = mortonPartitioner{}.Partition(b, slots[i])
		}
		if err != nil {
			return nil, err
		}
		groups = append(groups, sub...)
	}
	for len(groups) < k {
		groups = append(groups, []Point{})
	}
	return groups, nil
}

// cityKey normalizes a city label; blank cities share one bucket
func cityKey(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}

// groupByCity buckets points by city in order of first appearance
func groupByCity(points []Point) [][]Point {
	index := make(map[string]int)
	var buckets [][]Point
	for _, p := range points {
		key := cityKey(p.City)
		i, ok := index[key]
		if !ok {
			i = len(buckets)
			index[key] = i
			buckets = append(buckets, nil)
		}
		buckets[i] = append(buckets[i], p)
	}
	return buckets
}

// allocateSlots gives each city round(k*count/total) slots, at least one and at
// most its count, then settles the remainder by largest fractional share.
// The result sums to min(k, total).
func allocateSlots(counts []int, k int) []int {
	total := 0
	for _, c := range counts {
		total += c
	}
	limit := k
	if total < limit {
		limit = total
	}

	quota := make([]float64, len(counts))
	alloc := make([]int, len(counts))
	sum := 0
	for i, c := range counts {
		quota[i] = float64(k) * float64(c) / float64(total)
		a := int(math.Round(quota[i]))
		if a < 1 {
			a = 1
		}
		if a > c {
			a = c
		}
		alloc[i] = a
		sum += a
	}

	for sum < limit {
		best, bestShare := -1, math.Inf(-1)
		for i := range alloc {
			if alloc[i] >= counts[i] {
				continue
			}
			if share := quota[i] - float64(alloc[i]); share > bestShare {
				best, bestShare = i, share
			}
		}
		if best < 0 {
			break
		}
		alloc[best]++
		sum++
	}
	for sum > limit {
		best, bestShare := -1, math.Inf(1)
		for i := range alloc {
			if alloc[i] <= 1 {
				continue
			}
			if share := quota[i] - float64(alloc[i]); share < bestShare {
				best, bestShare = i, share
			}
		}
		if best < 0 {
			break
		}
		alloc[best]--
		sum--
	}
	return alloc
}
