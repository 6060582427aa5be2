package routing

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delivery-planner/internal/testutil"
)

func shuffled(points []Point, seed int64) []Point {
	out := append([]Point{}, points...)
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func idsOf(path []Point) []int64 {
	ids := make([]int64, len(path))
	for i, p := range path {
		ids[i] = p.ID
	}
	return ids
}

func TestLocalSearchNeverWorsens(t *testing.T) {
	points := pointsOf(testutil.Cluster(21, 1, 30, "", testutil.Monsey, 4))

	for seed := int64(0); seed < 10; seed++ {
		path := shuffled(points, seed)
		before := PathMiles(path)

		afterTwoOpt := twoOpt(path)
		assert.LessOrEqual(t, PathMiles(afterTwoOpt), before+1e-9, "2-opt seed %d", seed)
		assert.ElementsMatch(t, idsOf(path), idsOf(afterTwoOpt))

		afterOrOpt := orOpt(path)
		assert.LessOrEqual(t, PathMiles(afterOrOpt), before+1e-9, "or-opt seed %d", seed)
		assert.ElementsMatch(t, idsOf(path), idsOf(afterOrOpt))
	}
}

func TestLocalSearchLeavesInputUntouched(t *testing.T) {
	path := shuffled(pointsOf(testutil.Line(1, 8, testutil.Lakewood, 1)), 3)
	before := idsOf(path)

	twoOpt(path)
	orOpt(path)

	assert.Equal(t, before, idsOf(path))
}

func TestSequenceRecoversLine(t *testing.T) {
	line := pointsOf(testutil.Line(1, 12, testutil.Lakewood, 0.5))
	want := PathMiles(line)

	path := NewSequencer(4, false).Sequence(shuffled(line, 9), Locks{})

	require.Len(t, path, len(line))
	assert.InDelta(t, want, PathMiles(path), 1e-6)
}

func TestSequenceDeterministic(t *testing.T) {
	points := pointsOf(testutil.Cluster(5, 1, 40, "", testutil.Lakewood, 6))

	serial := NewSequencer(4, false)
	parallel := NewSequencer(4, true)

	first := serial.Sequence(points, Locks{})
	assert.Equal(t, idsOf(first), idsOf(serial.Sequence(points, Locks{})))
	assert.Equal(t, idsOf(first), idsOf(parallel.Sequence(points, Locks{})))
}

func TestSequenceSeedsImproveOnSingleStart(t *testing.T) {
	points := pointsOf(testutil.Cluster(13, 1, 35, "", testutil.Lakewood, 6))

	one := NewSequencer(1, false).Sequence(points, Locks{})
	many := NewSequencer(6, false).Sequence(points, Locks{})

	assert.LessOrEqual(t, PathMiles(many), PathMiles(one)+1e-9)
}

func TestSequenceLocks(t *testing.T) {
	points := pointsOf(testutil.Ring(1, 10, testutil.Monsey, 2))
	first, last := int64(4), int64(7)

	path := NewSequencer(3, false).Sequence(points, Locks{First: &first, Last: &last})

	require.Len(t, path, 10)
	assert.Equal(t, first, path[0].ID)
	assert.Equal(t, last, path[len(path)-1].ID)
	assert.ElementsMatch(t, idsOf(points), idsOf(path))
}

func TestSequenceLockUnknownIDIgnored(t *testing.T) {
	points := pointsOf(testutil.Line(1, 5, testutil.Lakewood, 1))
	missing := int64(99)

	path := NewSequencer(1, false).Sequence(points, Locks{First: &missing})

	assert.ElementsMatch(t, idsOf(points), idsOf(path))
}

func TestSequenceTinyInputs(t *testing.T) {
	s := NewSequencer(4, false)

	assert.Empty(t, s.Sequence(nil, Locks{}))

	two := pointsOf(testutil.Line(1, 2, testutil.Lakewood, 1))
	assert.Equal(t, []int64{1, 2}, idsOf(s.Sequence(two, Locks{})))
}

func TestFarthestInsertionKeepsAllPoints(t *testing.T) {
	points := pointsOf(testutil.Cluster(17, 1, 25, "", testutil.Lakewood, 3))

	path := farthestInsertion(points)

	assert.ElementsMatch(t, idsOf(points), idsOf(path))
}
