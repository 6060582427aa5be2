package routing

import (
	"log"
	"math"
	"sort"

	"delivery-planner/internal/models"
)

const defaultBalanceCandidates = 8

// Balancer moves whole stops between routes to narrow the spread of route
// minutes. It never creates or drops stops.
type Balancer struct {
	weights      Weights
	targetSpread float64
	maxPasses    int
	softCap      float64
	cityLock     bool
	citySlack    float64
	candidates   int
	quick        *Sequencer
}

// BalanceReport describes what a Balance call did
type BalanceReport struct {
	Passes    int
	Converged bool
	Touched   []bool
}

// NewBalancer builds a balancer from planner options. City locking is active
// when the city_locked strategy is selected.
func NewBalancer(opts Options) *Balancer {
	softCap := opts.SoftCapFactor
	if softCap <= 0 {
		softCap = DefaultOptions().SoftCapFactor
	}
	return &Balancer{
		weights:      weightsOf(opts),
		targetSpread: opts.TargetSpreadMinutes,
		maxPasses:    opts.MaxPasses,
		softCap:      softCap,
		cityLock:     opts.Strategy == models.StrategyCityLocked,
		citySlack:    opts.CitySlackMinutes,
		candidates:   defaultBalanceCandidates,
		quick:        NewSequencer(1, false),
	}
}

type balanceMove struct {
	donor, recipient int
	stop             int
	newDonor         []Point
	newRecipient     []Point
	score            float64
}

// Balance rebalances routes in place. Each pass accepts at most one move;
// it stops when the spread meets the target, when no improving move exists
// or after maxPasses.
func (b *Balancer) Balance(routes [][]Point) BalanceReport {
	report := BalanceReport{Touched: make([]bool, len(routes))}
	if len(routes) < 2 {
		report.Converged = true
		return report
	}

	total := 0
	for _, r := range routes {
		total += len(r)
	}
	softCap := int(math.Ceil(float64(total) / float64(len(routes)) * b.softCap))
	if softCap < 1 {
		softCap = 1
	}
	keepOne := total >= len(routes)

	for report.Passes < b.maxPasses {
		minutes := make([]float64, len(routes))
		for i, r := range routes {
			minutes[i] = b.weights.PathMinutes(r)
		}
		target, spread := meanAndSpread(minutes)
		if spread <= b.targetSpread {
			report.Converged = true
			return report
		}

		move, ok := b.findMove(routes, minutes, target, softCap, keepOne)
		if !ok {
			report.Converged = true
			return report
		}

		moved := routes[move.donor][move.stop]
		routes[move.donor] = move.newDonor
		routes[move.recipient] = move.newRecipient
		report.Touched[move.donor] = true
		report.Touched[move.recipient] = true
		report.Passes++

		log.Printf("[BALANCE] Moved stop %d from route %d to %d (minutes: %.1f/%.1f, target %.1f)",
			moved.ID, move.donor, move.recipient, minutes[move.donor], minutes[move.recipient], target)
	}
	return report
}

// findMove scans donors longest-first and recipients shortest-first and
// returns the best move of the first pair that has an improving one
func (b *Balancer) findMove(routes [][]Point, minutes []float64, target float64, softCap int, keepOne bool) (balanceMove, bool) {
	var donors, recipients []int
	for i, m := range minutes {
		switch {
		case m > target:
			donors = append(donors, i)
		case m < target:
			recipients = append(recipients, i)
		}
	}
	sort.SliceStable(donors, func(i, j int) bool { return minutes[donors[i]] > minutes[donors[j]] })
	sort.SliceStable(recipients, func(i, j int) bool { return minutes[recipients[i]] < minutes[recipients[j]] })

	for _, d := range donors {
		if keepOne && len(routes[d]) <= 1 {
			continue
		}
		for _, r := range recipients {
			if len(routes[r])+1 > softCap {
				continue
			}
			current := math.Abs(minutes[d]-target) + math.Abs(minutes[r]-target)

			best := balanceMove{score: current}
			found := false
			for _, idx := range b.candidateStops(routes[d], routes[r]) {
				stop := routes[d][idx]
				cross := b.crossesCity(stop, routes[r])
				if cross && minutes[d]-target <= b.citySlack {
					continue
				}
				newDonor := b.quick.Sequence(removePoint(routes[d], idx), Locks{})
				newRecipient := b.quick.Sequence(append(append([]Point{}, routes[r]...), stop), Locks{})
				recipientMinutes := b.weights.PathMinutes(newRecipient)
				score := math.Abs(b.weights.PathMinutes(newDonor)-target) +
					math.Abs(recipientMinutes-target)
				if cross {
					// a lock break must leave the recipient at or under the mean
					if recipientMinutes > target {
						continue
					}
					score += b.citySlack
				}
				if score < best.score-improveEpsilon {
					best = balanceMove{
						donor: d, recipient: r, stop: idx,
						newDonor: newDonor, newRecipient: newRecipient,
						score: score,
					}
					found = true
				}
			}
			if found {
				return best, true
			}
		}
	}
	return balanceMove{}, false
}

// candidateStops returns donor indexes worth trying: those closest to the
// recipient centroid, or for an empty recipient those farthest from the
// donor's own centroid
func (b *Balancer) candidateStops(donor, recipient []Point) []int {
	idx := make([]int, len(donor))
	for i := range idx {
		idx[i] = i
	}

	if len(recipient) == 0 {
		c := centroid(donor)
		sort.SliceStable(idx, func(i, j int) bool {
			return haversineMiles(c, donor[idx[i]].Coordinates) > haversineMiles(c, donor[idx[j]].Coordinates)
		})
	} else {
		c := centroid(recipient)
		sort.SliceStable(idx, func(i, j int) bool {
			return haversineMiles(c, donor[idx[i]].Coordinates) < haversineMiles(c, donor[idx[j]].Coordinates)
		})
	}

	if len(idx) > b.candidates {
		idx = idx[:b.candidates]
	}
	return idx
}

// crossesCity reports whether moving stop into recipient would break the
// city lock. Moves into an empty route never do.
func (b *Balancer) crossesCity(stop Point, recipient []Point) bool {
	if !b.cityLock || len(recipient) == 0 {
		return false
	}
	return cityKey(stop.City) != cityKey(recipient[0].City)
}

func meanAndSpread(minutes []float64) (float64, float64) {
	if len(minutes) == 0 {
		return 0, 0
	}
	sum := 0.0
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, m := range minutes {
		sum += m
		lo = math.Min(lo, m)
		hi = math.Max(hi, m)
	}
	return sum / float64(len(minutes)), hi - lo
}
