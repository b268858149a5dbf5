// Package route orders visits to points of interest: a single-vehicle
// traveling-salesman solve over a great-circle distance matrix, always
// starting from index 0. Instances are small (the stops visible around one
// player), so an exact solve is affordable up to a cutoff and a
// construct-and-improve heuristic covers the rest.
package route

import (
	"errors"
	"math"

	"github.com/talgya/pokebot/internal/geo"
)

// ErrNoRoute is returned when the solver cannot produce a feasible tour.
// It cannot happen for a finite distance matrix, but a degenerate input
// (NaN coordinates) must yield this rather than a partial route.
var ErrNoRoute = errors.New("route: no solution")

// exactLimit is the largest instance solved exactly; beyond it the planner
// falls back to nearest-neighbor construction with 2-opt improvement.
const exactLimit = 12

// Solve returns a visiting order over the given coordinates as indices
// into the input, starting at index 0 and containing every index exactly
// once. The minimized objective is the closed-tour cost (the caller
// decides whether to actually walk the return edge). An empty input
// returns an empty order without invoking the solver.
func Solve(points []geo.Coordinate) ([]int, float64, error) {
	n := len(points)
	if n == 0 {
		return nil, 0, nil
	}
	if n == 1 {
		return []int{0}, 0, nil
	}

	m := matrix(points)

	var order []int
	if n <= exactLimit {
		order = solveExact(m)
	} else {
		order = twoOpt(m, nearestNeighbor(m))
	}

	total := TourCost(m, order)
	if math.IsNaN(total) || math.IsInf(total, 0) {
		return nil, 0, ErrNoRoute
	}
	return order, total, nil
}

// matrix builds the full symmetric distance matrix with a zero diagonal.
// Duplicate coordinates produce zero-cost edges, which is legal.
func matrix(points []geo.Coordinate) [][]float64 {
	n := len(points)
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := geo.Distance(points[i], points[j])
			m[i][j] = d
			m[j][i] = d
		}
	}
	return m
}

// TourCost sums the closed-tour cost of an order over a distance matrix.
func TourCost(m [][]float64, order []int) float64 {
	if len(order) < 2 {
		return 0
	}
	total := 0.0
	for i := 1; i < len(order); i++ {
		total += m[order[i-1]][order[i]]
	}
	return total + m[order[len(order)-1]][order[0]]
}

// solveExact runs Held-Karp dynamic programming over subsets: optimal for
// the closed tour anchored at index 0. Memory is O(2^n * n), fine below
// the exact cutoff.
func solveExact(m [][]float64) []int {
	n := len(m)
	full := 1 << (n - 1) // subsets of {1..n-1}

	dp := make([][]float64, full)
	parent := make([][]int8, full)
	for mask := range dp {
		dp[mask] = make([]float64, n-1)
		parent[mask] = make([]int8, n-1)
		for i := range dp[mask] {
			dp[mask][i] = math.Inf(1)
			parent[mask][i] = -1
		}
	}

	// Base: tours 0 -> i.
	for i := 1; i < n; i++ {
		dp[1<<(i-1)][i-1] = m[0][i]
	}

	for mask := 1; mask < full; mask++ {
		for last := 1; last < n; last++ {
			bit := 1 << (last - 1)
			if mask&bit == 0 || math.IsInf(dp[mask][last-1], 1) {
				continue
			}
			base := dp[mask][last-1]
			for next := 1; next < n; next++ {
				nbit := 1 << (next - 1)
				if mask&nbit != 0 {
					continue
				}
				cand := base + m[last][next]
				if cand < dp[mask|nbit][next-1] {
					dp[mask|nbit][next-1] = cand
					parent[mask|nbit][next-1] = int8(last)
				}
			}
		}
	}

	// Close the tour back to 0 and pick the best endpoint.
	best := math.Inf(1)
	bestLast := 1
	for last := 1; last < n; last++ {
		c := dp[full-1][last-1] + m[last][0]
		if c < best {
			best = c
			bestLast = last
		}
	}

	// Reconstruct in reverse.
	order := make([]int, n)
	mask := full - 1
	last := bestLast
	for i := n - 1; i >= 1; i-- {
		order[i] = last
		prev := parent[mask][last-1]
		mask &^= 1 << (last - 1)
		if prev < 0 {
			break
		}
		last = int(prev)
	}
	order[0] = 0
	return order
}

// nearestNeighbor builds a greedy tour from index 0.
func nearestNeighbor(m [][]float64) []int {
	n := len(m)
	visited := make([]bool, n)
	order := make([]int, 1, n)
	visited[0] = true

	cur := 0
	for len(order) < n {
		next := -1
		bestD := math.Inf(1)
		for j := 0; j < n; j++ {
			if !visited[j] && m[cur][j] < bestD {
				bestD = m[cur][j]
				next = j
			}
		}
		visited[next] = true
		order = append(order, next)
		cur = next
	}
	return order
}

// twoOpt improves a tour by reversing segments until no swap helps,
// keeping index 0 fixed at the front.
func twoOpt(m [][]float64, order []int) []int {
	n := len(order)
	improved := true
	for improved {
		improved = false
		for i := 1; i < n-1; i++ {
			for j := i + 1; j < n; j++ {
				a, b := order[i-1], order[i]
				c, d := order[j], order[(j+1)%n]
				delta := m[a][c] + m[b][d] - m[a][b] - m[c][d]
				if delta < -1e-9 {
					for lo, hi := i, j; lo < hi; lo, hi = lo+1, hi-1 {
						order[lo], order[hi] = order[hi], order[lo]
					}
					improved = true
				}
			}
		}
	}
	return order
}
