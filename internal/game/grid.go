package game

import (
	"hash/fnv"
	"math/rand"
	"sync"
	"time"
)

// Grid is one participant's private board, laid out row-major.
type Grid struct {
	Rows  int   `json:"rows"`
	Cols  int   `json:"cols"`
	Cells []int `json:"cells"`
}

func (g *Grid) At(row, col int) int {
	return g.Cells[row*g.Cols+col]
}

func (g *Grid) Contains(n int) bool {
	for _, c := range g.Cells {
		if c == n {
			return true
		}
	}
	return false
}

// Unmarked returns the grid numbers not yet in the shared marked pool.
func (g *Grid) Unmarked(marked map[int]bool) []int {
	out := make([]int, 0, len(g.Cells))
	for _, c := range g.Cells {
		if !marked[c] {
			out = append(out, c)
		}
	}
	return out
}

// expansionCap bounds how far past rows*cols the candidate range grows
// before the deterministic fallback takes over.
const expansionCap = 64

// Allocator hands out grids of numbers that are disjoint across the
// participants of one room.
type Allocator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewAllocator(seed int64) *Allocator {
	return &Allocator{rng: rand.New(rand.NewSource(seed))}
}

// Allocate draws rows*cols numbers starting from 1, skipping anything in
// used, expanding the range upward until enough are found. It returns
// the shuffled grid and a new used set including the drawn numbers; the
// caller commits both under the session lock. used is never mutated.
func (a *Allocator) Allocate(rows, cols int, used map[int]bool, username string) (*Grid, map[int]bool) {
	need := rows * cols
	limit := need * expansionCap

	selected := make([]int, 0, need)
	for n := 1; n <= limit && len(selected) < need; n++ {
		if !used[n] {
			selected = append(selected, n)
		}
	}
	if len(selected) < need {
		// Pathologically dense used set. Continue from a deterministic
		// start derived from time and the participant identity, still
		// strictly increasing so termination is guaranteed.
		for n := fallbackStart(limit, username); len(selected) < need; n++ {
			if !used[n] {
				selected = append(selected, n)
			}
		}
	}

	a.mu.Lock()
	a.rng.Shuffle(need, func(i, j int) {
		selected[i], selected[j] = selected[j], selected[i]
	})
	a.mu.Unlock()

	next := make(map[int]bool, len(used)+need)
	for n := range used {
		next[n] = true
	}
	for _, n := range selected {
		next[n] = true
	}
	return &Grid{Rows: rows, Cols: cols, Cells: selected}, next
}

func fallbackStart(limit int, username string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(username))
	offset := int(h.Sum32()%1024) + int(time.Now().UnixNano()%1024)
	return limit + 1 + offset
}
