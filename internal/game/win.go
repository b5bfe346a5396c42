package game

// WinThreshold is the number of completed lines a grid needs for its
// owner to win. It is independent of grid size on purpose: smaller
// grids win faster.
const WinThreshold = 5

type LineType string

const (
	LineRow      LineType = "row"
	LineColumn   LineType = "column"
	LineDiagonal LineType = "diagonal"
)

// Line describes one completed row, column, or diagonal. Diagonal index
// 0 is top-left to bottom-right, 1 the anti-diagonal.
type Line struct {
	Type  LineType `json:"type"`
	Index int      `json:"index"`
}

// CompletedLines reports every fully marked line of g under the shared
// marked pool, rows first, then columns, then diagonals. Diagonals only
// exist on square grids.
func CompletedLines(g *Grid, marked map[int]bool) []Line {
	var lines []Line

	for r := 0; r < g.Rows; r++ {
		done := true
		for c := 0; c < g.Cols; c++ {
			if !marked[g.At(r, c)] {
				done = false
				break
			}
		}
		if done {
			lines = append(lines, Line{Type: LineRow, Index: r})
		}
	}

	for c := 0; c < g.Cols; c++ {
		done := true
		for r := 0; r < g.Rows; r++ {
			if !marked[g.At(r, c)] {
				done = false
				break
			}
		}
		if done {
			lines = append(lines, Line{Type: LineColumn, Index: c})
		}
	}

	if g.Rows == g.Cols {
		done := true
		for i := 0; i < g.Rows; i++ {
			if !marked[g.At(i, i)] {
				done = false
				break
			}
		}
		if done {
			lines = append(lines, Line{Type: LineDiagonal, Index: 0})
		}
		done = true
		for i := 0; i < g.Rows; i++ {
			if !marked[g.At(i, g.Cols-1-i)] {
				done = false
				break
			}
		}
		if done {
			lines = append(lines, Line{Type: LineDiagonal, Index: 1})
		}
	}

	return lines
}

// Evaluate returns the completed lines and whether they meet the win
// threshold.
func Evaluate(g *Grid, marked map[int]bool) ([]Line, bool) {
	lines := CompletedLines(g, marked)
	return lines, len(lines) >= WinThreshold
}
