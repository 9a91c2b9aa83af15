package graph

// Layout controls node placement on the editor canvas.
type Layout struct {
	StartX            int `json:"startX" yaml:"startX"`
	StartY            int `json:"startY" yaml:"startY"`
	HorizontalSpacing int `json:"horizontalSpacing" yaml:"horizontalSpacing"`
	VerticalSpacing   int `json:"verticalSpacing" yaml:"verticalSpacing"`
}

// DefaultLayout is a left-to-right flow starting at (250, 300).
var DefaultLayout = Layout{
	StartX:            250,
	StartY:            300,
	HorizontalSpacing: 220,
	VerticalSpacing:   150,
}

// Positions places steps left to right. A parallelizable step that directly
// follows another parallelizable step stays in the same column and moves
// down; any other step opens a new column at the baseline. The first step
// sits at the start position.
func (l Layout) Positions(steps []Step) [][2]int {
	out := make([][2]int, len(steps))
	x, y := l.StartX, l.StartY
	for i := range steps {
		switch {
		case i == 0:
		case joinsColumn(steps, i):
			y += l.VerticalSpacing
		default:
			x += l.HorizontalSpacing
			y = l.StartY
		}
		out[i] = [2]int{x, y}
	}
	return out
}

// joinsColumn reports whether step i stacks under step i-1.
func joinsColumn(steps []Step, i int) bool {
	if i == 0 {
		return false
	}
	cur, prev := steps[i], steps[i-1]
	return cur.Parallelizable && prev.Parallelizable &&
		cur.Kind != KindErrorHandler && prev.Kind != KindErrorHandler
}
