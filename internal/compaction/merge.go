package compaction

import (
	"math"

	"github.com/manpreetbhatti/sketchboard/internal/protocol"
)

// Relative tolerance for the collinearity test
const collinearEpsilon = 1e-9

// MergeCollinear joins runs of consecutive segments that continue each other
// in a straight line with the same pen. Segment ends are round, so the merged
// segment covers exactly the pixels of the run. The input is not modified.
func MergeCollinear(history []protocol.DrawStroke) []protocol.DrawStroke {
	out := make([]protocol.DrawStroke, 0, len(history))
	for _, s := range history {
		if n := len(out); n > 0 && continues(out[n-1], s) {
			out[n-1].X1 = s.X1
			out[n-1].Y1 = s.Y1
			continue
		}
		out = append(out, s)
	}
	return out
}

func continues(prev, next protocol.DrawStroke) bool {
	if prev.Color != next.Color || prev.LineWidth != next.LineWidth {
		return false
	}
	if prev.X1 != next.X0 || prev.Y1 != next.Y0 {
		return false
	}

	ax, ay := prev.X1-prev.X0, prev.Y1-prev.Y0
	bx, by := next.X1-next.X0, next.Y1-next.Y0

	// A zero-length segment is a dot under the round cap of its neighbour
	if (ax == 0 && ay == 0) || (bx == 0 && by == 0) {
		return true
	}

	cross := ax*by - ay*bx
	scale := math.Hypot(ax, ay) * math.Hypot(bx, by)
	if math.Abs(cross) > collinearEpsilon*scale {
		return false
	}
	return ax*bx+ay*by > 0
}
