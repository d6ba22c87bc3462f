package trainer

import "fmt"

// Solution is the correct answer for one exercise. User plies sit on even
// indices of Line, scripted opponent replies on odd ones.
type Solution struct {
	Line     []Move   `json:"moves"`
	Score    int      `json:"evaluationScore"`
	Comments []string `json:"comments,omitempty"`
}

func (s Solution) Validate() error {
	if len(s.Line) == 0 {
		return fmt.Errorf("%w: empty move line", ErrMalformedSolution)
	}
	if len(s.Comments) > len(s.Line) {
		return fmt.Errorf("%w: %d comments for %d plies", ErrMalformedSolution, len(s.Comments), len(s.Line))
	}
	return nil
}

func (s Solution) Expected(ply int) (Move, bool) {
	if ply < 0 || ply >= len(s.Line) {
		return Move{}, false
	}
	return s.Line[ply], true
}

func (s Solution) Reply(ply int) (Move, bool) {
	return s.Expected(ply + 1)
}

// IsLeaf reports whether ply is the last user ply of the line.
func (s Solution) IsLeaf(ply int) bool {
	return ply+2 >= len(s.Line)
}

// Remaining counts the plies of the line from ply on, both sides included.
func (s Solution) Remaining(ply int) int {
	if ply < 0 {
		ply = 0
	}
	if ply >= len(s.Line) {
		return 0
	}
	return len(s.Line) - ply
}

func (s Solution) Comment(ply int) string {
	if ply < 0 || ply >= len(s.Comments) {
		return ""
	}
	return s.Comments[ply]
}
