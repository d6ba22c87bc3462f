package puzgen

import (
	"github.com/freeeve/uci"
	"github.com/google/uuid"
	"github.com/notnil/chess"
)

const (
	// MateScore folds mate-in-n into the centipawn scale as MateScore-n.
	MateScore = 100000
	// DecisiveScore is the smallest advantage worth a puzzle.
	DecisiveScore = 300
	// Tolerance is how close a second candidate may come to the best one.
	Tolerance = 50

	maxLinePlies = 5
)

func FoldScore(r uci.ScoreResult) int {
	if !r.Mate {
		return r.Score
	}
	if r.Score > 0 {
		return MateScore - r.Score
	}
	return -MateScore - r.Score
}

// CompareScores reports whether candidate is within tolerance of best.
func CompareScores(best, candidate, tolerance int) bool {
	return best-candidate <= tolerance
}

func filterLines(lines []Line, tolerance int) []Line {
	if len(lines) == 0 {
		return nil
	}
	base := lines[0]
	filtered := make([]Line, 0)
	for _, item := range lines {
		if CompareScores(base.Score, item.Score, tolerance) {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

// GeneratePuzzle turns the current position of game into a puzzle when the
// side to move has exactly one decisive continuation. The second result is
// false when the position is not a puzzle.
func GeneratePuzzle(game *chess.Game, ev Evaluator, watched map[string]bool) (Position, bool, error) {
	fen := game.FEN()
	if watched[fen] {
		return Position{}, false, nil
	}
	watched[fen] = true

	if game.Position().Status() != chess.NoMethod {
		return Position{}, false, nil
	}
	lines, err := ev.Analyse(fen)
	if err != nil {
		return Position{}, false, err
	}
	if len(lines) == 0 || lines[0].Score < DecisiveScore {
		return Position{}, false, nil
	}
	if len(filterLines(lines, Tolerance)) > 1 {
		return Position{}, false, nil
	}

	line, err := trimLine(fen, lines[0].Moves)
	if err != nil || len(line) == 0 {
		return Position{}, false, err
	}
	score, err := ReferenceScore(ev, fen, line)
	if err != nil {
		return Position{}, false, err
	}

	return Position{
		ID:          uuid.NewString(),
		Kind:        KindPuzzle,
		StartFEN:    fen,
		Line:        line,
		Score:       score,
		IsWhiteTurn: game.Position().Turn() == chess.White,
		TargetElo:   PuzzleElo(lines[0].Score, len(line)),
	}, true, nil
}

// trimLine keeps the legal prefix of an engine line, cut to end on a user
// ply.
func trimLine(fen string, moves []string) ([]string, error) {
	game, err := gameFromFEN(fen)
	if err != nil {
		return nil, err
	}
	line := make([]string, 0, maxLinePlies)
	for _, m := range moves {
		if len(line) == maxLinePlies {
			break
		}
		if err := playUCI(game, m); err != nil {
			break
		}
		line = append(line, m)
		if game.Position().Status() != chess.NoMethod {
			break
		}
	}
	if len(line)%2 == 0 && len(line) > 0 {
		line = line[:len(line)-1]
	}
	return line, nil
}
