package puzgen

import "math"

const (
	DefaultElo = 1500
	minElo     = 600
	maxElo     = 2800
)

func eloCoeff(elo int) int {
	if elo >= 2400 {
		return 10
	}
	if elo >= 2000 {
		return 20
	}
	return 40
}

func expectedScore(playerElo, puzzleElo int) float64 {
	return 1 / (1 + math.Pow(10, float64(puzzleElo-playerElo)/400))
}

// EstimateElo moves playerElo after a puzzle attempt. score is 1 for a
// solved puzzle, 0.5 for a comparable move and 0 for a miss. Without a puzzle
// rating both sides are considered equal.
func EstimateElo(playerElo, puzzleElo int, score float64) int {
	if playerElo <= 0 {
		playerElo = DefaultElo
	}
	expected := 0.5
	if puzzleElo > 0 {
		expected = expectedScore(playerElo, puzzleElo)
	}
	coeff := eloCoeff(playerElo)
	return playerElo + int(math.Round(float64(coeff)*(score-expected)))
}

// PuzzleElo rates a puzzle by how many moves the user has to find and how
// quiet the winning advantage is.
func PuzzleElo(score int, plies int) int {
	userMoves := (plies + 1) / 2
	elo := 1000 + 250*userMoves
	if score < 600 {
		elo += 200
	}
	return int(math.Min(maxElo, math.Max(minElo, float64(elo))))
}
