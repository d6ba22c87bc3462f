package trainer

// DefaultTolerance is the largest centipawn loss against the reference score
// still counted as a partial success.
const DefaultTolerance = 50

type Input struct {
	Mode     Mode
	Ply      int
	Played   Move
	Solution Solution
	// PlayedScore is the mover-perspective score of the position after
	// Played. Only consulted when Played leaves the solution line.
	PlayedScore *int
	Tolerance   int
}

type Outcome struct {
	Result      Result
	StudyResult StudyResult
	// Accepted is false when the board has to be rolled back.
	Accepted bool
	// Advance means the line continues at Ply+2 after Reply is played.
	Advance    bool
	Reply      *Move
	NeedsScore bool
	Terminal   bool
}

// Evaluate classifies a played move against the solution. It has no side
// effects; the caller validates the solution beforehand.
func Evaluate(in Input) Outcome {
	if in.Mode == ModeStudy {
		return evaluateStudy(in)
	}
	return evaluatePuzzle(in)
}

func evaluatePuzzle(in Input) Outcome {
	expected, ok := in.Solution.Expected(in.Ply)
	if ok && in.Played.matches(expected) {
		if in.Solution.IsLeaf(in.Ply) {
			return Outcome{Result: ResultSuccess, Accepted: true, Terminal: true}
		}
		return Outcome{
			Result:   ResultInProgress,
			Accepted: true,
			Advance:  true,
			Reply:    reply(in.Solution, in.Ply),
		}
	}

	if in.PlayedScore == nil {
		return Outcome{Result: ResultInProgress, NeedsScore: true}
	}
	if withinTolerance(in.Solution.Score, *in.PlayedScore, in.Tolerance) {
		return Outcome{Result: ResultPartialSuccess, Accepted: true, Terminal: true}
	}
	return Outcome{Result: ResultFailure, Accepted: true, Terminal: true}
}

func evaluateStudy(in Input) Outcome {
	expected, ok := in.Solution.Expected(in.Ply)
	if !ok || !in.Played.matches(expected) {
		return Outcome{Result: ResultInProgress, StudyResult: StudyIncorrect}
	}
	if in.Solution.IsLeaf(in.Ply) {
		return Outcome{
			Result:      ResultInProgress,
			StudyResult: StudySuccess,
			Accepted:    true,
			Reply:       reply(in.Solution, in.Ply),
			Terminal:    true,
		}
	}
	return Outcome{
		Result:      ResultInProgress,
		StudyResult: StudyGoodMove,
		Accepted:    true,
		Advance:     true,
		Reply:       reply(in.Solution, in.Ply),
	}
}

func withinTolerance(reference, played, tolerance int) bool {
	if tolerance < 0 {
		tolerance = DefaultTolerance
	}
	return reference-played <= tolerance
}

func reply(s Solution, ply int) *Move {
	m, ok := s.Reply(ply)
	if !ok {
		return nil
	}
	return &m
}
