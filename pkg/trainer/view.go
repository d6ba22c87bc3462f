package trainer

// View is the read-only snapshot handed to the presentation layer.
type View struct {
	Mode            Mode        `json:"mode"`
	Result          Result      `json:"result"`
	StudyResult     StudyResult `json:"studyResult"`
	Feedback        StudyResult `json:"feedback"`
	Mistake         bool        `json:"mistake"`
	MovePlayed      string      `json:"movePlayed,omitempty"`
	GameMove        string      `json:"gameMove,omitempty"`
	EvaluationScore int         `json:"evaluationScore"`
	PlayedScore     *int        `json:"playedScore,omitempty"`
	Turn            string      `json:"turn"`
	FEN             string      `json:"fen"`
	URL             string      `json:"url,omitempty"`
	Loading         bool        `json:"loading"`
	LoadFailed      bool        `json:"loadFailed"`
	// MovesLeft is the number of user moves still to find.
	MovesLeft int `json:"movesLeft"`

	solution string
}

func newView(s Session) View {
	v := View{
		Mode:        s.Mode,
		Result:      s.Result,
		StudyResult: s.StudyResult,
		Feedback:    s.Feedback,
		Mistake:     s.Mistake,
		MovePlayed:  s.MovePlayed,
		PlayedScore: s.PlayedScore,
		Loading:     s.Loading,
		LoadFailed:  s.LoadErr != nil,
	}
	if s.Position == nil {
		return v
	}
	v.GameMove = s.Position.MovePlayed
	v.EvaluationScore = s.Position.Solution.Score
	v.Turn = s.Position.Turn
	v.FEN = s.Board.FEN()
	v.URL = s.Position.URL
	v.MovesLeft = (s.Position.Solution.Remaining(s.Ply) + 1) / 2
	v.solution = solutionText(s)
	return v
}

func solutionText(s Session) string {
	sol := s.Position.Solution
	if s.Mode == ModeStudy {
		if c := sol.Comment(s.Ply); c != "" {
			return c
		}
		if m, ok := sol.Expected(s.Ply); ok {
			return s.Board.SAN(m)
		}
		return ""
	}
	start, err := NewBoard(s.Position.FEN)
	if err != nil || len(sol.Line) == 0 {
		return ""
	}
	return start.SAN(sol.Line[0])
}

func (v View) puzzle() bool {
	return v.Mode != ModeStudy
}

func (v View) Message() string {
	if v.Loading {
		return "Loading..."
	}
	if v.LoadFailed {
		return "Could not load a position, try again."
	}
	if v.puzzle() {
		switch v.Result {
		case ResultSuccess:
			return "Success!"
		case ResultPartialSuccess:
			return "Good move!"
		case ResultFailure:
			return "That's not right, try something else."
		}
		if v.Turn == "b" {
			return "Find the best move for black"
		}
		return "Find the best move for white"
	}

	switch v.StudyResult {
	case StudySuccess:
		return "Congratulations! You completed this lesson."
	case StudyIncorrect:
		return "Retry"
	}
	if v.Feedback == StudyGoodMove {
		return "Good move"
	}
	return "What would you play in this position?"
}

func (v View) NextLabel() string {
	switch v.Mode {
	case ModeRedo:
		return "Next Position"
	case ModeStudy:
		return "Next Lesson"
	}
	return "Next Puzzle"
}

func (v View) NextEnabled() bool {
	if v.LoadFailed {
		return true
	}
	if v.puzzle() {
		return v.Result != ResultInProgress
	}
	return v.StudyResult == StudySuccess
}

func (v View) AnalyzeEnabled() bool {
	return v.URL != "" && !(v.puzzle() && v.Result == ResultInProgress)
}

func (v View) RetryEnabled() bool {
	return v.Result == ResultFailure || v.Result == ResultPartialSuccess
}

func (v View) ShowSolutionEnabled() bool {
	if v.puzzle() {
		return v.Result != ResultInProgress
	}
	return v.Mistake
}

// SolutionText is what "show solution" reveals: the first line move for a
// puzzle, the commentary or expected move of the current lesson step.
func (v View) SolutionText() string {
	return v.solution
}
