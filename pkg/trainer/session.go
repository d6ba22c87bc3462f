package trainer

import "fmt"

// Session is the whole state of the active exercise. It is never mutated in
// place: every transition builds a new value that the controller swaps in.
type Session struct {
	Mode        Mode
	Result      Result
	StudyResult StudyResult
	// Feedback is the last study classification, kept after a good move
	// has auto-advanced the lesson back to in progress.
	Feedback    StudyResult
	Mistake     bool
	MovePlayed  string
	PlayedScore *int

	Position *Position
	Board    Board
	Ply      int

	Loading bool
	LoadErr error
}

func emptySession(mode Mode) Session {
	return Session{
		Mode:        mode,
		Result:      ResultInProgress,
		StudyResult: StudyInProgress,
		Feedback:    StudyInProgress,
	}
}

func newSession(mode Mode, pos Position) (Session, error) {
	if err := pos.Solution.Validate(); err != nil {
		return Session{}, err
	}
	board, err := NewBoard(pos.FEN)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrMalformedSolution, err)
	}
	if err := board.ValidateLine(pos.Solution.Line); err != nil {
		return Session{}, err
	}
	if pos.Turn == "" {
		pos.Turn = board.Turn()
	}

	s := emptySession(mode)
	s.Position = &pos
	s.Board = board
	return s, nil
}

func (s Session) finished() bool {
	if s.Mode == ModeStudy {
		return s.StudyResult == StudySuccess
	}
	return s.Result.Terminal()
}

func (s Session) restarted() (Session, error) {
	return newSession(s.Mode, *s.Position)
}

// advance applies an evaluator outcome. after is the board with the played
// move on it.
func (s Session) advance(out Outcome, played Move, after Board, playedScore *int) (Session, error) {
	n := s
	n.MovePlayed = played.String()
	n.PlayedScore = playedScore

	if s.Mode == ModeStudy {
		n.Feedback = out.StudyResult
		switch out.StudyResult {
		case StudyIncorrect:
			n.StudyResult = StudyIncorrect
			n.Mistake = true
			return n, nil
		case StudyGoodMove:
			n.StudyResult = StudyInProgress
		default:
			n.StudyResult = out.StudyResult
		}
	} else {
		n.Result = out.Result
	}

	if !out.Accepted {
		return n, nil
	}
	n.Board = after
	if out.Reply != nil {
		replied, _, err := after.Apply(*out.Reply)
		if err != nil {
			return s, fmt.Errorf("%w: scripted reply: %v", ErrMalformedSolution, err)
		}
		n.Board = replied
	}
	if out.Advance {
		n.Ply += 2
	}
	return n, nil
}

func (s Session) Turn() string {
	if s.Position == nil {
		return ""
	}
	return s.Position.Turn
}
