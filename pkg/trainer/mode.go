package trainer

import (
	"fmt"
	"strings"
)

type Mode string

const (
	ModePuzzles Mode = "puzzles"
	ModeRedo    Mode = "redo"
	ModeStudy   Mode = "study"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModePuzzles:
		return ModePuzzles, nil
	case ModeRedo:
		return ModeRedo, nil
	case ModeStudy:
		return ModeStudy, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// Result governs PUZZLES and REDO exercises.
type Result string

const (
	ResultInProgress     Result = "in_progress"
	ResultSuccess        Result = "success"
	ResultPartialSuccess Result = "partial_success"
	ResultFailure        Result = "failure"
)

func (r Result) Terminal() bool {
	return r == ResultSuccess || r == ResultPartialSuccess || r == ResultFailure
}

// StudyResult governs STUDY lessons. GoodMove and Incorrect are transient,
// only Success ends a lesson.
type StudyResult string

const (
	StudyInProgress StudyResult = "in_progress"
	StudyGoodMove   StudyResult = "good_move"
	StudyIncorrect  StudyResult = "incorrect"
	StudySuccess    StudyResult = "success"
)
