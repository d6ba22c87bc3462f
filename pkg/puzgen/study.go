package puzgen

import (
	"fmt"
	"io"
	"strings"

	"github.com/notnil/chess"
)

// LessonsFromPGN turns every chapter of a study export into a lesson. The
// user plays the side to move at the chapter start.
func LessonsFromPGN(r io.Reader, studyID string) ([]Position, error) {
	scanner := chess.NewScanner(r)
	lessons := make([]Position, 0)
	chapter := 0
	for scanner.Scan() {
		game := scanner.Next()
		chapter++
		lesson, ok := lessonFromGame(game, studyID, chapter)
		if ok {
			lessons = append(lessons, lesson)
		}
	}
	if len(lessons) == 0 {
		return nil, fmt.Errorf("study %s has no playable chapters", studyID)
	}
	return lessons, nil
}

func lessonFromGame(game *chess.Game, studyID string, chapter int) (Position, bool) {
	moves := game.Moves()
	if len(moves) == 0 {
		return Position{}, false
	}
	positions := game.Positions()
	line := make([]string, 0, len(moves))
	for i, m := range moves {
		line = append(line, chess.UCINotation{}.Encode(positions[i], m))
	}

	comments := make([]string, len(moves))
	hasComments := false
	for i, c := range game.Comments() {
		if i >= len(comments) {
			break
		}
		comments[i] = strings.TrimSpace(strings.Join(c, " "))
		hasComments = hasComments || comments[i] != ""
	}
	if !hasComments {
		comments = nil
	}

	title := tagValue(game, "ChapterName")
	if title == "" {
		title = tagValue(game, "Event")
	}

	return Position{
		ID:          fmt.Sprintf("%s-%d", studyID, chapter),
		Kind:        KindStudy,
		StartFEN:    positions[0].String(),
		Line:        line,
		Comments:    comments,
		IsWhiteTurn: positions[0].Turn() == chess.White,
		StudyID:     studyID,
		Chapter:     chapter,
		Title:       title,
		GameData:    gameData(game),
	}, true
}
