package puzgen

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/notnil/chess"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MistakeThreshold is the centipawn loss that makes a played move worth
// redoing.
const MistakeThreshold = 150

// AnalyzeGame returns a redo position for every move of user in game that
// lost more than MistakeThreshold against the engine's best line.
func AnalyzeGame(ev Evaluator, game *chess.Game, user string) ([]Position, error) {
	color := userColor(game, user)
	if color == chess.NoColor {
		return nil, fmt.Errorf("user %s did not play in this game", user)
	}

	data := gameData(game)
	site := tagValue(game, "Site")
	moves := game.Moves()
	positions := game.Positions()
	res := make([]Position, 0)

	for i, move := range moves {
		before := positions[i]
		if before.Turn() != color {
			continue
		}
		fen := before.String()
		lines, err := ev.Analyse(fen)
		if err != nil {
			return nil, err
		}
		if len(lines) == 0 {
			continue
		}
		played := chess.UCINotation{}.Encode(before, move)
		if lines[0].Moves[0] == played {
			continue
		}

		after, err := ev.Evaluate(positions[i+1].String())
		if err != nil {
			return nil, err
		}
		line, err := trimLine(fen, lines[0].Moves)
		if err != nil {
			return nil, err
		}
		best, err := ReferenceScore(ev, fen, line)
		if err != nil {
			return nil, err
		}
		if best-(-after) <= MistakeThreshold {
			continue
		}

		pos := Position{
			ID:          uuid.NewString(),
			Kind:        KindRedo,
			StartFEN:    fen,
			Line:        line,
			Score:       best,
			IsWhiteTurn: color == chess.White,
			User:        user,
			MovePlayed:  chess.AlgebraicNotation{}.Encode(before, move),
			GameData:    data,
		}
		if strings.HasPrefix(site, "http") {
			pos.URL = fmt.Sprintf("%s#%d", site, i)
		}
		res = append(res, pos)
	}
	return res, nil
}

// AnalyzeAllGames runs AnalyzeGame over games. progress, when set, is called
// with the number of games analysed so far.
func AnalyzeAllGames(ev Evaluator, games []*chess.Game, user string, progress func(done int)) ([]Position, error) {
	res := make([]Position, 0)
	for i, game := range games {
		positions, err := AnalyzeGame(ev, game, user)
		if err != nil {
			return nil, err
		}
		res = append(res, positions...)
		if progress != nil {
			progress(i + 1)
		}
	}
	return res, nil
}

// AnalyzeLiveGame generates puzzles from every position of a game, skipping
// positions already seen.
func AnalyzeLiveGame(ev Evaluator, game *chess.Game, watched map[string]bool) ([]Position, error) {
	res := make([]Position, 0)
	data := gameData(game)
	for _, pos := range game.Positions() {
		fenFunc, err := chess.FEN(pos.String())
		if err != nil {
			return nil, err
		}
		puzzle, ok, err := GeneratePuzzle(chess.NewGame(fenFunc), ev, watched)
		if err != nil {
			return nil, err
		}
		if ok {
			puzzle.GameData = data
			res = append(res, puzzle)
		}
	}
	return res, nil
}

func userColor(game *chess.Game, user string) chess.Color {
	switch {
	case strings.EqualFold(tagValue(game, "White"), user):
		return chess.White
	case strings.EqualFold(tagValue(game, "Black"), user):
		return chess.Black
	}
	return chess.NoColor
}

func gameData(game *chess.Game) GameData {
	data := GameData{
		WhitePlayer: tagValue(game, "White"),
		BlackPlayer: tagValue(game, "Black"),
	}
	date := tagValue(game, "UTCDate")
	if date == "" {
		date = tagValue(game, "Date")
	}
	if gameTime, err := time.Parse(Layout, date); err == nil {
		data.Date = primitive.NewDateTimeFromTime(gameTime)
	}
	return data
}

func tagValue(game *chess.Game, key string) string {
	tag := game.GetTagPair(key)
	if tag == nil {
		return ""
	}
	return tag.Value
}
