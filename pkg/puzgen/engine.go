package puzgen

import (
	"fmt"
	"sort"
	"sync"

	"github.com/freeeve/uci"
	"github.com/notnil/chess"
)

const (
	maxDepth = 10
	multiPV  = 5
)

// Line is one engine candidate: the principal variation in UCI and its
// score from the side to move.
type Line struct {
	Moves []string
	Score int
}

type Evaluator interface {
	Analyse(fen string) ([]Line, error)
	Evaluate(fen string) (int, error)
}

// Engine serialises access to a single UCI process.
type Engine struct {
	mu    sync.Mutex
	e     *uci.Engine
	depth int
}

func SetupEngine(path string, depth int, arg ...string) (*Engine, error) {
	e, err := uci.NewEngine(path, arg...)
	if err != nil {
		return nil, err
	}

	err = e.SetOptions(uci.Options{
		MultiPV: multiPV,
		Hash:    128,
		Ponder:  false,
		OwnBook: false,
	})
	if err != nil {
		e.Close()
		return nil, err
	}
	if depth <= 0 {
		depth = maxDepth
	}
	return &Engine{e: e, depth: depth}, nil
}

func (en *Engine) Close() {
	en.mu.Lock()
	defer en.mu.Unlock()
	en.e.Close()
}

// Analyse returns the candidates of the deepest finished iteration, best
// first.
func (en *Engine) Analyse(fen string) ([]Line, error) {
	en.mu.Lock()
	defer en.mu.Unlock()

	if err := en.e.SetFEN(fen); err != nil {
		return nil, err
	}
	results, err := en.e.GoDepth(en.depth)
	if err != nil {
		return nil, err
	}
	return rankResults(results.Results), nil
}

func (en *Engine) Evaluate(fen string) (int, error) {
	if score, over, err := terminalScore(fen); err != nil || over {
		return score, err
	}
	lines, err := en.Analyse(fen)
	if err != nil {
		return 0, err
	}
	if len(lines) == 0 {
		return 0, fmt.Errorf("engine returned no lines for %s", fen)
	}
	return lines[0].Score, nil
}

func rankResults(results []uci.ScoreResult) []Line {
	deepest := 0
	for _, r := range results {
		if r.Depth > deepest {
			deepest = r.Depth
		}
	}
	lines := make([]Line, 0, len(results))
	seen := make(map[string]bool)
	for _, r := range results {
		if r.Depth != deepest || len(r.BestMoves) == 0 || seen[r.BestMoves[0]] {
			continue
		}
		seen[r.BestMoves[0]] = true
		lines = append(lines, Line{Moves: r.BestMoves, Score: FoldScore(r)})
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Score > lines[j].Score })
	return lines
}

// terminalScore scores finished positions without asking the engine.
func terminalScore(fen string) (int, bool, error) {
	fenFunc, err := chess.FEN(fen)
	if err != nil {
		return 0, false, err
	}
	pos := chess.NewGame(fenFunc).Position()
	switch pos.Status() {
	case chess.Checkmate:
		return -MateScore, true, nil
	case chess.Stalemate:
		return 0, true, nil
	}
	return 0, false, nil
}

// ReferenceScore is the mover's score after the first move of line.
func ReferenceScore(ev Evaluator, fen string, line []string) (int, error) {
	if len(line) == 0 {
		return 0, fmt.Errorf("empty line for %s", fen)
	}
	game, err := gameFromFEN(fen)
	if err != nil {
		return 0, err
	}
	if err := playUCI(game, line[0]); err != nil {
		return 0, err
	}
	score, err := ev.Evaluate(game.FEN())
	if err != nil {
		return 0, err
	}
	return -score, nil
}

func gameFromFEN(fen string) (*chess.Game, error) {
	fenFunc, err := chess.FEN(fen)
	if err != nil {
		return nil, err
	}
	return chess.NewGame(fenFunc), nil
}

func playUCI(game *chess.Game, s string) error {
	move, err := chess.UCINotation{}.Decode(game.Position(), s)
	if err != nil {
		return err
	}
	return game.Move(move)
}
