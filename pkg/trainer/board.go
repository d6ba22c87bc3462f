package trainer

import (
	"fmt"

	"github.com/notnil/chess"
)

// Board is an immutable view over a rules-engine position. Apply returns a
// new Board and leaves the receiver untouched, so a rejected move needs no
// rollback.
type Board struct {
	fen string
	pos *chess.Position
}

func NewBoard(fen string) (Board, error) {
	game, err := newGame(fen)
	if err != nil {
		return Board{}, err
	}
	return Board{fen: game.FEN(), pos: game.Position()}, nil
}

func newGame(fen string) (*chess.Game, error) {
	fenFunc, err := chess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("decode fen %q: %w", fen, err)
	}
	return chess.NewGame(fenFunc), nil
}

func (b Board) FEN() string {
	return b.fen
}

// Turn is "w" or "b", the side to move.
func (b Board) Turn() string {
	if b.pos.Turn() == chess.White {
		return "w"
	}
	return "b"
}

// Apply plays m if legal. A move without a promotion piece that is only
// legal as a promotion is retried once as a queen promotion.
func (b Board) Apply(m Move) (Board, Move, error) {
	legal := b.find(m)
	if legal == nil && m.Promotion == chess.NoPieceType {
		m.Promotion = chess.Queen
		legal = b.find(m)
	}
	if legal == nil {
		return b, m, fmt.Errorf("%w: %s in %s", ErrIllegalMove, m, b.fen)
	}

	game, err := newGame(b.fen)
	if err != nil {
		return b, m, err
	}
	if err := game.Move(legal); err != nil {
		return b, m, fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}
	return Board{fen: game.FEN(), pos: game.Position()}, m, nil
}

func (b Board) find(m Move) *chess.Move {
	for _, valid := range b.pos.ValidMoves() {
		if valid.S1() == m.From && valid.S2() == m.To && valid.Promo() == m.Promotion {
			return valid
		}
	}
	return nil
}

// ValidateLine replays line from the board; any illegal ply makes the
// solution malformed.
func (b Board) ValidateLine(line []Move) error {
	cur := b
	for i, m := range line {
		next, _, err := cur.Apply(m)
		if err != nil {
			return fmt.Errorf("%w: ply %d: %v", ErrMalformedSolution, i, err)
		}
		cur = next
	}
	return nil
}

func (b Board) SAN(m Move) string {
	legal := b.find(m)
	if legal == nil {
		return m.String()
	}
	return chess.AlgebraicNotation{}.Encode(b.pos, legal)
}

// Draw renders the board as text, white at the bottom.
func (b Board) Draw() string {
	return b.pos.Board().Draw()
}
