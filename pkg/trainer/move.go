package trainer

import (
	"fmt"
	"strings"

	"github.com/notnil/chess"
)

// Move is a single ply. Its text form is UCI long algebraic ("e2e4", "e7e8q").
type Move struct {
	From      chess.Square
	To        chess.Square
	Promotion chess.PieceType
}

var promotionChars = map[chess.PieceType]string{
	chess.Queen:  "q",
	chess.Rook:   "r",
	chess.Bishop: "b",
	chess.Knight: "n",
}

func ParseMove(s string) (Move, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 4 && len(s) != 5 {
		return Move{}, fmt.Errorf("invalid uci move %q", s)
	}
	from, ok := parseSquare(s[0:2])
	if !ok {
		return Move{}, fmt.Errorf("invalid uci move %q", s)
	}
	to, ok := parseSquare(s[2:4])
	if !ok {
		return Move{}, fmt.Errorf("invalid uci move %q", s)
	}
	m := Move{From: from, To: to, Promotion: chess.NoPieceType}
	if len(s) == 5 {
		for pt, c := range promotionChars {
			if c == s[4:5] {
				m.Promotion = pt
			}
		}
		if m.Promotion == chess.NoPieceType {
			return Move{}, fmt.Errorf("invalid promotion in uci move %q", s)
		}
	}
	return m, nil
}

func MustParseMove(s string) Move {
	m, err := ParseMove(s)
	if err != nil {
		panic(err)
	}
	return m
}

func ParseLine(moves []string) ([]Move, error) {
	line := make([]Move, 0, len(moves))
	for _, s := range moves {
		m, err := ParseMove(s)
		if err != nil {
			return nil, err
		}
		line = append(line, m)
	}
	return line, nil
}

// squares are laid out A1, B1, ... H1, A2, ... H8 in the rules engine
func parseSquare(s string) (chess.Square, bool) {
	if len(s) != 2 {
		return chess.NoSquare, false
	}
	file, rank := s[0], s[1]
	if file < 'a' || file > 'h' || rank < '1' || rank > '8' {
		return chess.NoSquare, false
	}
	return chess.Square(int(rank-'1')*8 + int(file-'a')), true
}

func (m Move) String() string {
	return m.From.String() + m.To.String() + promotionChars[m.Promotion]
}

func (m Move) Equal(o Move) bool {
	return m.From == o.From && m.To == o.To && m.Promotion == o.Promotion
}

// matches reports whether a played move hits the expected one. A move
// without a promotion piece is taken as a queen promotion.
func (m Move) matches(expected Move) bool {
	if m.Equal(expected) {
		return true
	}
	if m.Promotion == chess.NoPieceType && expected.Promotion == chess.Queen {
		return m.From == expected.From && m.To == expected.To
	}
	return false
}

func (m Move) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Move) UnmarshalText(b []byte) error {
	parsed, err := ParseMove(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
