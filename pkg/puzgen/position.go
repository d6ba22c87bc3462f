package puzgen

import (
	"encoding/json"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const Layout = "2006.01.02"

type Kind string

const (
	KindPuzzle Kind = "puzzle"
	KindRedo   Kind = "redo"
	KindStudy  Kind = "study"
)

// Position is one stored exercise. Line holds UCI moves, user plies on even
// indices.
type Position struct {
	ID          string   `json:"id" bson:"_id"`
	Kind        Kind     `json:"kind" bson:"kind"`
	StartFEN    string   `json:"start_fen" bson:"start_fen"`
	Line        []string `json:"line" bson:"line"`
	Score       int      `json:"score" bson:"score"`
	Comments    []string `json:"comments,omitempty" bson:"comments,omitempty"`
	IsWhiteTurn bool     `json:"is_white_turn" bson:"is_white_turn"`
	TargetElo   int      `json:"target_elo,omitempty" bson:"target_elo,omitempty"`

	User       string `json:"user,omitempty" bson:"user,omitempty"`
	MovePlayed string `json:"move_played,omitempty" bson:"move_played,omitempty"`
	URL        string `json:"url,omitempty" bson:"url,omitempty"`

	StudyID string `json:"study_id,omitempty" bson:"study_id,omitempty"`
	Chapter int    `json:"chapter,omitempty" bson:"chapter,omitempty"`
	Title   string `json:"title,omitempty" bson:"title,omitempty"`

	GameData GameData `json:"game_data" bson:"game_data"`
}

type GameData struct {
	WhitePlayer string             `json:"white_player" bson:"white_player"`
	BlackPlayer string             `json:"black_player" bson:"black_player"`
	Date        primitive.DateTime `json:"date" bson:"date"`
}

func (p Position) Turn() string {
	if p.IsWhiteTurn {
		return "w"
	}
	return "b"
}

func (p Position) String() string {
	j, _ := json.MarshalIndent(p, "", "\t")
	return string(j)
}
