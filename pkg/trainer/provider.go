package trainer

import "context"

// Position is one exercise as served by the position provider.
type Position struct {
	ID         string   `json:"id"`
	FEN        string   `json:"position"`
	Solution   Solution `json:"solution"`
	Turn       string   `json:"turn"`
	MovePlayed string   `json:"movePlayed,omitempty"`
	URL        string   `json:"url,omitempty"`
}

type NextRequest struct {
	Mode    Mode
	User    string
	StudyID string
}

type Attempt struct {
	PositionID string `json:"positionId"`
	Mode       Mode   `json:"mode"`
	User       string `json:"user"`
	Result     Result `json:"result"`
}

// Provider serves positions and engine scores. EngineEvaluation returns
// the score of fen from the side to move.
type Provider interface {
	Next(ctx context.Context, req NextRequest) (Position, error)
	EngineEvaluation(ctx context.Context, fen string) (int, error)
	ReportAttempt(ctx context.Context, attempt Attempt) error
}
