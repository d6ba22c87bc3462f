package lichess

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/valyala/fasthttp"
)

const (
	ActionFeatured = "featured"
	ActionFen      = "fen"
)

type PlayerInfo struct {
	Color string `json:"color"`
	User  struct {
		Name  string `json:"name"`
		Id    string `json:"id"`
		Title string `json:"title"`
	} `json:"user"`
	Rating int `json:"rating"`
}

type GameStart struct {
	Id          string       `json:"id"`
	Orientation string       `json:"orientation"`
	Players     []PlayerInfo `json:"players"`
	Fen         string       `json:"fen"`
}

// Player returns the player of color ("white" or "black").
func (g GameStart) Player(color string) (PlayerInfo, bool) {
	for _, p := range g.Players {
		if p.Color == color {
			return p, true
		}
	}
	return PlayerInfo{}, false
}

// GameTurn carries only the piece placement of the new position and the
// last move in UCI.
type GameTurn struct {
	Fen       string `json:"fen"`
	LastMove  string `json:"lm"`
	WhiteTime int    `json:"wc"`
	BlackTime int    `json:"bc"`
}

type Message struct {
	Action string          `json:"t"`
	Data   json.RawMessage `json:"d"`
}

func (m Message) GameStart() (GameStart, error) {
	var g GameStart
	err := json.Unmarshal(m.Data, &g)
	return g, err
}

func (m Message) GameTurn() (GameTurn, error) {
	var g GameTurn
	err := json.Unmarshal(m.Data, &g)
	return g, err
}

// TVFeed follows the featured game feed and calls fn for every message until
// ctx is done, fn fails or the server closes the stream. Returns nil when
// the stream simply ends so callers can reconnect.
func (c *Client) TVFeed(ctx context.Context, fn func(Message) error) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(c.baseURL + "/api/tv/feed")
	req.Header.Set("Accept", "application/x-ndjson")

	if err := c.stream.Do(req, resp); err != nil {
		return fmt.Errorf("tv feed: %w", err)
	}
	defer func() { _ = resp.CloseBodyStream() }()
	if status := resp.StatusCode(); status != fasthttp.StatusOK {
		return fmt.Errorf("tv feed: status=%d", status)
	}

	body := resp.BodyStream()
	if body == nil {
		return fmt.Errorf("tv feed: empty body")
	}
	d := json.NewDecoder(body)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var msg Message
		if err := d.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				c.logger.Debug("tv feed closed by server")
				return nil
			}
			return fmt.Errorf("decode tv feed: %w", err)
		}
		if err := fn(msg); err != nil {
			return err
		}
	}
}
