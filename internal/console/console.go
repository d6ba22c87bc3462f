package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gmkornilov/chess-trainer/pkg/trainer"
)

const help = `commands:
  <uci move>     play a move, e.g. e2e4 or e7e8q
  next           load the next position
  retry          restart a failed or partially solved puzzle
  mode <mode>    switch to puzzles, redo or study
  solution       show the solution
  analyze        show the game link
  board          redraw the position
  help           this text
  quit           leave`

// Console drives a trainer.Controller from text commands.
type Console struct {
	c   *trainer.Controller
	out io.Writer
}

func New(c *trainer.Controller, out io.Writer) *Console {
	return &Console{c: c, out: out}
}

// Run reads commands from in until it is exhausted, ctx is done or the user
// quits.
func (t *Console) Run(ctx context.Context, in io.Reader) error {
	if err := t.c.LoadNewPosition(ctx); err != nil {
		t.printf("load: %v\n", err)
	}
	t.render()

	scanner := bufio.NewScanner(in)
	for {
		t.printf("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if quit := t.Exec(ctx, scanner.Text()); quit {
			return nil
		}
	}
}

// Exec runs one command line and reports whether the user asked to quit.
func (t *Console) Exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	view := t.c.View()

	switch strings.ToLower(fields[0]) {
	case "quit", "exit", "q":
		return true
	case "help", "?":
		t.printf("%s\n", help)
	case "board":
		t.render()
	case "next", "n":
		if !view.NextEnabled() {
			t.printf("finish the current exercise first\n")
			return false
		}
		if err := t.c.LoadNewPosition(ctx); err != nil {
			t.printf("load: %v\n", err)
		}
		t.render()
	case "retry":
		if !view.RetryEnabled() || !t.c.Retry() {
			t.printf("nothing to retry\n")
			return false
		}
		t.render()
	case "mode":
		if len(fields) < 2 {
			t.printf("current mode: %s\n", view.Mode)
			return false
		}
		mode, err := trainer.ParseMode(fields[1])
		if err != nil {
			t.printf("%v\n", err)
			return false
		}
		if err := t.c.SetMode(ctx, mode); err != nil {
			t.printf("load: %v\n", err)
		}
		t.render()
	case "solution":
		if !view.ShowSolutionEnabled() {
			t.printf("try first\n")
			return false
		}
		t.printf("solution: %s\n", view.SolutionText())
	case "analyze":
		if !view.AnalyzeEnabled() {
			t.printf("no game to analyze\n")
			return false
		}
		t.printf("%s\n", view.URL)
	default:
		t.move(ctx, fields[0])
	}
	return false
}

func (t *Console) move(ctx context.Context, s string) {
	move, err := trainer.ParseMove(s)
	if err != nil {
		t.printf("%v, type help for commands\n", err)
		return
	}
	out, err := t.c.SubmitMove(ctx, move)
	switch {
	case errors.Is(err, trainer.ErrIllegalMove):
		t.printf("illegal move %s\n", s)
		return
	case err != nil:
		t.printf("%v\n", err)
		return
	}
	if out.Reply != nil {
		t.printf("opponent plays %s\n", out.Reply)
	}
	t.render()
}

func (t *Console) render() {
	view := t.c.View()
	if view.FEN != "" && !view.Loading {
		if board, err := trainer.NewBoard(view.FEN); err == nil {
			t.printf("\n%s\n", board.Draw())
		}
	}
	t.printf("[%s] %s\n", view.Mode, view.Message())
	if view.MovesLeft > 0 && !view.LoadFailed && !view.NextEnabled() && view.Result == trainer.ResultInProgress {
		t.printf("moves left: %d\n", view.MovesLeft)
	}
	if view.GameMove != "" && view.Mode == trainer.ModeRedo {
		t.printf("in the game you played %s\n", view.GameMove)
	}
	if view.PlayedScore != nil && view.Result != trainer.ResultInProgress {
		t.printf("your move scored %d, best line %d\n", *view.PlayedScore, view.EvaluationScore)
	}
	if view.NextEnabled() {
		t.printf("type next for the %s\n", strings.ToLower(view.NextLabel()))
	}
}

func (t *Console) printf(format string, args ...interface{}) {
	fmt.Fprintf(t.out, format, args...)
}
