package scraper

import "context"

type Worker interface {
	StartWork(ctx context.Context)
	Result() interface{}
	Progress() float64
	Done() bool
	Error() error
}
