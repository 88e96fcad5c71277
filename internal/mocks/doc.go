// Package mocks provides shared test doubles for the ports of a generation
// run: the stage client that reaches the reasoning service, and the item
// and rejection stores that receive a run's output.
//
// Each mock has function fields for custom behavior, default return values,
// and thread-safe call tracking so it can be shared across concurrent
// workers:
//
//	client := &mocks.MockStageClient{
//	    GenerateFn: func(ctx context.Context, system, user string) (string, error) {
//	        return `{"verdict":"PASS"}`, nil
//	    },
//	}
package mocks
