// Package groutine starts named goroutines. The name is attached as a pprof
// label so goroutine dumps show which worker is which.
package groutine

import (
	"context"
	"runtime/pprof"
)

type ctxKey struct{}

// Go runs fn in a goroutine labelled name and returns a channel closed when
// fn returns. A nil parent is treated as context.Background().
//
//	done := groutine.Go(ctx, "bluez-dispatch", func(ctx context.Context) {
//	    // work
//	})
//	<-done
func Go(parent context.Context, name string, fn func(ctx context.Context)) <-chan struct{} {
	if parent == nil {
		parent = context.Background()
	}
	done := make(chan struct{})

	go pprof.Do(parent, pprof.Labels("goroutine_name", name), func(ctx context.Context) {
		defer close(done)
		fn(context.WithValue(ctx, ctxKey{}, name))
	})
	return done
}

// Name returns the name given to Go, or "" outside a named goroutine
func Name(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	name, _ := ctx.Value(ctxKey{}).(string)
	return name
}
