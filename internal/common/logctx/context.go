// Package logctx provides a context that carries a contextual logger alongside the usual deadline and cancellation
// signals. It is passed explicitly to every component that logs, so that several independent simulations can run in
// one process, each with its own log fields.
package logctx

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Context is a context.Context paired with the logger of whatever is running under it.
type Context struct {
	context.Context
	Log *logrus.Entry
}

// Background wraps context.Background with an entry of the standard logger.
func Background() *Context {
	return New(context.Background(), logrus.NewEntry(logrus.StandardLogger()))
}

func New(ctx context.Context, log *logrus.Entry) *Context {
	return &Context{Context: ctx, Log: log}
}

// WithCancel derives a cancellable context that keeps the logger of parent.
func WithCancel(parent *Context) (*Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent.Context)
	return parent.withContext(ctx), cancel
}

// WithTimeout derives a context cancelled after timeout that keeps the logger of parent.
func WithTimeout(parent *Context, timeout time.Duration) (*Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent.Context, timeout)
	return parent.withContext(ctx), cancel
}

// WithLogField adds one field to every line logged under the returned context.
func WithLogField(parent *Context, key string, val any) *Context {
	return New(parent.Context, parent.Log.WithField(key, val))
}

func WithLogFields(parent *Context, fields logrus.Fields) *Context {
	return New(parent.Context, parent.Log.WithFields(fields))
}

// ErrGroup is errgroup.WithContext for a Context; the group's context keeps the logger of ctx.
func ErrGroup(ctx *Context) (*errgroup.Group, *Context) {
	group, groupCtx := errgroup.WithContext(ctx.Context)
	return group, ctx.withContext(groupCtx)
}

func (c *Context) withContext(ctx context.Context) *Context {
	return New(ctx, c.Log)
}
