// Copyright © 2018 One Concern

package storage

import (
	"context"
	"strings"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"go.uber.org/zap"
)

// Instrument decorates a FileStore with tracing spans and debug logs
func Instrument(tr opentracing.Tracer, logger *zap.Logger, store FileStore) FileStore {
	if tr == nil {
		tr = opentracing.GlobalTracer()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &instrumentedStore{
		tr:    tr,
		store: store,
		l:     logger.With(zap.String("store", store.String())),
	}
}

type instrumentedStore struct {
	store FileStore
	tr    opentracing.Tracer
	l     *zap.Logger
}

func (i *instrumentedStore) opName(name string) string {
	return strings.Join([]string{"storage", i.String(), name}, ".")
}

func (i *instrumentedStore) spanFromContext(ctx context.Context, name string) (opentracing.Span, context.Context) {
	parent := opentracing.SpanFromContext(ctx)
	var span opentracing.Span
	if parent != nil {
		span = i.tr.StartSpan(name, opentracing.ChildOf(parent.Context()))
	} else {
		span = i.tr.StartSpan(name)
	}
	return span, opentracing.ContextWithSpan(ctx, span)
}

func finish(span opentracing.Span, err error) {
	if err != nil {
		ext.Error.Set(span, true)
		span.SetTag("error.message", err.Error())
	}
	span.Finish()
}

func (i *instrumentedStore) GetFile(ctx context.Context, path, branch string) (rf *RemoteFile, err error) {
	span, ctx := i.spanFromContext(ctx, i.opName("GetFile"))
	span.SetTag("path", path)
	defer func() { finish(span, err) }()

	i.l.Debug("storage get", zap.String("path", path), zap.String("branch", branch))
	rf, err = i.store.GetFile(ctx, path, branch)
	span.SetTag("found", rf != nil)
	return rf, err
}

func (i *instrumentedStore) PutFile(ctx context.Context, path, branch string, content []byte, message, sha string) (c *Commit, err error) {
	span, ctx := i.spanFromContext(ctx, i.opName("PutFile"))
	span.SetTag("path", path)
	defer func() { finish(span, err) }()

	i.l.Debug("storage put", zap.String("path", path), zap.String("branch", branch), zap.Int("size", len(content)), zap.Bool("update", sha != ""))
	return i.store.PutFile(ctx, path, branch, content, message, sha)
}

func (i *instrumentedStore) DeleteFile(ctx context.Context, path, branch string) (deleted bool, err error) {
	span, ctx := i.spanFromContext(ctx, i.opName("DeleteFile"))
	span.SetTag("path", path)
	defer func() { finish(span, err) }()

	i.l.Debug("storage delete", zap.String("path", path), zap.String("branch", branch))
	return i.store.DeleteFile(ctx, path, branch)
}

func (i *instrumentedStore) String() string {
	return i.store.String()
}
