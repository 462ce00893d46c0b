// Copyright © 2018 One Concern

package core

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/oneconcern/slides/internal/fakegithub"
	"github.com/oneconcern/slides/pkg/errors"
	"github.com/oneconcern/slides/pkg/metrics"
	"github.com/oneconcern/slides/pkg/model"
	"github.com/oneconcern/slides/pkg/storage/github"
	"github.com/oneconcern/slides/pkg/storage/localfs"
	"github.com/oneconcern/slides/pkg/storage/status"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const (
	testToken    = "token"
	testBranch   = "main"
	testManifest = "slides/manifest.json"
)

func setupService(t testing.TB, opts ...ServiceOption) (*fakegithub.Server, *ManifestService) {
	srv := fakegithub.New("owner", "repo", testToken)
	t.Cleanup(srv.Close)

	store, err := github.New("owner", "repo", github.BaseURL(srv.URL), github.Token(testToken))
	require.NoError(t, err)

	return srv, NewManifestService(store, append([]ServiceOption{ManifestPath(testManifest), Branch(testBranch)}, opts...)...)
}

func items(t testing.TB, raw string) model.Manifest {
	m, err := model.DecodeItems([]byte(raw))
	require.NoError(t, err)
	return m
}

func asJSON(t testing.TB, v interface{}) string {
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestFetchMissingManifest(t *testing.T) {
	_, svc := setupService(t)

	res, err := svc.Fetch(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[],"schema":"objects"}`, asJSON(t, res))
}

func TestFetchLegacyShapes(t *testing.T) {
	srv, svc := setupService(t)
	ctx := context.Background()

	srv.Seed(testBranch, testManifest, []byte(`["x.png","y.png"]`))
	res, err := svc.Fetch(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"src":"x.png"},{"src":"y.png"}]`, asJSON(t, res.Items))

	srv.Seed(testBranch, testManifest, []byte(`{"slides":["z.png"]}`))
	res, err = svc.Fetch(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"src":"z.png"}]`, asJSON(t, res.Items))

	srv.Seed(testBranch, testManifest, []byte(`["a.png",null,5]`))
	res, err = svc.Fetch(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"src":"a.png"},{},{}]`, asJSON(t, res.Items))

	srv.Seed(testBranch, testManifest, []byte(`[{"src":7}]`))
	res, err = svc.Fetch(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"src":7}]`, asJSON(t, res.Items))
}

func TestReplaceMalformedStoredManifest(t *testing.T) {
	for _, stored := range []string{`["a.png",null]`, `["a.png",5]`, `[{"src":7}]`} {
		stored := stored
		t.Run(stored, func(t *testing.T) {
			srv, svc := setupService(t)
			srv.Seed(testBranch, testManifest, []byte(stored))
			srv.Seed(testBranch, "a.png", []byte("png"))

			res, err := svc.Replace(context.Background(), ReplaceRequest{Items: items(t, `["b.png"]`), DeleteFiles: true})
			require.NoError(t, err, "a malformed stored manifest can be repaired")
			assert.NotEmpty(t, res.CommitSHA)
			assert.Empty(t, res.FailedFiles)

			content, ok := srv.File(testBranch, testManifest)
			require.True(t, ok)
			assert.JSONEq(t, `[{"src":"b.png"}]`, string(content))
		})
	}
}

func TestReplaceItemsWithoutPath(t *testing.T) {
	srv, svc := setupService(t)
	srv.Seed(testBranch, testManifest, []byte(`[{"src":"a"},{"title":"no src"}]`))

	res, err := svc.Replace(context.Background(), ReplaceRequest{Items: items(t, `[{"src":"a"}]`), DeleteFiles: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Removed, "the missing path counts as one removed source")
	assert.Equal(t, 0, res.DeletedFiles)
	assert.Empty(t, res.FailedFiles)
	assert.Zero(t, srv.CallsFor(http.MethodDelete), "nothing to delete without a path")
}

func TestFetchErrors(t *testing.T) {
	srv, svc := setupService(t)
	ctx := context.Background()

	srv.Seed(testBranch, testManifest, []byte(`not json`))
	_, err := svc.Fetch(ctx)
	assert.True(t, errors.Is(err, model.ErrInvalidManifest))

	srv.FailOn(http.MethodGet, testManifest, http.StatusBadGateway)
	_, err = svc.Fetch(ctx)
	assert.True(t, errors.Is(err, status.ErrStorageAPI))
}

func TestReplaceRoundTrip(t *testing.T) {
	srv, svc := setupService(t)
	ctx := context.Background()

	res, err := svc.Replace(ctx, ReplaceRequest{Items: items(t, `[{"src":"a.png"},{"src":"b.png","title":"B"}]`)})
	require.NoError(t, err)
	assert.NotEmpty(t, res.CommitSHA)
	assert.Equal(t, 0, res.Removed)
	assert.Equal(t, 0, res.DeletedFiles)

	stored, ok := srv.File(testBranch, testManifest)
	require.True(t, ok)
	assert.Equal(t, "[\n  {\n    \"src\": \"a.png\"\n  },\n  {\n    \"src\": \"b.png\",\n    \"title\": \"B\"\n  }\n]", string(stored))

	fetched, err := svc.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.png", "b.png"}, fetched.Items.Srcs())
	assert.JSONEq(t, `[{"src":"a.png"},{"src":"b.png","title":"B"}]`, asJSON(t, fetched.Items))
}

func TestReplaceRemovesFiles(t *testing.T) {
	reg := metrics.New(nil)
	srv, svc := setupService(t, Metrics(reg))
	ctx := context.Background()

	srv.Seed(testBranch, testManifest, []byte(`[{"src":"a"},{"src":"b"},{"src":"c"}]`))
	srv.Seed(testBranch, "b", []byte("png"))

	res, err := svc.Replace(ctx, ReplaceRequest{Items: items(t, `[{"src":"a"},{"src":"c"}]`)})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Removed)
	assert.Equal(t, 0, res.DeletedFiles)
	_, ok := srv.File(testBranch, "b")
	assert.True(t, ok, "files are kept unless asked")

	srv.Seed(testBranch, testManifest, []byte(`[{"src":"a"},{"src":"b"},{"src":"c"}]`))
	res, err = svc.Replace(ctx, ReplaceRequest{Items: items(t, `[{"src":"a"},{"src":"c"}]`), DeleteFiles: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Removed)
	assert.Equal(t, 1, res.DeletedFiles)
	assert.Empty(t, res.FailedFiles)
	_, ok = srv.File(testBranch, "b")
	assert.False(t, ok)

	assert.Equal(t, float64(2), testutil.ToFloat64(reg.ManifestWrites))
	assert.Equal(t, float64(1), testutil.ToFloat64(reg.FileDeletions.WithLabelValues(metrics.OutcomeDeleted)))
}

func TestReplaceBestEffortDeletes(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	reg := metrics.New(nil)
	srv, svc := setupService(t, Logger(zap.New(core)), Metrics(reg))
	ctx := context.Background()

	srv.Seed(testBranch, testManifest, []byte(`["keep","gone","broken","missing","forbidden"]`))
	srv.Seed(testBranch, "gone", []byte("1"))
	srv.Seed(testBranch, "broken", []byte("2"))
	srv.Seed(testBranch, "forbidden", []byte("3"))
	srv.FailOn(http.MethodDelete, "broken", http.StatusInternalServerError)
	srv.FailOn(http.MethodGet, "forbidden", http.StatusForbidden)

	res, err := svc.Replace(ctx, ReplaceRequest{Items: items(t, `["keep"]`), DeleteFiles: true})
	require.NoError(t, err, "deletion failures never fail the replace")
	assert.NotEmpty(t, res.CommitSHA)
	assert.Equal(t, 4, res.Removed)
	assert.Equal(t, 1, res.DeletedFiles)
	assert.Equal(t, []string{"broken", "forbidden"}, res.FailedFiles)

	stored, ok := srv.File(testBranch, testManifest)
	require.True(t, ok)
	assert.JSONEq(t, `[{"src":"keep"}]`, string(stored), "the manifest commit is kept")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "some slide files could not be deleted", logs.All()[0].Message)

	assert.Equal(t, float64(1), testutil.ToFloat64(reg.FileDeletions.WithLabelValues(metrics.OutcomeDeleted)))
	assert.Equal(t, float64(1), testutil.ToFloat64(reg.FileDeletions.WithLabelValues(metrics.OutcomeAbsent)))
	assert.Equal(t, float64(2), testutil.ToFloat64(reg.FileDeletions.WithLabelValues(metrics.OutcomeFailed)))
}

func TestReplaceConcurrentDeletes(t *testing.T) {
	srv, svc := setupService(t, DeleteConcurrency(4))
	ctx := context.Background()

	stored := model.Manifest{}
	for _, src := range []string{"s1", "s2", "s3", "s4", "s5", "s6"} {
		stored = append(stored, model.NewItem(src))
		srv.Seed(testBranch, src, []byte(src))
	}
	content, err := stored.Encode()
	require.NoError(t, err)
	srv.Seed(testBranch, testManifest, content)
	srv.FailOn(http.MethodDelete, "s5", http.StatusConflict)

	res, err := svc.Replace(ctx, ReplaceRequest{Items: model.Manifest{}, DeleteFiles: true})
	require.NoError(t, err)
	assert.Equal(t, 6, res.Removed)
	assert.Equal(t, 5, res.DeletedFiles)
	assert.Equal(t, []string{"s5"}, res.FailedFiles)
}

func TestReplaceIdempotent(t *testing.T) {
	srv, svc := setupService(t)
	ctx := context.Background()
	req := ReplaceRequest{Items: items(t, `[{"src":"a.png"},{"src":"b.png"}]`)}

	first, err := svc.Replace(ctx, req)
	require.NoError(t, err)
	firstContent, _ := srv.File(testBranch, testManifest)

	second, err := svc.Replace(ctx, req)
	require.NoError(t, err)
	secondContent, _ := srv.File(testBranch, testManifest)

	assert.Equal(t, 2, srv.Commits())
	assert.NotEqual(t, first.CommitSHA, second.CommitSHA)
	assert.Equal(t, 0, second.Removed)
	assert.Equal(t, string(firstContent), string(secondContent))
}

func TestReplaceErrors(t *testing.T) {
	srv, svc := setupService(t)
	ctx := context.Background()

	_, err := svc.Replace(ctx, ReplaceRequest{})
	assert.True(t, errors.Is(err, ErrInvalidPayload))
	assert.Empty(t, srv.Calls(), "invalid payloads never reach the repository")

	srv.FailOn(http.MethodPut, testManifest, http.StatusConflict)
	_, err = svc.Replace(ctx, ReplaceRequest{Items: model.Manifest{}})
	assert.True(t, errors.Is(err, status.ErrConflict))
	var apiErr *status.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
}

func TestServiceOnLocalStore(t *testing.T) {
	fs := afero.NewMemMapFs()
	svc := NewManifestService(localfs.New(fs), Branch(""), ManifestPath(""))
	ctx := context.Background()

	res, err := svc.Fetch(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Items)

	require.NoError(t, afero.WriteFile(fs, "main/old.png", []byte("png"), 0600))
	_, err = svc.Replace(ctx, ReplaceRequest{Items: items(t, `["old.png"]`)})
	require.NoError(t, err)

	out, err := svc.Replace(ctx, ReplaceRequest{Items: items(t, `[{"src":"new.png"}]`), DeleteFiles: true})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Removed)
	assert.Equal(t, 1, out.DeletedFiles)

	exists, err := afero.Exists(fs, "main/"+DefaultManifestPath)
	require.NoError(t, err)
	assert.True(t, exists)
}
