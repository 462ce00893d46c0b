package github

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/oneconcern/slides/internal/fakegithub"
	"github.com/oneconcern/slides/pkg/errors"
	"github.com/oneconcern/slides/pkg/storage"
	"github.com/oneconcern/slides/pkg/storage/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testOwner  = "tngon462"
	testRepo   = "slide"
	testToken  = "s3cr3t"
	testBranch = "main"
)

func setup(t testing.TB) (*fakegithub.Server, storage.FileStore) {
	srv := fakegithub.New(testOwner, testRepo, testToken)
	t.Cleanup(srv.Close)

	store, err := New(testOwner, testRepo, BaseURL(srv.URL), Token(testToken))
	require.NoError(t, err)
	return srv, store
}

func TestNew(t *testing.T) {
	_, err := New("", testRepo)
	assert.True(t, errors.Is(err, status.ErrInvalidResource))

	store, err := New(testOwner, testRepo)
	require.NoError(t, err)
	assert.Equal(t, "github://tngon462/slide", store.String())
}

func TestGetFile(t *testing.T) {
	srv, store := setup(t)
	ctx := context.Background()
	srv.Seed(testBranch, "slides/manifest.json", []byte(`["x.png"]`))

	rf, err := store.GetFile(ctx, "slides/manifest.json", testBranch)
	require.NoError(t, err)
	require.NotNil(t, rf)
	assert.Equal(t, storage.BlobSHA([]byte(`["x.png"]`)), rf.SHA)
	b, err := rf.Decode()
	require.NoError(t, err)
	assert.Equal(t, `["x.png"]`, string(b))

	rf, err = store.GetFile(ctx, "slides/manifest.json", "dev")
	require.NoError(t, err)
	assert.Nil(t, rf, "not found is not an error")

	calls := srv.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "slides/manifest.json", calls[0].Path)
	assert.Equal(t, testBranch, calls[0].Ref)
	assert.Equal(t, "dev", calls[1].Ref)
}

func TestGetFileErrors(t *testing.T) {
	srv, store := setup(t)
	ctx := context.Background()

	srv.FailOn(http.MethodGet, "slides/manifest.json", http.StatusInternalServerError)
	_, err := store.GetFile(ctx, "slides/manifest.json", testBranch)
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrStorageAPI))

	var apiErr *status.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "injected failure")

	unauthorized, err := New(testOwner, testRepo, BaseURL(srv.URL), Token("wrong"))
	require.NoError(t, err)
	_, err = unauthorized.GetFile(ctx, "slides/manifest.json", testBranch)
	assert.True(t, errors.Is(err, status.ErrUnauthorized))
}

func TestHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer "+testToken, r.Header.Get("Authorization"))
		assert.Equal(t, "application/vnd.github+json", r.Header.Get("Accept"))
		assert.Equal(t, "slides-manager", r.Header.Get("User-Agent"))
		assert.Equal(t, "/repos/tngon462/slide/contents/slides/a%20b.png", r.URL.EscapedPath())
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	store, err := New(testOwner, testRepo, BaseURL(srv.URL+"/"), Token(testToken))
	require.NoError(t, err)
	rf, err := store.GetFile(context.Background(), "slides/a b.png", testBranch)
	require.NoError(t, err)
	assert.Nil(t, rf)
}

func TestPutFile(t *testing.T) {
	srv, store := setup(t)
	ctx := context.Background()

	commit, err := store.PutFile(ctx, "slides/manifest.json", testBranch, []byte("[]"), "create", "")
	require.NoError(t, err)
	assert.NotEmpty(t, commit.SHA)

	b, ok := srv.File(testBranch, "slides/manifest.json")
	require.True(t, ok)
	assert.Equal(t, "[]", string(b))

	_, err = store.PutFile(ctx, "slides/manifest.json", testBranch, []byte("[1]"), "blind", "")
	assert.True(t, errors.Is(err, status.ErrConflict))

	next, err := store.PutFile(ctx, "slides/manifest.json", testBranch, []byte("[1]"), "update", storage.BlobSHA([]byte("[]")))
	require.NoError(t, err)
	assert.NotEqual(t, commit.SHA, next.SHA)
	assert.Equal(t, 2, srv.Commits())
}

func TestDeleteFile(t *testing.T) {
	srv, store := setup(t)
	ctx := context.Background()
	srv.Seed(testBranch, "slides/b.png", []byte("png"))

	deleted, err := store.DeleteFile(ctx, "slides/b.png", testBranch)
	require.NoError(t, err)
	assert.True(t, deleted)
	_, ok := srv.File(testBranch, "slides/b.png")
	assert.False(t, ok)

	deleted, err = store.DeleteFile(ctx, "slides/b.png", testBranch)
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Equal(t, 1, srv.CallsFor(http.MethodDelete), "no delete is issued for a missing file")

	srv.Seed(testBranch, "slides/c.png", []byte("png"))
	srv.FailOn(http.MethodDelete, "slides/c.png", http.StatusForbidden)
	deleted, err = store.DeleteFile(ctx, "slides/c.png", testBranch)
	assert.False(t, deleted)
	assert.True(t, errors.Is(err, status.ErrForbidden))
}
