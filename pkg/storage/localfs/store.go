// Copyright © 2018 One Concern

// Package localfs implements a FileStore on a local file system.
//
// Each branch is a directory under the root of the file system. Version tokens
// are git blob ids so that clients get the same optimistic concurrency check
// as with a remote repository.
package localfs

import (
	"context"
	"crypto/sha1" // #nosec: commit ids mimic git
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oneconcern/slides/pkg/storage"
	"github.com/oneconcern/slides/pkg/storage/status"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

var _ storage.FileStore = &localFS{}

// Option for the local store
type Option func(*localFS)

// Logger specifies a logger for this store
func Logger(logger *zap.Logger) Option {
	return func(l *localFS) {
		if logger != nil {
			l.l = logger
		}
	}
}

// New creates a new local file system backed store
func New(fs afero.Fs, opts ...Option) storage.FileStore {
	if fs == nil {
		fs = afero.NewBasePathFs(afero.NewOsFs(), ".slides")
	}
	l := &localFS{
		fs:  fs,
		l:   zap.NewNop(),
		now: time.Now,
	}
	for _, apply := range opts {
		apply(l)
	}
	return l
}

type localFS struct {
	fs  afero.Fs
	l   *zap.Logger
	now func() time.Time

	// serializes check-then-write sequences
	mx sync.Mutex
}

func key(pth, branch string) (string, error) {
	if branch == "" || strings.ContainsAny(branch, `/\`) || branch == "." || branch == ".." {
		return "", status.ErrInvalidResource.Wrapf("branch %q", branch)
	}
	clean := path.Clean("/" + filepath.ToSlash(pth))
	if clean == "/" || pth == "" {
		return "", status.ErrInvalidResource.Wrapf("path %q", pth)
	}
	return filepath.Join(branch, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

func (l *localFS) read(k string) ([]byte, bool, error) {
	fi, err := l.fs.Stat(k)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if fi.IsDir() {
		return nil, false, status.ErrInvalidResource.Wrapf("%s is a directory", k)
	}
	b, err := afero.ReadFile(l.fs, k)
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (l *localFS) GetFile(_ context.Context, pth, branch string) (*storage.RemoteFile, error) {
	k, err := key(pth, branch)
	if err != nil {
		return nil, err
	}
	b, found, err := l.read(k)
	if err != nil || !found {
		return nil, err
	}
	return &storage.RemoteFile{
		Path:     pth,
		SHA:      storage.BlobSHA(b),
		Encoding: storage.EncodingBase64,
		Content:  base64.StdEncoding.EncodeToString(b),
	}, nil
}

func (l *localFS) checkVersion(k, sha string) (bool, error) {
	current, found, err := l.read(k)
	if err != nil {
		return false, err
	}
	switch {
	case !found && sha != "":
		return false, status.ErrConflict.Wrapf("%s does not exist, but a version was supplied", k)
	case found && sha == "":
		return false, status.ErrConflict.Wrapf("%s exists already, but no version was supplied", k)
	case found && storage.BlobSHA(current) != sha:
		return false, status.ErrConflict.Wrapf("%s does not match version %s", k, sha)
	}
	return found, nil
}

func (l *localFS) commitID(k, message string, content []byte) string {
	h := sha1.New() // #nosec
	_, _ = h.Write([]byte(k))
	_, _ = h.Write([]byte(message))
	_, _ = h.Write(content)
	_, _ = h.Write([]byte(strconv.FormatInt(l.now().UnixNano(), 10)))
	return hex.EncodeToString(h.Sum(nil))
}

func (l *localFS) PutFile(_ context.Context, pth, branch string, content []byte, message, sha string) (*storage.Commit, error) {
	k, err := key(pth, branch)
	if err != nil {
		return nil, err
	}
	l.mx.Lock()
	defer l.mx.Unlock()

	if _, err = l.checkVersion(k, sha); err != nil {
		return nil, err
	}
	if err = l.fs.MkdirAll(filepath.Dir(k), 0700); err != nil {
		return nil, fmt.Errorf("ensuring directories for %q: %w", k, err)
	}
	if err = afero.WriteFile(l.fs, k, content, 0600); err != nil {
		return nil, fmt.Errorf("write record for %q: %w", k, err)
	}
	commit := &storage.Commit{SHA: l.commitID(k, message, content)}
	l.l.Info("local commit", zap.String("path", k), zap.String("message", message), zap.String("commit", commit.SHA))
	return commit, nil
}

func (l *localFS) DeleteFile(_ context.Context, pth, branch string) (bool, error) {
	k, err := key(pth, branch)
	if err != nil {
		return false, err
	}
	l.mx.Lock()
	defer l.mx.Unlock()

	_, found, err := l.read(k)
	if err != nil || !found {
		return false, err
	}
	if err := l.fs.Remove(k); err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("removing %q: %w", k, err)
	}
	l.l.Info("local commit", zap.String("path", k), zap.String("message", storage.DeleteMessage(pth)))
	return true, nil
}

func (l *localFS) String() string {
	const localfs = "localfs"
	switch fs := l.fs.(type) {
	case *afero.BasePathFs:
		pp, err := fs.RealPath("")
		if err != nil {
			return localfs
		}
		return localfs + "@" + pp
	default:
		return localfs
	}
}
