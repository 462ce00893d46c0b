// Copyright © 2018 One Concern

package storage

import (
	"context"
	"crypto/sha1" // #nosec: git blob ids are sha1
	"encoding/base64"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/oneconcern/slides/pkg/storage/status"
)

// Content encodings reported by the repository API
const (
	EncodingBase64 = "base64"
	EncodingUTF8   = "utf-8"
)

// RemoteFile is the repository representation of a stored file.
//
// SHA is the version token to send back when overwriting or deleting the file.
type RemoteFile struct {
	Path     string `json:"path"`
	SHA      string `json:"sha"`
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
}

// Decode the file content according to its encoding
func (f *RemoteFile) Decode() ([]byte, error) {
	switch strings.ToLower(f.Encoding) {
	case EncodingBase64:
		// the contents API wraps base64 payloads every 60 characters
		clean := strings.NewReplacer("\n", "", "\r", "").Replace(f.Content)
		b, err := base64.StdEncoding.DecodeString(clean)
		if err != nil {
			return nil, status.ErrUnknownEncoding.Wrap(err)
		}
		return b, nil
	case "", EncodingUTF8, "utf8":
		return []byte(f.Content), nil
	default:
		return nil, status.ErrUnknownEncoding.Wrapf("%q for %s", f.Encoding, f.Path)
	}
}

// Commit describes the commit created by a write
type Commit struct {
	SHA string `json:"sha"`
}

// FileStore implementations know how to read, write and delete a single file
// on a branch of a repository.
//
// Every successful write creates a commit on the remote repository.
type FileStore interface {
	String() string

	// GetFile returns (nil, nil) when the file does not exist on that branch
	GetFile(ctx context.Context, path, branch string) (*RemoteFile, error)

	// PutFile creates the file when sha is empty, and updates it otherwise
	PutFile(ctx context.Context, path, branch string, content []byte, message, sha string) (*Commit, error)

	// DeleteFile returns false without error when the file is already gone
	DeleteFile(ctx context.Context, path, branch string) (bool, error)
}

// BlobSHA computes the git blob identifier of some content
func BlobSHA(content []byte) string {
	h := sha1.New() // #nosec
	_, _ = h.Write([]byte("blob " + strconv.Itoa(len(content)) + "\x00"))
	_, _ = h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

// DeleteMessage is the commit message used when deleting a file
func DeleteMessage(path string) string {
	return "chore(slides): delete " + path
}
