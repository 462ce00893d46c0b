// Copyright © 2018 One Concern

package core

import (
	"context"
	"fmt"

	"github.com/oneconcern/slides/pkg/errors"
	"github.com/oneconcern/slides/pkg/metrics"
	"github.com/oneconcern/slides/pkg/model"
	"github.com/oneconcern/slides/pkg/storage"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidPayload reports a replace request without a list of items
var ErrInvalidPayload = errors.New("payload must have items[]")

// ManifestService reads and replaces the slides manifest kept in a repository.
//
// The service holds no state between calls. Concurrent replaces on the same
// manifest are not coordinated: the last writer wins.
type ManifestService struct {
	store storage.FileStore
	Settings
}

// NewManifestService builds a manifest service on top of a file store
func NewManifestService(store storage.FileStore, opts ...ServiceOption) *ManifestService {
	s := &ManifestService{
		store:    store,
		Settings: defaultSettings(),
	}
	for _, apply := range opts {
		apply(&s.Settings)
	}
	s.l = s.l.With(zap.String("manifest", s.manifestPath), zap.String("branch", s.branch))
	return s
}

// FetchResult is the current content of the manifest
type FetchResult struct {
	Items  model.Manifest `json:"items"`
	Schema string         `json:"schema"`
}

// ReplaceRequest describes a new manifest
type ReplaceRequest struct {
	Items       model.Manifest
	DeleteFiles bool
}

// ReplaceResult describes the outcome of a replace
type ReplaceResult struct {
	CommitSHA    string   `json:"commitSha"`
	Removed      int      `json:"removed"`
	DeletedFiles int      `json:"deletedFiles"`
	FailedFiles  []string `json:"failedFiles,omitempty"`
}

// DeleteOutcome is the result of deleting a single file no longer referenced by the manifest
type DeleteOutcome struct {
	Path    string
	Deleted bool
	Err     error
}

// current reads the stored manifest. The version token is empty when the file does not exist yet.
func (s *ManifestService) current(ctx context.Context) (model.Manifest, string, error) {
	rf, err := s.store.GetFile(ctx, s.manifestPath, s.branch)
	if err != nil {
		return nil, "", fmt.Errorf("reading manifest %s: %w", s.manifestPath, err)
	}
	if rf == nil {
		return model.Manifest{}, "", nil
	}
	content, err := rf.Decode()
	if err != nil {
		return nil, "", fmt.Errorf("decoding manifest %s: %w", s.manifestPath, err)
	}
	items, err := model.DecodeManifest(content)
	if err != nil {
		return nil, "", fmt.Errorf("parsing manifest %s: %w", s.manifestPath, err)
	}
	return items, rf.SHA, nil
}

// Fetch returns the items of the manifest. A missing manifest is an empty one.
func (s *ManifestService) Fetch(ctx context.Context) (*FetchResult, error) {
	items, _, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	return &FetchResult{Items: items, Schema: model.SchemaObjects}, nil
}

// Replace commits a new manifest, then optionally deletes the files of the slides it no longer lists.
//
// Deletions are best effort: failures are reported in the result and never fail the replace,
// since the manifest commit is already done.
func (s *ManifestService) Replace(ctx context.Context, req ReplaceRequest) (*ReplaceResult, error) {
	if req.Items == nil {
		return nil, ErrInvalidPayload
	}

	existing, sha, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	removed := model.Removed(existing, req.Items)

	content, err := req.Items.Encode()
	if err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	message := fmt.Sprintf("chore(manifest): save (%d items)", len(req.Items))
	commit, err := s.store.PutFile(ctx, s.manifestPath, s.branch, content, message, sha)
	if err != nil {
		return nil, fmt.Errorf("writing manifest %s: %w", s.manifestPath, err)
	}
	if s.m != nil {
		s.m.ManifestWrites.Inc()
	}
	s.l.Info("manifest saved",
		zap.String("commit", commit.SHA),
		zap.Int("items", len(req.Items)),
		zap.Int("removed", len(removed)),
		zap.Bool("update", sha != ""),
	)

	result := &ReplaceResult{
		CommitSHA: commit.SHA,
		Removed:   len(removed),
	}
	if !req.DeleteFiles || len(removed) == 0 {
		return result, nil
	}

	outcomes := s.deleteFiles(ctx, removed)
	var failures error
	for _, outcome := range outcomes {
		switch {
		case outcome.Err != nil:
			result.FailedFiles = append(result.FailedFiles, outcome.Path)
			failures = multierr.Append(failures, fmt.Errorf("%s: %w", outcome.Path, outcome.Err))
		case outcome.Deleted:
			result.DeletedFiles++
		}
	}
	if failures != nil {
		s.l.Warn("some slide files could not be deleted",
			zap.String("commit", commit.SHA),
			zap.Strings("failed", result.FailedFiles),
			zap.Error(failures),
		)
	}
	return result, nil
}

// deleteFiles attempts every deletion and returns one outcome per path, in the same order
func (s *ManifestService) deleteFiles(ctx context.Context, paths []string) []DeleteOutcome {
	outcomes := make([]DeleteOutcome, len(paths))

	var g errgroup.Group
	g.SetLimit(s.deleteConcurrency)
	for i, pth := range paths {
		i, pth := i, pth
		if pth == "" {
			// items without a path have no file
			outcomes[i] = DeleteOutcome{Path: pth}
			continue
		}
		g.Go(func() error {
			deleted, err := s.store.DeleteFile(ctx, pth, s.branch)
			outcomes[i] = DeleteOutcome{Path: pth, Deleted: deleted, Err: err}
			s.recordDeletion(outcomes[i])
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (s *ManifestService) recordDeletion(outcome DeleteOutcome) {
	if s.m == nil {
		return
	}
	switch {
	case outcome.Err != nil:
		s.m.FileDeletions.WithLabelValues(metrics.OutcomeFailed).Inc()
	case outcome.Deleted:
		s.m.FileDeletions.WithLabelValues(metrics.OutcomeDeleted).Inc()
	default:
		s.m.FileDeletions.WithLabelValues(metrics.OutcomeAbsent).Inc()
	}
}
