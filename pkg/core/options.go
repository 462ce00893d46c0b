package core

import (
	"github.com/oneconcern/slides/pkg/metrics"
	"go.uber.org/zap"
)

// ServiceOption sets options for the manifest service
type ServiceOption func(*Settings)

// Settings defines various settings for core features
type Settings struct {
	manifestPath      string
	branch            string
	deleteConcurrency int
	l                 *zap.Logger
	m                 *metrics.M
}

const (
	// DefaultManifestPath is the location of the manifest in the repository
	DefaultManifestPath = "slides/manifest.json"

	// DefaultBranch is the branch holding the manifest
	DefaultBranch = "main"
)

// ManifestPath sets the path of the manifest file. It defaults to DefaultManifestPath.
func ManifestPath(pth string) ServiceOption {
	return func(s *Settings) {
		if pth == "" {
			s.manifestPath = DefaultManifestPath
			return
		}
		s.manifestPath = pth
	}
}

// Branch sets the branch to read from and commit to. It defaults to DefaultBranch.
func Branch(branch string) ServiceOption {
	return func(s *Settings) {
		if branch == "" {
			s.branch = DefaultBranch
			return
		}
		s.branch = branch
	}
}

// DeleteConcurrency sets the max number of files deleted in parallel after a replace.
// It defaults to 1, i.e. deletions run one after the other.
func DeleteConcurrency(n int) ServiceOption {
	return func(s *Settings) {
		if n < 1 {
			s.deleteConcurrency = 1
			return
		}
		s.deleteConcurrency = n
	}
}

// Logger sets a logger for the service
func Logger(l *zap.Logger) ServiceOption {
	return func(s *Settings) {
		if l != nil {
			s.l = l
		}
	}
}

// Metrics sets the collectors updated by the service
func Metrics(m *metrics.M) ServiceOption {
	return func(s *Settings) {
		s.m = m
	}
}

func defaultSettings() Settings {
	return Settings{
		manifestPath:      DefaultManifestPath,
		branch:            DefaultBranch,
		deleteConcurrency: 1,
		l:                 zap.NewNop(),
	}
}
