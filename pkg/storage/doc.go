// Copyright © 2018 One Concern

// Package storage provides interface to handle single files kept in a
// remote source-control repository.
//
// This package supports the following backends:
//   - github (repository contents API)
//   - local file system (development and tests)
package storage
