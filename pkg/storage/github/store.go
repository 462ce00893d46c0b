// Package github implements a FileStore on top of the github repository contents API.
//
// See https://docs.github.com/en/rest/repos/contents
package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/oneconcern/slides/pkg/storage"
	"github.com/oneconcern/slides/pkg/storage/status"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	// DefaultBaseURL is the public github API
	DefaultBaseURL = "https://api.github.com"

	defaultUserAgent = "slides-manager"
	mediaType        = "application/vnd.github+json"

	// the contents API serves files up to 1MB inline: base64 and JSON framing stay well under this
	maxResponseSize = 10 * units.MiB
)

var _ storage.FileStore = &gh{}

type gh struct {
	owner     string
	repo      string
	baseURL   string
	token     string
	userAgent string
	client    *http.Client
	l         *zap.Logger
}

// New builds a store for files of the owner/repo repository
func New(owner, repo string, opts ...Option) (storage.FileStore, error) {
	if owner == "" || repo == "" {
		return nil, status.ErrInvalidResource.Wrapf("owner and repo are required, got %q/%q", owner, repo)
	}
	g := &gh{
		owner:     owner,
		repo:      repo,
		baseURL:   DefaultBaseURL,
		userAgent: defaultUserAgent,
		client:    &http.Client{Timeout: 30 * time.Second},
		l:         zap.NewNop(),
	}
	for _, apply := range opts {
		apply(g)
	}
	if _, err := url.Parse(g.baseURL); err != nil {
		return nil, status.ErrInvalidResource.Wrapf("invalid base URL %q: %v", g.baseURL, err)
	}

	base := g.client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	g.client = &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: g.token, TokenType: "Bearer"}),
			Base:   base,
		},
		CheckRedirect: g.client.CheckRedirect,
		Jar:           g.client.Jar,
		Timeout:       g.client.Timeout,
	}
	return g, nil
}

func (g *gh) String() string {
	return "github://" + g.owner + "/" + g.repo
}

func (g *gh) contentsURL(pth string) string {
	segments := strings.Split(strings.Trim(pth, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		g.baseURL, url.PathEscape(g.owner), url.PathEscape(g.repo), strings.Join(segments, "/"))
}

// do sends a request and decodes a successful JSON response into out (when not nil).
//
// Non-success responses are qualified as status errors carrying the response body.
func (g *gh) do(ctx context.Context, method, u string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", mediaType)
	req.Header.Set("User-Agent", g.userAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return status.ErrStorageAPI.Wrap(err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return status.ErrStorageAPI.Wrapf("read body: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		g.l.Debug("github API error", zap.String("method", method), zap.String("url", u), zap.Int("status", resp.StatusCode))
		return status.FromStatus(resp.StatusCode, string(payload))
	}
	if out == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return status.ErrStorageAPI.Wrapf("decode %s response: %v", method, err)
	}
	return nil
}

func (g *gh) GetFile(ctx context.Context, pth, branch string) (*storage.RemoteFile, error) {
	u := g.contentsURL(pth) + "?ref=" + url.QueryEscape(branch)
	var rf storage.RemoteFile
	err := g.do(ctx, http.MethodGet, u, nil, &rf)
	if err != nil {
		if status.IsNotExists(err) {
			return nil, nil
		}
		return nil, err
	}
	if rf.SHA == "" {
		// not a regular file (e.g. submodule)
		return nil, status.ErrInvalidResource.Wrapf("%s is not a file", pth)
	}
	return &rf, nil
}

type writeRequest struct {
	Message string `json:"message"`
	Content string `json:"content,omitempty"`
	Branch  string `json:"branch,omitempty"`
	SHA     string `json:"sha,omitempty"`
}

type writeResponse struct {
	Commit storage.Commit `json:"commit"`
}

func (g *gh) PutFile(ctx context.Context, pth, branch string, content []byte, message, sha string) (*storage.Commit, error) {
	req := writeRequest{
		Message: message,
		Content: base64.StdEncoding.EncodeToString(content),
		Branch:  branch,
		SHA:     sha,
	}
	var resp writeResponse
	if err := g.do(ctx, http.MethodPut, g.contentsURL(pth), req, &resp); err != nil {
		return nil, err
	}
	g.l.Info("github commit", zap.String("path", pth), zap.String("branch", branch), zap.String("commit", resp.Commit.SHA))
	return &resp.Commit, nil
}

func (g *gh) DeleteFile(ctx context.Context, pth, branch string) (bool, error) {
	rf, err := g.GetFile(ctx, pth, branch)
	if err != nil {
		return false, err
	}
	if rf == nil {
		return false, nil
	}
	req := writeRequest{
		Message: storage.DeleteMessage(pth),
		Branch:  branch,
		SHA:     rf.SHA,
	}
	if err := g.do(ctx, http.MethodDelete, g.contentsURL(pth), req, nil); err != nil {
		return false, err
	}
	g.l.Info("github delete", zap.String("path", pth), zap.String("branch", branch))
	return true, nil
}
