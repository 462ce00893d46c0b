// Package fakegithub serves an in-memory imitation of the github repository contents API,
// for tests.
package fakegithub

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/oneconcern/slides/pkg/storage"
)

// Call records a request received by the fake
type Call struct {
	Method string
	Path   string
	Ref    string
}

// Server is a fake contents API for a single owner/repo
type Server struct {
	*httptest.Server

	Owner string
	Repo  string
	Token string

	mx      sync.Mutex
	files   map[string][]byte // keyed by branch + ":" + path
	calls   []Call
	failOn  map[string]int
	commits int
}

// New starts a fake server. Close it when done.
func New(owner, repo, token string) *Server {
	s := &Server{
		Owner:  owner,
		Repo:   repo,
		Token:  token,
		files:  make(map[string][]byte),
		failOn: make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

func fileKey(branch, pth string) string {
	return branch + ":" + pth
}

// Seed stores a file without creating a commit
func (s *Server) Seed(branch, pth string, content []byte) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.files[fileKey(branch, pth)] = content
}

// File returns the content of a stored file
func (s *Server) File(branch, pth string) ([]byte, bool) {
	s.mx.Lock()
	defer s.mx.Unlock()
	b, ok := s.files[fileKey(branch, pth)]
	return b, ok
}

// FailOn makes every request with this method on this path fail with the given status code
func (s *Server) FailOn(method, pth string, code int) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.failOn[method+" "+pth] = code
}

// Calls returns a copy of all requests received so far
func (s *Server) Calls() []Call {
	s.mx.Lock()
	defer s.mx.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsFor counts requests received with this method
func (s *Server) CallsFor(method string) int {
	n := 0
	for _, c := range s.Calls() {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Commits counts writes and deletes
func (s *Server) Commits() int {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.commits
}

type writeBody struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch"`
	SHA     string `json:"sha"`
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func message(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"message": msg})
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	prefix := "/repos/" + s.Owner + "/" + s.Repo + "/contents/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		message(w, http.StatusNotFound, "Not Found")
		return
	}
	pth := strings.TrimPrefix(r.URL.Path, prefix)

	s.mx.Lock()
	defer s.mx.Unlock()

	s.calls = append(s.calls, Call{Method: r.Method, Path: pth, Ref: r.URL.Query().Get("ref")})

	if r.Header.Get("Authorization") != "Bearer "+s.Token {
		message(w, http.StatusUnauthorized, "Bad credentials")
		return
	}
	if code, ok := s.failOn[r.Method+" "+pth]; ok {
		message(w, code, "injected failure")
		return
	}

	switch r.Method {
	case http.MethodGet:
		content, ok := s.files[fileKey(r.URL.Query().Get("ref"), pth)]
		if !ok {
			message(w, http.StatusNotFound, "Not Found")
			return
		}
		writeJSON(w, http.StatusOK, storage.RemoteFile{
			Path:     pth,
			SHA:      storage.BlobSHA(content),
			Encoding: storage.EncodingBase64,
			Content:  base64.StdEncoding.EncodeToString(content) + "\n",
		})

	case http.MethodPut, http.MethodDelete:
		var body writeBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			message(w, http.StatusBadRequest, "Problems parsing JSON")
			return
		}
		if body.Message == "" {
			message(w, http.StatusUnprocessableEntity, "message is required")
			return
		}
		k := fileKey(body.Branch, pth)
		current, exists := s.files[k]
		switch {
		case r.Method == http.MethodDelete && !exists:
			message(w, http.StatusNotFound, "Not Found")
			return
		case exists && body.SHA == "":
			message(w, http.StatusUnprocessableEntity, `"sha" wasn't supplied.`)
			return
		case exists && body.SHA != storage.BlobSHA(current):
			message(w, http.StatusConflict, fmt.Sprintf("%s does not match %s", pth, body.SHA))
			return
		}

		s.commits++
		commit := storage.Commit{SHA: fmt.Sprintf("%040d", s.commits)}
		if r.Method == http.MethodDelete {
			delete(s.files, k)
			writeJSON(w, http.StatusOK, map[string]interface{}{"content": nil, "commit": commit})
			return
		}
		content, err := base64.StdEncoding.DecodeString(body.Content)
		if err != nil {
			message(w, http.StatusBadRequest, "content is not valid Base64")
			return
		}
		s.files[k] = content
		code := http.StatusOK
		if !exists {
			code = http.StatusCreated
		}
		writeJSON(w, code, map[string]interface{}{
			"content": map[string]string{"path": pth, "sha": storage.BlobSHA(content)},
			"commit":  commit,
		})

	default:
		message(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	}
}
