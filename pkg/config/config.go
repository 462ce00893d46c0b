// Package config holds the settings of the slides service.
//
// Settings are read from flags, environment variables and an optional config file,
// using viper. They are loaded once at startup and passed to constructors.
package config

import (
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/oneconcern/slides/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Configuration keys
const (
	KeyToken             = "token"
	KeyOwner             = "owner"
	KeyRepo              = "repo"
	KeyBranch            = "branch"
	KeyManifestPath      = "manifest-path"
	KeyCORSOrigin        = "cors-origin"
	KeyAPIURL            = "api-url"
	KeyBackend           = "backend"
	KeyLocalDir          = "local-dir"
	KeyLogLevel          = "log-level"
	KeyRemoteTimeout     = "remote-timeout"
	KeyMaxBodySize       = "max-body-size"
	KeyDeleteConcurrency = "delete-concurrency"
)

// Supported storage backends
const (
	BackendGithub  = "github"
	BackendLocalFS = "localfs"
)

var (
	// ErrMissingCredential is returned when no token is configured for the github backend
	ErrMissingCredential = errors.New("missing GITHUB_TOKEN")

	// ErrInvalidConfig is returned when a setting can't be used
	ErrInvalidConfig = errors.New("invalid configuration")
)

type setting struct {
	key   string
	env   string
	def   interface{}
	usage string
}

var settings = []setting{
	{key: KeyToken, env: "GITHUB_TOKEN", def: "", usage: "the bearer token used to call the repository API"},
	{key: KeyOwner, env: "GH_OWNER", def: "tngon462", usage: "the owner of the repository"},
	{key: KeyRepo, env: "GH_REPO", def: "slide", usage: "the name of the repository"},
	{key: KeyBranch, env: "GH_BRANCH", def: "main", usage: "the branch holding the manifest"},
	{key: KeyManifestPath, env: "MANIFEST_PATH", def: "slides/manifest.json", usage: "the path of the manifest in the repository"},
	{key: KeyCORSOrigin, env: "CORS_ORIGIN", def: "*", usage: "comma-separated list of allowed origins"},
	{key: KeyAPIURL, env: "GH_API_URL", def: "https://api.github.com", usage: "the base URL of the repository API"},
	{key: KeyBackend, env: "SLIDES_BACKEND", def: BackendGithub, usage: "the storage backend: github or localfs"},
	{key: KeyLocalDir, env: "SLIDES_LOCAL_DIR", def: ".slides", usage: "the root directory of the localfs backend"},
	{key: KeyLogLevel, env: "SLIDES_LOG_LEVEL", def: "info", usage: "the log level: debug, info or none"},
	{key: KeyRemoteTimeout, env: "SLIDES_REMOTE_TIMEOUT", def: 30 * time.Second, usage: "timeout of each call to the repository API"},
	{key: KeyMaxBodySize, env: "SLIDES_MAX_BODY_SIZE", def: "1MB", usage: "the maximum size of a request body"},
	{key: KeyDeleteConcurrency, env: "SLIDES_DELETE_CONCURRENCY", def: 1, usage: "how many removed slide files are deleted in parallel"},
}

// Config describes the settings of the service
type Config struct {
	Token             string        `json:"-" yaml:"-"`
	Owner             string        `json:"owner" yaml:"owner"`
	Repo              string        `json:"repo" yaml:"repo"`
	Branch            string        `json:"branch" yaml:"branch"`
	ManifestPath      string        `json:"manifestPath" yaml:"manifestPath"`
	CORSOrigins       []string      `json:"corsOrigins" yaml:"corsOrigins"`
	APIURL            string        `json:"apiURL" yaml:"apiURL"`
	Backend           string        `json:"backend" yaml:"backend"`
	LocalDir          string        `json:"localDir" yaml:"localDir"`
	LogLevel          string        `json:"logLevel" yaml:"logLevel"`
	RemoteTimeout     time.Duration `json:"remoteTimeout" yaml:"remoteTimeout"`
	MaxBodySize       int64         `json:"maxBodySize" yaml:"maxBodySize"`
	DeleteConcurrency int           `json:"deleteConcurrency" yaml:"deleteConcurrency"`
}

// Bind registers defaults and environment variables on v.
//
// When fs is not nil, a flag is added for every setting and bound to v.
func Bind(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, s := range settings {
		v.SetDefault(s.key, s.def)
		if err := v.BindEnv(s.key, s.env); err != nil {
			return err
		}
		if fs == nil || s.key == KeyToken {
			// credentials are never passed on the command line
			continue
		}
		switch def := s.def.(type) {
		case string:
			fs.String(s.key, def, s.usage+" (env: "+s.env+")")
		case int:
			fs.Int(s.key, def, s.usage+" (env: "+s.env+")")
		case time.Duration:
			fs.Duration(s.key, def, s.usage+" (env: "+s.env+")")
		}
		if err := v.BindPFlag(s.key, fs.Lookup(s.key)); err != nil {
			return err
		}
	}
	return nil
}

// Load builds the configuration from v. It does not check the credential: see Validate.
func Load(v *viper.Viper) (*Config, error) {
	maxBody, err := units.FromHumanSize(v.GetString(KeyMaxBodySize))
	if err != nil {
		return nil, ErrInvalidConfig.Wrapf("%s: %v", KeyMaxBodySize, err)
	}

	c := &Config{
		Token:             strings.TrimSpace(v.GetString(KeyToken)),
		Owner:             v.GetString(KeyOwner),
		Repo:              v.GetString(KeyRepo),
		Branch:            v.GetString(KeyBranch),
		ManifestPath:      v.GetString(KeyManifestPath),
		CORSOrigins:       SplitOrigins(v.GetString(KeyCORSOrigin)),
		APIURL:            v.GetString(KeyAPIURL),
		Backend:           strings.ToLower(v.GetString(KeyBackend)),
		LocalDir:          v.GetString(KeyLocalDir),
		LogLevel:          v.GetString(KeyLogLevel),
		RemoteTimeout:     v.GetDuration(KeyRemoteTimeout),
		MaxBodySize:       maxBody,
		DeleteConcurrency: v.GetInt(KeyDeleteConcurrency),
	}

	switch c.Backend {
	case BackendGithub, BackendLocalFS:
	default:
		return nil, ErrInvalidConfig.Wrapf("unknown backend %q", c.Backend)
	}
	if c.DeleteConcurrency < 1 {
		return nil, ErrInvalidConfig.Wrapf("%s must be at least 1", KeyDeleteConcurrency)
	}
	return c, nil
}

// Validate tells if the service may call the repository API
func (c *Config) Validate() error {
	if c.Backend == BackendGithub && c.Token == "" {
		return ErrMissingCredential
	}
	return nil
}

// SplitOrigins parses a comma-separated list of origins
func SplitOrigins(list string) []string {
	parts := strings.Split(list, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if o := strings.TrimSpace(p); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
