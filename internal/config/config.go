package config

import (
	"encoding/json"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/statikapi/statikapi/internal/errors"
)

const (
	// DefaultSrcDir is the default endpoint source directory.
	DefaultSrcDir = "src-api"

	// DefaultOutDir is the default artifact output directory.
	DefaultOutDir = "api-out"

	// DefaultHost is the default dev server host.
	DefaultHost = "127.0.0.1"

	// DefaultPort is the default dev server port.
	DefaultPort = 8788

	// DefaultDebounce is how long the dev watcher waits for a file to
	// settle before handling it.
	DefaultDebounce = "75ms"

	// EnvFileName is loaded from the project root and exposed to endpoint
	// modules as process.env.
	EnvFileName = ".env"
)

// FileNames lists the config file names looked up in a project root, in
// order of preference.
var FileNames = []string{
	"statikapi.json",
	"statikapi.jsonc",
	"statikapi.yaml",
	"statikapi.yml",
}

// Config is a statikapi project configuration.
type Config struct {
	// SrcDir is the endpoint source directory, relative to the project root.
	SrcDir string `json:"srcDir,omitempty" yaml:"srcDir,omitempty"`

	// OutDir is the artifact output directory, relative to the project root.
	OutDir string `json:"outDir,omitempty" yaml:"outDir,omitempty"`

	// Pretty indents artifacts and the manifest.
	Pretty bool `json:"pretty,omitempty" yaml:"pretty,omitempty"`

	// Dev contains dev server settings.
	Dev DevConfig `json:"dev,omitempty" yaml:"dev,omitempty"`

	// Publish contains object storage settings for `statikapi publish`.
	Publish PublishConfig `json:"publish,omitempty" yaml:"publish,omitempty"`

	configPath string
	root       string
}

// DevConfig contains dev server settings.
type DevConfig struct {
	Host string `json:"host,omitempty" yaml:"host,omitempty"`
	Port int    `json:"port,omitempty" yaml:"port,omitempty"`

	// Open opens the browser when the dev server starts.
	Open bool `json:"open,omitempty" yaml:"open,omitempty"`

	// NotifyURL is an external preview origin that receives
	// POST /_ui/changed?route=... for every changed route.
	NotifyURL string `json:"notifyURL,omitempty" yaml:"notifyURL,omitempty"`

	// Debounce is a duration string ("75ms").
	Debounce string `json:"debounce,omitempty" yaml:"debounce,omitempty"`
}

// PublishConfig locates an S3-compatible bucket.
type PublishConfig struct {
	Bucket   string `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	Prefix   string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Region   string `json:"region,omitempty" yaml:"region,omitempty"`
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`

	// PathStyle addresses the bucket as a path segment rather than a
	// subdomain (MinIO, localstack).
	PathStyle bool `json:"pathStyle,omitempty" yaml:"pathStyle,omitempty"`
}

// New returns a configuration with defaults, rooted nowhere.
func New() *Config {
	return &Config{
		SrcDir: DefaultSrcDir,
		OutDir: DefaultOutDir,
		Dev: DevConfig{
			Host:     DefaultHost,
			Port:     DefaultPort,
			Debounce: DefaultDebounce,
		},
	}
}

// Load reads the configuration of the project rooted at dir. A project
// without a config file gets the defaults.
func Load(dir string) (*Config, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.New("E120").Wrap(err)
	}
	if file := Find(abs); file != "" {
		return LoadFile(file)
	}

	cfg := New()
	cfg.root = abs
	return cfg, cfg.Validate()
}

// LoadFile reads the configuration from path. YAML is chosen by
// extension; anything else is JSON with comments and trailing commas.
func LoadFile(file string) (*Config, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.New("E120").WithFile(file).Wrap(err)
	}

	cfg := New()
	switch strings.ToLower(filepath.Ext(file)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(jsonc.ToJSON(data), cfg)
	}
	if err != nil {
		return nil, errors.New("E120").
			WithFile(filepath.Base(file)).
			WithDetail("Failed to parse " + filepath.Base(file) + ": " + err.Error()).
			WithSuggestion("Check the file syntax; comments and trailing commas are allowed in JSON")
	}

	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, errors.New("E120").Wrap(err)
	}
	cfg.configPath = abs
	cfg.root = filepath.Dir(abs)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Find returns the config file in dir, or "" if there is none.
func Find(dir string) string {
	for _, name := range FileNames {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// FindProjectRoot walks up from startDir to the nearest directory with
// a config file. Without one, startDir itself is the root.
func FindProjectRoot(startDir string) (string, error) {
	start, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for dir := start; ; {
		if Find(dir) != "" {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return start, nil
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads the configuration of the project containing
// the working directory.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, errors.New("E120").Wrap(err)
	}
	root, err := FindProjectRoot(wd)
	if err != nil {
		return nil, errors.New("E120").Wrap(err)
	}
	return Load(root)
}

// SetRoot points a programmatic configuration at a project directory.
func (c *Config) SetRoot(dir string) {
	c.root = dir
}

// Path returns the config file path, or "" for defaults.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the project root.
func (c *Config) Dir() string {
	return c.root
}

func (c *Config) applyDefaults() {
	if c.SrcDir == "" {
		c.SrcDir = DefaultSrcDir
	}
	if c.OutDir == "" {
		c.OutDir = DefaultOutDir
	}
	if c.Dev.Host == "" {
		c.Dev.Host = DefaultHost
	}
	if c.Dev.Port == 0 {
		c.Dev.Port = DefaultPort
	}
	if c.Dev.Debounce == "" {
		c.Dev.Debounce = DefaultDebounce
	}
}

// Validate checks the configuration and normalizes srcDir and outDir to
// clean slash-separated relative paths.
func (c *Config) Validate() error {
	for _, f := range []struct {
		name string
		val  *string
	}{
		{"srcDir", &c.SrcDir},
		{"outDir", &c.OutDir},
	} {
		v := strings.TrimSpace(*f.val)
		if v == "" {
			return errors.New("E121").WithParam(f.name).
				WithDetailf("%q must be a non-empty string", f.name)
		}
		if filepath.IsAbs(v) || path.IsAbs(filepath.ToSlash(v)) {
			return errors.New("E121").WithParam(f.name).
				WithDetailf("%q must be a relative path. Got absolute: %s", f.name, v)
		}
		norm := path.Clean(filepath.ToSlash(v))
		if norm == ".." || strings.HasPrefix(norm, "../") {
			return errors.New("E121").WithParam(f.name).
				WithDetailf("%q cannot traverse outside the project: %s", f.name, norm)
		}
		if norm == "." {
			return errors.New("E121").WithParam(f.name).
				WithDetailf("%q must not be the project root", f.name)
		}
		*f.val = norm
	}
	if c.SrcDir == c.OutDir {
		return errors.New("E121").WithParam("outDir").
			WithDetailf(`"srcDir" and "outDir" must differ (both %q)`, c.SrcDir)
	}
	if strings.HasPrefix(c.SrcDir+"/", c.OutDir+"/") || strings.HasPrefix(c.OutDir+"/", c.SrcDir+"/") {
		return errors.New("E121").WithParam("outDir").
			WithDetailf(`"srcDir" and "outDir" must not contain each other (%q, %q)`, c.SrcDir, c.OutDir)
	}

	if c.Dev.Port < 0 || c.Dev.Port > 65535 {
		return errors.New("E122").
			WithDetail("Port must be between 0 and 65535")
	}
	if _, err := c.DebounceDuration(); err != nil {
		return errors.New("E121").WithParam("dev.debounce").
			WithDetailf("invalid duration %q", c.Dev.Debounce)
	}
	return nil
}

// SrcPath returns the absolute source directory.
func (c *Config) SrcPath() string {
	return filepath.Join(c.root, filepath.FromSlash(c.SrcDir))
}

// OutPath returns the absolute output directory.
func (c *Config) OutPath() string {
	return filepath.Join(c.root, filepath.FromSlash(c.OutDir))
}

// DevAddress returns the dev server listen address.
func (c *Config) DevAddress() string {
	return c.Dev.Host + ":" + strconv.Itoa(c.Dev.Port)
}

// DevURL returns the dev server base URL.
func (c *Config) DevURL() string {
	return "http://" + c.DevAddress()
}

// DebounceDuration parses Dev.Debounce. Empty means no debounce.
func (c *Config) DebounceDuration() (time.Duration, error) {
	if c.Dev.Debounce == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Dev.Debounce)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, strconv.ErrRange
	}
	return d, nil
}

// Env reads the project's .env file. A missing file is an empty map.
func (c *Config) Env() (map[string]string, error) {
	p := filepath.Join(c.root, EnvFileName)
	env, err := godotenv.Read(p)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, errors.New("E120").WithFile(EnvFileName).Wrap(err)
	}
	return env, nil
}

// SaveTo writes the configuration as indented JSON.
func (c *Config) SaveTo(file string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("E120").Wrap(err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(file, data, 0644); err != nil {
		return errors.New("E120").Wrap(err)
	}
	c.configPath = file
	c.root = filepath.Dir(file)
	return nil
}
