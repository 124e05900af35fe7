package internal

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

const (
	DefaultPort                      = "3001"
	DefaultMaxUploadBytes      int64 = 10 << 20
	DefaultConversionTimeout         = 120
	DefaultProbeTimeout              = 10
	DefaultRemediationTimeout        = 300
	DefaultMaxConcurrent             = 2
	maxConfigFileBytes               = 1 << 20

	// room for admission wait, upload transfer and writing the envelope
	responseSlack = 60 * time.Second
)

// StorageConfig points at an optional Supabase bucket mirroring converted outputs
type StorageConfig struct {
	URL    string `yaml:"url"`
	Key    string `yaml:"key"`
	Bucket string `yaml:"bucket"`
}

// Enabled reports whether all storage settings are present
func (s StorageConfig) Enabled() bool {
	return s.URL != "" && s.Key != "" && s.Bucket != ""
}

// Config holds every runtime setting of the service
type Config struct {
	Port           string `yaml:"port"`
	AppRoot        string `yaml:"app_root"`
	UploadDir      string `yaml:"upload_dir"`
	OutputDir      string `yaml:"output_dir"`
	ScriptPath     string `yaml:"script_path"`
	DownloadPrefix string `yaml:"download_prefix"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`

	RuntimeCandidates   []string `yaml:"runtime_candidates"`
	RequiredModules     []string `yaml:"required_modules"`
	RemediationPackages []string `yaml:"remediation_packages"`
	TypesetterBinary    string   `yaml:"typesetter_binary"`
	TypesetterSignature string   `yaml:"typesetter_signature"`

	ConversionTimeoutSeconds  int `yaml:"conversion_timeout_seconds"`
	ProbeTimeoutSeconds       int `yaml:"probe_timeout_seconds"`
	RemediationTimeoutSeconds int `yaml:"remediation_timeout_seconds"`
	MaxConcurrent             int `yaml:"max_concurrent"`

	Storage StorageConfig `yaml:"storage"`
}

// DefaultConfig returns the configuration used when nothing is overridden
func DefaultConfig() *Config {
	return &Config{
		Port:                      DefaultPort,
		AppRoot:                   ".",
		UploadDir:                 "uploads",
		OutputDir:                 "processed",
		ScriptPath:                "parser.py",
		DownloadPrefix:            "processed",
		MaxUploadBytes:            DefaultMaxUploadBytes,
		RuntimeCandidates:         []string{"python3", "python", "py"},
		RequiredModules:           []string{"docx", "fitz"},
		RemediationPackages:       []string{"python-docx", "PyMuPDF"},
		TypesetterBinary:          "pdflatex",
		TypesetterSignature:       "pdfTeX",
		ConversionTimeoutSeconds:  DefaultConversionTimeout,
		ProbeTimeoutSeconds:       DefaultProbeTimeout,
		RemediationTimeoutSeconds: DefaultRemediationTimeout,
		MaxConcurrent:             DefaultMaxConcurrent,
	}
}

// LoadConfig builds the configuration from defaults, an optional YAML file and
// the process environment, in that order of precedence. Callers apply their own
// overrides and then call Normalize.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if len(data) > maxConfigFileBytes {
			return nil, fmt.Errorf("config %s exceeds %d bytes", path, maxConfigFileBytes)
		}
		if len(data) > 0 {
			if err := yaml.UnmarshalWithOptions(data, cfg, yaml.Strict()); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Port, "PORT")
	setString(&c.Port, "JURNAL_PORT")
	setString(&c.AppRoot, "JURNAL_APP_ROOT")
	setString(&c.UploadDir, "JURNAL_UPLOAD_DIR")
	setString(&c.OutputDir, "JURNAL_OUTPUT_DIR")
	setString(&c.ScriptPath, "JURNAL_SCRIPT")
	setString(&c.DownloadPrefix, "JURNAL_DOWNLOAD_PREFIX")
	setString(&c.TypesetterBinary, "JURNAL_TYPESETTER")
	setString(&c.TypesetterSignature, "JURNAL_TYPESETTER_SIGNATURE")
	setList(&c.RuntimeCandidates, "JURNAL_RUNTIMES")
	setList(&c.RequiredModules, "JURNAL_REQUIRED_MODULES")
	setList(&c.RemediationPackages, "JURNAL_REMEDIATION_PACKAGES")

	if raw := os.Getenv("JURNAL_MAX_UPLOAD_BYTES"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			log.Printf("[CONFIG] Invalid JURNAL_MAX_UPLOAD_BYTES %q, keeping %d", raw, c.MaxUploadBytes)
		} else {
			c.MaxUploadBytes = n
		}
	}
	setPositiveInt(&c.ConversionTimeoutSeconds, "JURNAL_CONVERSION_TIMEOUT_SECONDS")
	setPositiveInt(&c.ProbeTimeoutSeconds, "JURNAL_PROBE_TIMEOUT_SECONDS")
	setPositiveInt(&c.RemediationTimeoutSeconds, "JURNAL_REMEDIATION_TIMEOUT_SECONDS")
	setPositiveInt(&c.MaxConcurrent, "JURNAL_MAX_CONCURRENT")

	setString(&c.Storage.URL, "SUPABASE_URL")
	setString(&c.Storage.Key, "SUPABASE_KEY")
	setString(&c.Storage.Bucket, "SUPABASE_BUCKET")
}

// Normalize fills invalid values with defaults and resolves relative paths
// against the application root.
func (c *Config) Normalize() error {
	def := DefaultConfig()

	if c.Port == "" {
		c.Port = def.Port
	}
	if c.AppRoot == "" {
		c.AppRoot = def.AppRoot
	}
	root, err := filepath.Abs(c.AppRoot)
	if err != nil {
		return fmt.Errorf("resolving app root %s: %w", c.AppRoot, err)
	}
	c.AppRoot = root

	if c.UploadDir == "" {
		c.UploadDir = def.UploadDir
	}
	if c.OutputDir == "" {
		c.OutputDir = def.OutputDir
	}
	if c.ScriptPath == "" {
		c.ScriptPath = def.ScriptPath
	}
	c.UploadDir = c.underRoot(c.UploadDir)
	c.OutputDir = c.underRoot(c.OutputDir)
	c.ScriptPath = c.underRoot(c.ScriptPath)

	if c.DownloadPrefix == "" {
		c.DownloadPrefix = def.DownloadPrefix
	}
	c.DownloadPrefix = strings.Trim(c.DownloadPrefix, "/")

	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = def.MaxUploadBytes
	}
	if len(c.RuntimeCandidates) == 0 {
		c.RuntimeCandidates = def.RuntimeCandidates
	}
	if len(c.RequiredModules) == 0 {
		c.RequiredModules = def.RequiredModules
	}
	if len(c.RemediationPackages) == 0 {
		c.RemediationPackages = def.RemediationPackages
	}
	if c.TypesetterBinary == "" {
		c.TypesetterBinary = def.TypesetterBinary
	}
	if c.TypesetterSignature == "" {
		c.TypesetterSignature = def.TypesetterSignature
	}
	if c.ConversionTimeoutSeconds <= 0 {
		c.ConversionTimeoutSeconds = def.ConversionTimeoutSeconds
	}
	if c.ProbeTimeoutSeconds <= 0 {
		c.ProbeTimeoutSeconds = def.ProbeTimeoutSeconds
	}
	if c.RemediationTimeoutSeconds <= 0 {
		c.RemediationTimeoutSeconds = def.RemediationTimeoutSeconds
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = def.MaxConcurrent
	}
	return nil
}

func (c *Config) ConversionTimeout() time.Duration {
	return time.Duration(c.ConversionTimeoutSeconds) * time.Second
}

func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutSeconds) * time.Second
}

func (c *Config) RemediationTimeout() time.Duration {
	return time.Duration(c.RemediationTimeoutSeconds) * time.Second
}

// ResponseDeadline is the longest a /convert exchange can legitimately take:
// every runtime candidate probed, remediated and rechecked, the typesetter
// probe, then the conversion itself.
func (c *Config) ResponseDeadline() time.Duration {
	perCandidate := 3*c.ProbeTimeout() + c.RemediationTimeout()
	resolve := time.Duration(len(c.RuntimeCandidates))*perCandidate + c.ProbeTimeout()
	return resolve + c.ConversionTimeout() + responseSlack
}

func (c *Config) underRoot(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(c.AppRoot, path)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setList(dst *[]string, key string) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	if len(items) > 0 {
		*dst = items
	}
}

func setPositiveInt(dst *int, key string) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		log.Printf("[CONFIG] Invalid %s %q, keeping %d", key, raw, *dst)
		return
	}
	*dst = n
}
