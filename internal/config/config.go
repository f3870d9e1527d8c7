package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Transport backends
const (
	TransportRsync = "rsync"
	TransportS3    = "s3"
)

// Config represents the application configuration
type Config struct {
	LocalRoot   string `yaml:"local_root"`
	Remote      Remote `yaml:"remote"`
	S3          S3     `yaml:"s3"`
	Relay       Relay  `yaml:"relay"`
	ListenAddr  string `yaml:"listen_addr"`
	JournalPath string `yaml:"journal_path"`
	LockFile    string `yaml:"lock_file"`
	LogLevel    string `yaml:"log_level"`
}

// Remote describes where files are relayed to
type Remote struct {
	Transport   string `yaml:"transport"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	User        string `yaml:"user"`
	Destination string `yaml:"destination"`
	RsyncBinary string `yaml:"rsync_binary"`
}

// S3 represents S3-compatible storage configuration
type S3 struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Secure    bool   `yaml:"secure"`
	PartSize  uint64 `yaml:"part_size"`
}

// Relay represents delivery pipeline configuration
type Relay struct {
	Workers          int           `yaml:"workers"`
	RetryDelay       time.Duration `yaml:"retry_delay"`
	RetryBackoffMax  time.Duration `yaml:"retry_backoff_max"`
	RetryMaxAttempts int           `yaml:"retry_max_attempts"`
	Drain            bool          `yaml:"drain"`
	StatusInterval   time.Duration `yaml:"status_interval"`
}

// Load loads configuration from defaults, the YAML file, the environment
// and command line flags, in increasing order of precedence.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	cfg := defaults()

	if configFile != "" {
		if err := loadFromFile(cfg, configFile); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := loadFromEnv(cfg, os.LookupEnv); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if flags != nil {
		if err := loadFromFlags(cfg, flags); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	cfg.normalize()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		LogLevel:   "info",
		ListenAddr: ":8080",
		Remote: Remote{
			Transport:   TransportRsync,
			Port:        873,
			RsyncBinary: "rsync",
		},
		S3: S3{
			Secure:   true,
			PartSize: 67108864, // 64MB
		},
		Relay: Relay{
			Workers:        4,
			RetryDelay:     5 * time.Second,
			StatusInterval: time.Minute,
		},
	}
}

func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

type lookupFunc func(string) (string, bool)

func loadFromEnv(cfg *Config, lookup lookupFunc) error {
	env := envReader{lookup: lookup}

	env.str("LOCAL_ROOT", &cfg.LocalRoot)
	env.str("REMOTE_HOST", &cfg.Remote.Host)
	env.integer("REMOTE_PORT", &cfg.Remote.Port)
	env.str("REMOTE_USER", &cfg.Remote.User)
	env.str("REMOTE_DESTINATION", &cfg.Remote.Destination)
	env.str("TRANSPORT", &cfg.Remote.Transport)
	env.str("RSYNC_BINARY", &cfg.Remote.RsyncBinary)

	env.str("S3_ENDPOINT", &cfg.S3.Endpoint)
	env.str("S3_ACCESS_KEY", &cfg.S3.AccessKey)
	env.str("S3_SECRET_KEY", &cfg.S3.SecretKey)
	env.str("S3_BUCKET", &cfg.S3.Bucket)
	env.boolean("S3_SECURE", &cfg.S3.Secure)

	env.integer("WORKER_COUNT", &cfg.Relay.Workers)
	env.duration("RETRY_DELAY", &cfg.Relay.RetryDelay)
	env.duration("RETRY_BACKOFF_MAX", &cfg.Relay.RetryBackoffMax)
	env.integer("RETRY_MAX_ATTEMPTS", &cfg.Relay.RetryMaxAttempts)
	env.boolean("DRAIN", &cfg.Relay.Drain)
	env.duration("STATUS_INTERVAL", &cfg.Relay.StatusInterval)

	env.str("LISTEN_ADDR", &cfg.ListenAddr)
	env.str("JOURNAL_PATH", &cfg.JournalPath)
	env.str("LOCK_FILE", &cfg.LockFile)
	env.str("LOG_LEVEL", &cfg.LogLevel)

	return env.err
}

type envReader struct {
	lookup lookupFunc
	err    error
}

func (e *envReader) get(key string) (string, bool) {
	if e.err != nil {
		return "", false
	}
	v, ok := e.lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) integer(key string, dst *int) {
	if v, ok := e.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.err = fmt.Errorf("%s: %w", key, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) boolean(key string, dst *bool) {
	if v, ok := e.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.err = fmt.Errorf("%s: %w", key, err)
			return
		}
		*dst = b
	}
}

// duration accepts Go durations ("5s") or a bare number of seconds
func (e *envReader) duration(key string, dst *time.Duration) {
	if v, ok := e.get(key); ok {
		if secs, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = time.Duration(secs * float64(time.Second))
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			e.err = fmt.Errorf("%s: %w", key, err)
			return
		}
		*dst = d
	}
}

func loadFromFlags(cfg *Config, flags *pflag.FlagSet) error {
	if flags.Changed("local-root") {
		cfg.LocalRoot, _ = flags.GetString("local-root")
	}
	if flags.Changed("remote-host") {
		cfg.Remote.Host, _ = flags.GetString("remote-host")
	}
	if flags.Changed("remote-port") {
		cfg.Remote.Port, _ = flags.GetInt("remote-port")
	}
	if flags.Changed("remote-user") {
		cfg.Remote.User, _ = flags.GetString("remote-user")
	}
	if flags.Changed("remote-destination") {
		cfg.Remote.Destination, _ = flags.GetString("remote-destination")
	}
	if flags.Changed("transport") {
		cfg.Remote.Transport, _ = flags.GetString("transport")
	}
	if flags.Changed("rsync-binary") {
		cfg.Remote.RsyncBinary, _ = flags.GetString("rsync-binary")
	}

	if flags.Changed("s3-endpoint") {
		cfg.S3.Endpoint, _ = flags.GetString("s3-endpoint")
	}
	if flags.Changed("s3-access-key") {
		cfg.S3.AccessKey, _ = flags.GetString("s3-access-key")
	}
	if flags.Changed("s3-secret-key") {
		cfg.S3.SecretKey, _ = flags.GetString("s3-secret-key")
	}
	if flags.Changed("s3-bucket") {
		cfg.S3.Bucket, _ = flags.GetString("s3-bucket")
	}
	if flags.Changed("s3-secure") {
		cfg.S3.Secure, _ = flags.GetBool("s3-secure")
	}

	if flags.Changed("workers") {
		cfg.Relay.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("retry-delay") {
		cfg.Relay.RetryDelay, _ = flags.GetDuration("retry-delay")
	}
	if flags.Changed("retry-backoff-max") {
		cfg.Relay.RetryBackoffMax, _ = flags.GetDuration("retry-backoff-max")
	}
	if flags.Changed("retry-max-attempts") {
		cfg.Relay.RetryMaxAttempts, _ = flags.GetInt("retry-max-attempts")
	}
	if flags.Changed("drain") {
		cfg.Relay.Drain, _ = flags.GetBool("drain")
	}
	if flags.Changed("status-interval") {
		cfg.Relay.StatusInterval, _ = flags.GetDuration("status-interval")
	}

	if flags.Changed("listen") {
		cfg.ListenAddr, _ = flags.GetString("listen")
	}
	if flags.Changed("journal") {
		cfg.JournalPath, _ = flags.GetString("journal")
	}
	if flags.Changed("lock-file") {
		cfg.LockFile, _ = flags.GetString("lock-file")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}

	return nil
}

func (c *Config) normalize() {
	c.Remote.Transport = strings.ToLower(strings.TrimSpace(c.Remote.Transport))
	if c.LocalRoot == "" {
		return
	}
	if abs, err := filepath.Abs(c.LocalRoot); err == nil {
		c.LocalRoot = abs
	}
	if c.LockFile == "" {
		c.LockFile = DefaultLockFile(c.LocalRoot)
	}
}

// DefaultLockFile names a lock file in the system temp directory, unique
// per local root. When the temp directory lies under the root, the lock
// sits next to the root instead so it is never relayed.
func DefaultLockFile(root string) string {
	name := "filerelay" + strings.ReplaceAll(filepath.ToSlash(root), "/", "_") + ".lock"
	path := filepath.Join(os.TempDir(), name)
	if within(root, path) {
		return root + ".lock"
	}
	return path
}

func (c *Config) validate() error {
	if c.LocalRoot == "" {
		return fmt.Errorf("local root is required")
	}

	switch c.Remote.Transport {
	case TransportRsync:
		if c.Remote.Host == "" {
			return fmt.Errorf("remote host is required")
		}
		if c.Remote.User == "" {
			return fmt.Errorf("remote user is required")
		}
		if c.Remote.Port <= 0 || c.Remote.Port > 65535 {
			return fmt.Errorf("remote port must be between 1 and 65535")
		}
	case TransportS3:
		if c.S3.Endpoint == "" {
			return fmt.Errorf("s3 endpoint is required")
		}
		if c.S3.AccessKey == "" || c.S3.SecretKey == "" {
			return fmt.Errorf("s3 access key and secret key are required")
		}
		if c.S3.Bucket == "" {
			return fmt.Errorf("s3 bucket is required")
		}
		if c.S3.PartSize < 5*1024*1024 { // 5MB minimum for S3
			return fmt.Errorf("part size must be at least 5MB")
		}
	default:
		return fmt.Errorf("unknown transport %q", c.Remote.Transport)
	}

	if c.Relay.Workers <= 0 {
		return fmt.Errorf("worker count must be positive")
	}
	if c.Relay.RetryDelay <= 0 {
		return fmt.Errorf("retry delay must be positive")
	}
	if c.Relay.RetryMaxAttempts < 0 {
		return fmt.Errorf("retry max attempts must not be negative")
	}

	for name, path := range map[string]string{"journal": c.JournalPath, "lock file": c.LockFile} {
		if path != "" && within(c.LocalRoot, path) {
			return fmt.Errorf("%s %s must not be inside the local root", name, path)
		}
	}

	return nil
}

func within(root, path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
