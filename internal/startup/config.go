package startup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"media-picker/internal/filesystem"
	"media-picker/internal/imageproc"
	"media-picker/internal/logging"
	"media-picker/internal/picker"
	"media-picker/internal/storage"
)

// ConfigFileEnv names the environment variable that points at an optional
// TOML configuration file.
const ConfigFileEnv = "PICKER_CONFIG"

// Config holds all application configuration.
type Config struct {
	Port           string
	MetricsPort    string
	MetricsEnabled bool

	DataDir          string
	ExternalAppDir   string
	ExternalCacheDir string
	InternalAppDir   string
	MediaDir         string

	StorageLocation     picker.Location
	MaxImageWidth       int
	MaxImageHeight      int
	GenerateMetadata    bool
	GenerateThumbnails  bool
	GenerateFingerprint bool
	VipsEnabled         bool

	HTTPTimeout          time.Duration
	AllowPrivateNetworks bool
	BatchWorkers         int
	IndexInterval        time.Duration
	IndexWorkers         int

	MemoryLimit int64
	MemoryRatio float64

	LogHealthChecks   bool
	TrustProxyHeaders bool

	// Derived paths
	DatabasePath string
	ConfigFile   string

	// IndexingEnabled is false when MEDIA_DIR is unset or unreadable.
	IndexingEnabled bool
}

// ImageOptions returns the post-processing options batches start from.
func (c *Config) ImageOptions() imageproc.Options {
	return imageproc.Options{
		MaxWidth:    c.MaxImageWidth,
		MaxHeight:   c.MaxImageHeight,
		Metadata:    c.GenerateMetadata,
		Thumbnails:  c.GenerateThumbnails,
		Fingerprint: c.GenerateFingerprint,
		UseVips:     c.VipsEnabled,
	}
}

// ReadableRoots returns the directories batches submitted over HTTP may read
// local files from: the media directory and every storage location.
func (c *Config) ReadableRoots() *filesystem.Roots {
	return filesystem.NewRoots(c.MediaDir, c.ExternalAppDir, c.ExternalCacheDir, c.InternalAppDir)
}

// StorageDirs returns the base directory of each storage location.
func (c *Config) StorageDirs() storage.Dirs {
	return storage.Dirs{
		ExternalApp:   c.ExternalAppDir,
		ExternalCache: c.ExternalCacheDir,
		InternalApp:   c.InternalAppDir,
	}
}

// knownKeys are the settings accepted from the environment and, lower-cased,
// from the configuration file.
var knownKeys = []string{
	"PORT", "METRICS_PORT", "METRICS_ENABLED",
	"DATA_DIR", "EXTERNAL_APP_DIR", "EXTERNAL_CACHE_DIR", "INTERNAL_APP_DIR", "MEDIA_DIR",
	"STORAGE_LOCATION", "MAX_IMAGE_WIDTH", "MAX_IMAGE_HEIGHT",
	"GENERATE_METADATA", "GENERATE_THUMBNAILS", "GENERATE_FINGERPRINT", "VIPS_ENABLED",
	"HTTP_TIMEOUT", "ALLOW_PRIVATE_NETWORKS", "BATCH_WORKERS", "INDEX_INTERVAL", "INDEX_WORKERS",
	"MEMORY_LIMIT", "MEMORY_RATIO", "LOG_LEVEL", "LOG_HEALTH_CHECKS",
	"TRUST_PROXY_HEADERS",
}

// source looks settings up in the environment first and the configuration
// file second.
type source struct {
	file map[string]string
}

// loadFile reads a flat TOML table whose keys are the lower-cased setting
// names, e.g. max_image_width = 2048.
func loadFile(path string) (source, error) {
	src := source{file: map[string]string{}}
	if path == "" {
		return src, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return src, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	raw := map[string]any{}
	if err := toml.NewDecoder(f).Decode(&raw); err != nil {
		return src, fmt.Errorf("parse config %s: %w", path, err)
	}

	known := make(map[string]bool, len(knownKeys))
	for _, k := range knownKeys {
		known[strings.ToLower(k)] = true
	}

	var unknown []string
	for k, v := range raw {
		key := strings.ToLower(k)
		if !known[key] {
			unknown = append(unknown, k)
			continue
		}
		switch v.(type) {
		case map[string]any, []any:
			return src, fmt.Errorf("config %s: %s must be a plain value", path, k)
		}
		src.file[key] = fmt.Sprint(v)
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		logging.Warn("  Ignoring unknown config keys in %s: %s", path, strings.Join(unknown, ", "))
	}
	return src, nil
}

func (s source) get(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	if value, ok := s.file[strings.ToLower(key)]; ok && value != "" {
		return value
	}
	return defaultValue
}

func (s source) getBool(key string, defaultValue bool) bool {
	value := s.get(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func (s source) getInt(key string, defaultValue int) int {
	value := s.get(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func (s source) getInt64(key string, defaultValue int64) int64 {
	value := s.get(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func (s source) getFloat(key string, defaultValue float64) float64 {
	value := s.get(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		logging.Warn("Invalid number for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// getDuration accepts Go durations and bare integers, which are seconds.
func (s source) getDuration(key string, defaultValue time.Duration) time.Duration {
	value := s.get(key, "")
	if value == "" {
		return defaultValue
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		logging.Warn("Invalid duration for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// readConfig builds a Config from the environment and the file named by
// PICKER_CONFIG without touching the filesystem beyond that file.
func readConfig() (*Config, error) {
	configFile := os.Getenv(ConfigFileEnv)
	src, err := loadFile(configFile)
	if err != nil {
		return nil, err
	}

	if level, ok := logging.ParseLevel(src.get("LOG_LEVEL", "")); ok {
		logging.SetLevel(level)
	}

	dataDir := src.get("DATA_DIR", "/data")
	location, err := picker.ParseLocation(src.get("STORAGE_LOCATION", ""))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:                 src.get("PORT", "8080"),
		MetricsPort:          src.get("METRICS_PORT", "9090"),
		MetricsEnabled:       src.getBool("METRICS_ENABLED", true),
		DataDir:              dataDir,
		ExternalAppDir:       src.get("EXTERNAL_APP_DIR", filepath.Join(dataDir, "external", "files")),
		ExternalCacheDir:     src.get("EXTERNAL_CACHE_DIR", filepath.Join(dataDir, "external", "cache")),
		InternalAppDir:       src.get("INTERNAL_APP_DIR", filepath.Join(dataDir, "internal", "files")),
		MediaDir:             src.get("MEDIA_DIR", ""),
		StorageLocation:      location,
		MaxImageWidth:        src.getInt("MAX_IMAGE_WIDTH", 0),
		MaxImageHeight:       src.getInt("MAX_IMAGE_HEIGHT", 0),
		GenerateMetadata:     src.getBool("GENERATE_METADATA", true),
		GenerateThumbnails:   src.getBool("GENERATE_THUMBNAILS", false),
		GenerateFingerprint:  src.getBool("GENERATE_FINGERPRINT", false),
		VipsEnabled:          src.getBool("VIPS_ENABLED", false),
		HTTPTimeout:          src.getDuration("HTTP_TIMEOUT", 0),
		AllowPrivateNetworks: src.getBool("ALLOW_PRIVATE_NETWORKS", false),
		BatchWorkers:         src.getInt("BATCH_WORKERS", 0),
		IndexInterval:        src.getDuration("INDEX_INTERVAL", 30*time.Minute),
		IndexWorkers:         src.getInt("INDEX_WORKERS", 0),
		MemoryLimit:          src.getInt64("MEMORY_LIMIT", 0),
		MemoryRatio:          src.getFloat("MEMORY_RATIO", 0),
		LogHealthChecks:      src.getBool("LOG_HEALTH_CHECKS", true),
		TrustProxyHeaders:    src.getBool("TRUST_PROXY_HEADERS", false),
		ConfigFile:           configFile,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.MaxImageWidth < 0 || c.MaxImageHeight < 0 {
		errs = append(errs, fmt.Errorf("MAX_IMAGE_WIDTH and MAX_IMAGE_HEIGHT must not be negative"))
	}
	if c.HTTPTimeout < 0 {
		errs = append(errs, fmt.Errorf("HTTP_TIMEOUT must not be negative"))
	}
	if c.IndexInterval < 0 {
		errs = append(errs, fmt.Errorf("INDEX_INTERVAL must not be negative"))
	}
	if c.BatchWorkers < 0 || c.IndexWorkers < 0 {
		errs = append(errs, fmt.Errorf("BATCH_WORKERS and INDEX_WORKERS must not be negative"))
	}
	return errors.Join(errs...)
}

// LoadConfig loads configuration from the environment and PICKER_CONFIG,
// logs it and prepares the data and storage directories.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	cfg, err := readConfig()
	if err != nil {
		return nil, err
	}

	if cfg.ConfigFile != "" {
		logging.Info("  PICKER_CONFIG:        %s", cfg.ConfigFile)
	}
	logging.Info("  PORT:                 %s", cfg.Port)
	logging.Info("  METRICS_PORT:         %s", cfg.MetricsPort)
	logging.Info("  METRICS_ENABLED:      %v", cfg.MetricsEnabled)
	logging.Info("  DATA_DIR:             %s", cfg.DataDir)
	logging.Info("  MEDIA_DIR:            %s", valueOrDash(cfg.MediaDir))
	logging.Info("  STORAGE_LOCATION:     %s", cfg.StorageLocation)
	logging.Info("  MAX_IMAGE_WIDTH:      %d", cfg.MaxImageWidth)
	logging.Info("  MAX_IMAGE_HEIGHT:     %d", cfg.MaxImageHeight)
	logging.Info("  GENERATE_METADATA:    %v", cfg.GenerateMetadata)
	logging.Info("  GENERATE_THUMBNAILS:  %v", cfg.GenerateThumbnails)
	logging.Info("  GENERATE_FINGERPRINT: %v", cfg.GenerateFingerprint)
	logging.Info("  VIPS_ENABLED:         %v", cfg.VipsEnabled)
	logging.Info("  HTTP_TIMEOUT:         %v", cfg.HTTPTimeout)
	logging.Info("  ALLOW_PRIVATE_NETS:   %v", cfg.AllowPrivateNetworks)
	logging.Info("  BATCH_WORKERS:        %d", cfg.BatchWorkers)
	logging.Info("  INDEX_INTERVAL:       %v", cfg.IndexInterval)
	logging.Info("  LOG_LEVEL:            %s", logging.GetLevel())

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	if err := cfg.prepareDirectories(); err != nil {
		return nil, err
	}

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Provider store: ENABLED (required)")
	logging.Info("    Indexing:       %s", enabledString(cfg.IndexingEnabled))
	logging.Info("    Bounding:       %s", enabledString(cfg.ImageOptions().Bounded()))
	logging.Info("    Thumbnails:     %s", enabledString(cfg.GenerateThumbnails))
	logging.Info("    Metrics:        %s", enabledString(cfg.MetricsEnabled))

	return cfg, nil
}

// Load reads the configuration and prepares its directories without the
// startup banner. Command line tools use it.
func Load() (*Config, error) {
	cfg, err := readConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.prepareDirectories(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// prepareDirectories makes every path absolute, requires a writable data
// directory and checks the storage and media directories.
func (c *Config) prepareDirectories() error {
	for _, p := range []*string{&c.DataDir, &c.ExternalAppDir, &c.ExternalCacheDir, &c.InternalAppDir} {
		abs, err := filepath.Abs(*p)
		if err != nil {
			return fmt.Errorf("failed to resolve path %s: %w", *p, err)
		}
		*p = abs
	}
	c.DatabasePath = filepath.Join(c.DataDir, "provider.db")
	logging.Info("  Data directory (absolute): %s", c.DataDir)

	if err := ensureDirectory(c.DataDir, "data"); err != nil {
		return fmt.Errorf("data directory error: %w", err)
	}
	logging.Debug("  Testing data directory write access...")
	if err := testWriteAccess(c.DataDir); err != nil {
		return fmt.Errorf("data directory is not writable (required for the provider store): %w", err)
	}
	logging.Info("  [OK] Data directory is writable")

	dirs := c.StorageDirs()
	for _, loc := range []struct {
		name string
		dir  string
		loc  picker.Location
	}{
		{"external-app", dirs.ExternalApp, picker.LocationExternalApp},
		{"external-cache", dirs.ExternalCache, picker.LocationExternalCache},
		{"internal-app", dirs.InternalApp, picker.LocationInternalApp},
	} {
		ok := setupOptionalDir(loc.dir, loc.name)
		if !ok && loc.loc == c.StorageLocation {
			return fmt.Errorf("storage location %s (%s) is not writable", loc.name, loc.dir)
		}
	}

	if c.MediaDir == "" {
		logging.Info("  MEDIA_DIR not set, provider indexing disabled")
		return nil
	}
	abs, err := filepath.Abs(c.MediaDir)
	if err != nil {
		return fmt.Errorf("failed to resolve media directory path: %w", err)
	}
	c.MediaDir = abs
	if err := checkDirectory(c.MediaDir); err != nil {
		logging.Warn("  Media directory issue: %v", err)
		return nil
	}
	c.IndexingEnabled = true
	return nil
}

func valueOrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
