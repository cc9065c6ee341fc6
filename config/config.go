// Package config loads and validates the export engine's configuration from
// the environment (all keys prefixed N4JET_, per spec.md §6), with an
// optional YAML file overlay applied before the environment so a checked-in
// baseline can still be overridden by secrets at runtime.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/n4jet/neo4j-export/n4jeterr"
)

// Config holds every tunable named in spec.md §6, with the same defaults.
type Config struct {
	Neo4jURI      string `yaml:"neo4j_uri"`
	Neo4jUser     string `yaml:"neo4j_user"`
	Neo4jPassword string `yaml:"neo4j_password"`

	OutputDirectory string `yaml:"output_directory"`

	BatchSize        int `yaml:"batch_size"`
	JSONBufferSizeKB int `yaml:"json_buffer_size_kb"`

	MaxMemoryMB int `yaml:"max_memory_mb"`
	MinDiskGB   int `yaml:"min_disk_gb"`

	SkipSchemaCollection bool `yaml:"skip_schema_collection"`
	EnableHashedIDs      bool `yaml:"enable_hashed_ids"`

	MaxRetries      int `yaml:"max_retries"`
	RetryDelayMs    int `yaml:"retry_delay_ms"`
	MaxRetryDelayMs int `yaml:"max_retry_delay_ms"`

	QueryTimeoutSeconds int `yaml:"query_timeout_seconds"`

	Debug        bool `yaml:"debug"`
	ValidateJSON bool `yaml:"validate_json"`
	AllowInsecure bool `yaml:"allow_insecure"`

	MaxPathLength       int `yaml:"max_path_length"`
	PathFullModeLimit   int `yaml:"path_full_mode_limit"`
	PathCompactModeLimit int `yaml:"path_compact_mode_limit"`
	PathPropertyDepth   int `yaml:"path_property_depth"`

	MaxNestedDepth           int `yaml:"max_nested_depth"`
	NestedShallowModeDepth   int `yaml:"nested_shallow_mode_depth"`
	NestedReferenceModeDepth int `yaml:"nested_reference_mode_depth"`

	MaxLabelsPerNode        int `yaml:"max_labels_per_node"`
	MaxLabelsInReferenceMode int `yaml:"max_labels_in_reference_mode"`
	MaxLabelsInPathCompact   int `yaml:"max_labels_in_path_compact"`

	MaxCollectionItems int `yaml:"max_collection_items"`
}

// QueryTimeout is a convenience accessor returning the timeout as a
// time.Duration.
func (c Config) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutSeconds) * time.Second
}

// RetryDelay and MaxRetryDelay are convenience accessors for the backoff
// envelope (spec.md §5).
func (c Config) RetryDelay() time.Duration    { return time.Duration(c.RetryDelayMs) * time.Millisecond }
func (c Config) MaxRetryDelay() time.Duration { return time.Duration(c.MaxRetryDelayMs) * time.Millisecond }

// Defaults returns a Config populated with every default named in spec.md §6.
func Defaults() Config {
	return Config{
		BatchSize:                10000,
		JSONBufferSizeKB:         16,
		MaxMemoryMB:              1024,
		MinDiskGB:                10,
		SkipSchemaCollection:     false,
		EnableHashedIDs:          true,
		MaxRetries:               5,
		RetryDelayMs:             1000,
		MaxRetryDelayMs:          30000,
		QueryTimeoutSeconds:      300,
		Debug:                    false,
		ValidateJSON:             true,
		AllowInsecure:            false,
		MaxPathLength:            100000,
		PathFullModeLimit:        1000,
		PathCompactModeLimit:     10000,
		PathPropertyDepth:        5,
		MaxNestedDepth:           10,
		NestedShallowModeDepth:   5,
		NestedReferenceModeDepth: 8,
		MaxLabelsPerNode:         100,
		MaxLabelsInReferenceMode: 10,
		MaxLabelsInPathCompact:   5,
		MaxCollectionItems:       10000,
	}
}

// envPrefix is prepended to every recognized key, per spec.md §6.
const envPrefix = "N4JET_"

// FromYAML loads a Config overlay from a YAML file at path, starting from
// Defaults(). Unset fields in the file keep their default value.
func FromYAML(path string) (Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, n4jeterr.Wrap(n4jeterr.KindConfig, "reading config file "+path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, n4jeterr.Wrap(n4jeterr.KindConfig, "parsing config file "+path, err)
	}
	return cfg, nil
}

// FromEnviron loads a Config starting from base (use Defaults(), or the
// result of FromYAML for a file-then-env overlay) and applying any
// recognized N4JET_* environment variables on top.
func FromEnviron(base Config) (Config, error) {
	cfg := base

	setStr(&cfg.Neo4jURI, "NEO4J_URI")
	setStr(&cfg.Neo4jUser, "NEO4J_USER")
	setStr(&cfg.Neo4jPassword, "NEO4J_PASSWORD")
	setStr(&cfg.OutputDirectory, "OUTPUT_DIRECTORY")

	var errs []error
	setInt(&cfg.BatchSize, "BATCH_SIZE", &errs)
	setInt(&cfg.JSONBufferSizeKB, "JSON_BUFFER_SIZE_KB", &errs)
	setInt(&cfg.MaxMemoryMB, "MAX_MEMORY_MB", &errs)
	setInt(&cfg.MinDiskGB, "MIN_DISK_GB", &errs)
	setBool(&cfg.SkipSchemaCollection, "SKIP_SCHEMA_COLLECTION", &errs)
	setBool(&cfg.EnableHashedIDs, "ENABLE_HASHED_IDS", &errs)
	setInt(&cfg.MaxRetries, "MAX_RETRIES", &errs)
	setInt(&cfg.RetryDelayMs, "RETRY_DELAY_MS", &errs)
	setInt(&cfg.MaxRetryDelayMs, "MAX_RETRY_DELAY_MS", &errs)
	setInt(&cfg.QueryTimeoutSeconds, "QUERY_TIMEOUT_SECONDS", &errs)
	setBool(&cfg.Debug, "DEBUG", &errs)
	setBool(&cfg.ValidateJSON, "VALIDATE_JSON", &errs)
	setBool(&cfg.AllowInsecure, "ALLOW_INSECURE", &errs)
	setInt(&cfg.MaxPathLength, "MAX_PATH_LENGTH", &errs)
	setInt(&cfg.PathFullModeLimit, "PATH_FULL_MODE_LIMIT", &errs)
	setInt(&cfg.PathCompactModeLimit, "PATH_COMPACT_MODE_LIMIT", &errs)
	setInt(&cfg.PathPropertyDepth, "PATH_PROPERTY_DEPTH", &errs)
	setInt(&cfg.MaxNestedDepth, "MAX_NESTED_DEPTH", &errs)
	setInt(&cfg.NestedShallowModeDepth, "NESTED_SHALLOW_MODE_DEPTH", &errs)
	setInt(&cfg.NestedReferenceModeDepth, "NESTED_REFERENCE_MODE_DEPTH", &errs)
	setInt(&cfg.MaxLabelsPerNode, "MAX_LABELS_PER_NODE", &errs)
	setInt(&cfg.MaxLabelsInReferenceMode, "MAX_LABELS_IN_REFERENCE_MODE", &errs)
	setInt(&cfg.MaxLabelsInPathCompact, "MAX_LABELS_IN_PATH_COMPACT", &errs)
	setInt(&cfg.MaxCollectionItems, "MAX_COLLECTION_ITEMS", &errs)

	if len(errs) > 0 {
		return cfg, n4jeterr.Aggregate("invalid configuration values", errs)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func setStr(dst *string, key string) {
	if v, ok := os.LookupEnv(envPrefix + key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string, errs *[]error) {
	raw, ok := os.LookupEnv(envPrefix + key)
	if !ok || raw == "" {
		return
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s%s: %q is not an integer", envPrefix, key, raw))
		return
	}
	*dst = n
}

func setBool(dst *bool, key string, errs *[]error) {
	raw, ok := os.LookupEnv(envPrefix + key)
	if !ok || raw == "" {
		return
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s%s: %q is not a boolean", envPrefix, key, raw))
		return
	}
	*dst = b
}

// Validate checks cross-field and range invariants that a single env var
// parse cannot catch (spec.md §7's ConfigError is fatal pre-flight).
func (c Config) Validate() error {
	var errs []error
	if c.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("batch_size must be positive, got %d", c.BatchSize))
	}
	if c.NestedShallowModeDepth > c.NestedReferenceModeDepth {
		errs = append(errs, fmt.Errorf(
			"nested_shallow_mode_depth (%d) must be <= nested_reference_mode_depth (%d)",
			c.NestedShallowModeDepth, c.NestedReferenceModeDepth))
	}
	if c.NestedReferenceModeDepth > c.MaxNestedDepth {
		errs = append(errs, fmt.Errorf(
			"nested_reference_mode_depth (%d) must be <= max_nested_depth (%d)",
			c.NestedReferenceModeDepth, c.MaxNestedDepth))
	}
	if c.PathFullModeLimit > c.PathCompactModeLimit {
		errs = append(errs, fmt.Errorf(
			"path_full_mode_limit (%d) must be <= path_compact_mode_limit (%d)",
			c.PathFullModeLimit, c.PathCompactModeLimit))
	}
	if c.PathCompactModeLimit > c.MaxPathLength {
		errs = append(errs, fmt.Errorf(
			"path_compact_mode_limit (%d) must be <= max_path_length (%d)",
			c.PathCompactModeLimit, c.MaxPathLength))
	}
	if c.MaxRetryDelayMs < c.RetryDelayMs {
		errs = append(errs, fmt.Errorf(
			"max_retry_delay_ms (%d) must be >= retry_delay_ms (%d)", c.MaxRetryDelayMs, c.RetryDelayMs))
	}
	if len(errs) == 1 {
		return n4jeterr.Wrap(n4jeterr.KindConfig, "invalid configuration", errs[0])
	}
	if len(errs) > 1 {
		return n4jeterr.Aggregate("invalid configuration", errs)
	}
	return nil
}
