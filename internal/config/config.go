// Package config is the node's environment-keyed configuration surface
// (§6), loaded with go-flags the way the teacher's own config packages
// repurpose CLI-flag struct tags for environment variables.
package config

import (
	"time"

	"github.com/fontana-rollup/fontana/internal/da"
	flags "github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
)

// Config is the full set of environment-keyed node settings.
type Config struct {
	DBPath string `long:"db-path" env:"FONTANA_DB_PATH" description:"storage location" default:"./fontana-data"`

	DANodeURL            string `long:"da-node-url" env:"FONTANA_DA_NODE_URL" description:"DA endpoint URL"`
	DAAuthToken          string `long:"da-auth-token" env:"FONTANA_DA_AUTH_TOKEN" description:"DA endpoint auth token"`
	DANamespace          string `long:"da-namespace" env:"FONTANA_DA_NAMESPACE" description:"8-byte (16-hex-char) DA namespace base"`
	DAConfirmationBlocks uint64 `long:"da-confirmation-blocks" env:"FONTANA_DA_CONFIRMATION_BLOCKS" description:"DA-side finality depth used by clients" default:"2"`

	BlockIntervalSeconds uint64 `long:"block-interval-seconds" env:"FONTANA_BLOCK_INTERVAL_SECONDS" description:"sequencer cadence" default:"6"`
	MaxBatch             int    `long:"max-batch" env:"FONTANA_MAX_BATCH" description:"pending count at which the sequencer's size trigger reports true; the node builds blocks on the cadence only"`
	HistoricalRootsKept  int    `long:"historical-roots-kept" env:"FONTANA_HISTORICAL_ROOTS_KEPT" description:"snapshot retention depth for historical proofs" default:"64"`

	L1VaultAddress string        `long:"l1-vault-address" env:"FONTANA_L1_VAULT_ADDRESS" description:"monitored L1 vault contract address"`
	L1NodeURL      string        `long:"l1-node-url" env:"FONTANA_L1_NODE_URL" description:"L1 RPC endpoint"`
	L1PollInterval time.Duration `long:"l1-poll-interval" env:"FONTANA_L1_POLL_INTERVAL" description:"L1 watcher polling cadence" default:"15s"`

	LogFile     string `long:"log-file" env:"FONTANA_LOG_FILE" description:"rotating log file path" default:"./fontana.log"`
	DebugLevel  string `long:"debug-level" env:"FONTANA_DEBUG_LEVEL" description:"log level, e.g. info or LEDG=debug,DAPO=trace" default:"info"`
	GenesisPath string `long:"genesis-path" env:"FONTANA_GENESIS_PATH" description:"genesis declaration file" default:"./genesis.json"`
}

// BlockInterval converts BlockIntervalSeconds to a time.Duration.
func (c *Config) BlockInterval() time.Duration {
	return time.Duration(c.BlockIntervalSeconds) * time.Second
}

// Load parses configuration from environment variables (and, if present,
// CLI flags — go-flags' default behaviour), applying defaults from the
// struct tags above, and validates the DA namespace base per §9's
// "reject configuration whose base is not a valid 16-hex string at
// startup".
func Load(args []string) (*Config, error) {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default|flags.IgnoreUnknown)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, errors.Wrap(err, "parsing configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field and format constraints not expressible via
// go-flags struct tags alone.
func (c *Config) Validate() error {
	if c.DANamespace != "" {
		if _, err := da.ParseBaseNamespace(c.DANamespace); err != nil {
			return errors.Wrap(err, "invalid da-namespace")
		}
	}
	return nil
}
