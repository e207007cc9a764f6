package melwalletd

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"gopkg.in/yaml.v3"
)

// DefaultRPCListen is the bind address for the JSON-RPC surface when
// listen is not overridden.
const DefaultRPCListen = "127.0.0.1:11773"

// Config is the daemon's resolved configuration, assembled from CLI
// flags with an optional YAML file overlaid on top of them. The network
// id also decides faucet availability (send_faucet is refused on
// mainnet).
type Config struct {
	WalletDir     string   `short:"w" long:"walletdir" yaml:"wallet_dir" description:"data directory for the wallet database and secret store" required:"true"`
	Network       string   `short:"n" long:"network" yaml:"network" description:"chain network id" default:"mainnet"`
	Connect       string   `long:"connect" yaml:"connect" description:"full-node socket address; accepted but not used: the daemon runs against an in-memory node and has no bootstrap list"`
	Listen        string   `long:"listen" yaml:"listen" description:"RPC bind address" default:"127.0.0.1:11773"`
	AllowedOrigin []string `long:"allowedorigin" yaml:"allowed_origin" description:"CORS origin allowed to call the RPC surface (repeatable)"`
	ConfigFile    string   `short:"c" long:"configfile" yaml:"-" description:"path to a YAML config file overlaying these flags"`
	OutputConfig  bool     `long:"outputconfig" yaml:"output_config" description:"dump the resolved config to stdout and continue"`
	DryRun        bool     `long:"dryrun" yaml:"dry_run" description:"resolve config and exit 0 without starting the server"`
	DebugLevel    string   `long:"debuglevel" yaml:"debug_level" description:"logging level applied to all subsystems (subsystem=level pairs are not parsed)" default:"info"`
}

// DefaultConfig returns a Config with every default populated, suitable
// as the base LoadConfig parses flags and a YAML overlay onto.
func DefaultConfig() Config {
	return Config{
		Network: "mainnet",
		Listen:  DefaultRPCListen,
	}
}

// LoadConfig parses args (normally os.Args[1:]) as go-flags options,
// then, if ConfigFile names a file, unmarshals it as a YAML overlay:
// any field the file sets overrides the flag-parsed value.
func LoadConfig(args []string) (*Config, error) {
	cfg := DefaultConfig()

	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	if cfg.ConfigFile != "" {
		data, err := os.ReadFile(cfg.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if cfg.WalletDir == "" {
		return nil, fmt.Errorf("walletdir is required")
	}

	return &cfg, nil
}

// String renders the config as YAML, for --outputconfig.
func (c *Config) String() string {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("<unmarshalable config: %v>", err)
	}
	return string(data)
}
