package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/catalog-backend/internal/platform/envutil"
)

const defaultConfigPath = "./config/config.yaml"

// Duration reads "5s"-style strings from YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Link      LinkConfig      `yaml:"link"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Mirror    MirrorConfig    `yaml:"mirror"`
	Ledger    LedgerConfig    `yaml:"ledger"`
}

type ServerConfig struct {
	Addr            string   `yaml:"addr"`
	CORSOrigins     []string `yaml:"cors_origins"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// StoreConfig points at the RESTHeart instance holding both collections.
type StoreConfig struct {
	BaseURL            string   `yaml:"base_url"`
	Database           string   `yaml:"database"`
	Username           string   `yaml:"username"`
	Password           string   `yaml:"password"`
	Timeout            Duration `yaml:"timeout"`
	ReadRetries        int      `yaml:"read_retries"`
	PageSize           int      `yaml:"page_size"`
	CategoryCollection string   `yaml:"category_collection"`
	ItemCollection     string   `yaml:"item_collection"`
}

type LinkConfig struct {
	VerifyWrites       bool     `yaml:"verify_writes"`
	ConditionalUpdates bool     `yaml:"conditional_updates"`
	ConditionalRetries int      `yaml:"conditional_retries"`
	StoreTimeout       Duration `yaml:"store_timeout"`
}

type ReconcileConfig struct {
	Mode          string `yaml:"mode"`
	Dedupe        bool   `yaml:"dedupe"`
	PruneDangling bool   `yaml:"prune_dangling"`
	// Interval starts a background sweep when positive.
	Interval Duration `yaml:"interval"`
	// ReplayPending makes each interval tick replay the partial link ledger
	// first. Replay writes to both stores whatever Mode says.
	ReplayPending bool `yaml:"replay_pending"`
}

type MirrorConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type LedgerConfig struct {
	Backend string            `yaml:"backend"`
	Redis   RedisLedgerConfig `yaml:"redis"`
}

type RedisLedgerConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Store: StoreConfig{
			BaseURL:            "http://localhost:8080",
			Database:           "catalog",
			Timeout:            Duration(10 * time.Second),
			ReadRetries:        2,
			PageSize:           100,
			CategoryCollection: "category",
			ItemCollection:     "item",
		},
		Link: LinkConfig{
			VerifyWrites:       true,
			ConditionalRetries: 3,
			StoreTimeout:       Duration(5 * time.Second),
		},
		Reconcile: ReconcileConfig{
			Mode:          "report",
			Dedupe:        true,
			ReplayPending: true,
		},
		Mirror: MirrorConfig{
			Driver: "sqlite",
			DSN:    "catalog_mirror.db",
		},
		Ledger: LedgerConfig{
			Backend: string(LedgerBackendDB),
			Redis: RedisLedgerConfig{
				KeyPrefix: "catalog:partial_links",
			},
		},
	}
}

// LoadConfig layers defaults, the optional YAML file and CATALOG_* env
// overrides, then validates the result.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	path := envutil.String("CATALOG_CONFIG_PATH", "")
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}
	if err := loadFile(path, explicit, &cfg); err != nil {
		return Config{}, err
	}

	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, required bool, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if port := envutil.String("PORT", ""); port != "" {
		cfg.Server.Addr = ":" + port
	}
	cfg.Server.Addr = envutil.String("CATALOG_HTTP_ADDR", cfg.Server.Addr)
	if origins := envutil.String("CATALOG_CORS_ORIGINS", ""); origins != "" {
		cfg.Server.CORSOrigins = splitList(origins)
	}

	cfg.Store.BaseURL = envutil.String("CATALOG_STORE_URL", cfg.Store.BaseURL)
	cfg.Store.Database = envutil.String("CATALOG_STORE_DATABASE", cfg.Store.Database)
	cfg.Store.Username = envutil.String("CATALOG_STORE_USERNAME", cfg.Store.Username)
	cfg.Store.Password = envutil.String("CATALOG_STORE_PASSWORD", cfg.Store.Password)
	cfg.Store.Timeout = Duration(envutil.Duration("CATALOG_STORE_TIMEOUT", cfg.Store.Timeout.Std()))
	cfg.Store.ReadRetries = envutil.Int("CATALOG_STORE_READ_RETRIES", cfg.Store.ReadRetries)

	cfg.Link.VerifyWrites = envutil.Bool("CATALOG_LINK_VERIFY_WRITES", cfg.Link.VerifyWrites)
	cfg.Link.ConditionalUpdates = envutil.Bool("CATALOG_LINK_CONDITIONAL_UPDATES", cfg.Link.ConditionalUpdates)
	cfg.Link.StoreTimeout = Duration(envutil.Duration("CATALOG_LINK_STORE_TIMEOUT", cfg.Link.StoreTimeout.Std()))

	cfg.Reconcile.Mode = envutil.String("CATALOG_RECONCILE_MODE", cfg.Reconcile.Mode)
	cfg.Reconcile.Dedupe = envutil.Bool("CATALOG_RECONCILE_DEDUPE", cfg.Reconcile.Dedupe)
	cfg.Reconcile.PruneDangling = envutil.Bool("CATALOG_RECONCILE_PRUNE_DANGLING", cfg.Reconcile.PruneDangling)
	cfg.Reconcile.ReplayPending = envutil.Bool("CATALOG_RECONCILE_REPLAY_PENDING", cfg.Reconcile.ReplayPending)
	cfg.Reconcile.Interval = Duration(envutil.Duration("CATALOG_RECONCILE_INTERVAL", cfg.Reconcile.Interval.Std()))

	cfg.Mirror.Driver = envutil.String("CATALOG_MIRROR_DRIVER", cfg.Mirror.Driver)
	cfg.Mirror.DSN = envutil.String("CATALOG_MIRROR_DSN", cfg.Mirror.DSN)

	cfg.Ledger.Backend = envutil.String("CATALOG_LEDGER_BACKEND", cfg.Ledger.Backend)
	cfg.Ledger.Redis.Addr = envutil.String("REDIS_ADDR", cfg.Ledger.Redis.Addr)
	cfg.Ledger.Redis.Password = envutil.String("REDIS_PASSWORD", cfg.Ledger.Redis.Password)
	cfg.Ledger.Redis.DB = envutil.Int("REDIS_DB", cfg.Ledger.Redis.DB)
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, errors.New("server.addr required"))
	}
	if strings.TrimSpace(c.Store.BaseURL) == "" {
		errs = append(errs, errors.New("store.base_url required"))
	}
	if strings.TrimSpace(c.Store.Database) == "" {
		errs = append(errs, errors.New("store.database required"))
	}
	if c.Store.CategoryCollection == "" || c.Store.ItemCollection == "" {
		errs = append(errs, errors.New("store collections required"))
	}
	if c.Store.ReadRetries < 0 {
		errs = append(errs, errors.New("store.read_retries must be >= 0"))
	}
	if c.Link.ConditionalRetries < 0 {
		errs = append(errs, errors.New("link.conditional_retries must be >= 0"))
	}
	if c.Reconcile.Interval < 0 {
		errs = append(errs, errors.New("reconcile.interval must be >= 0"))
	}
	switch strings.ToLower(strings.TrimSpace(c.Reconcile.Mode)) {
	case "", "report", "repair":
	default:
		errs = append(errs, fmt.Errorf("reconcile.mode %q: want report or repair", c.Reconcile.Mode))
	}
	if _, err := resolveLedgerBackend(c.Ledger); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
