package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/olyamironova/oms-engine/internal/domain"
)

type App struct {
	LogLevel string
	LogFile  string
}

type Server struct {
	HTTPAddr string
	GRPCAddr string
	// OpsAddr serves metrics and health checks.
	OpsAddr     string
	RateLimit   time.Duration
	CORSOrigins []string
}

type Storage struct {
	// Backend is one of memory, pg, pebble.
	Backend    string
	PGDSN      string
	PebblePath string
}

type Cache struct {
	Enabled   bool
	Addr      string
	Password  string
	DB        int
	TTL       time.Duration
	Namespace string
}

type Simulation struct {
	BaseInstrument string
	// Balances seeds wallets, e.g. "USDT:10000,BTC:0.5".
	Balances  string
	Exchange  string
	Pair      string
	PriceFile string
	StartStep int64
	Steps     int
	Interval  time.Duration
}

// ParseBalances parses Balances into starting quantities.
func (s Simulation) ParseBalances() ([]domain.Quantity, error) {
	var out []domain.Quantity
	for _, entry := range strings.Split(s.Balances, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		symbol, amount, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("balance %q: want SYMBOL:AMOUNT", entry)
		}
		inst, err := domain.InstrumentBySymbol(symbol)
		if err != nil {
			return nil, fmt.Errorf("balance %q: %w", entry, err)
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("balance %q: %w", entry, err)
		}
		q, err := inst.Quantity(d)
		if err != nil {
			return nil, fmt.Errorf("balance %q: %w", entry, err)
		}
		out = append(out, q)
	}
	return out, nil
}

// Feed configures the live websocket exchange. It is used instead of the
// simulated one when URL is set.
type Feed struct {
	URL       string
	APIKey    string
	APISecret string
	Window    int
}

// String never prints credentials.
func (f Feed) String() string {
	return fmt.Sprintf("{URL:%s APIKey:%s APISecret:%s Window:%d}", f.URL, redact(f.APIKey), redact(f.APISecret), f.Window)
}

func (f Feed) GoString() string { return f.String() }

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}

type Config struct {
	App        App
	Server     Server
	Storage    Storage
	Cache      Cache
	Simulation Simulation
	Feed       Feed
}

func Default() Config {
	return Config{
		App: App{LogLevel: "info"},
		Server: Server{
			HTTPAddr:  ":8080",
			GRPCAddr:  ":9090",
			OpsAddr:   ":9100",
			RateLimit: 100 * time.Millisecond,
		},
		Storage: Storage{
			Backend:    "memory",
			PebblePath: "data/oms",
		},
		Cache: Cache{
			Addr:      "localhost:6379",
			TTL:       5 * time.Minute,
			Namespace: "oms",
		},
		Simulation: Simulation{
			BaseInstrument: "USDT",
			Balances:       "USDT:10000",
			Exchange:       "sim",
			Pair:           "USDT/BTC",
			Steps:          1000,
			Interval:       time.Second,
		},
		Feed: Feed{Window: 500},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) (Config, error) {
	cfg := Default()
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg.App.LogLevel = getEnv("OMS_LOG_LEVEL", cfg.App.LogLevel)
	cfg.App.LogFile = getEnv("OMS_LOG_FILE", cfg.App.LogFile)

	cfg.Server.HTTPAddr = getEnv("OMS_HTTP_ADDR", cfg.Server.HTTPAddr)
	cfg.Server.GRPCAddr = getEnv("OMS_GRPC_ADDR", cfg.Server.GRPCAddr)
	cfg.Server.OpsAddr = getEnv("OMS_OPS_ADDR", cfg.Server.OpsAddr)
	if origins := os.Getenv("OMS_CORS_ORIGINS"); origins != "" {
		cfg.Server.CORSOrigins = strings.Split(origins, ",")
	}

	cfg.Storage.Backend = getEnv("OMS_STORAGE", cfg.Storage.Backend)
	cfg.Storage.PGDSN = getEnv("OMS_PG_DSN", cfg.Storage.PGDSN)
	cfg.Storage.PebblePath = getEnv("OMS_PEBBLE_PATH", cfg.Storage.PebblePath)

	cfg.Cache.Addr = getEnv("OMS_REDIS_ADDR", cfg.Cache.Addr)
	cfg.Cache.Password = getEnv("OMS_REDIS_PASSWORD", cfg.Cache.Password)
	cfg.Cache.Namespace = getEnv("OMS_REDIS_NAMESPACE", cfg.Cache.Namespace)

	cfg.Simulation.BaseInstrument = getEnv("OMS_BASE_INSTRUMENT", cfg.Simulation.BaseInstrument)
	cfg.Simulation.Balances = getEnv("OMS_BALANCES", cfg.Simulation.Balances)
	cfg.Simulation.Exchange = getEnv("OMS_EXCHANGE", cfg.Simulation.Exchange)
	cfg.Simulation.Pair = getEnv("OMS_PAIR", cfg.Simulation.Pair)
	cfg.Simulation.PriceFile = getEnv("OMS_PRICE_FILE", cfg.Simulation.PriceFile)

	cfg.Feed.URL = getEnv("OMS_FEED_URL", cfg.Feed.URL)
	cfg.Feed.APIKey = os.Getenv("OMS_FEED_API_KEY")
	cfg.Feed.APISecret = os.Getenv("OMS_FEED_API_SECRET")

	var err error
	if cfg.Server.RateLimit, err = getDurationMS("OMS_RATE_LIMIT_MS", cfg.Server.RateLimit); err != nil {
		return cfg, err
	}
	if cfg.Cache.TTL, err = getDurationMS("OMS_REDIS_TTL_MS", cfg.Cache.TTL); err != nil {
		return cfg, err
	}
	if cfg.Simulation.Interval, err = getDurationMS("OMS_STEP_INTERVAL_MS", cfg.Simulation.Interval); err != nil {
		return cfg, err
	}
	if v := os.Getenv("OMS_REDIS_ENABLED"); v != "" {
		if cfg.Cache.Enabled, err = strconv.ParseBool(v); err != nil {
			return cfg, fmt.Errorf("OMS_REDIS_ENABLED: %w", err)
		}
	}
	if cfg.Cache.DB, err = getInt("OMS_REDIS_DB", cfg.Cache.DB); err != nil {
		return cfg, err
	}
	if cfg.Simulation.Steps, err = getInt("OMS_STEPS", cfg.Simulation.Steps); err != nil {
		return cfg, err
	}
	if cfg.Feed.Window, err = getInt("OMS_FEED_WINDOW", cfg.Feed.Window); err != nil {
		return cfg, err
	}
	start, err := getInt("OMS_START_STEP", int(cfg.Simulation.StartStep))
	if err != nil {
		return cfg, err
	}
	cfg.Simulation.StartStep = int64(start)

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.Storage.Backend {
	case "memory", "pebble":
	case "pg":
		if c.Storage.PGDSN == "" {
			return fmt.Errorf("OMS_PG_DSN is required for the pg backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if _, err := domain.InstrumentBySymbol(c.Simulation.BaseInstrument); err != nil {
		return fmt.Errorf("OMS_BASE_INSTRUMENT: %w", err)
	}
	if _, err := domain.ParsePair(c.Simulation.Pair); err != nil {
		return fmt.Errorf("OMS_PAIR: %w", err)
	}
	if _, err := c.Simulation.ParseBalances(); err != nil {
		return fmt.Errorf("OMS_BALANCES: %w", err)
	}
	if c.Simulation.Steps <= 0 {
		return fmt.Errorf("OMS_STEPS must be positive, got %d", c.Simulation.Steps)
	}
	if c.Feed.URL == "" && (c.Feed.APIKey != "" || c.Feed.APISecret != "") {
		return fmt.Errorf("feed credentials set without OMS_FEED_URL")
	}
	return nil
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getDurationMS(key string, defaultValue time.Duration) (time.Duration, error) {
	ms, err := getInt(key, int(defaultValue/time.Millisecond))
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}
