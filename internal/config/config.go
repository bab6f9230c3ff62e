package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v3"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
)

type Config struct {
	Env        string `yaml:"env" env:"ENV"`
	HTTPServer `yaml:"http_server" envPrefix:"HTTP_"`
	Storage    `yaml:"storage" envPrefix:"STORAGE_"`
	Postgres   `yaml:"postgres" envPrefix:"POSTGRES_"`
	Shortener  `yaml:"shortener"`
	Log        `yaml:"log" envPrefix:"LOG_"`
	EvalLog    `yaml:"eval_log" envPrefix:"EVAL_LOG_"`
}

type HTTPServer struct {
	Port           int           `yaml:"port" env:"PORT"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
	CertFile       string        `yaml:"cert_file"`
	KeyFile        string        `yaml:"key_file"`
}

var defaultHTTPServer = HTTPServer{
	Port:           8080,
	ReadTimeout:    5 * time.Second,
	WriteTimeout:   10 * time.Second,
	IdleTimeout:    time.Minute,
	MaxHeaderBytes: 1 << 20,
}

func (s *HTTPServer) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

type Storage struct {
	Driver     string `yaml:"driver" env:"DRIVER"`
	SQLitePath string `yaml:"sqlite_path" env:"SQLITE_PATH"`
}

var defaultStorage = Storage{
	Driver:     StorageMemory,
	SQLitePath: "quicklink.db",
}

type Postgres struct {
	User            string        `yaml:"user" env:"USER"`
	Password        string        `yaml:"password" env:"PASSWORD"`
	Host            string        `yaml:"host" env:"HOST"`
	Port            int           `yaml:"port" env:"PORT"`
	DB              string        `yaml:"db" env:"DB"`
	SSLMode         string        `yaml:"sslmode" env:"SSLMODE"`
	MigrationsPath  string        `yaml:"migrations_path"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
}

var defaultPostgres = Postgres{
	Host:            "localhost",
	Port:            5432,
	SSLMode:         "disable",
	MigrationsPath:  "file://migrations",
	ConnMaxIdleTime: 5 * time.Minute,
	ConnMaxLifetime: 30 * time.Minute,
	MaxIdleConns:    5,
	MaxOpenConns:    25,
}

func (p *Postgres) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DB, p.SSLMode)
}

type Shortener struct {
	ShortCodeLength        int `yaml:"short_code_length"`
	DefaultValidityMinutes int `yaml:"default_validity_minutes"`
	MaxBatchSize           int `yaml:"max_batch_size"`
	MaxRetries             int `yaml:"max_retries"`
	Workers                int `yaml:"workers"`
}

var defaultShortener = Shortener{
	ShortCodeLength:        6,
	DefaultValidityMinutes: 30,
	MaxBatchSize:           5,
	MaxRetries:             5,
	Workers:                5,
}

type Log struct {
	Level string `yaml:"level" env:"LEVEL"`
}

// EvalLog configures shipping of log records to the remote log service.
type EvalLog struct {
	Enabled     bool          `yaml:"enabled" env:"ENABLED"`
	LogsURL     string        `yaml:"logs_url" env:"LOGS_URL"`
	AuthURL     string        `yaml:"auth_url" env:"AUTH_URL"`
	Credentials Credentials   `yaml:"credentials"`
	MinLevel    string        `yaml:"min_level" env:"MIN_LEVEL"`
	BufferSize  int           `yaml:"buffer_size"`
	Timeout     time.Duration `yaml:"timeout"`
}

type Credentials struct {
	Email        string `yaml:"email" env:"EMAIL"`
	Name         string `yaml:"name" env:"NAME"`
	RollNo       string `yaml:"roll_no" env:"ROLL_NO"`
	AccessCode   string `yaml:"access_code" env:"ACCESS_CODE"`
	ClientID     string `yaml:"client_id" env:"CLIENT_ID"`
	ClientSecret string `yaml:"client_secret" env:"CLIENT_SECRET"`
}

var defaultEvalLog = EvalLog{
	MinLevel:   "info",
	BufferSize: 256,
	Timeout:    5 * time.Second,
}

// Load reads the YAML file at path over the defaults and then applies
// QUICKLINK_* environment overrides.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open config file: %w", op, err)
	}
	defer f.Close()

	var cfg Config
	setDefaults(&cfg)

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%s: failed to decode config file: %w", op, err)
	}

	if err := env.Parse(&cfg, env.Options{Prefix: "QUICKLINK_"}); err != nil {
		return nil, fmt.Errorf("%s: failed to parse environment: %w", op, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case StorageMemory, StoragePostgres, StorageSQLite:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.Shortener.ShortCodeLength <= 0 || c.Shortener.ShortCodeLength > 50 {
		return fmt.Errorf("short_code_length must be between 1 and 50, got %d", c.Shortener.ShortCodeLength)
	}

	if c.Shortener.MaxBatchSize <= 0 {
		return fmt.Errorf("max_batch_size must be positive, got %d", c.Shortener.MaxBatchSize)
	}

	if c.EvalLog.Enabled && (c.EvalLog.LogsURL == "" || c.EvalLog.AuthURL == "") {
		return fmt.Errorf("eval_log requires logs_url and auth_url")
	}

	return nil
}

func setDefaults(cfg *Config) {
	cfg.Env = EnvDev
	cfg.HTTPServer = defaultHTTPServer
	cfg.Storage = defaultStorage
	cfg.Postgres = defaultPostgres
	cfg.Shortener = defaultShortener
	cfg.Log = Log{Level: "info"}
	cfg.EvalLog = defaultEvalLog
}
