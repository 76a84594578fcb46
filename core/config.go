package core

import (
	"fmt"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Address            string
		Host               string
		JWTExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine     string // postgres | sqlite | memory
		Host       string
		Port       int
		Name       string
		User       string
		Password   string
		DisableTLS bool
	}

	StorageConfig struct {
		ArtifactDir     string
		PublicURLPrefix string
	}

	ExportConfig struct {
		Ratio         float64
		CanvasWidth   int
		CanvasHeight  int
		Rasterizer    string // builtin | browser
		BrowserURL    string // remote chrome control URL; empty launches a local one
		RenderTimeout time.Duration
	}

	CacheConfig struct {
		RedisURL string
		TTL      time.Duration
	}

	HistoryConfig struct {
		Limit int // 0 = unlimited
	}

	Config struct {
		Env             string
		Build           string
		Debug           bool
		TestMode        bool
		AppName         string
		SecretKey       string
		FrontendBaseURL string
		WorkDir         string
		RollbarToken    string
		SendgridApiKey  string

		Server   ServerConfig
		Database DatabaseConfig
		Storage  StorageConfig
		Export   ExportConfig
		Cache    CacheConfig
		History  HistoryConfig

		defaultFromEmail string
	}
)

func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: "noreply@localhost"}
	}
	return *addr
}

// Address joins the database host and port.
func (c DatabaseConfig) Address() string {
	if c.Port == 0 {
		return c.Host
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// LoadConfig reads the configuration for the current ENV (DEV by default).
// Variables are looked up with the ENV as prefix, eg. DEV_DATABASE_NAME.
func LoadConfig() (*Config, error) {
	v := viper.New()

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, "getting working directory")
	}

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "stat %s", dotEnvPath)
	}

	setDefaults(v, env)
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	conf := &Config{
		Env:              env,
		Build:            v.GetString("build"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		AppName:          v.GetString("appName"),
		SecretKey:        v.GetString("secretKey"),
		FrontendBaseURL:  v.GetString("frontendBaseURL"),
		WorkDir:          wd,
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		defaultFromEmail: v.GetString("defaultFromEmail"),
		Server: ServerConfig{
			Address:            v.GetString("server.address"),
			Host:               v.GetString("server.host"),
			JWTExpirationDelta: v.GetDuration("server.jwtExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:     v.GetString("database.engine"),
			Host:       v.GetString("database.host"),
			Port:       v.GetInt("database.port"),
			Name:       v.GetString("database.name"),
			User:       v.GetString("database.user"),
			Password:   v.GetString("database.password"),
			DisableTLS: v.GetBool("database.disableTLS"),
		},
		Storage: StorageConfig{
			ArtifactDir:     v.GetString("storage.artifactDir"),
			PublicURLPrefix: v.GetString("storage.publicURLPrefix"),
		},
		Export: ExportConfig{
			Ratio:         v.GetFloat64("export.ratio"),
			CanvasWidth:   v.GetInt("export.canvasWidth"),
			CanvasHeight:  v.GetInt("export.canvasHeight"),
			Rasterizer:    v.GetString("export.rasterizer"),
			BrowserURL:    v.GetString("export.browserURL"),
			RenderTimeout: v.GetDuration("export.renderTimeout"),
		},
		Cache: CacheConfig{
			RedisURL: v.GetString("cache.redisURL"),
			TTL:      v.GetDuration("cache.ttl"),
		},
		History: HistoryConfig{
			Limit: v.GetInt("history.limit"),
		},
	}
	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func setDefaults(v *viper.Viper, env string) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", env == "DEV" || env == "TEST")
	v.SetDefault("testMode", env == "TEST")
	v.SetDefault("appName", "Certstudio")
	v.SetDefault("secretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("frontendBaseURL", "http://localhost:8080")
	v.SetDefault("defaultFromEmail", "Certstudio <noreply@localhost>")

	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "certstudio")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.disableTLS", env == "DEV" || env == "TEST")

	v.SetDefault("storage.artifactDir", "artifacts")
	v.SetDefault("storage.publicURLPrefix", "http://localhost:8000/artifacts")

	v.SetDefault("export.ratio", 2.0)
	v.SetDefault("export.canvasWidth", 1123)
	v.SetDefault("export.canvasHeight", 794)
	v.SetDefault("export.rasterizer", "builtin")
	v.SetDefault("export.browserURL", "")
	v.SetDefault("export.renderTimeout", 30*time.Second)

	v.SetDefault("cache.redisURL", "")
	v.SetDefault("cache.ttl", 24*time.Hour)

	v.SetDefault("history.limit", 0)
}

func (c *Config) validate() error {
	switch c.Database.Engine {
	case "postgres", "sqlite", "memory":
	default:
		return fmt.Errorf("config: unsupported database engine %q", c.Database.Engine)
	}
	switch c.Export.Rasterizer {
	case "builtin", "browser":
	default:
		return fmt.Errorf("config: unsupported rasterizer %q", c.Export.Rasterizer)
	}
	if c.Export.Ratio <= 0 {
		return fmt.Errorf("config: export ratio must be positive, got %v", c.Export.Ratio)
	}
	if c.History.Limit < 0 {
		return fmt.Errorf("config: history limit must not be negative, got %d", c.History.Limit)
	}
	return nil
}
