package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env             string        `mapstructure:"NODE_ENV"`
	Port            string        `mapstructure:"PORT"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	ClientURL       string        `mapstructure:"CLIENT_URL"`
	RequestTimeout  time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	MaxUploadSizeMB int64         `mapstructure:"MAX_UPLOAD_MB"`
	UploadDir       string        `mapstructure:"UPLOAD_DIR"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBHost      string `mapstructure:"DB_HOST"`
	DBPort      string `mapstructure:"DB_PORT"`
	DBUser      string `mapstructure:"DB_USER"`
	DBPassword  string `mapstructure:"DB_PASSWORD"`
	DBName      string `mapstructure:"DB_NAME"`
	DBSSLMode   string `mapstructure:"DB_SSLMODE"`
	DBPoolSize  int32  `mapstructure:"DB_POOL_SIZE"`

	MigrationsURL string `mapstructure:"MIGRATIONS_URL"`

	JWTSecret        string        `mapstructure:"JWT_SECRET"`
	JWTRefreshSecret string        `mapstructure:"JWT_REFRESH_SECRET"`
	AccessTokenTTL   time.Duration `mapstructure:"ACCESS_TOKEN_TTL"`
	RefreshTokenTTL  time.Duration `mapstructure:"REFRESH_TOKEN_TTL"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	GoogleMapsAPIKey string `mapstructure:"GOOGLE_MAPS_API_KEY"`
	GeocoderURL      string `mapstructure:"GEOCODER_URL"`
	MatrixURL        string `mapstructure:"MATRIX_URL"`

	FuelCostPerKm  float64 `mapstructure:"FUEL_COST_PER_KM"`
	MaxJobsPerTech int     `mapstructure:"MAX_JOBS_PER_TECH"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	v.SetDefault("NODE_ENV", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CLIENT_URL", "*")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("MAX_UPLOAD_MB", 10)
	v.SetDefault("UPLOAD_DIR", "uploads")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_NAME", "swifttiger")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_POOL_SIZE", 5)
	v.SetDefault("MIGRATIONS_URL", "file://db/migration")
	v.SetDefault("ACCESS_TOKEN_TTL", "15m")
	v.SetDefault("REFRESH_TOKEN_TTL", "168h")
	v.SetDefault("FUEL_COST_PER_KM", 0.12)
	v.SetDefault("MAX_JOBS_PER_TECH", 8)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.JWTRefreshSecret == "" {
		cfg.JWTRefreshSecret = cfg.JWTSecret
	}
	return cfg, nil
}

// DSN returns DATABASE_URL when set, otherwise a URL assembled from the
// individual DB_* parts. Pool size rides along as a query parameter so a
// single string configures pgxpool.
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.DBUser, c.DBPassword),
		Host:   c.DBHost + ":" + c.DBPort,
		Path:   "/" + c.DBName,
	}
	q := u.Query()
	q.Set("sslmode", c.DBSSLMode)
	q.Set("pool_max_conns", fmt.Sprint(c.DBPoolSize))
	u.RawQuery = q.Encode()
	return u.String()
}

// MigrationDSN is DSN without the pool_max_conns parameter, which the
// migration driver would forward to the server as an unknown setting.
func (c Config) MigrationDSN() string {
	u, err := url.Parse(c.DSN())
	if err != nil {
		return c.DSN()
	}
	q := u.Query()
	q.Del("pool_max_conns")
	u.RawQuery = q.Encode()
	return u.String()
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}
