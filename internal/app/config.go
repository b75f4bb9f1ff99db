package app

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// StoreMongo selects the MongoDB credential store.
	StoreMongo = "mongo"
	// StorePostgres selects the PostgreSQL credential store.
	StorePostgres = "postgres"

	// AvatarDisk keeps uploaded avatars on the local filesystem.
	AvatarDisk = "disk"
	// AvatarS3 keeps uploaded avatars in an S3 compatible bucket.
	AvatarS3 = "s3"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":4000"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"30s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	StoreDriver string `envconfig:"STORE_DRIVER" default:"mongo"`

	DBScheme     string `envconfig:"DB_SCHEME" default:"mongodb+srv"`
	DBHost       string `envconfig:"DB_HOST"`
	DBUsername   string `envconfig:"DB_USERNAME"`
	DBPassword   string `envconfig:"DB_PASSWORD"`
	DBName       string `envconfig:"DB_NAME"`
	DBDatabase   string `envconfig:"DB_DATABASE" default:"klanten"`
	DBCollection string `envconfig:"DB_COLLECTION" default:"user"`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	SessionSecret string        `envconfig:"SESSION_SECRET" required:"true"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"24h"`

	CSRFSecret string `envconfig:"CSRF_SECRET"`

	SpotifyClientID     string        `envconfig:"CLIENT_ID" required:"true"`
	SpotifyClientSecret string        `envconfig:"CLIENT_SECRET" required:"true"`
	SpotifyTokenURL     string        `envconfig:"SPOTIFY_TOKEN_URL" default:"https://accounts.spotify.com/api/token"`
	SpotifyAPIURL       string        `envconfig:"SPOTIFY_API_URL" default:"https://api.spotify.com/v1"`
	SpotifyRateLimit    float64       `envconfig:"SPOTIFY_RATE_LIMIT" default:"10"`
	SpotifyTimeout      time.Duration `envconfig:"SPOTIFY_TIMEOUT" default:"10s"`

	AvatarBackend  string `envconfig:"AVATAR_BACKEND" default:"disk"`
	UploadDir      string `envconfig:"UPLOAD_DIR" default:"static/upload"`
	MaxUploadBytes int64  `envconfig:"MAX_UPLOAD_BYTES" default:"5242880"`
	S3Bucket       string `envconfig:"S3_BUCKET"`
	S3Region       string `envconfig:"S3_REGION"`
	S3Endpoint     string `envconfig:"S3_ENDPOINT"`
	S3AccessKey    string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey    string `envconfig:"S3_SECRET_KEY"`
	S3PublicURL    string `envconfig:"S3_PUBLIC_URL"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.CSRFSecret == "" {
		cfg.CSRFSecret = cfg.SessionSecret
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.SessionSecret == "" {
		return errors.New("session secret must be provided")
	}
	if c.SpotifyClientID == "" || c.SpotifyClientSecret == "" {
		return errors.New("spotify client id and secret must be provided")
	}

	switch c.StoreDriver {
	case StoreMongo:
		var missing []string
		for name, value := range map[string]string{
			"DB_HOST":     c.DBHost,
			"DB_USERNAME": c.DBUsername,
			"DB_PASSWORD": c.DBPassword,
			"DB_NAME":     c.DBName,
		} {
			if value == "" {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			slices.Sort(missing)
			return fmt.Errorf("mongo store requires %s", strings.Join(missing, ", "))
		}
	case StorePostgres:
		if c.PGDSN == "" {
			return errors.New("postgres store requires PG_DSN")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.AvatarBackend {
	case AvatarDisk:
		if c.UploadDir == "" {
			return errors.New("disk avatar backend requires UPLOAD_DIR")
		}
	case AvatarS3:
		if c.S3Bucket == "" || c.S3Region == "" {
			return errors.New("s3 avatar backend requires S3_BUCKET and S3_REGION")
		}
	default:
		return fmt.Errorf("unknown AVATAR_BACKEND %q", c.AvatarBackend)
	}
	return nil
}

// MongoURI assembles the MongoDB connection string from the individual
// DB_* settings. Credentials are escaped so special characters survive.
func (c *Config) MongoURI() string {
	u := url.URL{
		Scheme: c.DBScheme,
		User:   url.UserPassword(c.DBUsername, c.DBPassword),
		Host:   c.DBHost,
		Path:   "/",
	}
	q := url.Values{}
	q.Set("retryWrites", "true")
	q.Set("w", "majority")
	q.Set("appName", c.DBName)
	u.RawQuery = q.Encode()
	return u.String()
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
