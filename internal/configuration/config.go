package configuration

import (
	"coinmarket/internal/database"
	"coinmarket/internal/logger"
	"coinmarket/internal/model"
	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/pkg/errors"
	"os"
	"strings"
	"time"
)

// MemoryDatabaseURI selects the in-process store instead of MongoDB.
const MemoryDatabaseURI = "memory://"

const envPrefix = "COINMARKET_"

type Config struct {
	ServerAddress        string
	DatabaseURI          string
	DatabaseName         string
	LogLevel             logger.Level
	LogToFile            bool
	LogFile              string
	AuthSecretKey        jwk.Key `json:"-"`
	SessionTTL           time.Duration
	RedisAddress         string
	RedisPassword        string `json:"-"`
	TransactionsEnabled  bool
	ChangeStreamsEnabled bool
	FeedPollInterval     time.Duration
	LoginRateLimit       float64
	LoginBurst           int
	AllowedOrigins       []string
	SeedMembers          []model.Member
}

func (c Config) MemoryDatabase() bool {
	return c.DatabaseURI == MemoryDatabaseURI
}

type tomlSeedMember struct {
	Email   string `toml:"email"`
	Role    string `toml:"role"`
	Coins   int64  `toml:"coins"`
	Balance int64  `toml:"balance"`
}

type tomlConfig struct {
	ServerAddress        string           `toml:"server_address"`
	DatabaseURI          string           `toml:"database_uri"`
	DatabaseName         string           `toml:"database_name"`
	LogLevel             string           `toml:"log_level"`
	LogToFile            bool             `toml:"log_to_file"`
	LogFile              string           `toml:"log_file"`
	AuthSecretKey        string           `toml:"auth_secret_key"`
	SessionTTL           string           `toml:"session_ttl"`
	RedisAddress         string           `toml:"redis_address"`
	RedisPassword        string           `toml:"redis_password"`
	TransactionsEnabled  bool             `toml:"transactions_enabled"`
	ChangeStreamsEnabled bool             `toml:"change_streams_enabled"`
	FeedPollInterval     string           `toml:"feed_poll_interval"`
	LoginRateLimit       float64          `toml:"login_rate_limit"`
	LoginBurst           int              `toml:"login_burst"`
	AllowedOrigins       []string         `toml:"allowed_origins"`
	SeedMembers          []tomlSeedMember `toml:"seed_members"`
}

// LoadDotEnv copies the variables of a .env file into the environment. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to load env file with path: %s", path)
	}
	return nil
}

// overrideFromEnv lets COINMARKET_* variables replace secrets and addresses of the file.
func (tc *tomlConfig) overrideFromEnv() {
	for key, field := range map[string]*string{
		"SERVER_ADDRESS":  &tc.ServerAddress,
		"DATABASE_URI":    &tc.DatabaseURI,
		"DATABASE_NAME":   &tc.DatabaseName,
		"LOG_LEVEL":       &tc.LogLevel,
		"AUTH_SECRET_KEY": &tc.AuthSecretKey,
		"REDIS_ADDRESS":   &tc.RedisAddress,
		"REDIS_PASSWORD":  &tc.RedisPassword,
	} {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			*field = v
		}
	}
}

func parseDuration(name string, value string, def time.Duration, min time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to parse %s", name)
	}
	if d < min {
		return 0, errors.Errorf("%s too short (%v), minimum: %v", name, d, min)
	}
	return d, nil
}

func GetConfig(path string) (*Config, error) {
	var tc tomlConfig
	_, err := toml.DecodeFile(path, &tc)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode toml file with path: %s", path)
	}
	tc.overrideFromEnv()

	if tc.ServerAddress == "" {
		tc.ServerAddress = "localhost:8888"
	}

	if tc.DatabaseURI == "" {
		tc.DatabaseURI = "mongodb://localhost:27017"
	}
	if tc.DatabaseName == "" {
		tc.DatabaseName = database.DefaultName
	}

	if tc.LogLevel == "" {
		tc.LogLevel = "info"
	}
	logLevel, err := logger.ParseLevel(tc.LogLevel)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse log_level")
	}
	if tc.LogFile == "" {
		tc.LogFile = "coinmarket_backend.log"
	}

	if tc.AuthSecretKey == "" {
		return nil, errors.New("auth_secret_key is not set")
	}
	authSecretKey, err := jwk.FromRaw([]byte(tc.AuthSecretKey))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create key from auth_secret_key")
	}

	sessionTTL, err := parseDuration("session_ttl", tc.SessionTTL, 24*time.Hour, time.Minute)
	if err != nil {
		return nil, err
	}
	feedPollInterval, err := parseDuration("feed_poll_interval", tc.FeedPollInterval, 2*time.Second, 100*time.Millisecond)
	if err != nil {
		return nil, err
	}

	if tc.LoginRateLimit == 0 {
		tc.LoginRateLimit = 1
	}
	if tc.LoginBurst == 0 {
		tc.LoginBurst = 5
	}
	if tc.LoginRateLimit < 0 || tc.LoginBurst < 0 {
		return nil, errors.Errorf("login_rate_limit (%v) and login_burst (%d) must be positive", tc.LoginRateLimit, tc.LoginBurst)
	}

	seed := make([]model.Member, 0, len(tc.SeedMembers))
	for i, sm := range tc.SeedMembers {
		email := model.NormalizeEmail(sm.Email)
		if email == "" {
			return nil, errors.Errorf("seed_members[%d]: email is not set", i)
		}
		role := model.Role(strings.ToLower(strings.TrimSpace(sm.Role)))
		switch role {
		case "", model.RoleUser, model.RoleAdmin:
		default:
			return nil, errors.Errorf("seed_members[%d]: unknown role: %q", i, sm.Role)
		}
		if sm.Coins < 0 || sm.Balance < 0 {
			return nil, errors.Errorf("seed_members[%d]: coins and balance must not be negative", i)
		}
		seed = append(seed, model.Member{Email: email, Role: role.Normalize(), Coins: sm.Coins, Balance: sm.Balance})
	}

	return &Config{
		ServerAddress:        tc.ServerAddress,
		DatabaseURI:          tc.DatabaseURI,
		DatabaseName:         tc.DatabaseName,
		LogLevel:             logLevel,
		LogToFile:            tc.LogToFile,
		LogFile:              tc.LogFile,
		AuthSecretKey:        authSecretKey,
		SessionTTL:           sessionTTL,
		RedisAddress:         tc.RedisAddress,
		RedisPassword:        tc.RedisPassword,
		TransactionsEnabled:  tc.TransactionsEnabled,
		ChangeStreamsEnabled: tc.ChangeStreamsEnabled,
		FeedPollInterval:     feedPollInterval,
		LoginRateLimit:       tc.LoginRateLimit,
		LoginBurst:           tc.LoginBurst,
		AllowedOrigins:       tc.AllowedOrigins,
		SeedMembers:          seed,
	}, nil
}
