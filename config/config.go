package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/getsops/sops/v3/decrypt"
	"github.com/joho/godotenv"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Config holds the application's configuration values.
type Config struct {
	AppName string `json:"appname"`
	AppEnv  string `json:"appenv"`
	AppPort uint16 `json:"appport"`
	GinMode string `json:"ginmode"`

	// ServerURL is the base URL of the upstream verification backend.
	// Required at request time: relays and view fetches fail with a
	// configuration error when it is empty.
	ServerURL string `json:"server_url"`

	// Identity provider (REST surface). An empty IDPAPIKey means the
	// provider is not configured: sign-in operations fail with a
	// configuration error and token reads fail soft.
	IDPAPIKey    string `json:"idp_api_key"`
	IDPSignInURL string `json:"idp_signin_url"`
	IDPTokenURL  string `json:"idp_token_url"`

	SessionSecret     string `json:"session_secret"`
	SessionTTLMinutes int    `json:"session_ttl_minutes"`

	DBHost string `json:"dbhost"`
	DBPort uint16 `json:"dbport"`
	DBName string `json:"dbname"`
	DBUser string `json:"dbuser"`
	DBPass string `json:"dbpass"`
}

var config *Config
var once sync.Once

const (
	defaultSignInURL     = "https://identitytoolkit.googleapis.com/v1"
	defaultTokenURL      = "https://securetoken.googleapis.com/v1"
	defaultSessionTTLMin = 60
)

// LoadConfig loads environment variables from a .env file if present and
// returns a singleton Config instance. When CONFIG_FILE points at a JSON
// file (optionally sops-encrypted, named *.enc.json) its values override the
// environment.
func LoadConfig() *Config {
	once.Do(func() {
		if err := godotenv.Load(); err != nil {
			log.Printf("config: no .env file loaded: %v", err)
		}

		appPort, _ := strconv.ParseUint(os.Getenv("APPPORT"), 10, 16)
		dbPort, _ := strconv.ParseUint(os.Getenv("DBPORT"), 10, 16)
		sessionTTL, _ := strconv.Atoi(os.Getenv("SESSION_TTL_MINUTES"))
		if sessionTTL <= 0 {
			sessionTTL = defaultSessionTTLMin
		}

		config = &Config{
			AppName:           os.Getenv("APPNAME"),
			AppEnv:            os.Getenv("APPENV"),
			AppPort:           uint16(appPort),
			GinMode:           os.Getenv("GINMODE"),
			ServerURL:         strings.TrimRight(os.Getenv("SERVER_URL"), "/"),
			IDPAPIKey:         os.Getenv("IDP_API_KEY"),
			IDPSignInURL:      envOrDefault("IDP_SIGNIN_URL", defaultSignInURL),
			IDPTokenURL:       envOrDefault("IDP_TOKEN_URL", defaultTokenURL),
			SessionSecret:     os.Getenv("SESSIONSECRET"),
			SessionTTLMinutes: sessionTTL,
			DBHost:            os.Getenv("DBHOST"),
			DBPort:            uint16(dbPort),
			DBName:            os.Getenv("DBNAME"),
			DBUser:            os.Getenv("DBUSER"),
			DBPass:            os.Getenv("DBPASS"),
		}

		if file := os.Getenv("CONFIG_FILE"); file != "" {
			if err := applyConfigFile(config, file); err != nil {
				log.Fatalf("config: failed to apply config file %s: %v", file, err)
			}
		}
	})
	return config
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// applyConfigFile overlays values from a JSON config file onto cfg.
// Files named *.enc.json are decrypted with sops first.
func applyConfigFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if strings.HasSuffix(path, ".enc.json") {
		decrypted, derr := decrypt.Data(data, "json")
		if derr != nil {
			return fmt.Errorf("sops decrypt failed: %w", derr)
		}
		data = decrypted
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("invalid config file: %w", err)
	}
	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")
	return nil
}

// ConnectDB opens the audit-log database. In the test environment an
// in-memory sqlite database is used so tests need no external MySQL.
func ConnectDB() (*gorm.DB, error) {
	cfg := LoadConfig()

	if cfg.AppEnv == "test" {
		return gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return db, nil
}

// ResetForTesting clears the singleton so tests can reload with fresh env.
// This should only be used in tests.
func ResetForTesting() {
	config = nil
	once = sync.Once{}
}
