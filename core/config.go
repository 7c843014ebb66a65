package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host            string
		Address         string
		DebugHost       string
		ShutdownTimeout time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	SchoolConfig struct {
		MinGrade        int
		MaxGrade        int
		ExportSheetName string
	}

	Config struct {
		AppName                   string
		Build                     string
		Env                       string
		Debug                     bool
		TestMode                  bool
		SecretKey                 string
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		PasswordResetTimeoutDelta time.Duration
		FrontendBaseURL           string
		DefaultFromEmail          mail.Address
		SendgridAPIKey            string
		RollbarToken              string
		Server                    ServerConfig
		Database                  DatabaseConfig
		School                    SchoolConfig
	}
)

// Validate checks the grade range. Grade 0 means "any grade" in filters, so grades start at 1.
func (sc SchoolConfig) Validate() error {
	if sc.MinGrade < 1 {
		return errors.Errorf("min grade %d is below 1", sc.MinGrade)
	}
	if sc.MaxGrade < sc.MinGrade {
		return errors.Errorf("max grade %d is below min grade %d", sc.MaxGrade, sc.MinGrade)
	}
	return nil
}

// Address returns the "host:port" the database listens on.
func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, db.Port)
}

// NewConfig reads the configuration from the environment, the optional `config/.env.<env>` file and defaults.
func NewConfig() *Config {
	v := viper.New()

	v.SetTypeByDefaultValue(true)
	v.SetDefault("appName", "School Records")
	v.SetDefault("build", "dev")
	v.SetDefault("debug", true)
	v.SetDefault("secretKey", "x8b#2k!s0m@9z$e4r&t7y*u1i(o)p-q=w+3n5v6c")
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromName", "School Records")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "school_records")
	v.SetDefault("database.user", "school")
	v.SetDefault("database.password", "school")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("school.minGrade", 1)
	v.SetDefault("school.maxGrade", 6)
	v.SetDefault("school.exportSheetName", "Students")

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		AppName:                   v.GetString("appName"),
		Build:                     v.GetString("build"),
		Env:                       env,
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("testMode"),
		SecretKey:                 v.GetString("secretKey"),
		JWTExpirationDelta:        v.GetDuration("jwtExpirationDelta"),
		JWTRefreshExpirationDelta: v.GetDuration("jwtRefreshExpirationDelta"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		FrontendBaseURL:           strings.TrimRight(v.GetString("frontendBaseURL"), "/"),
		DefaultFromEmail: mail.Address{
			Name:    v.GetString("defaultFromName"),
			Address: v.GetString("defaultFromEmail"),
		},
		SendgridAPIKey: v.GetString("sendgridApiKey"),
		RollbarToken:   v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Address:         v.GetString("server.address"),
			DebugHost:       v.GetString("server.debugHost"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		School: SchoolConfig{
			MinGrade:        v.GetInt("school.minGrade"),
			MaxGrade:        v.GetInt("school.maxGrade"),
			ExportSheetName: v.GetString("school.exportSheetName"),
		},
	}
	if err := conf.School.Validate(); err != nil {
		log.Fatalf("config.school: %v", err)
	}
	return conf
}

// NewTestConfig returns the configuration used by tests: defaults only, no environment lookups.
func NewTestConfig() *Config {
	return &Config{
		AppName:                   "School Records",
		Build:                     "test",
		Env:                       "TEST",
		TestMode:                  true,
		SecretKey:                 "test-secret-key",
		JWTExpirationDelta:        7 * 24 * time.Hour,
		JWTRefreshExpirationDelta: 4 * time.Hour,
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		FrontendBaseURL:           "http://localhost:3000",
		DefaultFromEmail:          mail.Address{Name: "School Records", Address: "noreply@localhost"},
		Server:                    ServerConfig{Host: "localhost", ShutdownTimeout: time.Second},
		School:                    SchoolConfig{MinGrade: 1, MaxGrade: 6, ExportSheetName: "Students"},
	}
}

// Getwd looks for the project root, the first parent directory holding a go.mod file.
// go-test runs from the package directory, so a plain os.Getwd is not enough.
func Getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	currDir := wd
	for {
		if fi, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil && !fi.IsDir() {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == currDir {
			return wd
		}
		currDir = newDir
	}
}
