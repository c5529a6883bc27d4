package core

import (
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env            string // DEV (local; default), TEST, QA, PROD
		Debug          bool
		TestMode       bool
		AppName        string
		Build          string
		SecretKey      string
		RollbarToken   string
		CollectionYear int // default year for reports & exports

		Server   ServerConfig
		Database DatabaseConfig
		Registry RegistryConfig
	}

	ServerConfig struct {
		Address            string
		DebugHost          string
		Host               string
		JWTIssuer          string
		JWTExpirationDelta time.Duration
		ShutdownTimeout    time.Duration
	}

	DatabaseConfig struct {
		Engine        string // postgres | memory
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		MaxOpenConns  int
	}

	RegistryConfig struct {
		BaseURL     string
		Token       string
		Timeout     time.Duration
		FixturePath string // used instead of BaseURL when set
	}
)

func (dc DatabaseConfig) Address() string {
	return net.JoinHostPort(dc.Host, dc.Port)
}

// NewConfig loads the configuration from defaults, the optional `config/.env.<env>` file and
// environment variables prefixed with the env name (eg. `PROD_DATABASE_HOST`).
func NewConfig() (*Config, error) {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "Uniforme")
	v.SetDefault("build", "develop")
	v.SetDefault("secretKey", "k2v#9s!x@u7h(4rq0m&d=zw)8c$ne1py^b5o6t*g3fa+lj")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("collectionYear", 2026)

	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.jwtIssuer", "uniforme")
	v.SetDefault("server.jwtExpirationDelta", 12*time.Hour)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "uniforme")
	v.SetDefault("database.user", "uniforme")
	v.SetDefault("database.password", "uniforme")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("database.maxOpenConns", 20)

	v.SetDefault("registry.baseURL", "")
	v.SetDefault("registry.token", "")
	v.SetDefault("registry.timeout", 10*time.Second)
	v.SetDefault("registry.fixturePath", "")

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "checking %s", dotEnvPath)
	}
	v.AutomaticEnv()

	conf := &Config{
		Env:            env,
		Debug:          v.GetBool("debug"),
		TestMode:       v.GetBool("testMode"),
		AppName:        v.GetString("appName"),
		Build:          v.GetString("build"),
		SecretKey:      v.GetString("secretKey"),
		RollbarToken:   v.GetString("rollbarToken"),
		CollectionYear: v.GetInt("collectionYear"),
		Server: ServerConfig{
			Address:            v.GetString("server.address"),
			DebugHost:          v.GetString("server.debugHost"),
			Host:               v.GetString("server.host"),
			JWTIssuer:          v.GetString("server.jwtIssuer"),
			JWTExpirationDelta: v.GetDuration("server.jwtExpirationDelta"),
			ShutdownTimeout:    v.GetDuration("server.shutdownTimeout"),
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
			MaxOpenConns:  v.GetInt("database.maxOpenConns"),
		},
		Registry: RegistryConfig{
			BaseURL:     v.GetString("registry.baseURL"),
			Token:       v.GetString("registry.token"),
			Timeout:     v.GetDuration("registry.timeout"),
			FixturePath: v.GetString("registry.fixturePath"),
		},
	}
	if conf.CollectionYear <= 0 {
		return nil, errors.Errorf("invalid collectionYear %d", conf.CollectionYear)
	}
	return conf, nil
}
