package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/dmitrijs2005/catalogauth/internal/flagx"
	"github.com/joho/godotenv"
)

// Environment variable names read by parseEnv.
const (
	EnvHTTPAddress          = "HTTP_ADDRESS"
	EnvStorageDriver        = "STORAGE_DRIVER"
	EnvDatabaseDSN          = "DATABASE_DSN"
	EnvRedisAddr            = "REDIS_ADDR"
	EnvRedisDB              = "REDIS_DB"
	EnvSecretKey            = "JWT_SECRET_KEY"
	EnvAccessTokenValidity  = "JWT_TOKEN_VALIDITY_IN_MINUTES"
	EnvRefreshTokenValidity = "JWT_REFRESH_TOKEN_VALIDITY_IN_MINUTES"
	EnvIssuer               = "JWT_VALID_ISSUER"
	EnvAudience             = "JWT_VALID_AUDIENCE"
	EnvSuperAdminPrincipal  = "SUPER_ADMIN_PRINCIPAL"
	EnvLogFormat            = "LOG_FORMAT"
	EnvLogLevel             = "LOG_LEVEL"
)

const defaultEnvFile = ".env"

// parseEnv loads the dotenv file named by -env-file (".env" by default; a
// missing file is not an error) and overlays every variable that is set.
// Variables already present in the process environment win over the file.
func parseEnv(config *Config, args []string) error {
	if path := flagx.EnvFileFlag(args, defaultEnvFile); path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("error loading env file %s: %w", path, err)
		}
	}

	lookupString(EnvHTTPAddress, &config.EndpointAddrHTTP)
	lookupString(EnvStorageDriver, &config.StorageDriver)
	lookupString(EnvDatabaseDSN, &config.DatabaseDSN)
	lookupString(EnvRedisAddr, &config.RedisAddr)
	lookupString(EnvSecretKey, &config.SecretKey)
	lookupString(EnvIssuer, &config.Issuer)
	lookupString(EnvAudience, &config.Audience)
	lookupString(EnvSuperAdminPrincipal, &config.SuperAdminPrincipal)
	lookupString(EnvLogFormat, &config.LogFormat)
	lookupString(EnvLogLevel, &config.LogLevel)

	if v, ok := os.LookupEnv(EnvRedisDB); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRedisDB, err)
		}
		config.RedisDB = n
	}
	if err := lookupMinutes(EnvAccessTokenValidity, &config.AccessTokenValidityDuration); err != nil {
		return err
	}
	if err := lookupMinutes(EnvRefreshTokenValidity, &config.RefreshTokenValidityDuration); err != nil {
		return err
	}
	return nil
}

func lookupString(name string, dst *string) {
	if v, ok := os.LookupEnv(name); ok {
		*dst = v
	}
}

func lookupMinutes(name string, dst *time.Duration) error {
	v, ok := os.LookupEnv(name)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = time.Duration(n) * time.Minute
	return nil
}
