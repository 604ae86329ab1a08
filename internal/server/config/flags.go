package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/catalogauth/internal/flagx"
)

var handledFlags = []string{"-a", "-D", "-d", "-R", "-s", "-t", "-r", "-i", "-u", "-S", "-l"}

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-D string   storage driver: memory, postgres, redis
//	-d string   PostgreSQL DSN
//	-R string   Redis address
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-r int      refresh token validity, minutes
//	-i string   token issuer
//	-u string   token audience
//	-S string   super admin principal name
//	-l string   log format: json, text, zap
//
// Only the flags above are picked out of args (flagx.FilterArgs), so -c and
// -env-file can share the same command line.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, handledFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.StorageDriver, "D", config.StorageDriver, "storage driver")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.RedisAddr, "R", config.RedisAddr, "redis address")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidity := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")
	refreshTokenValidity := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh token validity (in minutes)")

	fs.StringVar(&config.Issuer, "i", config.Issuer, "token issuer")
	fs.StringVar(&config.Audience, "u", config.Audience, "token audience")
	fs.StringVar(&config.SuperAdminPrincipal, "S", config.SuperAdminPrincipal, "super admin principal")
	fs.StringVar(&config.LogFormat, "l", config.LogFormat, "log format")

	if err := fs.Parse(args); err != nil {
		return err
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidity) * time.Minute
	config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidity) * time.Minute
	return nil
}
