package config

import (
	"flag"
	"os"
	"time"

	"github.com/secureshare/secureshare/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-r int      transfer retention period, hours
//	-m int64    upload request body cap, bytes
//	-y string   charge currency (ISO 4217)
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//
// Notes:
//   - The function first filters os.Args to only the flags it recognizes using
//     flagx.FilterArgs, avoiding collisions with other components.
//   - The retention flag is accepted as an integer in hours and then converted
//     to a time.Duration value.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-r", "-m", "-y", "-u", "-p", "-b", "-g", "-e"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	retentionPeriod := fs.Int("r", int(config.RetentionPeriod.Hours()), "retention_period (in hours)")

	fs.Int64Var(&config.MaxUploadBytes, "m", config.MaxUploadBytes, "max upload body size in bytes")
	fs.StringVar(&config.Currency, "y", config.Currency, "charge currency code")

	fs.StringVar(&config.S3User, "u", config.S3User, "S3 root user")
	fs.StringVar(&config.S3Password, "p", config.S3Password, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.RetentionPeriod = time.Duration(*retentionPeriod) * time.Hour
}
