package config

import (
	"flag"
	"os"
	"time"

	"github.com/swapwithus/listing-service/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-u string   S3 access key
//	-p string   S3 secret key
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-cdn string   CDN base URL for image delivery
//	-kn string    CDN signing key name
//	-ks string    CDN signing key secret (base64)
//	-ttl int      signed URL validity, minutes
//	-redis string Redis address for the browse cache
//	-nats string  NATS URL for lifecycle events
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-d", "-s", "-u", "-p", "-b", "-g", "-e",
		"-cdn", "-kn", "-ks", "-ttl", "-redis", "-nats",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.JWTSecret, "s", config.JWTSecret, "JWT secret key")

	fs.StringVar(&config.S3AccessKey, "u", config.S3AccessKey, "S3 access key")
	fs.StringVar(&config.S3SecretKey, "p", config.S3SecretKey, "S3 secret key")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	fs.StringVar(&config.CDNBaseURL, "cdn", config.CDNBaseURL, "CDN base URL")
	fs.StringVar(&config.CDNKeyName, "kn", config.CDNKeyName, "CDN signing key name")
	fs.StringVar(&config.CDNKeySecret, "ks", config.CDNKeySecret, "CDN signing key secret (base64)")

	signTTL := fs.Int("ttl", int(config.SignTTL.Minutes()), "signed URL validity (in minutes)")

	fs.StringVar(&config.RedisAddr, "redis", config.RedisAddr, "Redis address (empty disables the browse cache)")
	fs.StringVar(&config.NATSURL, "nats", config.NATSURL, "NATS URL (empty disables lifecycle events)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.SignTTL = time.Duration(*signTTL) * time.Minute
}
