package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays Config fields from environment variables, after loading
// an optional .env file from the working directory. Variables already set in
// the real environment win over the .env file.
func parseEnv(config *Config) {
	_ = godotenv.Load()

	setString := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	setString(&config.HTTPAddr, "HTTP_ADDR")
	setString(&config.DatabaseDSN, "DATABASE_DSN")
	setString(&config.JWTSecret, "JWT_SECRET")
	setString(&config.S3AccessKey, "S3_ACCESS_KEY")
	setString(&config.S3SecretKey, "S3_SECRET_KEY")
	setString(&config.S3Bucket, "S3_BUCKET")
	setString(&config.S3Region, "S3_REGION")
	setString(&config.S3BaseEndpoint, "S3_BASE_ENDPOINT")
	setString(&config.CDNBaseURL, "CDN_BASE_URL")
	setString(&config.CDNKeyName, "CDN_KEY_NAME")
	setString(&config.CDNKeySecret, "CDN_KEY_SECRET")
	setString(&config.RedisAddr, "REDIS_ADDR")
	setString(&config.NATSURL, "NATS_URL")

	if v, ok := os.LookupEnv("SIGN_TTL"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			config.SignTTL = d
		}
	}
}
