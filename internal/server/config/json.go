package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/swapwithus/listing-service/internal/flagx"
)

// jsonDuration accepts both duration strings ("15m") and integer
// nanoseconds when unmarshalling.
type jsonDuration time.Duration

func (d *jsonDuration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		*d = jsonDuration(time.Duration(value))
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = jsonDuration(parsed)
	}
	return nil
}

// JsonConfig is an intermediate DTO used only for reading JSON configuration
// files. After unmarshalling, its fields are copied into the runtime Config.
type JsonConfig struct {
	HTTPAddr       string       `json:"http_addr"`
	DatabaseDSN    string       `json:"database_dsn"`
	JWTSecret      string       `json:"jwt_secret"`
	S3AccessKey    string       `json:"s3_access_key"`
	S3SecretKey    string       `json:"s3_secret_key"`
	S3Bucket       string       `json:"s3_bucket"`
	S3Region       string       `json:"s3_region"`
	S3BaseEndpoint string       `json:"s3_base_endpoint"`
	CDNBaseURL     string       `json:"cdn_base_url"`
	CDNKeyName     string       `json:"cdn_key_name"`
	CDNKeySecret   string       `json:"cdn_key_secret"`
	SignTTL        jsonDuration `json:"sign_ttl"`
	RedisAddr      string       `json:"redis_addr"`
	NATSURL        string       `json:"nats_url"`
}

// parseJson loads configuration values from the JSON file named by the
// -c/-config flags into the provided Config. No flag means no JSON overlay.
// An unreadable or invalid file panics: a config file that was asked for and
// cannot be applied is a fatal misconfiguration.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	config.HTTPAddr = c.HTTPAddr
	config.DatabaseDSN = c.DatabaseDSN
	config.JWTSecret = c.JWTSecret
	config.S3AccessKey = c.S3AccessKey
	config.S3SecretKey = c.S3SecretKey
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
	config.CDNBaseURL = c.CDNBaseURL
	config.CDNKeyName = c.CDNKeyName
	config.CDNKeySecret = c.CDNKeySecret
	config.SignTTL = time.Duration(c.SignTTL)
	config.RedisAddr = c.RedisAddr
	config.NATSURL = c.NATSURL
}
