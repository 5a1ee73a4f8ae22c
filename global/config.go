package global

import (
	"sync"
	"time"

	"VChat/tools/ids"
	jwtsec "VChat/tools/security"

	"github.com/caarlos0/env/v11"
)

// AppConfig is the whole process configuration, read from the environment.
type AppConfig struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	MongoURI      string `env:"MONGODB_URI" envDefault:"mongodb://localhost:27017"`
	MongoDatabase string `env:"MONGODB_DATABASE" envDefault:"vchat"`

	// Optional: empty addr disables the redis online mirror.
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Optional: empty URL disables message-event publishing.
	NatsURL string `env:"NATS_URL"`

	JWTSecret string        `env:"JWT_SECRET" envDefault:"mN9b1f8zPq+W2xjX/45sKcVd0TfyoG+3Hp5Z8q9Rj1o="`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"168h"`

	NodeID int64 `env:"NODE_ID" envDefault:"1"`
}

var (
	conf     AppConfig
	confOnce sync.Once
	confErr  error
)

// Load parses the environment once and configures the id generator.
func Load() (*AppConfig, error) {
	confOnce.Do(func() {
		confErr = env.Parse(&conf)
		if confErr == nil {
			ids.SetNodeID(conf.NodeID)
		}
	})
	if confErr != nil {
		return nil, confErr
	}
	return &conf, nil
}

func Conf() *AppConfig { return &conf }

func GetJwtSecret() []byte { return []byte(conf.JWTSecret) }

// JWTOptions returns the token options used by both the HTTP middleware and
// the websocket handshake.
func JWTOptions() jwtsec.Options {
	opts := jwtsec.DefaultOptions(GetJwtSecret())
	if conf.TokenTTL > 0 {
		opts.TTL = conf.TokenTTL
	}
	return opts
}
