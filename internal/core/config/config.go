package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTP struct {
	Host            string
	Port            int
	ReadTimeoutSec  int
	WriteTimeoutSec int
	IdleTimeoutSec  int
}
type AdminHTTP struct {
	Host string
	Port int
}

type App struct {
	Name  string
	Env   string
	HTTP  HTTP
	Admin AdminHTTP
}

type Log struct {
	Level string
	JSON  bool
	// 文件切割（可选）
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type JWT struct {
	Secret            string
	Issuer            string
	AccessTokenTTLMin int
}

func (j JWT) TTL() time.Duration { return time.Duration(j.AccessTokenTTLMin) * time.Minute }

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	TTLSec   int    `mapstructure:"ttlSec"`
}

func (r Redis) Enabled() bool { return r.Addr != "" }

// DB Driver: postgres | mysql | mongo | memory
type DB struct {
	Driver             string
	DSN                string
	Username           string
	Password           string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
	AutoMigrate        bool
	LogLevel           string
}

type Mongo struct {
	URI      string
	Database string
}

// Store 单次存储调用超时与瞬时错误重试
type Store struct {
	OpTimeoutMs int
	MaxRetries  int
	BackoffMs   int
}

func (s Store) OpTimeout() time.Duration { return time.Duration(s.OpTimeoutMs) * time.Millisecond }
func (s Store) Backoff() time.Duration   { return time.Duration(s.BackoffMs) * time.Millisecond }

type Content struct {
	ExcerptLength  int
	WordsPerMinute int
}

type Comments struct {
	AutoApprove bool
	MaxLength   int
}

type Upload struct {
	Dir          string
	MaxFileBytes int64
	MaxFiles     int
	PublicPrefix string
}

type Reconcile struct {
	Enabled bool
	Cron    string
}

// Limits 中间件参数
type Limits struct {
	RPS            float64
	Burst          int
	MaxConcurrency int64
	MaxBodyBytes   int64
	TimeoutSec     int
}

// Bootstrap 首次启动时创建的超级管理员（邮箱为空则跳过）
type Bootstrap struct {
	Email    string
	Password string
	Name     string
}

type Config struct {
	App       App
	Log       Log
	JWT       JWT
	DB        DB
	Mongo     Mongo
	Redis     Redis `mapstructure:"redis"`
	Store     Store
	Content   Content
	Comments  Comments
	Upload    Upload
	Reconcile Reconcile
	Limits    Limits
	Bootstrap Bootstrap
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "quillpress")
	v.SetDefault("app.env", "local")
	v.SetDefault("app.http.port", 8080)
	v.SetDefault("app.http.readTimeoutSec", 5)
	v.SetDefault("app.http.writeTimeoutSec", 10)
	v.SetDefault("app.http.idleTimeoutSec", 60)
	v.SetDefault("app.admin.port", 8081)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.maxSizeMB", 100)
	v.SetDefault("log.maxBackups", 7)
	v.SetDefault("log.maxAgeDays", 30)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "quillpress")
	v.SetDefault("jwt.accessTokenTTLMin", 60*24)
	v.SetDefault("db.driver", "memory")
	v.SetDefault("db.maxOpenConns", 50)
	v.SetDefault("db.maxIdleConns", 10)
	v.SetDefault("db.connMaxLifetimeMin", 30)
	v.SetDefault("db.logLevel", "warn")
	v.SetDefault("mongo.database", "quillpress")
	v.SetDefault("redis.ttlSec", 300)
	v.SetDefault("store.opTimeoutMs", 3000)
	v.SetDefault("store.maxRetries", 3)
	v.SetDefault("store.backoffMs", 50)
	v.SetDefault("content.excerptLength", 200)
	v.SetDefault("content.wordsPerMinute", 200)
	v.SetDefault("comments.autoApprove", false)
	v.SetDefault("comments.maxLength", 5000)
	v.SetDefault("upload.dir", "./uploads")
	v.SetDefault("upload.maxFileBytes", 5<<20)
	v.SetDefault("upload.maxFiles", 5)
	v.SetDefault("upload.publicPrefix", "/uploads")
	v.SetDefault("reconcile.enabled", true)
	v.SetDefault("reconcile.cron", "@every 10m")
	v.SetDefault("limits.rps", 200)
	v.SetDefault("limits.burst", 400)
	v.SetDefault("limits.maxConcurrency", 300)
	v.SetDefault("limits.maxBodyBytes", 32<<20)
	v.SetDefault("limits.timeoutSec", 10)
}

// Read 读取并校验配置，出错返回 error
func Read(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load 启动期使用，失败直接退出
func Load(path string) *Config {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
		if path == "" {
			path = "./configs/config.local.yaml"
		}
	}
	c, err := Read(path)
	if err != nil {
		log.Fatalf("%v", err)
	}
	return c
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return fmt.Errorf("config: jwt.secret is required")
	}
	switch c.DB.Driver {
	case "postgres", "mysql":
		if c.DB.DSN == "" {
			return fmt.Errorf("config: db.dsn is required for driver %q", c.DB.Driver)
		}
	case "mongo":
		if c.Mongo.URI == "" {
			return fmt.Errorf("config: mongo.uri is required for driver mongo")
		}
	case "memory":
	default:
		return fmt.Errorf("config: unsupported db.driver %q", c.DB.Driver)
	}
	if c.Reconcile.Enabled && c.Reconcile.Cron == "" {
		return fmt.Errorf("config: reconcile.cron is required when reconcile is enabled")
	}
	return nil
}
