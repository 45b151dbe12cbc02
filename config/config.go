package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB 全局数据库连接
var DB *gorm.DB

type Config struct {
	Port           int
	DBDriver       string // "mysql" 或 "sqlite"
	DBDSN          string
	JWTSecret      string
	TokenTTL       time.Duration
	RedisAddr      string // 为空则不启用 Redis 桥接
	RedisPassword  string
	RedisDB        int
	UploadDir      string
	PublishTimeout time.Duration
}

// Load 加载 .env（如果存在）并读取环境变量
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:           getEnvAsInt("PORT", 8082),
		DBDriver:       getEnv("DB_DRIVER", "mysql"),
		DBDSN:          getEnv("DB_DSN", "root:root@tcp(127.0.0.1:3306)/messenger?charset=utf8mb4&parseTime=True&loc=Local"),
		JWTSecret:      getEnv("JWT_SECRET", "change-me-in-production"),
		TokenTTL:       getEnvAsDuration("TOKEN_TTL", 7*24*time.Hour),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvAsInt("REDIS_DB", 0),
		UploadDir:      getEnv("UPLOAD_DIR", "./uploads"),
		PublishTimeout: getEnvAsDuration("PUBLISH_TIMEOUT", 5*time.Second),
	}
}

// InitDB 初始化数据库连接
func InitDB(cfg *Config) error {
	var (
		db  *gorm.DB
		err error
	)

	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}

	switch cfg.DBDriver {
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(cfg.DBDSN), gormCfg)
	case "mysql":
		db, err = gorm.Open(mysql.Open(cfg.DBDSN), gormCfg)
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	if err != nil {
		return fmt.Errorf("failed to connect database: %w", err)
	}

	DB = db
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
