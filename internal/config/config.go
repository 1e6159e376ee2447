package config

import (
	"os"
	"strconv"
)

type Config struct {
	DB     DBConfig
	MinIO  MinIOConfig
	S3     S3Config
	JWT    JWTConfig
	Server ServerConfig
	Upload UploadConfig
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// StorageDriver selects which object-store client cmd/server wires in.
const (
	StorageDriverMinIO = "minio"
	StorageDriverS3    = "s3"
)

type MinIOConfig struct {
	Endpoint       string
	PublicEndpoint string
	AccessKey      string
	SecretKey      string
	Bucket         string
	UseSSL         bool
}

type S3Config struct {
	Endpoint       string
	PublicEndpoint string
	Region         string
	AccessKey      string
	SecretKey      string
	Bucket         string
	UseSSL         bool
}

type JWTConfig struct {
	Secret          string
	ExpirationHours int
}

type ServerConfig struct {
	Port          string
	ClientURL     string
	StorageDriver string
}

type UploadConfig struct {
	MaxBytes int
}

func Load() *Config {
	return &Config{
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "imagevault"),
			Password: getEnv("DB_PASSWORD", "imagevault_secret"),
			Name:     getEnv("DB_NAME", "imagevault"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		MinIO: MinIOConfig{
			Endpoint:       getEnv("MINIO_ENDPOINT", "localhost:9000"),
			PublicEndpoint: getEnv("MINIO_PUBLIC_ENDPOINT", getEnv("MINIO_ENDPOINT", "localhost:9000")),
			AccessKey:      getEnv("MINIO_ACCESS_KEY", "imagevault"),
			SecretKey:      getEnv("MINIO_SECRET_KEY", "imagevault_secret"),
			Bucket:         getEnv("MINIO_BUCKET", "imagevault"),
			UseSSL:         getEnvAsBool("MINIO_USE_SSL", false),
		},
		S3: S3Config{
			Endpoint:       getEnv("S3_ENDPOINT", "s3.amazonaws.com"),
			PublicEndpoint: getEnv("S3_PUBLIC_ENDPOINT", getEnv("S3_ENDPOINT", "s3.amazonaws.com")),
			Region:         getEnv("S3_REGION", "us-east-1"),
			AccessKey:      getEnv("S3_ACCESS_KEY", ""),
			SecretKey:      getEnv("S3_SECRET_KEY", ""),
			Bucket:         getEnv("S3_BUCKET", "imagevault"),
			UseSSL:         getEnvAsBool("S3_USE_SSL", true),
		},
		JWT: JWTConfig{
			Secret:          getEnv("JWT_SECRET", "change-me-in-production"),
			ExpirationHours: getEnvAsInt("JWT_EXPIRATION_HOURS", 24*30),
		},
		Server: ServerConfig{
			Port:          getEnv("SERVER_PORT", "8080"),
			ClientURL:     getEnv("CLIENT_URL", "http://localhost:5173"),
			StorageDriver: getEnv("STORAGE_DRIVER", StorageDriverMinIO),
		},
		Upload: UploadConfig{
			MaxBytes: getEnvAsInt("UPLOAD_MAX_BYTES", 10*1024*1024),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}
