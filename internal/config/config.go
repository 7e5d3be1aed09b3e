package config

import (
	"os"
	"strconv"
	"strings"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode      Mode
	HTTPAddr  string
	PublicURL string

	DBDriver string
	DBDSN    string

	CourseStore  string // sql|blob
	BlobDriver   string // fs|minio
	BlobBasePath string // for fs

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	EnableLocalAuth bool
	AuthHMACSecret  string

	AdminUser     string
	AdminPassHash string // bcrypt

	CORSOriginsOnline  []string
	CORSOriginsOffline []string

	// Remote score/response service; when unset, scores come from the
	// local database.
	ScoreAPIURL          string
	ScoreAPITokenURL     string
	ScoreAPIClientID     string
	ScoreAPIClientSecret string
	ScoreAPIRPS          float64
	ScoreAPIBurst        int

	GradeWorkers int

	LogFile  string
	LogLevel string

	TracingEnabled bool
	JaegerEndpoint string
}

func FromEnv() Config {
	mode := Mode(os.Getenv("MODE"))
	if mode == "" {
		mode = ModeOffline
	}
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		Mode:               mode,
		HTTPAddr:           addr,
		PublicURL:          os.Getenv("PUBLIC_URL"),
		DBDriver:           envOr("DB_DRIVER", "sqlite"),
		DBDSN:              envOr("DB_DSN", ""),
		CourseStore:        envOr("COURSE_STORE", "sql"),
		BlobDriver:         envOr("BLOB_DRIVER", "fs"),
		BlobBasePath:       envOr("BLOB_BASE_PATH", "./data"),
		MinioEndpoint:      envOr("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey:     os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey:     os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:        envOr("MINIO_BUCKET", "mindengage-grades"),
		MinioUseSSL:        envBool("MINIO_USE_SSL", false),
		EnableLocalAuth:    envBool("ENABLE_LOCAL_AUTH", true),
		AuthHMACSecret:     envOr("AUTH_HMAC_SECRET", "dev-secret-change-me"),
		AdminUser:          envOr("ADMIN_USER", "admin"),
		AdminPassHash:      envOr("ADMIN_PASS_HASH", "$2y$12$pyZAiWaTfVtM7UElIRStvOC3gNbnp70nmQU4eYopLGBfCJr1DOvji"),
		CORSOriginsOnline:  csvOr("CORS_ORIGINS_ONLINE", "https://grades.mindengage.ai"),
		CORSOriginsOffline: csvOr("CORS_ORIGINS_OFFLINE", "http://localhost:3000,http://localhost:3010,http://localhost:3020"),

		ScoreAPIURL:          os.Getenv("SCORE_API_URL"),
		ScoreAPITokenURL:     os.Getenv("SCORE_API_TOKEN_URL"),
		ScoreAPIClientID:     os.Getenv("SCORE_API_CLIENT_ID"),
		ScoreAPIClientSecret: os.Getenv("SCORE_API_CLIENT_SECRET"),
		ScoreAPIRPS:          envFloat("SCORE_API_RPS", 0),
		ScoreAPIBurst:        envInt("SCORE_API_BURST", 1),

		GradeWorkers: envInt("GRADE_WORKERS", 4),

		LogFile:  os.Getenv("LOG_FILE"),
		LogLevel: os.Getenv("LOG_LEVEL"),

		TracingEnabled: envBool("TRACING_ENABLED", false),
		JaegerEndpoint: envOr("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
	}
}
func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}
func envInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
func envFloat(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
