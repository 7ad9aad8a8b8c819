package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

var (
	TLS_DOMAINS         = ""             // e.g. "example.com,example2.com"
	BIND_ADDRESS        = "0.0.0.0:8080" // HTTP listen address when TLS_DOMAINS is empty
	DEBUG_MODE          = true
	MYSQL_DSN           = ""               // MySQL will be used if this is set
	SQLITE_FILE         = "humanfinder.db" // SQLite will be used if MYSQL_DSN is not configured
	STORAGE_DIR         = "./data"         // Photo storage on disk, used unless S3_BUCKET is set
	S3_BUCKET           = ""
	S3_REGION           = "us-east-1"
	S3_ENDPOINT         = "" // Custom endpoint for S3 compatible storage (minio, etc)
	S3_KEY              = ""
	S3_SECRET           = ""
	S3_PREFIX           = ""
	MODELS_DIR          = "./models" // dlib model files
	MODELS_URL          = ""         // If set, missing model files are fetched from <MODELS_URL>/<file name>
	FACE_DETECT_CNN     = false      // Use Convolutional Neural Network for face detection (as opposed to HOG). Much slower, supposedly more accurate at different angles
	MATCH_THRESHOLD     = 0.5        // Similarity (1 - distance) above which two faces are considered a match
	MATCH_CONCURRENCY   = 4          // Candidate comparisons running at the same time
	MATCH_TIMEOUT       = 2 * time.Minute
	COMPARE_TIMEOUT     = 20 * time.Second
	MODEL_LOAD_TIMEOUT  = 5 * time.Minute
	IMAGE_FETCH_TIMEOUT = 15 * time.Second
	MAX_IMAGE_BYTES     = 10 * 1024 * 1024
	MAX_IMAGE_DIMENSION = 1280              // Images are downscaled to fit this before face detection
	MAX_IMAGE_PIXELS    = 40_000_000        // Larger images are rejected before decoding
	MIN_FREE_SPACE      = 100 * 1024 * 1024 // Reports are refused when the photo storage has less free space (bytes)
	PUSH_SERVER         = ""                // Push notifications are disabled if empty
	NOMINATIM_URL       = "https://nominatim.openstreetmap.org"
	LOG_LEVEL           = "info"
	LOG_FILE            = "" // JSON logs are additionally written here if set
)

func init() {
	ReadEnv()
}

// ReadEnv (re)applies environment overrides on top of the current values.
func ReadEnv() {
	readEnvString("TLS_DOMAINS", &TLS_DOMAINS)
	readEnvString("BIND_ADDRESS", &BIND_ADDRESS)
	readEnvBool("DEBUG_MODE", &DEBUG_MODE)
	readEnvString("MYSQL_DSN", &MYSQL_DSN)
	readEnvString("SQLITE_FILE", &SQLITE_FILE)
	readEnvString("STORAGE_DIR", &STORAGE_DIR)
	readEnvString("S3_BUCKET", &S3_BUCKET)
	readEnvString("S3_REGION", &S3_REGION)
	readEnvString("S3_ENDPOINT", &S3_ENDPOINT)
	readEnvString("S3_KEY", &S3_KEY)
	readEnvString("S3_SECRET", &S3_SECRET)
	readEnvString("S3_PREFIX", &S3_PREFIX)
	readEnvString("MODELS_DIR", &MODELS_DIR)
	readEnvString("MODELS_URL", &MODELS_URL)
	readEnvBool("FACE_DETECT_CNN", &FACE_DETECT_CNN)
	readEnvFloat("MATCH_THRESHOLD", &MATCH_THRESHOLD)
	readEnvInt("MATCH_CONCURRENCY", &MATCH_CONCURRENCY)
	readEnvDuration("MATCH_TIMEOUT", &MATCH_TIMEOUT)
	readEnvDuration("COMPARE_TIMEOUT", &COMPARE_TIMEOUT)
	readEnvDuration("MODEL_LOAD_TIMEOUT", &MODEL_LOAD_TIMEOUT)
	readEnvDuration("IMAGE_FETCH_TIMEOUT", &IMAGE_FETCH_TIMEOUT)
	readEnvInt("MAX_IMAGE_BYTES", &MAX_IMAGE_BYTES)
	readEnvInt("MAX_IMAGE_DIMENSION", &MAX_IMAGE_DIMENSION)
	readEnvInt("MAX_IMAGE_PIXELS", &MAX_IMAGE_PIXELS)
	readEnvInt("MIN_FREE_SPACE", &MIN_FREE_SPACE)
	readEnvString("PUSH_SERVER", &PUSH_SERVER)
	readEnvString("NOMINATIM_URL", &NOMINATIM_URL)
	readEnvString("LOG_LEVEL", &LOG_LEVEL)
	readEnvString("LOG_FILE", &LOG_FILE)
}

func readEnvString(name string, value *string) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	*value = v
}

func readEnvBool(name string, value *bool) {
	v := strings.ToLower(os.Getenv(name))
	if v == "true" || v == "1" || v == "yes" || v == "on" {
		*value = true
	} else if v == "false" || v == "0" || v == "no" || v == "off" {
		*value = false
	}
}

func readEnvFloat(name string, value *float64) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return
	}
	*value = f
}

func readEnvInt(name string, value *int) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	f, err := strconv.Atoi(v)
	if err != nil {
		return
	}
	*value = f
}

// readEnvDuration accepts Go durations ("30s") as well as plain seconds ("30")
func readEnvDuration(name string, value *time.Duration) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		*value = d
		return
	}
	if secs, err := strconv.Atoi(v); err == nil {
		*value = time.Duration(secs) * time.Second
	}
}
