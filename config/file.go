package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig mirrors the variables above for YAML config files.
// Only the keys present in the file are applied.
type FileConfig struct {
	TLSDomains        *string        `yaml:"tls_domains"`
	BindAddress       *string        `yaml:"bind_address"`
	DebugMode         *bool          `yaml:"debug_mode"`
	MySQLDSN          *string        `yaml:"mysql_dsn"`
	SQLiteFile        *string        `yaml:"sqlite_file"`
	StorageDir        *string        `yaml:"storage_dir"`
	S3Bucket          *string        `yaml:"s3_bucket"`
	S3Region          *string        `yaml:"s3_region"`
	S3Endpoint        *string        `yaml:"s3_endpoint"`
	S3Key             *string        `yaml:"s3_key"`
	S3Secret          *string        `yaml:"s3_secret"`
	S3Prefix          *string        `yaml:"s3_prefix"`
	ModelsDir         *string        `yaml:"models_dir"`
	ModelsURL         *string        `yaml:"models_url"`
	FaceDetectCNN     *bool          `yaml:"face_detect_cnn"`
	MatchThreshold    *float64       `yaml:"match_threshold"`
	MatchConcurrency  *int           `yaml:"match_concurrency"`
	MatchTimeout      *time.Duration `yaml:"match_timeout"`
	CompareTimeout    *time.Duration `yaml:"compare_timeout"`
	ModelLoadTimeout  *time.Duration `yaml:"model_load_timeout"`
	ImageFetchTimeout *time.Duration `yaml:"image_fetch_timeout"`
	MaxImageBytes     *int           `yaml:"max_image_bytes"`
	MaxImageDimension *int           `yaml:"max_image_dimension"`
	MaxImagePixels    *int           `yaml:"max_image_pixels"`
	MinFreeSpace      *int           `yaml:"min_free_space"`
	PushServer        *string        `yaml:"push_server"`
	NominatimURL      *string        `yaml:"nominatim_url"`
	LogLevel          *string        `yaml:"log_level"`
	LogFile           *string        `yaml:"log_file"`
}

// LoadFile applies a YAML config file. Environment variables still win:
// they are re-applied after the file.
func LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	fc := FileConfig{}
	if err = yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	fc.apply()
	ReadEnv()
	return nil
}

func (fc *FileConfig) apply() {
	set(fc.TLSDomains, &TLS_DOMAINS)
	set(fc.BindAddress, &BIND_ADDRESS)
	set(fc.DebugMode, &DEBUG_MODE)
	set(fc.MySQLDSN, &MYSQL_DSN)
	set(fc.SQLiteFile, &SQLITE_FILE)
	set(fc.StorageDir, &STORAGE_DIR)
	set(fc.S3Bucket, &S3_BUCKET)
	set(fc.S3Region, &S3_REGION)
	set(fc.S3Endpoint, &S3_ENDPOINT)
	set(fc.S3Key, &S3_KEY)
	set(fc.S3Secret, &S3_SECRET)
	set(fc.S3Prefix, &S3_PREFIX)
	set(fc.ModelsDir, &MODELS_DIR)
	set(fc.ModelsURL, &MODELS_URL)
	set(fc.FaceDetectCNN, &FACE_DETECT_CNN)
	set(fc.MatchThreshold, &MATCH_THRESHOLD)
	set(fc.MatchConcurrency, &MATCH_CONCURRENCY)
	set(fc.MatchTimeout, &MATCH_TIMEOUT)
	set(fc.CompareTimeout, &COMPARE_TIMEOUT)
	set(fc.ModelLoadTimeout, &MODEL_LOAD_TIMEOUT)
	set(fc.ImageFetchTimeout, &IMAGE_FETCH_TIMEOUT)
	set(fc.MaxImageBytes, &MAX_IMAGE_BYTES)
	set(fc.MaxImageDimension, &MAX_IMAGE_DIMENSION)
	set(fc.MaxImagePixels, &MAX_IMAGE_PIXELS)
	set(fc.MinFreeSpace, &MIN_FREE_SPACE)
	set(fc.PushServer, &PUSH_SERVER)
	set(fc.NominatimURL, &NOMINATIM_URL)
	set(fc.LogLevel, &LOG_LEVEL)
	set(fc.LogFile, &LOG_FILE)
}

func set[T any](from *T, to *T) {
	if from != nil {
		*to = *from
	}
}
