package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
)

const (
	// DefaultInferencePort is the listen port of the inference service.
	DefaultInferencePort = 5000
	// DefaultDemoPort is the listen port of the demo service.
	DefaultDemoPort = 8080

	// MB is one mebibyte.
	MB = 1 << 20
)

// ServerConfig defines HTTP server configurations
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Debug           bool          `koanf:"debug"`
	MaxBodyBytes    int64         `koanf:"maxbodybytes"`
	ShutdownTimeout time.Duration `koanf:"shutdowntimeout"`
}

// StaticConfig describes the public static-serving root.
type StaticConfig struct {
	Dir    string `koanf:"dir"`
	Prefix string `koanf:"prefix"`
}

// UploadConfig controls where uploads are written and how long they live.
// A zero Retention keeps uploads forever.
type UploadConfig struct {
	Dir           string        `koanf:"dir"`
	Retention     time.Duration `koanf:"retention"`
	SweepInterval time.Duration `koanf:"sweepinterval"`
}

// PreprocessConfig related to image preprocessing
type PreprocessConfig struct {
	CacheSize int   `koanf:"cachesize"`
	MaxPixels int64 `koanf:"maxpixels"`
}

// ModelFileConfig points at one serialized ONNX model.
type ModelFileConfig struct {
	Path   string `koanf:"path"`
	Input  string `koanf:"input"`
	Output string `koanf:"output"`
}

// ModelConfig related to the inference runtime
type ModelConfig struct {
	LibraryPath string          `koanf:"librarypath"`
	Gender      ModelFileConfig `koanf:"gender"`
	Age         ModelFileConfig `koanf:"age"`
}

// DemoConfig related to the mock predictor
type DemoConfig struct {
	GenderDelay time.Duration `koanf:"genderdelay"`
	AgeDelay    time.Duration `koanf:"agedelay"`
}

// AppConfig defines
type AppConfig struct {
	Server     ServerConfig     `koanf:"server"`
	Static     StaticConfig     `koanf:"static"`
	Upload     UploadConfig     `koanf:"upload"`
	Preprocess PreprocessConfig `koanf:"preprocess"`
	Model      ModelConfig      `koanf:"model"`
	Demo       DemoConfig       `koanf:"demo"`
}

func defaults(port int) map[string]any {
	return map[string]any{
		"server.port":            port,
		"server.debug":           false,
		"server.maxbodybytes":    int64(16 * MB),
		"server.shutdowntimeout": 10 * time.Second,
		"static.dir":             "static",
		"static.prefix":          "static",
		"upload.dir":             filepath.Join("static", "uploads"),
		"upload.retention":       time.Duration(0),
		"upload.sweepinterval":   10 * time.Minute,
		"preprocess.cachesize":   0,
		"preprocess.maxpixels":   int64(178956970),
		"model.gender.path":      filepath.Join("models", "AP-AksharNet_1024Gender_Trained.onnx"),
		"model.gender.input":     "input",
		"model.gender.output":    "output",
		"model.age.path":         filepath.Join("models", "AP-AksharNet_1024Age_Trained.onnx"),
		"model.age.input":        "input",
		"model.age.output":       "output",
		"demo.genderdelay":       time.Second,
		"demo.agedelay":          500 * time.Millisecond,
	}
}

// Load builds the configuration from built-in defaults, an optional YAML
// file, CFG_ prefixed variables and finally PORT and FLASK_ENV.
func Load(filePath string, defaultPort int) (*AppConfig, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(defaultPort), "."), nil); err != nil {
		return nil, err
	}

	if filePath != "" {
		if _, err := os.Stat(filePath); err == nil {
			if err := k.Load(file.Provider(filePath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("loading %s: %w", filePath, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	if err := k.Load(env.ProviderWithValue("CFG_", ".", func(s string, v string) (string, any) {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "CFG_")), "_", ".")
		return key, v
	}), nil); err != nil {
		return nil, err
	}

	overrides, err := processEnv()
	if err != nil {
		return nil, err
	}
	if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
		return nil, err
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, ValidateConfig(&cfg)
}

// processEnv maps the conventional process variables onto config keys.
func processEnv() (map[string]any, error) {
	out := map[string]any{}
	if p := os.Getenv("PORT"); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT %q: %w", p, err)
		}
		out["server.port"] = port
	}
	if os.Getenv("FLASK_ENV") == "development" || os.Getenv("APP_ENV") == "development" {
		out["server.debug"] = true
	}
	return out, nil
}

// ValidateConfig is for custom validation rules for the configuration
func ValidateConfig(cfg *AppConfig) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", cfg.Server.Port)
	}
	if cfg.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.maxbodybytes must be positive")
	}
	if cfg.Static.Dir == "" || cfg.Upload.Dir == "" {
		return fmt.Errorf("static.dir and upload.dir are required")
	}
	if cfg.Upload.Retention < 0 {
		return fmt.Errorf("upload.retention must not be negative")
	}
	if cfg.Upload.Retention > 0 && cfg.Upload.SweepInterval <= 0 {
		return fmt.Errorf("upload.sweepinterval must be positive when retention is set")
	}
	if cfg.Preprocess.CacheSize < 0 {
		return fmt.Errorf("preprocess.cachesize must not be negative")
	}
	if cfg.Preprocess.MaxPixels <= 0 {
		return fmt.Errorf("preprocess.maxpixels must be positive")
	}
	return nil
}

var defaultConfigPath = "config/config.yaml"

// ParseConfigFlag allows clients to specify the relative path to the file from
// which the configuration will be loaded.
func ParseConfigFlag() string {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	configPath := fs.String("file", defaultConfigPath, "configuration file")
	_ = fs.Parse(os.Args[1:])

	return *configPath
}
