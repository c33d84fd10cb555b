package config

import (
	"bytes"
	"fmt"
	"net"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	defaultExtension = "yaml"
	defaultTagName   = "yaml"
)

type Binder interface {
	Bind(v *viper.Viper) error
}

type Loader interface {
	Load(name, path, envPrefix string, binder Binder) (Config, error)
}

type Config struct {
	LogLevel   string     `yaml:"log_level"`
	Server     Server     `yaml:"server"`
	CloudAsset CloudAsset `yaml:"cloud_asset"`
	BigQuery   BigQuery   `yaml:"big_query"`
	GCS        GCS        `yaml:"gcs"`
	Output     Output     `yaml:"output"`
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.LogLevel, validation.Required, validation.In("trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled")),
		validation.Field(&c.Server),
		validation.Field(&c.CloudAsset),
		validation.Field(&c.BigQuery),
		validation.Field(&c.GCS),
	)
}

type Server struct {
	Address string `yaml:"address"`
	Port    string `yaml:"port"`
}

func (s Server) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Address, validation.Required, is.IP),
		validation.Field(&s.Port, validation.Required, is.Port),
	)
}

func (s Server) ListenAddress() string {
	return net.JoinHostPort(s.Address, s.Port)
}

type CloudAsset struct {
	// Endpoint overrides the public API, e.g. for a fake server
	Endpoint        string `yaml:"endpoint"`
	EnableAuth      bool   `yaml:"enable_auth"`
	CredentialsFile string `yaml:"credentials_file"`
	PageSize        int64  `yaml:"page_size"`
	PollIntervalMs  int    `yaml:"poll_interval_ms"`
}

func (c CloudAsset) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Endpoint, is.URL),
		validation.Field(&c.PageSize, validation.Min(int64(0))),
		validation.Field(&c.PollIntervalMs, validation.Min(0)),
	)
}

func (c CloudAsset) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

type BigQuery struct {
	Endpoint   string `yaml:"endpoint"`
	EnableAuth bool   `yaml:"enable_auth"`
	Location   string `yaml:"location"`
}

func (b BigQuery) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.Endpoint, is.URL),
	)
}

type GCS struct {
	Endpoint   string `yaml:"endpoint"`
	EnableAuth bool   `yaml:"enable_auth"`
}

func (g GCS) Validate() error {
	return validation.ValidateStruct(&g,
		validation.Field(&g.Endpoint, is.URL),
	)
}

type Output struct {
	PrettyPrint bool `yaml:"pretty_print"`
}

// DefaultConfig talks to the public Google APIs with application default
// credentials.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Server: Server{
			Address: "0.0.0.0",
			Port:    "8080",
		},
		CloudAsset: CloudAsset{
			EnableAuth:     true,
			PageSize:       1000,
			PollIntervalMs: 2000,
		},
		BigQuery: BigQuery{
			EnableAuth: true,
			Location:   "EU",
		},
		GCS: GCS{
			EnableAuth: true,
		},
	}
}

type FileParts struct {
	FileName string
	Path     string
}

func ProcessConfigPath(configFile string) (FileParts, error) {
	absolutePath, err := filepath.Abs(configFile)
	if err != nil {
		return FileParts{}, fmt.Errorf("convert to absolute path: %w", err)
	}

	fileName := filepath.Base(absolutePath)
	path := filepath.Dir(absolutePath)
	extension := filepath.Ext(fileName)

	if strings.ReplaceAll(strings.ToLower(extension), ".", "") != defaultExtension {
		return FileParts{}, fmt.Errorf("config file must have extension %s, got: %s", defaultExtension, extension)
	}

	return FileParts{
		FileName: fileName[:len(fileName)-len(extension)],
		Path:     path,
	}, nil
}

func NewFileSystemLoader() *FileSystemLoader {
	return &FileSystemLoader{}
}

type FileSystemLoader struct{}

// Load layers, from lowest to highest precedence, DefaultConfig, the config
// file, environment variables and whatever the binder binds. An empty name
// skips the config file.
func (fs *FileSystemLoader) Load(name, path, envPrefix string, b Binder) (Config, error) {
	v := viper.New()

	v.SetConfigType(defaultExtension)

	defaults, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return Config{}, fmt.Errorf("marshal defaults: %w", err)
	}

	// Reading the defaults as config makes every key known to viper, which
	// AutomaticEnv needs to pick up overrides for keys missing from the file.
	err = v.ReadConfig(bytes.NewReader(defaults))
	if err != nil {
		return Config{}, fmt.Errorf("read defaults: %w", err)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if b != nil {
		err := b.Bind(v)
		if err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix(envPrefix)

	if name != "" {
		v.AddConfigPath(path)
		v.SetConfigName(name)

		err = v.MergeInConfig()
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var config Config

	err = v.Unmarshal(&config, func(cfg *mapstructure.DecoderConfig) {
		cfg.TagName = defaultTagName
	})
	if err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	return config, nil
}

type EnvBinder struct {
	binders map[string]string
}

func (e *EnvBinder) Bind(v *viper.Viper) error {
	for envVar, key := range e.binders {
		err := v.BindEnv(key, envVar)
		if err != nil {
			return fmt.Errorf("bind env var %s to key %s: %w", envVar, key, err)
		}
	}

	return nil
}

func NewEnvBinder(binders map[string]string) *EnvBinder {
	return &EnvBinder{
		binders: binders,
	}
}

func NewDefaultEnvBinder() *EnvBinder {
	return NewEnvBinder(map[string]string{
		"GOOGLE_APPLICATION_CREDENTIALS": "cloud_asset.credentials_file",
	})
}

// FlagBinder binds command line flags to config keys. Flags that were set
// on the command line win over the file and the environment.
type FlagBinder struct {
	flags   *pflag.FlagSet
	binders map[string]string
}

func (f *FlagBinder) Bind(v *viper.Viper) error {
	for name, key := range f.binders {
		flag := f.flags.Lookup(name)
		if flag == nil {
			return fmt.Errorf("bind flag %s to key %s: no such flag", name, key)
		}

		// Unset flags would shadow the file with their zero defaults.
		if !flag.Changed {
			continue
		}

		err := v.BindPFlag(key, flag)
		if err != nil {
			return fmt.Errorf("bind flag %s to key %s: %w", name, key, err)
		}
	}

	return nil
}

func NewFlagBinder(flags *pflag.FlagSet, binders map[string]string) *FlagBinder {
	return &FlagBinder{
		flags:   flags,
		binders: binders,
	}
}

// Binders applies several binders in order.
type Binders []Binder

func (bs Binders) Bind(v *viper.Viper) error {
	for _, b := range bs {
		if b == nil {
			continue
		}

		err := b.Bind(v)
		if err != nil {
			return err
		}
	}

	return nil
}
