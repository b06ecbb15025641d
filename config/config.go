// Package config loads the process-wide settings once at startup.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is read once by Load and passed by value afterwards.
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	LLM    LLMConfig    `mapstructure:"llm"`
	Output OutputConfig `mapstructure:"output"`
	Render RenderConfig `mapstructure:"render"`
	Log    LogConfig    `mapstructure:"log"`
}

type ServerConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	StaticDir   string `mapstructure:"static_dir"`
	MaxUploadMB int64  `mapstructure:"max_upload_mb"`
}

// Addr is the listen address built from Host and Port.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// LLMConfig holds the default model names; credentials always come with the request.
type LLMConfig struct {
	GoogleModel string `mapstructure:"google_model"`
	OpenAIModel string `mapstructure:"openai_model"`
}

type OutputConfig struct {
	// Dir is the base directory relative output paths are resolved against.
	Dir      string `mapstructure:"dir"`
	Filename string `mapstructure:"filename"`
}

type RenderConfig struct {
	// FontDir holds Montserrat/Merriweather TTF files. Empty selects the built-in core fonts.
	FontDir string `mapstructure:"font_dir"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads .env (if any), the optional YAML file at path and the environment.
// Environment variables use the EBOOK_ prefix (EBOOK_OUTPUT_DIR); PORT and
// GOOGLE_GENERATIVE_MODEL are honoured as well.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("stat config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix("EBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("server.port", "EBOOK_SERVER_PORT", "PORT")
	_ = v.BindEnv("llm.google_model", "EBOOK_LLM_GOOGLE_MODEL", "GOOGLE_GENERATIVE_MODEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5001)
	v.SetDefault("server.static_dir", "frontend")
	v.SetDefault("server.max_upload_mb", 64)

	v.SetDefault("llm.google_model", "gemini-2.5-pro")
	v.SetDefault("llm.openai_model", "gpt-4o-mini")

	v.SetDefault("output.dir", ".")
	v.SetDefault("output.filename", "ebook.pdf")

	v.SetDefault("render.font_dir", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

func (c Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if strings.TrimSpace(c.Output.Filename) == "" {
		return errors.New("output.filename must not be empty")
	}
	if strings.TrimSpace(c.Output.Dir) == "" {
		return errors.New("output.dir must not be empty")
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("server.max_upload_mb must be positive: %d", c.Server.MaxUploadMB)
	}
	return nil
}
