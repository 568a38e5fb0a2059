package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const DefaultEnvPrefix = "NASLPARSER"

// Config 全局配置
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Scanner  ScannerConfig  `mapstructure:"scanner"`
	Output   OutputConfig   `mapstructure:"output"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // text, json
	Output     string `mapstructure:"output"` // stdout, stderr, file
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // 天
	Compress   bool   `mapstructure:"compress"`
}

// DatabaseConfig 脚本索引数据库
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ScannerConfig 目录扫描配置
type ScannerConfig struct {
	Workers    int           `mapstructure:"workers"`
	Extensions []string      `mapstructure:"extensions"`
	WatchDelay time.Duration `mapstructure:"watch_delay"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	Format string `mapstructure:"format"` // json, yaml, csv, text
	Pretty bool   `mapstructure:"pretty"`
}

// ConfigLoader 配置加载器
type ConfigLoader struct {
	configFile string
	envPrefix  string
	viper      *viper.Viper
}

// NewConfigLoader configFile为空时在 ./configs 和当前目录查找 naslparser.yaml
func NewConfigLoader(configFile, envPrefix string) *ConfigLoader {
	if envPrefix == "" {
		envPrefix = DefaultEnvPrefix
	}

	return &ConfigLoader{
		configFile: configFile,
		envPrefix:  envPrefix,
		viper:      viper.New(),
	}
}

// Viper 供命令行绑定flag使用
func (cl *ConfigLoader) Viper() *viper.Viper {
	return cl.viper
}

// SetConfigFile 在加载前替换配置文件路径
func (cl *ConfigLoader) SetConfigFile(path string) {
	cl.configFile = path
}

// LoadConfig 加载配置: flag > 环境变量 > 配置文件 > 默认值
func (cl *ConfigLoader) LoadConfig() (*Config, error) {
	cl.viper.SetConfigType("yaml")
	cl.viper.SetEnvPrefix(cl.envPrefix)
	cl.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cl.viper.AutomaticEnv()

	cl.setDefaults()

	if err := cl.loadConfigFile(); err != nil {
		return nil, err
	}

	var config Config
	if err := cl.viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("配置校验失败: %w", err)
	}

	return &config, nil
}

// loadConfigFile 未找到默认配置文件时使用默认值
func (cl *ConfigLoader) loadConfigFile() error {
	if cl.configFile != "" {
		cl.viper.SetConfigFile(cl.configFile)
		if err := cl.viper.ReadInConfig(); err != nil {
			return fmt.Errorf("读取配置文件 %s 失败: %w", cl.configFile, err)
		}
		return nil
	}

	cl.viper.SetConfigName("naslparser")
	cl.viper.AddConfigPath("./configs")
	cl.viper.AddConfigPath(".")

	if err := cl.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("读取配置文件失败: %w", err)
	}
	return nil
}

func (cl *ConfigLoader) setDefaults() {
	cl.viper.SetDefault("log.level", "info")
	cl.viper.SetDefault("log.format", "text")
	cl.viper.SetDefault("log.output", "stderr")
	cl.viper.SetDefault("log.file_path", "logs/naslparser.log")
	cl.viper.SetDefault("log.max_size", 100)
	cl.viper.SetDefault("log.max_backups", 5)
	cl.viper.SetDefault("log.max_age", 30)
	cl.viper.SetDefault("log.compress", false)

	cl.viper.SetDefault("database.path", "database/nasl_scripts.db")

	cl.viper.SetDefault("scanner.workers", 8)
	cl.viper.SetDefault("scanner.extensions", []string{"nasl"})
	cl.viper.SetDefault("scanner.watch_delay", "500ms")

	cl.viper.SetDefault("output.format", "json")
	cl.viper.SetDefault("output.pretty", false)
}

// Validate 校验配置取值
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("不支持的日志级别: %s", c.Log.Level)
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("不支持的日志格式: %s", c.Log.Format)
	}

	switch strings.ToLower(c.Log.Output) {
	case "stdout", "stderr":
	case "file":
		if c.Log.FilePath == "" {
			return fmt.Errorf("日志输出为file时必须指定file_path")
		}
	default:
		return fmt.Errorf("不支持的日志输出: %s", c.Log.Output)
	}

	if c.Scanner.Workers < 1 {
		return fmt.Errorf("scanner.workers 必须大于0: %d", c.Scanner.Workers)
	}

	switch strings.ToLower(c.Output.Format) {
	case "json", "yaml", "csv", "text":
	default:
		return fmt.Errorf("不支持的输出格式: %s", c.Output.Format)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path 不能为空")
	}
	return nil
}
