// Package config 从 YAML 文件和环境变量读取 ORM 的配置
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	// Dialect 为空的时候根据 Driver 推断
	Dialect string `yaml:"dialect"`

	MaxFetchDepth      int  `yaml:"maxFetchDepth"`
	StatementCacheSize int  `yaml:"statementCacheSize"`
	UseUnsafe          bool `yaml:"useUnsafe"`
	// CacheTTL 实体缓存的过期时间，例如 "5m"
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

func Default() Config {
	return Config{
		Driver:             "sqlite3",
		DSN:                "file:ratorm.db?cache=shared&mode=memory",
		MaxFetchDepth:      8,
		StatementCacheSize: 256,
		CacheTTL:           time.Minute,
	}
}

// Parse 解析 YAML，没有出现的字段保持默认值
func Parse(data []byte) (Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("config: 解析 YAML 失败: %w", err)
	}
	return c, nil
}

// Load 读取 YAML 文件，再用环境变量覆盖
// path 为空或者文件不存在的时候只使用默认值和环境变量
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if c, err = Parse(data); err != nil {
				return c, err
			}
		case !errors.Is(err, os.ErrNotExist):
			return c, err
		}
	}
	return FromEnv(c)
}

// FromEnv 环境变量 RATORM_* 覆盖配置
func FromEnv(c Config) (Config, error) {
	c.Driver = getenv("RATORM_DRIVER", c.Driver)
	c.DSN = getenv("RATORM_DSN", c.DSN)
	c.Dialect = getenv("RATORM_DIALECT", c.Dialect)
	c.UseUnsafe = getenvBool("RATORM_USE_UNSAFE", c.UseUnsafe)

	var err error
	if c.MaxFetchDepth, err = getenvInt("RATORM_MAX_FETCH_DEPTH", c.MaxFetchDepth); err != nil {
		return c, err
	}
	if c.StatementCacheSize, err = getenvInt("RATORM_STATEMENT_CACHE_SIZE", c.StatementCacheSize); err != nil {
		return c, err
	}
	if v := getenv("RATORM_CACHE_TTL", ""); v != "" {
		if c.CacheTTL, err = time.ParseDuration(v); err != nil {
			return c, fmt.Errorf("config: RATORM_CACHE_TTL 不合法: %w", err)
		}
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	if c.Driver == "" {
		return errors.New("config: driver 不能为空")
	}
	if c.MaxFetchDepth < 0 {
		return fmt.Errorf("config: maxFetchDepth 不能为负数: %d", c.MaxFetchDepth)
	}
	return nil
}

func getenv(k, fallback string) string {
	if v, ok := os.LookupEnv(k); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getenvBool(k string, fallback bool) bool {
	if v, ok := os.LookupEnv(k); ok {
		v = strings.TrimSpace(strings.ToLower(v))
		if v == "1" || v == "true" || v == "yes" {
			return true
		}
		if v == "0" || v == "false" || v == "no" {
			return false
		}
	}
	return fallback
}

func getenvInt(k string, fallback int) (int, error) {
	v := getenv(k, "")
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback, fmt.Errorf("config: %s 不合法: %w", k, err)
	}
	return n, nil
}
