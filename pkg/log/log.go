package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lestrrat-go/file-rotatelogs"
	"github.com/pkg/errors"
)

const (
	defaultPattern = "talentmatch-%Y-%m-%d.log"
	timeLayout     = "2006-01-02 15:04:05.000000"
)

// Config 日志配置
type Config struct {
	Path           string `toml:"path"` // 为空时只输出到 stdout
	RotationTime   string `toml:"rotation_time"`
	MaxAge         string `toml:"max_age"`
	DefaultPattern string `toml:"default_pattern"`
	Level          string `toml:"level"`
	Format         string `toml:"format"` // text 或 json
}

// Validate 验证配置
func (cfg *Config) Validate() error {
	if _, err := parseLevel(cfg.Level); err != nil {
		return err
	}

	switch strings.ToLower(cfg.Format) {
	case "text", "json":
	default:
		return errors.Errorf("invalid format: %s", cfg.Format)
	}

	if !cfg.toFile() {
		return nil
	}
	if _, _, err := cfg.rotation(); err != nil {
		return err
	}
	return nil
}

func (cfg *Config) toFile() bool {
	return strings.TrimSpace(cfg.Path) != ""
}

func (cfg *Config) rotation() (every, keep time.Duration, err error) {
	if every, err = time.ParseDuration(cfg.RotationTime); err != nil {
		return 0, 0, errors.Wrap(err, "rotation_time is invalid")
	}
	if keep, err = time.ParseDuration(cfg.MaxAge); err != nil {
		return 0, 0, errors.Wrap(err, "max_age is invalid")
	}
	return every, keep, nil
}

// Init 初始化全局日志，并设置为 slog 默认 logger
// 配置了 path 时同时写 stdout 和按时间切分的文件
func Init(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if cfg.toFile() {
		w, err := newRotateWriter(cfg)
		if err != nil {
			return fmt.Errorf("failed to configure file logger: %w", err)
		}
		out = io.MultiWriter(os.Stdout, w)
	}

	slog.SetDefault(slog.New(NewHandler(out, cfg)))
	return nil
}

// NewHandler 按配置创建 handler，时间字段统一格式
func NewHandler(out io.Writer, cfg Config) slog.Handler {
	level, _ := parseLevel(cfg.Level)
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: formatTime,
	}

	if strings.EqualFold(cfg.Format, "json") {
		return slog.NewJSONHandler(out, opts)
	}
	return slog.NewTextHandler(out, opts)
}

func formatTime(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.TimeKey {
		return a
	}
	if t, ok := a.Value.Any().(time.Time); ok {
		return slog.String(a.Key, t.Format(timeLayout))
	}
	return a
}

func newRotateWriter(cfg Config) (io.Writer, error) {
	every, keep, err := cfg.rotation()
	if err != nil {
		return nil, err
	}

	pattern := cfg.DefaultPattern
	if pattern == "" {
		pattern = defaultPattern
	}

	return rotatelogs.New(
		filepath.Join(cfg.Path, pattern),
		rotatelogs.WithLinkName(filepath.Join(cfg.Path, "current.log")),
		rotatelogs.WithRotationTime(every),
		rotatelogs.WithMaxAge(keep),
	)
}

// parseLevel 接受 debug/info/warn/error，大小写不敏感；空值视为 info
func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	switch strings.ToLower(s) {
	case "debug", "info", "warn", "error":
	default:
		return slog.LevelInfo, errors.Errorf("invalid level: %s", s)
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, errors.Wrapf(err, "invalid level: %s", s)
	}
	return level, nil
}

// Logger 返回带 module 字段的 logger
func Logger(module string) *slog.Logger {
	return slog.Default().With("module", module)
}

// Discard 返回丢弃所有输出的 logger，测试中使用
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
