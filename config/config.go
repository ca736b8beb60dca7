// Package config reads the runtime settings of the render demo from the environment.
// Values come from OXY_* variables, optionally seeded from .env files; variables already present
// in the environment win over file values.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gobuffalo/envy"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
)

// Environment variable names.
const (
	EnvBackend    = "OXY_BACKEND"
	EnvWidth      = "OXY_WIDTH"
	EnvHeight     = "OXY_HEIGHT"
	EnvTitle      = "OXY_TITLE"
	EnvVSync      = "OXY_VSYNC"
	EnvTickRate   = "OXY_TICK_RATE"
	EnvFrames     = "OXY_FRAMES"
	EnvSpinWait   = "OXY_SPIN_WAIT"
	EnvArena      = "OXY_ARENA"
	EnvArenaChunk = "OXY_ARENA_CHUNK"
	EnvTrace      = "OXY_TRACE"
	EnvProfile    = "OXY_PROFILE"
	EnvLogLevel   = "OXY_LOG_LEVEL"
	EnvLogFormat  = "OXY_LOG_FORMAT"
	EnvTextures   = "OXY_TEXTURES"
)

// Config holds every setting the demo reads.
type Config struct {
	Backend renderer.BackendType
	Width   int
	Height  int
	Title   string

	// PresentMode is PresentModeVSync unless OXY_VSYNC is false.
	PresentMode renderer.PresentMode

	// TickRate caps the logic loop; 0 leaves it paced by presentation.
	TickRate float64
	// Frames stops the demo after that many frames; 0 runs until the window closes.
	Frames uint64

	SpinWait       bool
	Arena          bool
	ArenaChunkSize int

	// TracePath enables the command trace when non-empty.
	TracePath string
	Profile   bool

	LogLevel  logrus.Level
	LogFormat string

	// Textures are image files decoded and uploaded at startup.
	Textures []string
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Backend:        renderer.BackendTypeGL,
		Width:          1280,
		Height:         720,
		Title:          "oxy-render",
		PresentMode:    renderer.PresentModeVSync,
		Arena:          true,
		ArenaChunkSize: 64 << 10,
		LogLevel:       logrus.InfoLevel,
		LogFormat:      "text",
	}
}

// Load reads the configuration. Missing files are skipped; unparsable values are reported
// together.
//
// Parameters:
//   - files: .env files to seed variables from, in priority order
//
// Returns:
//   - Config: the configuration, defaults filled in
//   - error: every invalid value, joined
func Load(files ...string) (Config, error) {
	envy.Reload()

	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) > 0 {
		vars, err := godotenv.Read(present...)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read env files: %w", err)
		}
		for k, v := range vars {
			if _, ok := os.LookupEnv(k); !ok {
				envy.Set(k, v)
			}
		}
	}

	cfg := Default()
	p := &parser{}

	if v := envy.Get(EnvBackend, ""); v != "" {
		b, err := renderer.ParseBackendType(v)
		p.add(EnvBackend, err)
		if err == nil {
			cfg.Backend = b
		}
	}
	cfg.Width = p.intVar(EnvWidth, cfg.Width)
	cfg.Height = p.intVar(EnvHeight, cfg.Height)
	cfg.Title = envy.Get(EnvTitle, cfg.Title)
	if !p.boolVar(EnvVSync, true) {
		cfg.PresentMode = renderer.PresentModeUncapped
	}
	cfg.TickRate = p.floatVar(EnvTickRate, cfg.TickRate)
	cfg.Frames = uint64(p.intVar(EnvFrames, int(cfg.Frames)))
	cfg.SpinWait = p.boolVar(EnvSpinWait, cfg.SpinWait)
	cfg.Arena = p.boolVar(EnvArena, cfg.Arena)
	cfg.ArenaChunkSize = p.intVar(EnvArenaChunk, cfg.ArenaChunkSize)
	cfg.TracePath = envy.Get(EnvTrace, cfg.TracePath)
	cfg.Profile = p.boolVar(EnvProfile, cfg.Profile)
	if v := envy.Get(EnvLogLevel, ""); v != "" {
		level, err := logrus.ParseLevel(v)
		p.add(EnvLogLevel, err)
		if err == nil {
			cfg.LogLevel = level
		}
	}
	cfg.LogFormat = strings.ToLower(envy.Get(EnvLogFormat, cfg.LogFormat))
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		p.add(EnvLogFormat, fmt.Errorf("unknown log format %q", cfg.LogFormat))
		cfg.LogFormat = "text"
	}
	if v := envy.Get(EnvTextures, ""); v != "" {
		for _, path := range strings.Split(v, ",") {
			if path = strings.TrimSpace(path); path != "" {
				cfg.Textures = append(cfg.Textures, path)
			}
		}
	}

	if cfg.Width <= 0 || cfg.Height <= 0 {
		p.add(EnvWidth, fmt.Errorf("window size %dx%d must be positive", cfg.Width, cfg.Height))
	}
	return cfg, p.err()
}

// Logger builds a logrus logger from the level and format settings.
func (c Config) Logger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.LogLevel)
	if c.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

type parser struct {
	errs []error
}

func (p *parser) add(key string, err error) {
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
	}
}

func (p *parser) err() error {
	return errors.Join(p.errs...)
}

func (p *parser) intVar(key string, def int) int {
	v := envy.Get(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.add(key, err)
		return def
	}
	return n
}

func (p *parser) floatVar(key string, def float64) float64 {
	v := envy.Get(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.add(key, err)
		return def
	}
	return f
}

func (p *parser) boolVar(key string, def bool) bool {
	v := envy.Get(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.add(key, err)
		return def
	}
	return b
}
