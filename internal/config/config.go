// Package config loads handcursor settings from defaults, a YAML file, a
// .env file, HANDCURSOR_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ayusman/handcursor/internal/logger"
	"github.com/ayusman/handcursor/internal/pointer"
)

// EnvPrefix is prepended to every environment override, e.g.
// HANDCURSOR_POINTER_ZOOM.
const EnvPrefix = "HANDCURSOR"

// ErrUnknownKey is returned by Set for keys that cannot change at runtime.
var ErrUnknownKey = errors.New("unknown setting")

// Config is the complete application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" json:"server"`
	DataDir  string         `mapstructure:"data_dir" json:"data_dir"`
	Camera   CameraConfig   `mapstructure:"camera" json:"camera"`
	Motion   MotionConfig   `mapstructure:"motion" json:"motion"`
	Pointer  PointerConfig  `mapstructure:"pointer" json:"pointer"`
	Control  ControlConfig  `mapstructure:"control" json:"control"`
	Tracking TrackingConfig `mapstructure:"tracking" json:"tracking"`
	Detector DetectorConfig `mapstructure:"detector" json:"detector"`
	Pose     PoseConfig     `mapstructure:"pose" json:"pose"`
	Log      LogConfig      `mapstructure:"log" json:"log"`
	Record   RecordConfig   `mapstructure:"record" json:"record"`
}

type ServerConfig struct {
	Addr      string `mapstructure:"addr" json:"addr"`
	StaticDir string `mapstructure:"static_dir" json:"static_dir"`
}

type CameraConfig struct {
	Device int `mapstructure:"device" json:"device"`
	Width  int `mapstructure:"width" json:"width"`
	Height int `mapstructure:"height" json:"height"`
	FPS    int `mapstructure:"fps" json:"fps"`
}

// MotionConfig controls the idle/active frame-rate switch.
type MotionConfig struct {
	// Threshold is the percentage of changed pixels counted as motion.
	Threshold float64 `mapstructure:"threshold" json:"threshold"`
	IdleFPS   int     `mapstructure:"idle_fps" json:"idle_fps"`
	// IdleTimeoutMs is how long without motion before dropping to IdleFPS.
	IdleTimeoutMs int `mapstructure:"idle_timeout" json:"idle_timeout"`
}

// PointerConfig describes the color-space to screen mapping. A zero screen
// size means "ask the display".
type PointerConfig struct {
	Zoom         float64 `mapstructure:"zoom" json:"zoom"`
	SourceWidth  int     `mapstructure:"source_width" json:"source_width"`
	SourceHeight int     `mapstructure:"source_height" json:"source_height"`
	ScreenWidth  int     `mapstructure:"screen_width" json:"screen_width"`
	ScreenHeight int     `mapstructure:"screen_height" json:"screen_height"`
}

// Mapper builds a pointer mapper for the given screen size.
func (p PointerConfig) Mapper(screenWidth, screenHeight int) pointer.Mapper {
	return pointer.Mapper{
		Zoom:   p.Zoom,
		Source: pointer.Size{Width: float64(p.SourceWidth), Height: float64(p.SourceHeight)},
		Target: pointer.Size{Width: float64(screenWidth), Height: float64(screenHeight)},
	}
}

// ControlConfig is the "enable control" switch. DryRun logs intents
// instead of moving the real cursor.
type ControlConfig struct {
	Enabled bool `mapstructure:"enabled" json:"enabled"`
	DryRun  bool `mapstructure:"dry_run" json:"dry_run"`
}

type TrackingConfig struct {
	// Mirror flips X so moving the hand right moves the cursor right when
	// facing the camera.
	Mirror bool `mapstructure:"mirror" json:"mirror"`
}

type DetectorConfig struct {
	MaxHands              int     `mapstructure:"max_hands" json:"max_hands"`
	MinConfidence         float64 `mapstructure:"min_confidence" json:"min_confidence"`
	MinTrackingConfidence float64 `mapstructure:"min_tracking_confidence" json:"min_tracking_confidence"`
	ScriptPath            string  `mapstructure:"script_path" json:"script_path"`
}

type PoseConfig struct {
	// Tolerance is the maximum mean landmark distance for a pose match.
	Tolerance float64 `mapstructure:"tolerance" json:"tolerance"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" json:"level"`
	Pretty bool   `mapstructure:"pretty" json:"pretty"`
}

type RecordConfig struct {
	// Path is where processed frames are recorded. Empty disables recording.
	Path string `mapstructure:"path" json:"path"`
}

// Default returns the built-in configuration.
func Default() Config {
	dataDir := ".handcursor"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".handcursor")
	}

	return Config{
		Server:  ServerConfig{Addr: "127.0.0.1:8080"},
		DataDir: dataDir,
		Camera:  CameraConfig{Device: 0, Width: 640, Height: 480, FPS: 30},
		Motion:  MotionConfig{Threshold: 1.0, IdleFPS: 5, IdleTimeoutMs: 2000},
		Pointer: PointerConfig{
			Zoom:         pointer.DefaultZoom,
			SourceWidth:  pointer.DefaultSourceWidth,
			SourceHeight: pointer.DefaultSourceHeight,
		},
		Control:  ControlConfig{Enabled: false},
		Tracking: TrackingConfig{Mirror: true},
		Detector: DetectorConfig{MaxHands: 2, MinConfidence: 0.5, MinTrackingConfidence: 0.5},
		Pose:     PoseConfig{Tolerance: 0.35},
		Log:      LogConfig{Level: "info"},
	}
}

// Validate reports the first invalid value.
func (c Config) Validate() error {
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		return fmt.Errorf("camera resolution %dx%d: must be positive", c.Camera.Width, c.Camera.Height)
	}
	if c.Camera.FPS <= 0 {
		return fmt.Errorf("camera fps %d: must be positive", c.Camera.FPS)
	}
	if c.Motion.IdleFPS <= 0 || c.Motion.IdleFPS > c.Camera.FPS {
		return fmt.Errorf("motion idle_fps %d: must be between 1 and camera fps", c.Motion.IdleFPS)
	}
	if c.Pointer.ScreenWidth < 0 || c.Pointer.ScreenHeight < 0 {
		return fmt.Errorf("pointer screen size %dx%d: must not be negative", c.Pointer.ScreenWidth, c.Pointer.ScreenHeight)
	}
	// Screen size may be auto-detected later; validate the rest of the mapper
	// against a placeholder target.
	if err := c.Pointer.Mapper(1, 1).Validate(); err != nil {
		return err
	}
	if c.Detector.MaxHands < 1 {
		return fmt.Errorf("detector max_hands %d: must be at least 1", c.Detector.MaxHands)
	}
	if c.Pose.Tolerance <= 0 {
		return fmt.Errorf("pose tolerance %v: must be positive", c.Pose.Tolerance)
	}
	return nil
}

// DatabasePath is the SQLite file inside the data directory.
func (c Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "handcursor.db")
}

// RuntimeKeys are the settings that can be changed while running, through
// the settings API or the tray.
var RuntimeKeys = []string{
	"pointer.zoom",
	"control.enabled",
	"control.dry_run",
	"tracking.mirror",
	"pose.tolerance",
}

// Set applies a runtime setting given as a string.
func (c *Config) Set(key, value string) error {
	switch key {
	case "pointer.zoom":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		next := c.Pointer
		next.Zoom = f
		if err := next.Mapper(1, 1).Validate(); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		c.Pointer = next
	case "control.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		c.Control.Enabled = b
	case "control.dry_run":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		c.Control.DryRun = b
	case "tracking.mirror":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		c.Tracking.Mirror = b
	case "pose.tolerance":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if f <= 0 {
			return fmt.Errorf("%s: must be positive", key)
		}
		c.Pose.Tolerance = f
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return nil
}

// Get returns the string form of a runtime setting.
func (c Config) Get(key string) (string, error) {
	switch key {
	case "pointer.zoom":
		return strconv.FormatFloat(c.Pointer.Zoom, 'f', -1, 64), nil
	case "control.enabled":
		return strconv.FormatBool(c.Control.Enabled), nil
	case "control.dry_run":
		return strconv.FormatBool(c.Control.DryRun), nil
	case "tracking.mirror":
		return strconv.FormatBool(c.Tracking.Mirror), nil
	case "pose.tolerance":
		return strconv.FormatFloat(c.Pose.Tolerance, 'f', -1, 64), nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
}

// Loader reads the configuration through viper and keeps the instance
// around so command-line flags can be bound and the file watched.
type Loader struct {
	v        *viper.Viper
	envFile  string
	explicit bool

	mu       sync.Mutex
	watching bool
}

// NewLoader prepares a loader. configFile and envFile may be empty, in which
// case ~/.handcursor/config.yaml and ./.env are used when present.
func NewLoader(configFile, envFile string) *Loader {
	v := viper.New()
	setDefaults(v, Default())

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".handcursor"))
		}
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if envFile == "" {
		envFile = ".env"
	}

	return &Loader{v: v, envFile: envFile, explicit: configFile != ""}
}

// Viper exposes the underlying instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load reads every source and returns the validated configuration.
func (l *Loader) Load() (Config, error) {
	// godotenv never overrides variables that are already set.
	if err := godotenv.Load(l.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", l.envFile, err)
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		missing := errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
		if !missing || l.explicit {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	return l.decode()
}

// ConfigFile returns the file in use, or "" when running on defaults.
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}

func (l *Loader) decode() (Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Watch calls fn with the re-read configuration each time the config file
// is written. Invalid edits are logged and ignored. Only the first call
// starts watching.
func (l *Loader) Watch(fn func(Config)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.watching || l.v.ConfigFileUsed() == "" {
		return
	}
	l.watching = true

	log := logger.WithComponent("config")
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := l.decode()
		if err != nil {
			log.Warn().Err(err).Str("file", e.Name).Msg("ignoring config change")
			return
		}
		log.Info().Str("file", e.Name).Msg("config reloaded")
		fn(cfg)
	})
	l.v.WatchConfig()
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.static_dir", d.Server.StaticDir)
	v.SetDefault("data_dir", d.DataDir)

	v.SetDefault("camera.device", d.Camera.Device)
	v.SetDefault("camera.width", d.Camera.Width)
	v.SetDefault("camera.height", d.Camera.Height)
	v.SetDefault("camera.fps", d.Camera.FPS)

	v.SetDefault("motion.threshold", d.Motion.Threshold)
	v.SetDefault("motion.idle_fps", d.Motion.IdleFPS)
	v.SetDefault("motion.idle_timeout", d.Motion.IdleTimeoutMs)

	v.SetDefault("pointer.zoom", d.Pointer.Zoom)
	v.SetDefault("pointer.source_width", d.Pointer.SourceWidth)
	v.SetDefault("pointer.source_height", d.Pointer.SourceHeight)
	v.SetDefault("pointer.screen_width", d.Pointer.ScreenWidth)
	v.SetDefault("pointer.screen_height", d.Pointer.ScreenHeight)

	v.SetDefault("control.enabled", d.Control.Enabled)
	v.SetDefault("control.dry_run", d.Control.DryRun)
	v.SetDefault("tracking.mirror", d.Tracking.Mirror)

	v.SetDefault("detector.max_hands", d.Detector.MaxHands)
	v.SetDefault("detector.min_confidence", d.Detector.MinConfidence)
	v.SetDefault("detector.min_tracking_confidence", d.Detector.MinTrackingConfidence)
	v.SetDefault("detector.script_path", d.Detector.ScriptPath)

	v.SetDefault("pose.tolerance", d.Pose.Tolerance)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.pretty", d.Log.Pretty)
	v.SetDefault("record.path", d.Record.Path)
}
