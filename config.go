package silo

import (
	"log"
	"os"

	"github.com/BurntSushi/toml"
)

// Logger is the minimal structured-logging seam systems and the pipeline
// report through. A process-wide logger singleton would make the engine
// impossible to host more than once per process, so RegistryConfig injects
// one instead, defaulting to stdLogger when the caller supplies none.
type Logger interface {
	Info(msg string, kv ...any)
	Error(msg string, kv ...any)
}

// stdLogger is the zero-dependency default Logger, backed by the standard
// library's log package.
type stdLogger struct{ l *log.Logger }

func newStdLogger() *stdLogger {
	return &stdLogger{l: log.New(os.Stderr, "", log.LstdFlags)}
}

func (s *stdLogger) Info(msg string, kv ...any) { s.l.Println(append([]any{"INFO", msg}, kv...)...) }
func (s *stdLogger) Error(msg string, kv ...any) {
	s.l.Println(append([]any{"ERROR", msg}, kv...)...)
}

// RegistryConfig configures a Registry. It is instance-scoped rather than
// a package-level global — a library meant to host more than one Registry
// should not share mutable global configuration.
type RegistryConfig struct {
	// DestroyEmptyArchetypes controls whether a non-void archetype is
	// destroyed the moment its row count drops to zero as a side effect of
	// a migration or of DestroyEntity.
	DestroyEmptyArchetypes bool

	// Logger receives system-error reports from pipeline execution. If nil,
	// NewRegistry installs a stdLogger.
	Logger Logger

	// Profile, when set, makes Registry.ExecuteProfiled wrap its
	// Pipeline.Execute call in a github.com/pkg/profile session of the
	// requested kind ("cpu", "mem", or "" to disable). Pipeline.Execute
	// called directly is never profiled.
	Profile string
}

func (c RegistryConfig) withDefaults() RegistryConfig {
	if c.Logger == nil {
		c.Logger = newStdLogger()
	}
	return c
}

// fileConfig is the on-disk shape accepted by NewRegistryConfigFromFile.
type fileConfig struct {
	DestroyEmptyArchetypes bool   `toml:"destroy_empty_archetypes"`
	Profile                string `toml:"profile"`
}

// NewRegistryConfigFromFile loads a RegistryConfig from a TOML file, for
// hosts that want to externalize engine configuration (e.g.
// destroy_empty_archetypes) without recompiling. The Logger field is never
// populated from file and always falls back to the default.
func NewRegistryConfigFromFile(path string) (RegistryConfig, error) {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return RegistryConfig{}, err
	}
	return RegistryConfig{
		DestroyEmptyArchetypes: fc.DestroyEmptyArchetypes,
		Profile:                fc.Profile,
	}.withDefaults(), nil
}
