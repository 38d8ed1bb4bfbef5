// Package telemetry provides per-subsystem logging for the Fontana node.
package telemetry

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jrick/logrotate/rotator"
	"github.com/sirupsen/logrus"
)

// Subsystem tags. One tag per long-running component in the node.
const (
	LEDG = "LEDG" // ledger
	SEQR = "SEQR" // sequencer
	DAPO = "DAPO" // DA poster
	BRDG = "BRDG" // bridge handler
	RCVR = "RCVR" // recovery
	STOR = "STOR" // storage
	MERK = "MERK" // merkle commitment
	NODE = "NODE" // top-level node wiring
)

var allTags = []string{LEDG, SEQR, DAPO, BRDG, RCVR, STOR, MERK, NODE}

// logWriter fans log bytes out to stdout and the rotating file.
type logWriter struct {
	rotator *rotator.Rotator
}

func (w *logWriter) Write(p []byte) (int, error) {
	os.Stdout.Write(p)
	if w.rotator != nil {
		w.rotator.Write(p)
	}
	return len(p), nil
}

var (
	logRotator        *rotator.Rotator
	subsystemBackends = map[string]*logrus.Logger{}
	subsystemLogs     = map[string]*logrus.Entry{}
)

// Subsystem loggers exist from package init so components can hold them in
// package-level vars; until Init runs they write plain text to stdout. Each
// subsystem has its own backend so levels can be tuned independently.
func init() {
	for _, tag := range allTags {
		backend := logrus.New()
		backend.SetOutput(os.Stdout)
		backend.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		subsystemBackends[tag] = backend
		subsystemLogs[tag] = backend.WithField("subsystem", tag)
	}
}

// Init wires up file rotation: every subsystem logger starts fanning out to
// both stdout and the rotating file. Call once during node startup.
func Init(logFile string) error {
	logDir, _ := filepath.Split(logFile)
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0700); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	r, err := rotator.New(logFile, 10*1024*1024, false, 3)
	if err != nil {
		return fmt.Errorf("failed to create file rotator: %w", err)
	}
	logRotator = r
	out := &logWriter{rotator: logRotator}
	for _, backend := range subsystemBackends {
		backend.SetOutput(out)
	}
	return nil
}

// InitDiscard silences every subsystem logger; used by tests that want no
// log output at all.
func InitDiscard() {
	for _, backend := range subsystemBackends {
		backend.SetOutput(io.Discard)
	}
}

// Get returns the logger for the given subsystem tag. Panics on an
// unrecognized tag — that is a startup-sequencing bug, not a runtime
// condition.
func Get(tag string) *logrus.Entry {
	log, ok := subsystemLogs[tag]
	if !ok {
		panic("telemetry: unknown subsystem tag " + tag)
	}
	return log
}

// SetLevel sets the level for one subsystem. Unknown subsystems are ignored.
func SetLevel(tag, level string) error {
	log, ok := subsystemLogs[tag]
	if !ok {
		return nil
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	log.Logger.SetLevel(lvl)
	return nil
}

// SetLevels sets the level for every subsystem.
func SetLevels(level string) error {
	for tag := range subsystemLogs {
		if err := SetLevel(tag, level); err != nil {
			return err
		}
	}
	return nil
}

// ParseAndSetDebugLevels parses a debug-level spec of the form "info" (apply
// to all subsystems) or "LEDG=debug,DAPO=trace" (per-subsystem) and applies it.
func ParseAndSetDebugLevels(spec string) error {
	if !strings.Contains(spec, ",") && !strings.Contains(spec, "=") {
		return SetLevels(spec)
	}
	for _, pair := range strings.Split(spec, ",") {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid debug level pair %q", pair)
		}
		tag, level := parts[0], parts[1]
		if _, ok := subsystemLogs[tag]; !ok {
			return fmt.Errorf("unknown subsystem %q, supported: %s", tag, strings.Join(SupportedSubsystems(), ", "))
		}
		if err := SetLevel(tag, level); err != nil {
			return err
		}
	}
	return nil
}

// SupportedSubsystems returns the sorted list of known subsystem tags.
func SupportedSubsystems() []string {
	tags := make([]string, 0, len(subsystemLogs))
	for tag := range subsystemLogs {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Close flushes and closes the underlying rotator, if any. Call on shutdown.
func Close() {
	if logRotator != nil {
		logRotator.Close()
	}
}
