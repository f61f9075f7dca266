// Package telemetry records and broadcasts live chassis state: a CSV
// logger for offline analysis, and a websocket server for live
// dashboards.
package telemetry

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/autolabor/pm1sdk/internal/odometry"
)

// Snapshot is one tick of chassis state, as read from the live
// session.
type Snapshot struct {
	Pose       odometry.Pose
	LeftSpeed  float64
	RightSpeed float64
	Rudder     float64
	TargetV    float64
	TargetW    float64
}

// Logger records timestamped chassis snapshots to CSV files with
// automatic rotation.
type Logger struct {
	mu       sync.Mutex
	dir      string
	interval time.Duration
	enabled  bool

	file   *os.File
	writer *csv.Writer
	lastTs time.Time
	rows   int
}

// Config holds logger configuration.
type Config struct {
	Enabled    bool
	Path       string
	IntervalMs int
}

const maxRowsPerFile = 100_000

var csvHeader = []string{
	"timestamp", "pose_x", "pose_y", "pose_theta",
	"left_speed", "right_speed", "rudder",
	"target_v", "target_w",
}

// New creates a new Logger.
func New(cfg Config) *Logger {
	if cfg.Path == "" {
		cfg.Path = "/var/log/pm1sdk"
	}
	interval := time.Duration(cfg.IntervalMs) * time.Millisecond
	if interval < 20*time.Millisecond {
		interval = 100 * time.Millisecond
	}
	return &Logger{dir: cfg.Path, interval: interval, enabled: cfg.Enabled}
}

// SetEnabled allows toggling logging at runtime.
func (l *Logger) SetEnabled(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = on
	if !on && l.file != nil {
		l.closeFile()
	}
}

// IsEnabled returns whether logging is active.
func (l *Logger) IsEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled
}

// Record writes a snapshot if the minimum interval has elapsed.
func (l *Logger) Record(s Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled {
		return
	}

	now := time.Now()
	if now.Sub(l.lastTs) < l.interval {
		return
	}
	l.lastTs = now

	if l.writer == nil || l.rows >= maxRowsPerFile {
		if err := l.rotateFile(now); err != nil {
			log.Printf("[telemetry] rotate failed: %v", err)
			return
		}
	}

	row := []string{
		now.Format(time.RFC3339Nano),
		fmt.Sprintf("%.4f", s.Pose.X),
		fmt.Sprintf("%.4f", s.Pose.Y),
		fmt.Sprintf("%.4f", s.Pose.Theta),
		fmt.Sprintf("%.4f", s.LeftSpeed),
		fmt.Sprintf("%.4f", s.RightSpeed),
		fmt.Sprintf("%.4f", s.Rudder),
		fmt.Sprintf("%.4f", s.TargetV),
		fmt.Sprintf("%.4f", s.TargetW),
	}
	if err := l.writer.Write(row); err != nil {
		log.Printf("[telemetry] write failed: %v", err)
		return
	}
	l.writer.Flush()
	l.rows++
}

// Close flushes and closes the current log file.
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closeFile()
}

func (l *Logger) rotateFile(now time.Time) error {
	l.closeFile()

	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", l.dir, err)
	}

	filename := fmt.Sprintf("pm1_%s.csv", now.Format("2006-01-02_150405"))
	path := filepath.Join(l.dir, filename)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	l.file = f
	l.writer = csv.NewWriter(f)
	l.rows = 0

	if err := l.writer.Write(csvHeader); err != nil {
		return err
	}
	l.writer.Flush()

	log.Printf("[telemetry] opened %s", path)
	return nil
}

func (l *Logger) closeFile() {
	if l.writer != nil {
		l.writer.Flush()
		l.writer = nil
	}
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}
