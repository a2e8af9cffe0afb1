package report

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/hashicorp/go-hclog"
	"github.com/ulikunitz/xz"
)

// DiffSurfaceName identifies the persistent diff report.
const DiffSurfaceName = "plugsync-diff"

// DiffLog is the persistent, append-only diff report. Lines are written
// verbatim, blank lines included. The file is opened lazily on the first
// append of a process, which also writes a run header.
type DiffLog struct {
	mu      sync.Mutex
	dir     string
	maxSize int64
	echo    io.Writer
	logger  hclog.Logger
	now     func() time.Time

	file *os.File
}

// DiffOption configures a DiffLog.
type DiffOption func(*DiffLog)

// WithEcho mirrors appended lines, highlighted as a diff, to w.
func WithEcho(w io.Writer) DiffOption {
	return func(d *DiffLog) { d.echo = w }
}

// WithMaxSize sets the rotation threshold. Zero or less disables rotation.
func WithMaxSize(n int64) DiffOption {
	return func(d *DiffLog) { d.maxSize = n }
}

// WithLogger sets the logger used for write failures.
func WithLogger(l hclog.Logger) DiffOption {
	return func(d *DiffLog) { d.logger = l }
}

// NewDiffLog creates a diff log stored under dir. Rotation is off unless
// WithMaxSize is given.
func NewDiffLog(dir string, opts ...DiffOption) *DiffLog {
	d := &DiffLog{
		dir:    dir,
		logger: hclog.NewNullLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Path returns the location of the log file.
func (d *DiffLog) Path() string {
	return filepath.Join(d.dir, DiffSurfaceName+".log")
}

// ArchivePath returns the location of the rotated, xz-compressed log.
func (d *DiffLog) ArchivePath() string {
	return d.Path() + ".1.xz"
}

// Append writes lines to the log. Write failures are logged, not returned.
func (d *DiffLog) Append(lines ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.open(); err != nil {
		d.logger.Error("failed to open diff log", "path", d.Path(), "error", err)
		return
	}

	var buf bytes.Buffer
	for _, line := range lines {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	if _, err := d.file.Write(buf.Bytes()); err != nil {
		d.logger.Error("failed to write diff log", "path", d.Path(), "error", err)
	}

	if d.echo != nil {
		for _, line := range lines {
			_, _ = io.WriteString(d.echo, highlight(line)+"\n")
		}
	}
}

// Close closes the underlying file, if it was opened.
func (d *DiffLog) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}

func (d *DiffLog) open() error {
	if d.file != nil {
		return nil
	}

	if err := os.MkdirAll(d.dir, 0o755); err != nil { // #nosec G301 - State directory needs standard permissions
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	if err := d.rotate(); err != nil {
		// A failed rotation only means the log keeps growing.
		d.logger.Warn("failed to rotate diff log", "error", err)
	}

	f, err := os.OpenFile(d.Path(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}

	header := fmt.Sprintf("==> %s %s", DiffSurfaceName, d.now().Format(time.RFC3339))
	if _, err := io.WriteString(f, header+"\n"); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write diff log header: %w", err)
	}
	d.file = f
	if d.echo != nil {
		_, _ = io.WriteString(d.echo, color.New(color.Bold).Sprint(header)+"\n")
	}
	return nil
}

// rotate compresses the current log into the archive when it exceeds maxSize.
func (d *DiffLog) rotate() error {
	if d.maxSize <= 0 {
		return nil
	}

	info, err := os.Stat(d.Path())
	if err != nil || info.Size() <= d.maxSize {
		return nil
	}

	data, err := os.ReadFile(d.Path())
	if err != nil {
		return fmt.Errorf("failed to read diff log: %w", err)
	}

	out, err := os.OpenFile(d.ArchivePath(), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer out.Close()

	xzw, err := xz.NewWriter(out)
	if err != nil {
		return fmt.Errorf("failed to create xz writer: %w", err)
	}
	if _, err := xzw.Write(data); err != nil {
		return fmt.Errorf("failed to compress diff log: %w", err)
	}
	if err := xzw.Close(); err != nil {
		return fmt.Errorf("failed to finish archive: %w", err)
	}

	return os.Truncate(d.Path(), 0)
}

var (
	addColour    = color.New(color.FgGreen)
	removeColour = color.New(color.FgRed)
	hunkColour   = color.New(color.FgCyan)
	commitColour = color.New(color.FgYellow)
)

// highlight applies diff syntax colouring to one line.
func highlight(line string) string {
	switch {
	case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		return color.New(color.Bold).Sprint(line)
	case strings.HasPrefix(line, "+"):
		return addColour.Sprint(line)
	case strings.HasPrefix(line, "-"):
		return removeColour.Sprint(line)
	case strings.HasPrefix(line, "@@"):
		return hunkColour.Sprint(line)
	case strings.HasPrefix(line, "* "), strings.HasPrefix(line, "commit "):
		return commitColour.Sprint(line)
	default:
		return line
	}
}
