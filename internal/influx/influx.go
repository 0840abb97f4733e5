package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"

	"github.com/hunteroverlay/extension/internal/config"
	"github.com/hunteroverlay/extension/internal/overlay"
)

// Measurement is the line protocol measurement written for each interval.
const Measurement = "overlay_performance"

// ExtensionTag is the value of the "extension" tag carried by every point.
const ExtensionTag = "trap_overlay"

var ErrDisabled = errors.New("influx export disabled")

// Writer aggregates frame statistics and writes one point per interval,
// either to InfluxDB or, when the server is unreachable, to a gzip file of
// line protocol that can be imported later.
type Writer struct {
	cfg        config.InfluxConfig
	log        zerolog.Logger
	backupPath string
	now        func() time.Time

	client influxdb2.Client
	api    influxdb2_api.WriteAPI

	backupFile *os.File
	backup     *gzip.Writer

	mu     sync.Mutex
	window window
}

type window struct {
	start    time.Time
	frames   int
	emitted  int
	tracked  int
	skipped  map[string]int
	duration time.Duration
}

// NewWriter creates a writer. Connect must be called before frames are recorded.
func NewWriter(cfg config.InfluxConfig, log zerolog.Logger, backupPath string) *Writer {
	return &Writer{
		cfg:        cfg,
		log:        log.With().Str("component", "influx").Logger(),
		backupPath: backupPath,
		now:        time.Now,
	}
}

// Connect pings the server and prepares the bucket. An unreachable server
// is not an error: the writer falls back to the backup file.
func (w *Writer) Connect(ctx context.Context) error {
	if !w.cfg.Enabled {
		return ErrDisabled
	}

	w.client = influxdb2.NewClientWithOptions(
		w.cfg.URL,
		w.cfg.Token,
		influxdb2.DefaultOptions().SetBatchSize(100).SetFlushInterval(1000),
	)

	running, err := w.client.Ping(ctx)
	if err != nil || !running {
		w.log.Warn().Err(err).Str("backupPath", w.backupPath).
			Msg("InfluxDB unreachable, writing frame stats to backup file")
		w.client.Close()
		w.client = nil
		return w.openBackup()
	}

	if err := w.ensureBucket(ctx); err != nil {
		return err
	}

	w.api = w.client.WriteAPI(w.cfg.Org, w.cfg.Bucket)
	go func(errs <-chan error) {
		for writeErr := range errs {
			w.log.Error().Err(writeErr).Str("bucket", w.cfg.Bucket).Msg("Error sending data to InfluxDB")
		}
	}(w.api.Errors())

	w.log.Info().Str("url", w.cfg.URL).Str("bucket", w.cfg.Bucket).Msg("InfluxDB client initialized")
	return nil
}

func (w *Writer) openBackup() error {
	if w.backup != nil {
		return nil
	}
	file, err := os.OpenFile(w.backupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	w.backupFile = file
	w.backup = gzip.NewWriter(file)
	return nil
}

func (w *Writer) ensureBucket(ctx context.Context) error {
	orgs := w.client.OrganizationsAPI()
	org, err := orgs.FindOrganizationByName(ctx, w.cfg.Org)
	if err != nil {
		w.log.Info().Str("org", w.cfg.Org).Msg("Organization not found, creating")
		org, err = orgs.CreateOrganizationWithName(ctx, w.cfg.Org)
		if err != nil {
			return fmt.Errorf("creating organization %s: %w", w.cfg.Org, err)
		}
	}

	buckets := w.client.BucketsAPI()
	if _, err := buckets.FindBucketByName(ctx, w.cfg.Bucket); err == nil {
		return nil
	}

	w.log.Info().Str("bucket", w.cfg.Bucket).Msg("Bucket not found, creating")
	rule := domain.RetentionRuleTypeExpire
	_, err = buckets.CreateBucketWithName(ctx, org, w.cfg.Bucket, domain.RetentionRule{
		Type:         &rule,
		EverySeconds: 60 * 60 * 24 * 30,
	})
	if err != nil {
		return fmt.Errorf("creating bucket %s: %w", w.cfg.Bucket, err)
	}
	return nil
}

// Record adds one frame to the current window and writes the window once
// the configured interval has elapsed.
func (w *Writer) Record(stats overlay.FrameStats, took time.Duration) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	if w.window.start.IsZero() {
		w.window = window{start: now, skipped: map[string]int{}}
	}

	w.window.frames++
	w.window.emitted += stats.Emitted
	w.window.tracked = stats.Tracked
	w.window.duration += took
	for reason, n := range stats.Skipped {
		w.window.skipped[reason] += n
	}

	if now.Sub(w.window.start) < w.cfg.Interval {
		return nil
	}
	return w.flushLocked(now)
}

// Flush writes the current window regardless of the interval.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked(w.now())
}

func (w *Writer) flushLocked(now time.Time) error {
	if w.window.frames == 0 {
		return nil
	}
	point := framePoint(w.window, now)
	w.window = window{}
	return w.writePoint(point)
}

func framePoint(win window, at time.Time) *influxdb2_write.Point {
	fields := map[string]any{
		"frames":         win.frames,
		"commands":       win.emitted,
		"tracked":        win.tracked,
		"avg_frame_usec": win.duration.Microseconds() / int64(win.frames),
	}

	reasons := make([]string, 0, len(win.skipped))
	for reason := range win.skipped {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	total := 0
	for _, reason := range reasons {
		fields["skipped_"+reason] = win.skipped[reason]
		total += win.skipped[reason]
	}
	fields["skipped"] = total

	return influxdb2_write.NewPoint(Measurement, map[string]string{"extension": ExtensionTag}, fields, at)
}

func (w *Writer) writePoint(point *influxdb2_write.Point) error {
	if w.api != nil {
		w.api.WritePoint(point)
		return nil
	}
	if w.backup == nil {
		return errors.New("influxDB client not initialized and backup writer not available")
	}

	// the line protocol already ends in a newline
	line := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := w.backup.Write([]byte(line)); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// Close writes any pending window and releases the client or backup file.
func (w *Writer) Close() error {
	errs := []error{w.Flush()}

	if w.api != nil {
		w.api.Flush()
	}
	if w.client != nil {
		w.client.Close()
	}
	if w.backup != nil {
		errs = append(errs, w.backup.Close(), w.backupFile.Close())
		w.backup = nil
		w.backupFile = nil
	}
	return errors.Join(errs...)
}
