package utils

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/cheggaaa/pb/v3"
)

// ProgressTracker renders a transfer bar and keeps running statistics for
// uploads and downloads.
type ProgressTracker struct {
	bar       *pb.ProgressBar
	quiet     bool
	label     string
	out       io.Writer
	startTime time.Time
	current   int64
	mutex     sync.Mutex

	lastUpdate   time.Time
	lastBytes    int64
	speedSamples []float64
	maxSamples   int
}

// TransferSummary contains final transfer statistics
type TransferSummary struct {
	Label        string
	TotalBytes   int64
	TotalTime    time.Duration
	AverageSpeed float64 // bytes per second
	PeakSpeed    float64 // bytes per second
	Filename     string
}

// NewProgressTracker creates a tracker for a transfer of total bytes. A total
// of zero or less renders an open-ended counter. The bar is drawn on stderr.
func NewProgressTracker(total int64, quiet bool, label string) *ProgressTracker {
	return newProgressTracker(total, quiet, label, os.Stderr)
}

func newProgressTracker(total int64, quiet bool, label string, out io.Writer) *ProgressTracker {
	now := time.Now()
	tracker := &ProgressTracker{
		quiet:        quiet,
		label:        label,
		out:          out,
		startTime:    now,
		lastUpdate:   now,
		speedSamples: make([]float64, 0),
		maxSamples:   10,
	}

	if !quiet {
		tmpl := `{{string . "prefix"}}{{counters . }} {{bar . }} {{percent . }} {{speed . }} {{rtime . "ETA %s"}}`
		bar := pb.New64(total).SetTemplate(pb.ProgressBarTemplate(tmpl))
		bar.SetWriter(out)
		bar.Set(pb.Bytes, true)
		bar.Set(pb.SIBytesPrefix, true)
		bar.Set("prefix", label+": ")
		tracker.bar = bar.Start()
	}

	return tracker
}

// WrapReader returns a reader that reports every byte read to the tracker.
func (p *ProgressTracker) WrapReader(r io.Reader) io.Reader {
	return &progressReader{r: r, tracker: p}
}

// WrapWriter returns a writer that reports every byte written to the tracker.
func (p *ProgressTracker) WrapWriter(w io.Writer) io.Writer {
	return &progressWriter{w: w, tracker: p}
}

// Add records n more transferred bytes.
func (p *ProgressTracker) Add(n int64) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.update(p.current + n)
}

func (p *ProgressTracker) update(current int64) {
	now := time.Now()
	p.current = current

	if p.bar != nil {
		p.bar.SetCurrent(current)
	}

	// sample at most every 100ms
	timeDiff := now.Sub(p.lastUpdate).Seconds()
	if timeDiff > 0.1 {
		currentSpeed := float64(current-p.lastBytes) / timeDiff

		p.speedSamples = append(p.speedSamples, currentSpeed)
		if len(p.speedSamples) > p.maxSamples {
			p.speedSamples = p.speedSamples[1:]
		}

		p.lastUpdate = now
		p.lastBytes = current
	}
}

// Finish completes the progress bar and returns the transfer summary
func (p *ProgressTracker) Finish(filename string) *TransferSummary {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	totalTime := time.Since(p.startTime)

	if p.bar != nil {
		p.bar.Finish()
	}

	var averageSpeed float64
	if totalTime > 0 {
		averageSpeed = float64(p.current) / totalTime.Seconds()
	}

	var peakSpeed float64
	for _, speed := range p.speedSamples {
		if speed > peakSpeed {
			peakSpeed = speed
		}
	}

	summary := &TransferSummary{
		Label:        p.label,
		TotalBytes:   p.current,
		TotalTime:    totalTime,
		AverageSpeed: averageSpeed,
		PeakSpeed:    peakSpeed,
		Filename:     filename,
	}

	if !p.quiet {
		p.displaySummary(summary)
	}

	return summary
}

func (p *ProgressTracker) displaySummary(summary *TransferSummary) {
	fmt.Fprintf(p.out, "\n%s completed: %s in %v (%s/s)\n",
		summary.Label,
		formatBytes(summary.TotalBytes),
		summary.TotalTime.Round(time.Millisecond),
		formatBytes(int64(summary.AverageSpeed)))
	if summary.Filename != "" {
		fmt.Fprintf(p.out, "Saved to: %s\n", summary.Filename)
	}
}

type progressReader struct {
	r       io.Reader
	tracker *ProgressTracker
}

func (pr *progressReader) Read(b []byte) (int, error) {
	n, err := pr.r.Read(b)
	if n > 0 {
		pr.tracker.Add(int64(n))
	}
	return n, err
}

type progressWriter struct {
	w       io.Writer
	tracker *ProgressTracker
}

func (pw *progressWriter) Write(b []byte) (int, error) {
	n, err := pw.w.Write(b)
	if n > 0 {
		pw.tracker.Add(int64(n))
	}
	return n, err
}

// FormatBytes formats a byte count as a human-readable string
func FormatBytes(bytes int64) string {
	return formatBytes(bytes)
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
