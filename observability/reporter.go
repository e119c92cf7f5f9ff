package observability

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// ReporterWorker logs the delivery counters and process self stats (RSS,
// CPU) at a fixed interval. Diagnostic only; losing a tick is harmless.
type ReporterWorker struct {
	log      *slog.Logger
	metrics  *SessionMetrics
	interval time.Duration
}

func NewReporterWorker(log *slog.Logger, metrics *SessionMetrics, interval time.Duration) *ReporterWorker {
	return &ReporterWorker{log: log, metrics: metrics, interval: interval}
}

func (w *ReporterWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			stats := w.metrics.Snapshot()
			rss, cpu := selfStats(proc)
			w.log.Info("Session health",
				"frames", stats.FramesReceived,
				"delivered", stats.MessagesDelivered,
				"duplicates", stats.DuplicatesDropped,
				"parse_failures", stats.ParseFailures,
				"reconnects", stats.Reconnects,
				"sent", stats.MessagesSent,
				"attachments", stats.AttachmentsSent,
				"rss_bytes", rss,
				"cpu_percent", cpu)
		}
	}
}

func selfStats(p *process.Process) (uint64, float64) {
	var rss uint64
	if memInfo, err := p.MemoryInfo(); err == nil {
		rss = memInfo.RSS
	}
	cpu, _ := p.CPUPercent()
	return rss, cpu
}
