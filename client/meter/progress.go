package meter

import (
	"fmt"
	"log/slog"
	"time"
)

// progressLog emits transfer progress at most once per second and
// once more when the transfer completes.
type progressLog struct {
	logger   *slog.Logger
	total    int64
	start    time.Time
	lastLog  time.Time
	finished bool
}

func (pl *progressLog) update(transferred int64) {
	if pl.finished {
		return
	}

	if pl.total > 0 && transferred >= pl.total {
		pl.finished = true
		pl.log("transfer complete", transferred)
		return
	}

	if time.Since(pl.lastLog) >= time.Second {
		pl.lastLog = time.Now()
		pl.log("transferring", transferred)
	}
}

func (pl *progressLog) log(msg string, transferred int64) {
	elapsed := time.Since(pl.start)
	p := Progress{Read: transferred, Expected: pl.total}

	pl.logger.Info(msg,
		"progress", fmt.Sprintf("%.1f%%", p.Percent()),
		"elapsed", elapsed.Round(time.Millisecond),
		"transferred", transferred,
		"total", pl.total,
		"mbps", fmt.Sprintf("%.2f", float64(transferred)/elapsed.Seconds()/(1024*1024)),
	)
}
