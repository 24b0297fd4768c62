package launcher

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"
)

// PollPIDFilePeriod is the interval between pid_file existence checks. This
// is the one suspension point the design notes allow to remain a poll
// loop, since a filesystem wait has no portable notify primitive here.
const PollPIDFilePeriod = 50 * time.Millisecond

// ReadPIDFile polls path until it exists and parses as an integer PID,
// returning it. On ctx cancellation it returns ctx.Err(). A malformed
// (non-integer) pid_file is reported as an error so the caller can fall
// back to the direct spawn PID per spec.md §4.3.
func ReadPIDFile(ctx context.Context, path string) (int, error) {
	ticker := time.NewTicker(PollPIDFilePeriod)
	defer ticker.Stop()

	for {
		data, err := os.ReadFile(path)
		if err == nil {
			pid, perr := strconv.Atoi(strings.TrimSpace(string(data)))
			if perr != nil {
				return 0, perr
			}

			return pid, nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}
