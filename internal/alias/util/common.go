package util

import (
	"io"
	"log/slog"
)

// CloseFileFunc closes c and logs a failure instead of dropping it. Used in
// defers on read paths where the close error cannot change the result.
func CloseFileFunc(c io.Closer) {
	if err := c.Close(); err != nil {
		slog.Warn("close file:: error", "err", err)
	}
}
