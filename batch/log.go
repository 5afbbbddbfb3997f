package batch

import (
	"go.uber.org/zap"

	"github.com/geonexus/extractd/db"
)

// logListFailure logs a request listing failure. Listing races the database
// shutdown when the daemon stops mid-tick, so closed-database errors are
// demoted to debug.
func logListFailure(logger *zap.SugaredLogger, msg string, err error) {
	if db.IsDatabaseClosed(err) {
		logger.Debugw(msg, "error", err)
		return
	}
	logger.Errorw(msg, "error", err)
}
