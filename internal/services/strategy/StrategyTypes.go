package strategy

import (
	"time"

	"CryptoBacktester/internal/models"
)

// Strategy is the capability the engine consumes: given the bar history up to
// and including the current bar, decide. The engine validates the returned
// signal's level ordering at the boundary and treats faults as hold, so
// implementations are not trusted to be well behaved.
type Strategy interface {
	Analyze(history []models.Bar) (*models.Signal, error)
}

// TagFunc optionally attaches attribution tags to any position opened on the
// bar at ts.
type TagFunc func(history []models.Bar, ts time.Time) map[string]string

// Hold is the no-action signal.
func Hold() *models.Signal {
	return &models.Signal{Direction: models.SideHold}
}
