package clock

import (
	"context"
	"time"
)

// Clock is the time source for persisted timestamps.
type Clock interface {
	Now(ctx context.Context) time.Time
}
