package http

import (
	"time"

	xutil "PolySwarm/pkg/util"
)

// ParseTime accepts RFC3339, RFC3339Nano, or unix seconds. Returns ok=false
// when none of those parse.
func ParseTime(s string) (time.Time, bool) { return xutil.ParseTime(s) }
