package tool

import "time"

// nowFunc is indirected so tests can substitute a deterministic clock for
// duration assertions without sleeping.
var nowFunc = time.Now
