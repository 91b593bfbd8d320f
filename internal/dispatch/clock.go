package dispatch

import "time"

// nowFn is swappable in tests.
var nowFn = time.Now
