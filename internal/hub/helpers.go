package hub

import "time"

// nowFunc is time.Now, indirected so tests could substitute a fixed clock
// if a future test needs deterministic ban expiry; no test currently does.
var nowFunc = time.Now

func banDuration(minutes int) time.Duration {
	if minutes <= 0 {
		minutes = 5
	}
	return time.Duration(minutes) * time.Minute
}
