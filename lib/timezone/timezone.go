package timezone

import "time"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("America/Los_Angeles")
	if err != nil {
		panic(err)
	}
}

// pin the timezone to the club chain's home region, deployment hosts
// are not guaranteed to run there and billing cutoffs are date-based
func Now() time.Time {
	return time.Now().In(Location)
}
