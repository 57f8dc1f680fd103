package utils

import (
	"log"
	"time"
)

// TimeNowBerlin returns the current time in the Europe/Berlin timezone, the
// home timezone of the portfolio (EUR settlement, XETRA primary venue).
func TimeNowBerlin() time.Time {
	return time.Now().In(GetBerlinTimeLocation())
}

// GetBerlinTimeLocation returns the Europe/Berlin location.
func GetBerlinTimeLocation() *time.Location {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		log.Fatal("Failed to load location", err)
	}
	return loc
}

// PrettyDate formats a timestamp for notifications in the portfolio timezone.
func PrettyDate(t time.Time) string {
	return t.In(GetBerlinTimeLocation()).Format("02 Jan 2006 15:04")
}
