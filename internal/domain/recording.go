package domain

import "leccap/internal/util"

// RecordingDescriptor is one lecture recording as listed on a course page,
// with its media URL already resolved. Title and Section are nil when the
// portal omits them.
type RecordingDescriptor struct {
	Title   *string `json:"title"`
	Section *string `json:"section"`
	// Date reads like "Mon 1/8 • 10:30 AM".
	Date string `json:"date"`
	URL  string `json:"url"`
}

// Clock returns the time of day embedded in Date.
func (r RecordingDescriptor) Clock() (string, error) {
	return util.ExtractClock(r.Date)
}
