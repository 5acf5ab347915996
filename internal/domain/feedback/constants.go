package feedback

const (
	StatusDraft     = "draft"
	StatusSubmitted = "submitted"

	RatingTrackingBelow    = "tracking_below"
	RatingTrackingExpected = "tracking_expected"
	RatingTrackingAbove    = "tracking_above"
)

var Ratings = []string{RatingTrackingBelow, RatingTrackingExpected, RatingTrackingAbove}
