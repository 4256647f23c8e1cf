// SPDX-License-Identifier: Apache-2.0

package score

type Rating string

const (
	RatingExcellent    Rating = "Excellent"
	RatingVeryGood     Rating = "Very Good"
	RatingGood         Rating = "Good"
	RatingAverage      Rating = "Average"
	RatingBelowAverage Rating = "Below Average"
)

// ratingThresholds are inclusive lower bounds, highest first.
var ratingThresholds = []struct {
	min    float64
	rating Rating
}{
	{150, RatingExcellent},
	{110, RatingVeryGood},
	{80, RatingGood},
	{50, RatingAverage},
}

func RatingFor(overall float64) Rating {
	for _, t := range ratingThresholds {
		if overall >= t.min {
			return t.rating
		}
	}
	return RatingBelowAverage
}
