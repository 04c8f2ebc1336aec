package repositories

import (
	"sort"

	"goldenminutes/models"
)

// SortResponses orders responses closest first. Responses without a distance
// go last; ties fall back to the most recently notified.
func SortResponses(responses []models.EmergencyResponse) {
	sort.SliceStable(responses, func(i, j int) bool {
		a, b := responses[i], responses[j]
		switch {
		case a.DistanceKm == nil && b.DistanceKm == nil:
			return a.NotifiedAt.After(b.NotifiedAt)
		case a.DistanceKm == nil:
			return false
		case b.DistanceKm == nil:
			return true
		case *a.DistanceKm != *b.DistanceKm:
			return *a.DistanceKm < *b.DistanceKm
		default:
			return a.NotifiedAt.After(b.NotifiedAt)
		}
	})
}
