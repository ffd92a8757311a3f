package stats

import (
	"math"

	"github.com/theirongolddev/reelstats/internal/model"
)

// percentileRank places a user among all users by watched item count.
// Nil when the rank is undefined: no watched items or a single user.
func percentileRank(r model.WatchedRank) *int {
	if r.UserCount == 0 || r.TotalUsers <= 1 {
		return nil
	}
	p := int(math.Round(100 * float64(r.FewerCount) / float64(r.TotalUsers)))
	p = max(1, min(p, 100))
	return &p
}
