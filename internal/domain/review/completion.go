package review

import "math"

// CompletionPercentage returns round(100 * completed / total). An empty set is
// 0% complete, not a division error.
func CompletionPercentage(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(completed) / float64(total)))
}
