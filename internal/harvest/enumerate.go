package harvest

import (
	"iter"

	"github.com/sells-group/mindshare-cli/internal/model"
)

// sortDirections is the order sort directions are enumerated in:
// descending first, then ascending.
var sortDirections = [...]bool{false, true}

// Enumerate lazily yields every (company, period, direction, page) task.
// Pages run 1..maxPage; pages past the real end come back empty.
func Enumerate(companies []string, periods []model.Period, maxPage int) iter.Seq[model.Task] {
	return func(yield func(model.Task) bool) {
		for _, company := range companies {
			for _, period := range periods {
				for _, ascending := range sortDirections {
					for page := 1; page <= maxPage; page++ {
						task := model.Task{Company: company, Period: period, Page: page, Ascending: ascending}
						if !yield(task) {
							return
						}
					}
				}
			}
		}
	}
}

// TaskCount is the number of tasks Enumerate yields for the same inputs.
func TaskCount(companies []string, periods []model.Period, maxPage int) int {
	if maxPage < 0 {
		maxPage = 0
	}
	return len(companies) * len(periods) * len(sortDirections) * maxPage
}
