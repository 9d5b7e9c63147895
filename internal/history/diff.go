package history

import (
	"strconv"

	"github.com/nao1215/redirscan/internal/model"
)

// Diff compares hop count, final destination URL and final status code of
// two traces, in that order.
func Diff(previous, current *model.ChainResult) *model.HistoryDiff {
	diff := &model.HistoryDiff{}
	add := func(kind, old, updated string) {
		if old != updated {
			diff.Changes = append(diff.Changes, model.Change{Type: kind, Old: old, New: updated})
		}
	}
	add(model.DiffHopCount, strconv.Itoa(previous.HopCount), strconv.Itoa(current.HopCount))
	add(model.DiffFinalDestination, previous.Final.URL, current.Final.URL)
	add(model.DiffFinalStatus, strconv.Itoa(previous.Final.StatusCode), strconv.Itoa(current.Final.StatusCode))
	diff.Changed = len(diff.Changes) > 0
	return diff
}
