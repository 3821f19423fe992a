package chatlog

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	pageIDLayout = "2006-01-02-15-04-05"
	pageIDSuffix = "_chat"
)

// NextPageID derives a page id from now. Ids compare in creation order as
// plain strings; when now does not sort after last (same second, or a clock
// step back) the id continues last with a zero-padded sequence number.
func NextPageID(now time.Time, last string) string {
	base := now.UTC().Format(pageIDLayout) + pageIDSuffix
	if last == "" || base > last {
		return base
	}
	stem, seq := splitPageID(last)
	return fmt.Sprintf("%s-%03d", stem, seq+1)
}

func splitPageID(id string) (string, int) {
	i := strings.LastIndex(id, pageIDSuffix+"-")
	if i < 0 {
		return id, 0
	}
	stem := id[:i+len(pageIDSuffix)]
	seq, err := strconv.Atoi(id[i+len(pageIDSuffix)+1:])
	if err != nil {
		return id, 0
	}
	return stem, seq
}
