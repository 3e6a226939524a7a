package xbar

import "sort"

// BuildAgeOrder constructs the arbitration order over n candidate positions
// (§4.3 "Age-queue construction"). Starting at the round-robin offset
// start (typically logic_clk mod n), it walks positions in order and keeps
// every index whose age is nonzero, then sorts that subset strictly
// descending by age. Ties break by first-encountered, i.e. by distance
// from start, which sort.SliceStable preserves since the input is already
// in round-robin walk order.
func BuildAgeOrder(ages []int, start int) []int {
	n := len(ages)
	if n == 0 {
		return nil
	}
	start = ((start % n) + n) % n

	order := make([]int, 0, n)
	for i := 0; i < n; i++ {
		pos := (start + i) % n
		if ages[pos] > 0 {
			order = append(order, pos)
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return ages[order[i]] > ages[order[j]]
	})
	return order
}
