package engine

// Turn is one slot of a round's running order.
type Turn struct {
	Seat      int
	FirstTurn bool
}

// RoundOrder returns the snake order for round (1-based) at a table of n
// seats. The first player rotates by one seat every round; the outbound half
// runs clockwise from that seat and the return half retraces it.
func RoundOrder(round, n int) []Turn {
	if n <= 0 || round <= 0 {
		return nil
	}
	first := (round - 1) % n
	order := make([]Turn, 0, 2*n)
	for i := range n {
		order = append(order, Turn{Seat: (first + i) % n, FirstTurn: true})
	}
	for i := n - 1; i >= 0; i-- {
		order = append(order, Turn{Seat: (first + i) % n})
	}
	return order
}
