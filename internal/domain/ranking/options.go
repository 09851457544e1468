// Package ranking tallies predictions for a round and ranks the participants.
package ranking

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithOrder sets the sort order used for ranking.
func WithOrder(order Order) Option {
	return func(a *Aggregator) {
		if order == Ascending || order == Descending {
			a.order = order
		}
	}
}
