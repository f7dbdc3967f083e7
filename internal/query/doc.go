// Package query provides a lazy, chainable pipeline over sequences of
// items, used to order, truncate and filter fetched illustration sets
// before download fan-out.
//
// A pipeline is built from a slice and transformed stage by stage:
//
//	p := query.From(illusts).
//	    OrderBy(byDate).
//	    Limit(100).
//	    Exclude(hasTag("R-18")).
//	    Limit(20)
//
//	for order, il := range p.Enumerate(1) {
//	    fmt.Println(order, il.Title)
//	}
//
// Stages are lazy where practical (Limit, Filter, Exclude); OrderBy
// materializes the view when iterated. Invalid configuration such as a
// negative limit poisons the pipeline and is reported by Err and
// Collect rather than panicking mid-chain.
package query
