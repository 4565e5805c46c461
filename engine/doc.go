// Package engine defines the contract the bridge expects from an underlying
// routing engine: the blocking query interface, the construction
// configuration, and the reference-counted handle that keeps an instance
// alive while queries are in flight.
package engine
