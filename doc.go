// Package osrm bridges a synchronous OSRM routing engine into
// callback-oriented asynchronous use. A wrapper owns one engine instance;
// its Route, Locate, Nearest and Table methods validate a loose JSON query
// document, run the blocking engine call on a worker goroutine and deliver
// the raw reply to the completion callback exactly once, on a single
// dispatch goroutine.
//
// Validation and configuration problems surface synchronously as
// *request.ValidationError and *ConfigurationError; engine failures arrive
// asynchronously as the callback's *engine.QueryError argument.
package osrm
