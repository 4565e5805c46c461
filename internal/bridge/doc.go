// Package bridge carries queries between the synchronous routing engine and
// the callers' completion callbacks. Each submitted task runs its blocking
// engine call on its own goroutine; outcomes cross a bounded channel to a
// single dispatch goroutine that fires every callback exactly once.
package bridge
