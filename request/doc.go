// Package request converts loose JSON query documents into the routing
// engine's typed request structure, applying the engine defaults and
// validating document shape before any work is scheduled.
package request
