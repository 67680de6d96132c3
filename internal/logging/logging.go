// Package logging provides the ambient structured-logging helper shared
// by every package in this module, grounded on the constructor-injected
// *zap.Logger pattern used by okinrev-veza-full-stack and
// otherjamesbrown-ai-aas.
package logging

import "go.uber.org/zap"

// OrNop returns l, or a no-op logger if l is nil. Every constructor in
// this module accepts an optional *zap.Logger and routes it through this
// helper so callers never need to special-case "no logger configured".
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
