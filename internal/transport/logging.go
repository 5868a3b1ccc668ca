// SPDX-License-Identifier: MIT
package transport

import (
	"meowsense/internal/classify"
	applog "meowsense/internal/log"
)

// LoggingTransport writes each result as a log line.
type LoggingTransport struct{}

// NewLoggingTransport creates a LoggingTransport.
func NewLoggingTransport() *LoggingTransport {
	applog.Debugf("Transport: using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs data. It never fails.
func (lt *LoggingTransport) Send(data any) error {
	var r classify.Result
	switch v := data.(type) {
	case classify.Result:
		r = v
	case *classify.Result:
		r = *v
	default:
		applog.Infof("Transport: %T %+v", data, data)
		return nil
	}

	applog.With(applog.Fields{
		"id":         r.ID,
		"outcome":    r.Outcome,
		"confidence": r.Confidence,
	}).Infof("Result: %s (%s)", r.Label, r.Phrase)
	return nil
}

// Close is a no-op.
func (lt *LoggingTransport) Close() error {
	return nil
}

var _ Transport = (*LoggingTransport)(nil)
