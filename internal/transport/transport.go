// SPDX-License-Identifier: MIT

// Package transport publishes classification results to consumers
// outside the process.
package transport

import "errors"

// Transport sends results somewhere. Implementations must be safe for
// concurrent use, and Send must not block on slow consumers.
type Transport interface {
	Send(data any) error
	Close() error
}

// Fanout sends every payload to each of its transports.
type Fanout []Transport

// Send delivers data to every transport and joins their errors. One
// failing transport does not stop delivery to the others.
func (f Fanout) Send(data any) error {
	var errs []error
	for _, t := range f {
		if err := t.Send(data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every transport.
func (f Fanout) Close() error {
	var errs []error
	for _, t := range f {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ Transport = Fanout(nil)
