// Package errors provides the structured error types used for cross-domain
// failure reporting.
//
// Every reportable failure carries an outcome Code from the taxonomy in
// Error, plus an optional finer Kind, the originating domain id, and a cause
// chain. Codes are what cross a domain boundary inside an exception envelope;
// kinds exist for diagnostics and matching within a single domain.
//
// Match errors by category with the standard library:
//
//	if errors.HasCode(err, errors.CodeNotShareable) {
//	    // the value had no registered conversion
//	}
package errors
