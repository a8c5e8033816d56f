// Package validation provides pure validation functions for API handlers.
//
// All functions are pure (no I/O, no side effects): the handler decodes the
// request, asks this package whether the value is acceptable, and only then
// hands it to the orchestrator.
//
// # Functions
//
//   - ValidateDescriptor: check a deployment descriptor supplied with a deploy request
//
// # Usage
//
//	if field, msg := validation.ValidateDescriptor(descriptor); field != "" {
//	    // Return 400 Bad Request with msg
//	}
package validation
