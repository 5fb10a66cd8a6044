// Package cm implements the repository client for the content-management
// REST API.
//
// All calls carry a bearer token obtained from the login endpoint. A 401
// response invalidates the token and the call is retried once. Transport
// failures, timeouts and 5xx responses are reported as
// domain.ErrConnectionBroken so the batch runner can pause the daemon.
package cm
