// Package api is the client for the step competition backend.
//
// Every endpoint has an explicit request and response schema. Responses
// are decoded into unexported wire types and converted to model types
// through validating methods, so raw network shapes never leave this
// package.
//
// Failures are classified for the caller:
//   - *RemoteError: the server answered with a non-2xx status. Message is
//     the server-provided text; errors.Is(err, ErrUnauthorized) matches 401.
//   - ErrNetwork: the transport failed. No automatic retry is performed.
//   - ErrMalformedResponse: a 2xx body did not match the schema.
//
// Authenticated calls carry "Authorization: Bearer <token>" through
// oauth2.Transport. Each request has a UUIDv7 X-Request-ID for server-side
// correlation.
package api
