// Package session owns the credential token and identity lifecycle.
//
// A Store starts in one of two states derived from the persisted token:
// Anonymous when none is stored, Resolving when one is. Resolve confirms
// the token against the backend exactly once per Store:
//
//	Anonymous  --SignIn/SignUp-->  Authenticated
//	Resolving  --Resolve ok----->  Authenticated
//	Resolving  --401------------>  Anonymous  (token cleared)
//	Resolving  --other failure-->  Rejected   (token cleared)
//	Rejected   --SignIn/SignUp-->  Authenticated
//	any        --SignOut-------->  Anonymous  (token cleared first)
//
// AccessDecision maps the state onto what the shell should render:
// "loading" while Resolving, "redirect-to-login" while Anonymous or
// Rejected, and "render-app" while Authenticated.
//
// The Store also implements oauth2.TokenSource so the API client can
// attach the current bearer token to authenticated calls.
package session
