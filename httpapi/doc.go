// Package httpapi serves the identity endpoints over HTTP with a chi router.
//
// Refresh tokens only travel in an httpOnly cookie; access tokens travel in
// the response body and come back as bearer tokens. Authentication failures
// always answer 401 {"error":"unauthorized"} so a client cannot tell a wrong
// password from a locked account or a stolen refresh token. The one
// exception is a concurrent refresh of the same token, which answers 409 so
// the client can retry.
package httpapi
