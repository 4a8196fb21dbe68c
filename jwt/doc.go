// Package jwt mints and verifies the signed access and password reset
// tokens, publishes the verification key as a JWK Set, and offers a
// JWKS-backed verifier for downstream services.
package jwt
