// Package auth provides the account and credential lifecycle for the versify
// service: registration, email confirmation, password login with JWT issuance,
// and stateless password reset, exposed as a JSON API under /api/auth.
//
// Credential flows:
//   - Registration hashes passwords with bcrypt and mails a confirmation link.
//     Accounts stay flagged as unverified until the link is used; verification
//     does not gate sign in.
//   - Login verifies credentials through an IdentityProvider and answers with
//     a signed bearer token. Failed attempts are tracked per account and a
//     cool down window throttles brute force attempts.
//   - Password reset and email confirmation use single purpose tokens minted
//     by PurposeTokenService. Tokens are HMAC bound to the user's current
//     security stamp, so finishing a reset invalidates every link issued
//     before it. Nothing is stored server side.
//
// HTTP surface:
//   - RegisterAuthRoutes mounts the JSON endpoints on a go-router Router.
//     RouteAuthenticator keeps the session cookie in step with issued tokens
//     and middleware/jwtware guards protected routes.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by Auther and the
//     command handlers to describe register, login, confirmation, and password
//     reset events. Sinks run best-effort (errors are logged) so you can
//     forward to a database or queue without blocking authentication.
package auth
