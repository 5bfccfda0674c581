// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunLoginWithPassword, RunVerifyWalletSignature, RunVerifyBearer,
// etc.) accepts a typed dependency struct and returns results without side-effects
// beyond those dependencies. The root Engine builds the structs with closures that
// bound every port call by its timeout and translate storage errors into public
// error values.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the user repository, challenge store, session
// registry, token codec, rate limiter, audit dispatcher and metrics. They do NOT own
// any of these resources. Ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import the root package (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through dependency functions.
package flows
