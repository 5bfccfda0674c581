package flows

// Deps groups flow dependency sets. The root engine builds this once and
// delegates request methods to the matching flow implementation.
type Deps struct {
	Register          RegisterDeps
	Login             LoginDeps
	Wallet            WalletDeps
	Logout            LogoutDeps
	Validate          ValidateDeps
	EmailVerification EmailVerificationDeps
	PasswordReset     PasswordResetDeps
	Introspection     IntrospectionDeps
}
