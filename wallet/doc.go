// Package wallet recovers Ethereum signer addresses from EIP-191 personal_sign
// signatures.
//
// A signature is 65 bytes r‖s‖v encoded as hex with or without a 0x prefix.
// v may be 0, 1, 27 or 28. Addresses are compared and returned in lower-case
// 0x form; checksummed input is accepted everywhere.
//
// The package performs no I/O and holds no state; [Verifier] is a zero-size
// value that satisfies the engine's signature port.
package wallet
