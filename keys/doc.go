// Package keys provides the signing primitives and local key storage used to
// attribute certification receipts to an operator.
//
// Pure, deterministic primitives (digesting, signing, issuer-key formatting,
// role-seed derivation) are the stable surface. The filesystem keystore is a
// local-first convenience for the CLI.
package keys
