// Package password hashes and verifies user passwords.
//
// Two encodings are produced and accepted:
// - argon2id in a PHC-like string: $argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt>$<hash>
// - bcrypt modular crypt strings ($2a$, $2b$, $2y$)
//
// Verify picks the algorithm from the stored string, so switching the configured
// algorithm never invalidates existing hashes. Stored hashes are treated as
// untrusted input and refused when their cost exceeds sane bounds.
package password
