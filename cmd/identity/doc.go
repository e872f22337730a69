// Package identity is the credential store: user records with their password
// hashes, keyed by a ULID and looked up by normalized email.
//
// Stores are plain persistence. They never hash passwords themselves and they
// carry no business rules beyond email uniqueness, which every backend enforces
// at write time so concurrent registrations cannot both succeed.
package identity
