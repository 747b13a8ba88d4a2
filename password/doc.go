// Package password hashes and verifies user passwords.
//
// # Formats
//
// New hashes use the configured [Algorithm]:
//
//	bcrypt:   $2a$<cost>$<salt+hash>
//	argon2id: $argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Hasher.Verify] accepts either format regardless of the configured
// algorithm, so a deployment can switch schemes without invalidating stored
// credentials. [Hasher.NeedsRehash] reports hashes worth replacing.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other tokenguard package.
//   - Log plaintext passwords.
package password
