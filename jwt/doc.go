// Package jwt signs and verifies the access and refresh tokens of a
// correlated pair. Both halves carry the same jti, which is the key used by
// revocation and refresh-IP binding.
//
// # Verification levels
//
//   - [Codec.Verify]: signature, algorithm, exp, iat, issuer and audience.
//   - [Codec.Inspect]: signature only; for revocation of tokens near or past expiry.
//   - [Codec.ExtractTokenID], [Codec.ExtractSubject], [Codec.ExtractExpiry]:
//     no verification; JSON decoding of the payload only.
//
// # Keys
//
// HS256 uses one shared secret. Ed25519 accepts raw keys or PEM; a codec
// built with only public material verifies but cannot issue, and one built
// with only a private key verifies with the matching public key. When
// Config.VerifyKeys is set, every token must name one of its kids, which
// lets old keys keep verifying during a rotation.
//
// # What this package must NOT do
//
//   - Consult revocation or binding state (the engine does that).
//   - Log token material.
package jwt
