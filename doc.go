// Package dcptrust is the root of the go-dcp-trust module, a trust engine
// for the Decentralized Claims Protocol (DCP) as used between data-space
// connectors.
//
// The module is organized by protocol role:
//
//   - dcp holds the wire messages exchanged between issuer, holder, and
//     verifier.
//   - vc models verifiable credentials, their formats, and the profile
//     registry; vp assembles and signs verifiable presentations.
//   - verify runs the verifier-side checks over a presentation response
//     and accumulates a report.
//   - status checks StatusList2021 revocation with a cached bitset per
//     status list credential.
//   - token mints and validates the self-issued tokens that authenticate
//     protocol calls, with replay protection.
//   - issuer and holder orchestrate the issuance workflow on each side.
//   - keys manages the signing key lifecycle; didweb resolves did:web
//     identifiers, documents, and public keys.
package dcptrust
