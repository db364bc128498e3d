// Package types defines the error taxonomy shared by the wprkit packages.
//
// Every failure surfaced by the manifest builder falls into one of four
// categories:
//   - NotFound: a required firmware component is missing.
//   - OutOfMemory: host heap or destination buffer exhaustion.
//   - InvalidInput: a collaborator handed over an inconsistent descriptor.
//   - AddressOverflow: a computed offset or DMA address does not fit the
//     32-bit fields the hardware root-of-trust consumes.
//
// Callers branch on the category with errors.Is against the sentinels or
// with KindOf; the message text is not stable.
//
// This package has no dependencies beyond the standard library.
package types
