// Package verify checks finished manifests.
//
// # Overview
//
// Parse walks the WPR header array up to its terminator and decodes the LSB
// header of every entry. The checks then validate what the root-of-trust
// relies on:
//   - Sentinel: the header array ends with a terminator
//   - Alignment: LSB headers, ucode and bootloader data sit on their boundaries
//   - Regions: every header and region lies inside the manifest
//   - Strategy: flags and bootloader data agree on one boot strategy
//   - FalconIDs: no falcon appears twice
//
// # Quick Start
//
//	blob, _ := os.ReadFile("wpr.bin")
//	if err := verify.All(blob); err != nil {
//	    fmt.Printf("manifest invalid: %v\n", err)
//	}
package verify
