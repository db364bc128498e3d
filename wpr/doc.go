// Package wpr builds the secure-boot manifest ("WPR blob") handed to the
// hardware root-of-trust before it verifies and boots the light-secure
// falcons.
//
// # Overview
//
// A manifest starts with an array of WPR headers, one per managed falcon
// image plus a terminator whose falcon id is format.FalconIDInvalid. Each
// header locates an LSB header describing the image's code and data sizes,
// offsets and boot flags. The raw ucode follows its LSB header, and
// bootloader-relocated images get a reserved bootloader descriptor area
// after their ucode:
//
//	0x000            WPR header[0]
//	...
//	20*count         WPR header[count]   (terminator)
//	<256-aligned>    LSB header, image A
//	<4096-aligned>   ucode, image A
//	<256-aligned>    bootloader descriptor, image A (loader images only)
//	<256-aligned>    LSB header, image B
//	...
//
// # Building
//
// Prepare runs one synchronous pass:
//
//  1. discover asks every enabled slot's ucode.Provider for its image and
//     inserts managed images into a Registry, filling the static LSB fields.
//  2. Registry.Plan walks the records and assigns every offset. The
//     bootloader descriptor area is always sized for the largest descriptor
//     variant, so the concrete variant chosen later never shifts a record.
//  3. The destination buffer is allocated at the planned size.
//  4. materialize writes headers, descriptors and ucode into it.
//  5. Registry.Release returns every heap reservation, on success and on
//     failure.
//
//	b, err := wpr.New(cfg, nil)
//	if err != nil {
//	    return err
//	}
//	m, err := b.Prepare(ctx, existing)
//	if err != nil {
//	    return err
//	}
//	blob := m.Bytes()
//
// # Primary co-processor
//
// Config.Primary names the falcon that drives secure boot for the others
// (normally the PMU). Its LSB header gets the DMA-context flag, its
// bootloader reads a format.LoaderConfig instead of a format.BLDmemDesc, and
// its app_* LSB fields are left zero: its loader locates the app through the
// absolute DMA addresses in the LoaderConfig.
//
// # Thread Safety
//
// A Builder may be shared, but Prepare must not run concurrently for the same
// device. Registries are owned by a single Prepare call.
package wpr
