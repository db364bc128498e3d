// Package ucode models the firmware images handed to the manifest builder.
//
// An Image pairs raw ucode bytes with exactly one boot strategy:
//
//   - *Layout: the image boots through a bootloader, and a layout descriptor
//     (bootloader size, app offsets and sizes, entry points) says where each
//     part lives inside the image.
//   - NoLoaderHeader: the image carries a self-contained header of u32 words
//     and is loaded at address zero without a bootloader.
//
// The strategy is a sealed sum type, so an Image cannot describe both.
//
// Images reach the builder through a Provider, one per falcon slot. The
// package also ships the helpers that turn the usual on-disk artifacts
// (PMU descriptor + image + signature, ctxsw surface segments) into Images.
package ucode
