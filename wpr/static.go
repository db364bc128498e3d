package wpr

import (
	"fmt"

	"github.com/joshuapare/wprkit/internal/format"
	"github.com/joshuapare/wprkit/pkg/types"
	"github.com/joshuapare/wprkit/ucode"
)

// fillStaticLSB fills the LSB fields that do not depend on placement.
func fillStaticLSB(m *ManagedImage, slot SlotConfig, primary bool) error {
	lsb := &m.LSB
	lsb.Signature = *m.Image.Signature
	lsb.UcodeSize = m.Image.Size()

	switch src := m.Image.Source.(type) {
	case ucode.NoLoaderHeader:
		sizes, err := src.Sizes()
		if err != nil {
			return types.Wrap(types.ErrKindInvalidInput, "wpr: no-loader header", err)
		}
		lsb.UcodeSize = sizes.CodeSize
		lsb.DataSize = sizes.DataSize
		lsb.BLCodeSize = sizes.BLCodeSize
		lsb.BLDataOff = sizes.BLDataOff
		lsb.BLDataSize = sizes.BLDataSize
		lsb.Flags = format.FlagLoadCodeAt0 | format.FlagDMACtlReqCtx

	case *ucode.Layout:
		blCode, ok1 := format.Align(src.BootloaderSize, format.BLCodeSizeAlignment)
		app, ok2 := format.Align(src.AppSize, format.BLCodeSizeAlignment)
		resData, ok3 := format.Align(src.AppResidentDataOffset, format.BLCodeSizeAlignment)
		if !ok1 || !ok2 || !ok3 {
			return types.New(types.ErrKindAddressOverflow, "wpr: layout sizes overflow")
		}
		fullApp := app + blCode
		ucodeSize := resData + blCode
		if fullApp < app || ucodeSize < resData {
			return types.New(types.ErrKindAddressOverflow, "wpr: layout sizes overflow")
		}
		if ucodeSize > fullApp {
			return types.New(types.ErrKindInvalidInput,
				fmt.Sprintf("wpr: resident data offset %#x beyond app size %#x",
					src.AppResidentDataOffset, src.AppSize))
		}
		lsb.BLCodeSize = blCode
		lsb.UcodeSize = ucodeSize
		lsb.DataSize = fullApp - ucodeSize
		lsb.BLIMEMOff = src.BootloaderIMEMOffset

		lsb.Flags = 0
		if primary {
			lsb.Flags = format.FlagDMACtlReqCtx
		}
		if slot.PrivLoad {
			lsb.Flags |= format.FlagForcePrivLoad
		}

	default:
		return types.New(types.ErrKindInvalidInput, "wpr: image has no boot strategy")
	}
	return nil
}
