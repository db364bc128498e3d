package ucode

import (
	"fmt"
	"math"

	"github.com/joshuapare/wprkit/internal/buf"
	"github.com/joshuapare/wprkit/internal/format"
	"github.com/joshuapare/wprkit/pkg/types"
)

// Strategy names the boot strategy of an Image.
type Strategy int

const (
	// StrategyLoader images are relocated by a bootloader that reads a
	// descriptor from the manifest.
	StrategyLoader Strategy = iota
	// StrategyNoLoader images carry a self-contained header.
	StrategyNoLoader
)

func (s Strategy) String() string {
	if s == StrategyNoLoader {
		return "no-loader"
	}
	return "loader"
}

// Source is the boot-strategy-specific metadata of an Image.
// It is implemented only by *Layout and NoLoaderHeader.
type Source interface {
	Strategy() Strategy
	isSource()
}

// NoLoaderHeader is the word array of a self-contained ucode header.
type NoLoaderHeader []uint32

func (NoLoaderHeader) isSource() {}

// Strategy returns StrategyNoLoader.
func (NoLoaderHeader) Strategy() Strategy { return StrategyNoLoader }

// Sizes sums the code and data sizes the header describes.
func (h NoLoaderHeader) Sizes() (format.NLSizes, error) {
	return format.ParseNLSizes(h)
}

// ParseNoLoaderHeader converts raw little-endian header bytes into words and
// checks that they cover every app the header announces.
func ParseNoLoaderHeader(b []byte) (NoLoaderHeader, error) {
	if len(b)%4 != 0 {
		return nil, types.New(types.ErrKindInvalidInput,
			fmt.Sprintf("ucode: no-loader header of %d bytes is not word sized", len(b)))
	}
	h := NoLoaderHeader(buf.Words(b))
	if _, err := h.Sizes(); err != nil {
		return nil, types.Wrap(types.ErrKindInvalidInput, "ucode: no-loader header", err)
	}
	return h, nil
}

// Image is one falcon's firmware as returned by its Provider.
type Image struct {
	// Data is the raw ucode. Its length is the image size placed in the manifest.
	Data []byte
	// Source is the image's boot strategy metadata. Exactly one variant.
	Source Source
	// Signature is the identity record. nil means the slot is not managed
	// by this manifest and discovery skips it.
	Signature *Signature
	// Instance is the engine instance added to the signature's base falcon id.
	Instance uint32
}

// FalconID returns the manifest-unique id of the image.
func (img *Image) FalconID() uint32 {
	return img.Signature.FalconID + img.Instance
}

// Layout returns the loader layout, or nil for no-loader images.
func (img *Image) Layout() *Layout {
	l, _ := img.Source.(*Layout)
	return l
}

// Header returns the no-loader header, or nil for loader images.
func (img *Image) Header() NoLoaderHeader {
	h, _ := img.Source.(NoLoaderHeader)
	return h
}

// Size returns the raw data length as the u32 the manifest stores.
func (img *Image) Size() uint32 {
	return uint32(len(img.Data))
}

// Validate checks that img can be placed in a manifest.
func (img *Image) Validate() error {
	if img == nil {
		return types.New(types.ErrKindInvalidInput, "ucode: nil image")
	}
	if uint64(len(img.Data)) > math.MaxUint32 {
		return types.New(types.ErrKindAddressOverflow,
			fmt.Sprintf("ucode: image of %d bytes exceeds 32-bit sizes", len(img.Data)))
	}
	switch src := img.Source.(type) {
	case *Layout:
		if src == nil {
			return types.New(types.ErrKindInvalidInput, "ucode: nil layout")
		}
	case NoLoaderHeader:
		if _, err := src.Sizes(); err != nil {
			return types.Wrap(types.ErrKindInvalidInput, "ucode: no-loader header", err)
		}
	default:
		return types.New(types.ErrKindInvalidInput, "ucode: image has no boot strategy")
	}
	return nil
}
