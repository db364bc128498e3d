package ucode

import (
	"fmt"

	"github.com/joshuapare/wprkit/internal/buf"
	"github.com/joshuapare/wprkit/internal/format"
	"github.com/joshuapare/wprkit/pkg/types"
)

// segmentAlign is the alignment applied to ctxsw boot/code/data segments.
const segmentAlign = 256

// Segment is a region of a ctxsw ucode surface.
type Segment struct {
	Offset uint32
	Size   uint32
}

// CtxswSegments describes one context-switch falcon's ucode inside the shared
// ctxsw surface.
type CtxswSegments struct {
	Boot, Code, Data Segment

	BootIMEMOffset uint32
	BootEntry      uint32
}

func align256(v uint32) (uint32, error) {
	a, ok := buf.AlignU32(v, segmentAlign)
	if !ok {
		return 0, types.New(types.ErrKindAddressOverflow,
			fmt.Sprintf("ucode: segment size %#x overflows", v))
	}
	return a, nil
}

type alignedSegments struct {
	boot, code, data uint32
	image, app       uint32
}

func (s CtxswSegments) aligned() (alignedSegments, error) {
	var a alignedSegments
	var err error
	if a.boot, err = align256(s.Boot.Size); err != nil {
		return a, err
	}
	if a.code, err = align256(s.Code.Size); err != nil {
		return a, err
	}
	if a.data, err = align256(s.Data.Size); err != nil {
		return a, err
	}
	var ok bool
	if a.app, ok = buf.AddU32(a.code, a.data); !ok {
		return a, types.New(types.ErrKindAddressOverflow, "ucode: app size overflows")
	}
	if a.image, ok = buf.AddU32(a.boot, a.app); !ok {
		return a, types.New(types.ErrKindAddressOverflow, "ucode: image size overflows")
	}
	return a, nil
}

// FECSLayout derives the layout of the FECS falcon. Its image starts at the
// beginning of the surface, so app offsets are the segments' own offsets.
func (s CtxswSegments) FECSLayout() (*Layout, error) {
	a, err := s.aligned()
	if err != nil {
		return nil, err
	}
	if s.Data.Offset < s.Code.Offset {
		return nil, types.New(types.ErrKindInvalidInput, "ucode: fecs data segment precedes code")
	}
	return &Layout{
		ImageSize:             a.image,
		BootloaderStartOffset: s.Boot.Offset,
		BootloaderSize:        a.boot,
		BootloaderIMEMOffset:  s.BootIMEMOffset,
		BootloaderEntryPoint:  s.BootEntry,
		AppStartOffset:        s.Code.Offset,
		AppSize:               a.app,
		AppResidentCodeSize:   s.Code.Size,
		AppResidentDataOffset: s.Data.Offset - s.Code.Offset,
		AppResidentDataSize:   s.Data.Size,
	}, nil
}

// GPCCSLayout derives the layout of the GPCCS falcon. Its image starts at the
// boot segment, so the app begins right after the aligned bootloader.
func (s CtxswSegments) GPCCSLayout() (*Layout, error) {
	a, err := s.aligned()
	if err != nil {
		return nil, err
	}
	codeOff, err := align256(s.Code.Offset)
	if err != nil {
		return nil, err
	}
	dataOff, err := align256(s.Data.Offset)
	if err != nil {
		return nil, err
	}
	if dataOff < codeOff {
		return nil, types.New(types.ErrKindInvalidInput, "ucode: gpccs data segment precedes code")
	}
	return &Layout{
		ImageSize:             a.image,
		BootloaderSize:        a.boot,
		BootloaderIMEMOffset:  s.BootIMEMOffset,
		BootloaderEntryPoint:  s.BootEntry,
		AppStartOffset:        a.boot,
		AppSize:               a.app,
		AppResidentCodeSize:   a.code,
		AppResidentDataOffset: dataOff - codeOff,
		AppResidentDataSize:   a.data,
	}, nil
}

// FECSImage builds the FECS image from the ctxsw surface.
func FECSImage(surface []byte, seg CtxswSegments, sig []byte) (*Image, error) {
	if sig == nil {
		return nil, types.New(types.ErrKindNotFound, "ucode: fecs signature missing")
	}
	l, err := seg.FECSLayout()
	if err != nil {
		return nil, err
	}
	data, ok := buf.Slice(surface, 0, int(l.ImageSize))
	if !ok {
		return nil, types.New(types.ErrKindInvalidInput,
			fmt.Sprintf("ucode: fecs image of %#x bytes exceeds surface of %#x", l.ImageSize, len(surface)))
	}
	return &Image{
		Data:      data,
		Source:    l,
		Signature: ParseSignatureFor(sig, format.FalconIDFECS),
	}, nil
}

// GPCCSImage builds the GPCCS image from the ctxsw surface. The image is
// padded to the segment alignment.
func GPCCSImage(surface []byte, seg CtxswSegments, sig []byte) (*Image, error) {
	if sig == nil {
		return nil, types.New(types.ErrKindNotFound, "ucode: gpccs signature missing")
	}
	l, err := seg.GPCCSLayout()
	if err != nil {
		return nil, err
	}
	size, err := align256(l.ImageSize)
	if err != nil {
		return nil, err
	}
	data, ok := buf.Slice(surface, int(seg.Boot.Offset), int(size))
	if !ok {
		return nil, types.New(types.ErrKindInvalidInput,
			fmt.Sprintf("ucode: gpccs image [%#x+%#x] exceeds surface of %#x", seg.Boot.Offset, size, len(surface)))
	}
	return &Image{
		Data:      data,
		Source:    l,
		Signature: ParseSignatureFor(sig, format.FalconIDGPCCS),
	}, nil
}

// PMUImage builds the PMU image from its descriptor, image and signature
// files. The manifest copies ImageSize bytes of the image.
func PMUImage(desc, image, sig []byte) (*Image, error) {
	if sig == nil {
		return nil, types.New(types.ErrKindNotFound, "ucode: pmu signature missing")
	}
	l, err := ParseLayout(desc)
	if err != nil {
		return nil, err
	}
	data, ok := buf.Slice(image, 0, int(l.ImageSize))
	if !ok {
		return nil, types.New(types.ErrKindInvalidInput,
			fmt.Sprintf("ucode: pmu descriptor claims %#x bytes, image has %#x", l.ImageSize, len(image)))
	}
	return &Image{
		Data:      data,
		Source:    l,
		Signature: ParseSignatureFor(sig, format.FalconIDPMU),
	}, nil
}

// NoLoaderImage builds a header-described image. hdr holds the raw
// little-endian header words.
func NoLoaderImage(data, hdr, sig []byte) (*Image, error) {
	h, err := ParseNoLoaderHeader(hdr)
	if err != nil {
		return nil, err
	}
	img := &Image{Data: data, Source: h}
	if sig != nil {
		img.Signature = ParseSignature(sig)
	}
	return img, nil
}
