package ucode

import "context"

// Provider returns the firmware image of one falcon slot.
//
// Errors should wrap types.ErrNotFound when required firmware is missing and
// types.ErrOutOfMemory when the image could not be held in memory. Returning
// an Image with a nil Signature is not an error: it marks the slot as not
// managed by this manifest.
type Provider interface {
	UcodeDetails(ctx context.Context) (*Image, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context) (*Image, error)

// UcodeDetails calls f(ctx).
func (f ProviderFunc) UcodeDetails(ctx context.Context) (*Image, error) {
	return f(ctx)
}

// Static returns a Provider that always hands out img.
func Static(img *Image) Provider {
	return ProviderFunc(func(context.Context) (*Image, error) {
		return img, nil
	})
}
