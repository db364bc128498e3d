package ucode

import "github.com/joshuapare/wprkit/internal/format"

// Signature is the identity record of a managed image: the production and
// debug key pairs the root-of-trust verifies against, and the static base
// falcon id.
type Signature = format.UcodeDesc

// SignatureSize is the encoded size of a Signature.
const SignatureSize = format.UcodeDescSize

// ParseSignature copies min(SignatureSize, len(b)) bytes of a signature file
// into a new Signature. A short file leaves the remaining fields zero.
func ParseSignature(b []byte) *Signature {
	sig := format.DecodeUcodeDesc(b)
	return &sig
}

// ParseSignatureFor is ParseSignature with the base falcon id forced to id,
// for signature files that do not carry a trustworthy id.
func ParseSignatureFor(b []byte, id uint32) *Signature {
	sig := ParseSignature(b)
	sig.FalconID = id
	return sig
}
