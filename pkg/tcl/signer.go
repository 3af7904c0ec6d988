package tcl

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
)

const nonceFragmentLength = 6

// Signer produces the "h" auth field for a nonce.
type Signer interface {
	Sign(nonce string) string
}

// LetterStreamSigner reproduces the print api's hash: the last six characters of the nonce,
// the api key and the first six characters of the nonce are concatenated, base64 encoded,
// then md5 hashed to lowercase hex.
type LetterStreamSigner struct {
	apiKey string
}

// NewLetterStreamSigner creates the default Signer.
func NewLetterStreamSigner(apiKey string) *LetterStreamSigner {
	return &LetterStreamSigner{apiKey: apiKey}
}

// Sign returns the hash for nonce.
func (s *LetterStreamSigner) Sign(nonce string) string {

	head, tail := nonce, nonce
	if len(nonce) > nonceFragmentLength {
		head = nonce[:nonceFragmentLength]
		tail = nonce[len(nonce)-nonceFragmentLength:]
	}

	encoded := base64.StdEncoding.EncodeToString([]byte(tail + s.apiKey + head))
	sum := md5.Sum([]byte(encoded))

	return hex.EncodeToString(sum[:])
}
