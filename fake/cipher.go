// File: fake/cipher.go
// Settable encrypted-stream collaborator.
// License: Apache-2.0

package fake

// Cipher is a settable api.Ciphered double.
type Cipher struct {
	Pending bool
}

// BufferedPlaintext reports the current Pending value.
func (c *Cipher) BufferedPlaintext() bool { return c.Pending }
