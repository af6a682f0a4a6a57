package wire

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// DeriveKey computes the Key response for a given Lock challenge, following
// the transform in cDCProto::Lock2Key of the original Verlihub source:
//
//	K[0]   = L[0] ^ L[n-1] ^ L[n-2] ^ 5
//	K[i]   = L[i] ^ L[i-1]                 for i >= 1
//
// followed by a nibble swap of every byte, then DCN-escaping.
//
// Lock must first have any embedded NULs stripped and be at least 2 bytes;
// callers should have already run the Lock-specific NUL stripping (see
// SanitizeLockFrame).
func DeriveKey(lock string) string {
	l := []byte(lock)
	n := len(l)
	if n < 2 {
		return ""
	}

	k := make([]byte, n)
	k[0] = l[0] ^ l[n-1] ^ l[n-2] ^ 5
	for i := 1; i < n; i++ {
		k[i] = l[i] ^ l[i-1]
	}

	for i := range k {
		k[i] = (k[i] << 4) | (k[i] >> 4)
	}

	return EscapeDCN(string(k))
}

// ValidateKey reports whether key is the correct response to lock.
func ValidateKey(lock, key string) bool {
	return DeriveKey(lock) == key
}

// lockSuffixDigits is the length of the random numeric suffix appended to
// every Lock challenge (see BuildLock).
const lockSuffixDigits = 4

// BuildLock constructs a fresh Lock challenge frame body (without the
// leading "$Lock " and trailing "|"), of the form:
//
//	EXTENDEDPROTOCOL_NMDC_[TLS_]XXXX Pk=<product> <version>
//
// where XXXX is a random 4-digit suffix. tls controls whether the TLS
// marker is present in the protocol token.
func BuildLock(product, version string, tls bool) string {
	suffix := randomDigits(lockSuffixDigits)
	marker := "EXTENDEDPROTOCOL_NMDC_"
	if tls {
		marker = "EXTENDEDPROTOCOL_NMDC_TLS_"
	}
	return fmt.Sprintf("%s%s Pk=%s %s", marker, suffix, product, version)
}

func randomDigits(n int) string {
	b := make([]byte, n)
	max := big.NewInt(10)
	for i := range b {
		d, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand failure is unrecoverable entropy starvation; fall
			// back to a fixed, clearly-non-random suffix rather than panic.
			b[i] = '0'
			continue
		}
		b[i] = byte('0' + d.Int64())
	}
	return string(b)
}
