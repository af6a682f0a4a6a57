package wire

import "testing"

func TestDeriveKeyKnownVector(t *testing.T) {
	// Hand-computed from the original cDCProto::Lock2Key algorithm for a
	// short fixed lock, verifying the XOR chain + nibble swap. No byte of
	// this key is in the escaped set, so no DCN escape applies.
	lock := "ABCDEFGH"
	key := DeriveKey(lock)
	want := string([]byte{0xB4, 0x30, 0x10, 0x70, 0x10, 0x30, 0x10, 0xF0})
	if key != want {
		t.Fatalf("DeriveKey(%q) = %q, want %q", lock, key, want)
	}
	if key == "" {
		t.Fatal("expected non-empty key")
	}
	if !ValidateKey(lock, key) {
		t.Fatalf("derived key does not validate against its own lock")
	}
}

func TestValidateKeyRejectsTamperedLock(t *testing.T) {
	lock := "EXTENDEDPROTOCOL_NMDC_0001 Pk=vhub 1.0"
	key := DeriveKey(lock)

	tampered := []byte(lock)
	tampered[0] ^= 0x01
	if ValidateKey(string(tampered), key) {
		t.Fatal("expected key validation to fail against a tampered lock")
	}
}

func TestDeriveKeyShortLock(t *testing.T) {
	if DeriveKey("") != "" {
		t.Error("expected empty key for empty lock")
	}
	if DeriveKey("A") != "" {
		t.Error("expected empty key for single-byte lock")
	}
}

func TestBuildLockShape(t *testing.T) {
	lock := BuildLock("vhub", "1.0.0", false)
	if len(lock) < len("EXTENDEDPROTOCOL_NMDC_0000 Pk=vhub 1.0.0") {
		t.Errorf("lock %q shorter than expected", lock)
	}
	tlsLock := BuildLock("vhub", "1.0.0", true)
	if !contains(tlsLock, "_TLS_") {
		t.Errorf("expected TLS marker in %q", tlsLock)
	}
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
