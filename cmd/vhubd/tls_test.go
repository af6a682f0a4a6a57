package main

import (
	"testing"
	"time"
)

func TestGenerateSelfSignedTLSProducesUsableCert(t *testing.T) {
	cfg, err := generateSelfSignedTLS(time.Hour, "hub.example.com")
	if err != nil {
		t.Fatalf("generateSelfSignedTLS: %v", err)
	}
	if len(cfg.Certificates) != 1 {
		t.Fatalf("expected one certificate, got %d", len(cfg.Certificates))
	}
	leaf := cfg.Certificates[0].Leaf
	if leaf.Subject.CommonName != "hub.example.com" {
		t.Fatalf("unexpected CN: %q", leaf.Subject.CommonName)
	}
	found := false
	for _, san := range leaf.DNSNames {
		if san == "hub.example.com" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected hostname in SAN list")
	}
}

func TestGenerateSelfSignedTLSDefaultsCommonName(t *testing.T) {
	cfg, err := generateSelfSignedTLS(time.Hour, "")
	if err != nil {
		t.Fatalf("generateSelfSignedTLS: %v", err)
	}
	if cfg.Certificates[0].Leaf.Subject.CommonName != "vhubd" {
		t.Fatalf("unexpected CN: %q", cfg.Certificates[0].Leaf.Subject.CommonName)
	}
}

func TestLoadOrGenerateTLSFallsBackWhenUnconfigured(t *testing.T) {
	cfg, err := loadOrGenerateTLS("", "", ":7411")
	if err != nil {
		t.Fatalf("loadOrGenerateTLS: %v", err)
	}
	if len(cfg.Certificates) != 1 {
		t.Fatal("expected a generated fallback certificate")
	}
}
