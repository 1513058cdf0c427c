package main

import (
	"testing"

	"tindahan/backend/internal/config"
)

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "short", ManagerPIN: "123456"})
	if err == nil {
		t.Fatalf("expected weak security config to be rejected")
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "0123456789abcdef0123456789abcdef", ManagerPIN: "739154"})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}

func TestValidatePINStrength(t *testing.T) {
	weak := []string{"123456", "654321", "000000", "999999", "112233", "345678", "876543"}
	for _, pin := range weak {
		if err := validatePINStrength(pin); err == nil {
			t.Fatalf("expected PIN %s to be rejected", pin)
		}
	}

	strong := []string{"739154", "281905", "460283"}
	for _, pin := range strong {
		if err := validatePINStrength(pin); err != nil {
			t.Fatalf("expected PIN %s to pass, got %v", pin, err)
		}
	}
}
