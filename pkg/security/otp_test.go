package security_test

import (
	"testing"

	"github.com/angelmondragon/kirana-backend/pkg/config"
	"github.com/angelmondragon/kirana-backend/pkg/security"
)

func testParams() config.PasswordConfig {
	return config.PasswordConfig{
		ArgonMemoryKB:    8192,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}
}

func TestHashAndVerifySecret(t *testing.T) {
	hash, err := security.HashSecret("1234", testParams())
	if err != nil {
		t.Fatalf("HashSecret returned error: %v", err)
	}

	ok, err := security.VerifySecret("1234", hash)
	if err != nil || !ok {
		t.Fatalf("VerifySecret failed for the correct code: %v", err)
	}

	ok, err = security.VerifySecret("4321", hash)
	if err != nil {
		t.Fatalf("VerifySecret returned error for wrong code: %v", err)
	}
	if ok {
		t.Fatal("VerifySecret returned true for incorrect code")
	}
}

func TestVerifySecretBadHash(t *testing.T) {
	for _, bad := range []string{"not-a-hash", "$argon2id$v=19$m=x,t=1,p=1$AAAA$AAAA", "$argon2id$v=19$t=1$AAAA$AAAA"} {
		if _, err := security.VerifySecret("irrelevant", bad); err == nil {
			t.Fatalf("expected error for malformed hash %q", bad)
		}
	}
}

func TestGenerateOTP(t *testing.T) {
	code, err := security.GenerateOTP(4)
	if err != nil {
		t.Fatalf("GenerateOTP: %v", err)
	}
	if len(code) != 4 {
		t.Fatalf("expected 4 digits, got %q", code)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			t.Fatalf("non-digit in %q", code)
		}
	}
	if _, err := security.GenerateOTP(0); err == nil {
		t.Fatal("expected error for zero digits")
	}
}
