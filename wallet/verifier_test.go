package wallet

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
)

func TestNormalizeAddress(t *testing.T) {
	got, err := NormalizeAddress("0x52908400098527886E0F7030069857D2E4169EE7")
	if err != nil {
		t.Fatalf("NormalizeAddress error: %v", err)
	}
	if got != "0x52908400098527886e0f7030069857d2e4169ee7" {
		t.Fatalf("unexpected normalized address: %s", got)
	}

	for _, bad := range []string{
		"",
		"52908400098527886E0F7030069857D2E4169EE7",
		"0x1234",
		"0xZZ908400098527886E0F7030069857D2E4169EE7",
		"0X52908400098527886E0F7030069857D2E4169EE7",
		" 0x52908400098527886e0f7030069857d2e4169ee7 ",
		"\t0x52908400098527886e0f7030069857d2e4169ee7",
		"0x52908400098527886e0f7030069857d2e4169ee7\n",
	} {
		if _, err := NormalizeAddress(bad); err != ErrInvalidAddress {
			t.Fatalf("NormalizeAddress(%q) expected ErrInvalidAddress, got %v", bad, err)
		}
	}
}

func TestPersonalHashKnownVector(t *testing.T) {
	// personal_sign digest of "hello" as produced by web3 tooling.
	want := "50b2c43fd39106bafbba0da34fc430e1f91e3c96ea2acee2bc34119f92b37750"
	if got := hex.EncodeToString(PersonalHash("hello")); got != want {
		t.Fatalf("PersonalHash(hello) = %s, want %s", got, want)
	}
}

func TestSignAndRecoverRoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey error: %v", err)
	}
	addr := AddressOf(key)
	msg := "Sign this message to authenticate\nWallet: " + addr + "\nNonce: n-1\nTenant: default"

	sig, err := SignPersonal(msg, key)
	if err != nil {
		t.Fatalf("SignPersonal error: %v", err)
	}

	got, err := RecoverAddress(msg, sig)
	if err != nil {
		t.Fatalf("RecoverAddress error: %v", err)
	}
	if got != addr {
		t.Fatalf("recovered %s, want %s", got, addr)
	}

	if Verify(msg, sig, addr[2:]) {
		t.Fatal("expected unprefixed address to fail verification")
	}
	if !Verify(msg, sig, addr) {
		t.Fatal("expected verification success")
	}
	if !Verify(msg, sig, "0x"+strings.ToUpper(addr[2:])) {
		t.Fatal("expected upper-case address to verify")
	}
	if !Verify(msg, strings.TrimPrefix(sig, "0x"), addr) {
		t.Fatal("expected signature without 0x prefix to verify")
	}
}

func TestVerifyAcceptsZeroOneRecoveryID(t *testing.T) {
	key, _ := crypto.GenerateKey()
	msg := "raw v"
	sig, err := crypto.Sign(PersonalHash(msg), key)
	if err != nil {
		t.Fatalf("Sign error: %v", err)
	}
	if !Verify(msg, hex.EncodeToString(sig), AddressOf(key)) {
		t.Fatal("expected v in {0,1} to verify")
	}
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	key, _ := crypto.GenerateKey()
	sig, _ := SignPersonal("original", key)
	if Verify("original!", sig, AddressOf(key)) {
		t.Fatal("tampered message must not verify")
	}
}

func TestVerifyRejectsOtherSigner(t *testing.T) {
	a, _ := crypto.GenerateKey()
	b, _ := crypto.GenerateKey()
	sig, _ := SignPersonal("hello", a)
	if Verify("hello", sig, AddressOf(b)) {
		t.Fatal("signature from a must not verify for b")
	}
}

func TestDecodeSignatureErrors(t *testing.T) {
	cases := []string{
		"",
		"0x1234",
		"0x" + strings.Repeat("zz", 65),
		"0x" + strings.Repeat("00", 64) + "1d", // v = 29
		"0x" + strings.Repeat("00", 66),
	}
	for _, in := range cases {
		if _, err := DecodeSignature(in); err != ErrMalformedSignature {
			t.Fatalf("DecodeSignature(%q) expected ErrMalformedSignature, got %v", in, err)
		}
	}
}

func TestRecoverRejectsZeroRS(t *testing.T) {
	sig := "0x" + strings.Repeat("00", 64) + "1b"
	if _, err := RecoverAddress("hello", sig); err != ErrRecoveryFailed {
		t.Fatalf("expected ErrRecoveryFailed, got %v", err)
	}
	if Verify("hello", sig, "0x52908400098527886e0f7030069857d2e4169ee7") {
		t.Fatal("zero signature must not verify")
	}
}

func TestVerifierSatisfiesRecover(t *testing.T) {
	key, _ := crypto.GenerateKey()
	sig, _ := SignPersonal("port", key)

	var v Verifier
	got, err := v.Recover("port", sig)
	if err != nil || got != AddressOf(key) {
		t.Fatalf("Verifier.Recover = %s, %v", got, err)
	}
}
