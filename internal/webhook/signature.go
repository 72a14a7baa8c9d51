package webhook

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha512"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrBadSignature covers a missing, undecodable or non-matching acme-signature.
var ErrBadSignature = errors.New("invalid acme-signature")

// Verifier checks provider signatures. The provider signs the SHA-512 digest
// of the body with PKCS#1 v1.5 over SHA-512, so the body is hashed twice.
type Verifier struct {
	pub *rsa.PublicKey
}

// LoadVerifier reads a PEM encoded RSA public key (PKIX or PKCS#1).
func LoadVerifier(path string) (*Verifier, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	return ParseVerifier(raw)
}

// ParseVerifier builds a Verifier from PEM bytes.
func ParseVerifier(pemBytes []byte) (*Verifier, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("public key: no PEM block")
	}
	switch block.Type {
	case "RSA PUBLIC KEY":
		pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("public key: %w", err)
		}
		return &Verifier{pub: pub}, nil
	default:
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("public key: %w", err)
		}
		pub, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("public key: %T is not RSA", key)
		}
		return &Verifier{pub: pub}, nil
	}
}

// Verify checks a base64 signature against body.
func (v *Verifier) Verify(body []byte, signature string) error {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return fmt.Errorf("%w: header missing", ErrBadSignature)
	}
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	if err := rsa.VerifyPKCS1v15(v.pub, crypto.SHA512, signedDigest(body), sig); err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	return nil
}

func signedDigest(body []byte) []byte {
	inner := sha512.Sum512(body)
	outer := sha512.Sum512(inner[:])
	return outer[:]
}
