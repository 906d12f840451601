package certs

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"payment-terminal/internal/interfaces"
)

// PEMKind declares what a piece of PEM material is expected to contain.
type PEMKind string

const (
	KindCertificate PEMKind = "certificate"
	KindCA          PEMKind = "ca"
	KindKey         PEMKind = "key"
)

// ErrMalformedPEM is returned when the expected BEGIN/END markers for the
// declared kind are absent.
var ErrMalformedPEM = errors.New("malformed PEM")

var keyMarkers = []string{"PRIVATE KEY", "RSA PRIVATE KEY", "EC PRIVATE KEY"}

// NormalizePEM normalizes line endings, trims surrounding whitespace and
// verifies the markers for the declared kind. Normalizing already-normalized
// text returns the same text.
func NormalizePEM(raw []byte, kind PEMKind) (string, error) {
	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimSpace(text)

	var markers []string
	switch kind {
	case KindCertificate, KindCA:
		markers = []string{"CERTIFICATE"}
	case KindKey:
		markers = keyMarkers
	default:
		return "", fmt.Errorf("unknown PEM kind %q", kind)
	}

	for _, marker := range markers {
		begin := "-----BEGIN " + marker + "-----"
		end := "-----END " + marker + "-----"
		if strings.Contains(text, begin) && strings.Contains(text, end) {
			return text, nil
		}
	}

	return "", fmt.Errorf("%w: missing %s markers", ErrMalformedPEM, kind)
}

// The issuing authority does not guarantee which certificate attribute
// carries the identity, so several candidate patterns are probed in a fixed
// priority order: most specific literal first, bare numeric run last. First
// match wins per field; the two fields are independent.
var vatskPatterns = []*regexp.Regexp{
	regexp.MustCompile(`VATSK-(\d{10})`),
	regexp.MustCompile(`VATSK[\s:=]+(\d{10})`),
	regexp.MustCompile(`\b(\d{10})\b`),
}

var pokladnicaPatterns = []*regexp.Regexp{
	regexp.MustCompile(`POKLADNICA-(\d{17})`),
	regexp.MustCompile(`POKLADNICA[\s:=]+(\d{17})`),
	regexp.MustCompile(`\b(\d{17})\b`),
}

// ExtractIdentity extracts the VATSK and POKLADNICA identifiers from
// certificate material (PEM or raw DER). It never fails: a field with no
// match is simply absent. When the parsed distinguished names yield nothing,
// the same patterns are rerun over the ASCII-filtered raw bytes, for
// encodings where the identity substring sits outside parsed textual fields.
func ExtractIdentity(input []byte) interfaces.Identity {
	var identity interfaces.Identity

	if cert := parseCertificate(input); cert != nil {
		text := cert.Subject.String() + "\n" + cert.Issuer.String()
		identity.VATSK = matchFirst(text, vatskPatterns)
		identity.Pokladnica = matchFirst(text, pokladnicaPatterns)
	}

	if identity.VATSK == nil || identity.Pokladnica == nil {
		text := asciiText(input)
		if identity.VATSK == nil {
			identity.VATSK = matchFirst(text, vatskPatterns)
		}
		if identity.Pokladnica == nil {
			identity.Pokladnica = matchFirst(text, pokladnicaPatterns)
		}
	}

	return identity
}

// IdentityFromSubject runs the same ordered-pattern search against an
// already-parsed certificate's subject attributes.
func IdentityFromSubject(cert *x509.Certificate) interfaces.Identity {
	text := cert.Subject.String()
	return interfaces.Identity{
		VATSK:      matchFirst(text, vatskPatterns),
		Pokladnica: matchFirst(text, pokladnicaPatterns),
	}
}

func parseCertificate(input []byte) *x509.Certificate {
	rest := input
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		if cert, err := x509.ParseCertificate(block.Bytes); err == nil {
			return cert
		}
	}

	// Not PEM (or no parseable block); try raw DER.
	if cert, err := x509.ParseCertificate(input); err == nil {
		return cert
	}
	return nil
}

func matchFirst(text string, patterns []*regexp.Regexp) *string {
	for _, p := range patterns {
		if m := p.FindStringSubmatch(text); m != nil {
			value := m[1]
			return &value
		}
	}
	return nil
}

// asciiText keeps the printable ASCII bytes of raw certificate content so
// the identity patterns can run over non-textual encodings.
func asciiText(input []byte) string {
	var b strings.Builder
	b.Grow(len(input))
	for _, c := range input {
		if c >= 0x20 && c <= 0x7e {
			b.WriteByte(c)
		} else {
			// Separator, so digit runs split by binary bytes do not fuse.
			b.WriteByte(' ')
		}
	}
	return b.String()
}
