package certs

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	pkcs12 "software.sslmate.com/src/go-pkcs12"

	"payment-terminal/internal/interfaces"
)

// Container decomposition failure causes. All are surfaced to callers as a
// single decomposition failure with a readable cause.
var (
	ErrNoCertificateInContainer = errors.New("no certificate in container")
	ErrNoPrivateKeyInContainer  = errors.New("no private key in container")
	ErrContainerParse           = errors.New("container parse failure")
)

// ContainerResult is the decomposed content of a PKCS#12 container.
type ContainerResult struct {
	CertificatePEM string
	PrivateKeyPEM  string
	Identity       interfaces.Identity
}

// DecomposeContainer splits a password-protected PKCS#12 container into a
// leaf certificate and private key in PEM form and extracts the business
// identity from the certificate's subject attributes.
func DecomposeContainer(data []byte, password string) (*ContainerResult, error) {
	key, cert, _, err := pkcs12.DecodeChain(data, password)
	if err != nil {
		// Wrong password and corrupt container are indistinguishable here.
		return nil, fmt.Errorf("%w: %v", ErrContainerParse, err)
	}
	if cert == nil {
		return nil, ErrNoCertificateInContainer
	}
	if key == nil {
		return nil, ErrNoPrivateKeyInContainer
	}

	certPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE",
		Bytes: cert.Raw,
	})

	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot encode private key: %v", ErrContainerParse, err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PRIVATE KEY",
		Bytes: keyDER,
	})

	return &ContainerResult{
		CertificatePEM: string(certPEM),
		PrivateKeyPEM:  string(keyPEM),
		Identity:       IdentityFromSubject(cert),
	}, nil
}
