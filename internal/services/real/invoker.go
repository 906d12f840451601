package real

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"payment-terminal/internal/interfaces"
)

// TLSInvoker performs HTTPS requests authenticated with the client
// certificate materialized for the current workflow invocation. The response
// is returned as a raw frame (status line, headers, blank line, body) so the
// orchestration layer owns all parsing decisions.
type TLSInvoker struct {
	verbose bool
}

// NewTLSInvoker creates the invoker.
func NewTLSInvoker(verbose bool) *TLSInvoker {
	return &TLSInvoker{verbose: verbose}
}

// Invoke performs one request. The credential files are read fresh on every
// call; they exist only for the duration of the invocation that owns them.
func (inv *TLSInvoker) Invoke(ctx context.Context, req interfaces.RemoteRequest) (string, error) {
	tlsConfig, err := buildTLSConfig(req.Credentials)
	if err != nil {
		return "", err
	}

	client := &http.Client{
		Transport: &http.Transport{TLSClientConfig: tlsConfig},
		Timeout:   req.Timeout,
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %v", err)
	}

	if inv.verbose {
		log.Printf("[INVOKER] %s %s (timeout %v)", req.Method, req.URL, req.Timeout)
	}

	start := time.Now()
	resp, err := client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request to %s failed: %v", req.URL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %v", err)
	}

	if inv.verbose {
		log.Printf("[INVOKER] %s -> %s in %v (%d body bytes)", req.URL, resp.Status, time.Since(start), len(body))
	}

	return rawFrame(resp, body), nil
}

func buildTLSConfig(creds interfaces.CredentialPaths) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(creds.CertPath, creds.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load client key pair: %v", err)
	}

	caPEM, err := os.ReadFile(creds.CAPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA bundle: %v", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("CA bundle contains no usable certificates")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
	}, nil
}

// rawFrame reconstructs the response as a raw text frame.
func rawFrame(resp *http.Response, body []byte) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\r\n", resp.Proto, resp.Status)

	names := make([]string, 0, len(resp.Header))
	for name := range resp.Header {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, value := range resp.Header[name] {
			fmt.Fprintf(&b, "%s: %s\r\n", name, value)
		}
	}

	b.WriteString("\r\n")
	b.Write(body)
	return b.String()
}
