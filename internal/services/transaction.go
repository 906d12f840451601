package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"payment-terminal/internal/api"
	"payment-terminal/internal/certs"
	"payment-terminal/internal/credentials"
	"payment-terminal/internal/interfaces"
	"payment-terminal/internal/models"
	"payment-terminal/internal/rawresp"
)

// TransactionService drives the certificate-authenticated settlement
// workflows: generating a new transaction id and fetching the history of an
// existing one. Both run the same pipeline: validate input, materialize
// credentials, invoke the remote API, parse the raw response, release
// credentials.
type TransactionService struct {
	invoker     interfaces.RemoteInvoker
	credentials *credentials.Manager
	gateway     interfaces.PersistenceGateway
	endpoints   Endpoints
	verbose     bool
}

// NewTransactionService creates the service over its injected collaborators.
func NewTransactionService(
	invoker interfaces.RemoteInvoker,
	creds *credentials.Manager,
	gateway interfaces.PersistenceGateway,
	endpoints Endpoints,
	verbose bool,
) *TransactionService {
	return &TransactionService{
		invoker:     invoker,
		credentials: creds,
		gateway:     gateway,
		endpoints:   endpoints,
		verbose:     verbose,
	}
}

// GenerateInput is the caller-supplied material for one generate workflow.
// IBAN and amount are persisted for the terminal's own records; they are not
// sent to the settlement API.
type GenerateInput struct {
	RawCert  []byte
	RawKey   []byte
	RawCA    []byte // optional; preconfigured per-mode CA bundle when empty
	IBAN     string
	Amount   string
	Mode     interfaces.Mode
	ClientIP string
}

// GenerateResult is the successful (possibly degraded) outcome.
type GenerateResult struct {
	TransactionID string
	Response      rawresp.Parsed
	Identity      interfaces.Identity
}

type pemSet struct {
	cert string
	key  string
	ca   string
}

// normalizeMaterial validates and canonicalizes the credential material,
// falling back to the preconfigured CA bundle for the mode when the caller
// did not supply one.
func normalizeMaterial(endpoints Endpoints, rawCert, rawKey, rawCA []byte, mode interfaces.Mode) (*pemSet, error) {
	if len(rawCert) == 0 || len(rawKey) == 0 {
		return nil, workflowErr(api.ErrorCodeValidation, fmt.Errorf("client certificate and key are required"))
	}

	certPEM, err := certs.NormalizePEM(rawCert, certs.KindCertificate)
	if err != nil {
		return nil, classifyPEMErr("certificate", err)
	}
	keyPEM, err := certs.NormalizePEM(rawKey, certs.KindKey)
	if err != nil {
		return nil, classifyPEMErr("key", err)
	}

	if len(rawCA) == 0 {
		path := endpoints.CAPath(mode)
		if path == "" {
			return nil, workflowErr(api.ErrorCodeValidation, fmt.Errorf("CA bundle is required and no %s bundle is configured", mode))
		}
		rawCA, err = os.ReadFile(path)
		if err != nil {
			return nil, workflowErr(api.ErrorCodeCredentialWrite, fmt.Errorf("failed to read configured CA bundle: %v", err))
		}
	}
	caPEM, err := certs.NormalizePEM(rawCA, certs.KindCA)
	if err != nil {
		return nil, classifyPEMErr("CA bundle", err)
	}

	return &pemSet{cert: certPEM, key: keyPEM, ca: caPEM}, nil
}

func classifyPEMErr(what string, err error) error {
	if errors.Is(err, certs.ErrMalformedPEM) {
		return workflowErr(api.ErrorCodeMalformedPEM, fmt.Errorf("%s: %v", what, err))
	}
	return workflowErr(api.ErrorCodeValidation, fmt.Errorf("%s: %v", what, err))
}

// Generate runs the full generate-transaction workflow. On remote failure a
// partial audit record is still persisted, and credentials are released on
// every exit path.
func (s *TransactionService) Generate(ctx context.Context, in GenerateInput) (*GenerateResult, error) {
	material, err := normalizeMaterial(s.endpoints, in.RawCert, in.RawKey, in.RawCA, in.Mode)
	if err != nil {
		return nil, err
	}
	if in.IBAN == "" {
		return nil, workflowErr(api.ErrorCodeValidation, fmt.Errorf("iban is required"))
	}
	amount, err := models.ParseAmount(in.Amount)
	if err != nil {
		return nil, workflowErr(api.ErrorCodeValidation, err)
	}
	if s.verbose {
		log.Printf("[TRANSACTION] Generating transaction of %s to %s (%s endpoint)", models.FormatAmount(amount), in.IBAN, in.Mode)
	}

	identity := certs.ExtractIdentity(in.RawCert)

	set, err := s.credentials.Acquire(uuid.NewString(), material.cert, material.key, material.ca)
	if err != nil {
		return nil, workflowErr(api.ErrorCodeCredentialWrite, err)
	}
	defer s.credentials.Release(set)

	start := time.Now()
	raw, err := s.invoker.Invoke(ctx, interfaces.RemoteRequest{
		Method:      "POST",
		URL:         s.endpoints.SettlementBase(in.Mode) + "/generateNewTransactionId",
		Timeout:     s.endpoints.RemoteTimeout,
		Credentials: set.Paths(),
	})
	duration := time.Since(start)

	if err != nil {
		// The attempt stays auditable even though the call failed.
		s.persistTransaction(ctx, identity, in, &amount, "", 0, duration, nil)
		return nil, workflowErr(api.ErrorCodeRemoteCall, fmt.Errorf("settlement call failed: %v", err))
	}

	parsed := rawresp.Parse(raw)
	if s.verbose {
		if parsed.EmptyBody {
			log.Printf("[TRANSACTION] Remote returned status %d with empty body", parsed.StatusCode)
		} else {
			log.Printf("[TRANSACTION] Remote returned status %d, transaction id %q", parsed.StatusCode, parsed.TransactionID())
		}
	}

	s.persistTransaction(ctx, identity, in, &amount, parsed.TransactionID(), parsed.StatusCode, duration, parsed.CreatedAt())

	return &GenerateResult{
		TransactionID: parsed.TransactionID(),
		Response:      parsed,
		Identity:      identity,
	}, nil
}

// persistTransaction writes the audit record. Persistence failure is logged
// and never fails the workflow: the remote transaction already exists and
// the caller must still learn its id.
func (s *TransactionService) persistTransaction(
	ctx context.Context,
	identity interfaces.Identity,
	in GenerateInput,
	amount *int64,
	transactionID string,
	statusCode int,
	duration time.Duration,
	remoteTS *time.Time,
) {
	rec := &models.TransactionRecord{
		TransactionID:     transactionID,
		IBAN:              &in.IBAN,
		Amount:            amount,
		Endpoint:          string(in.Mode),
		ClientIP:          in.ClientIP,
		StatusCode:        statusCode,
		DurationMs:        duration.Milliseconds(),
		ResponseTimestamp: remoteTS,
		CreatedAt:         time.Now(),
	}
	if identity.VATSK != nil {
		rec.VATSK = *identity.VATSK
	}
	if identity.Pokladnica != nil {
		rec.Pokladnica = *identity.Pokladnica
	}

	if err := s.gateway.InsertTransaction(ctx, rec); err != nil {
		log.Printf("[TRANSACTION] Failed to persist transaction record %q: %v", transactionID, err)
	}
}

// HistoryInput parameterizes the read-only history fetch.
type HistoryInput struct {
	RawCert       []byte
	RawKey        []byte
	RawCA         []byte
	TransactionID string
	Mode          interfaces.Mode
}

// FetchHistory runs the credential/invoke/parse pipeline against the history
// endpoint. No persistence step; same parse fallbacks as Generate.
func (s *TransactionService) FetchHistory(ctx context.Context, in HistoryInput) (*rawresp.Parsed, error) {
	if in.TransactionID == "" {
		return nil, workflowErr(api.ErrorCodeValidation, fmt.Errorf("transaction id is required"))
	}
	material, err := normalizeMaterial(s.endpoints, in.RawCert, in.RawKey, in.RawCA, in.Mode)
	if err != nil {
		return nil, err
	}

	set, err := s.credentials.Acquire(uuid.NewString(), material.cert, material.key, material.ca)
	if err != nil {
		return nil, workflowErr(api.ErrorCodeCredentialWrite, err)
	}
	defer s.credentials.Release(set)

	raw, err := s.invoker.Invoke(ctx, interfaces.RemoteRequest{
		Method:      "GET",
		URL:         s.endpoints.SettlementBase(in.Mode) + "/getTransactionHistory/" + in.TransactionID,
		Timeout:     s.endpoints.RemoteTimeout,
		Credentials: set.Paths(),
	})
	if err != nil {
		return nil, workflowErr(api.ErrorCodeRemoteCall, fmt.Errorf("settlement call failed: %v", err))
	}

	parsed := rawresp.Parse(raw)
	return &parsed, nil
}
