package storage

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"

	"payment-terminal/internal/interfaces"
	"payment-terminal/internal/models"
)

// PostgresStorage is the durable persistence gateway backed by pgx.
type PostgresStorage struct {
	pool    *pgxpool.Pool
	verbose bool
}

var _ interfaces.PersistenceGateway = (*PostgresStorage)(nil)

// NewPostgresStorage connects to the database and ensures the schema.
func NewPostgresStorage(ctx context.Context, dsn string, verbose bool) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %v", err)
	}

	ps := &PostgresStorage{pool: pool, verbose: verbose}
	if err := ps.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return ps, nil
}

// Close releases the connection pool.
func (ps *PostgresStorage) Close() {
	ps.pool.Close()
}

func (ps *PostgresStorage) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS transactions (
			id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
			transaction_id TEXT NOT NULL,
			vatsk TEXT NOT NULL DEFAULT '',
			pokladnica TEXT NOT NULL DEFAULT '',
			iban TEXT,
			amount BIGINT,
			endpoint TEXT NOT NULL DEFAULT '',
			client_ip TEXT NOT NULL DEFAULT '',
			status_code INT NOT NULL DEFAULT 0,
			duration_ms BIGINT NOT NULL DEFAULT 0,
			response_timestamp TIMESTAMPTZ,
			dispute BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS transactions_txid_idx ON transactions (transaction_id)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
			topic TEXT NOT NULL,
			raw_payload TEXT NOT NULL DEFAULT '',
			vatsk TEXT NOT NULL DEFAULT '',
			pokladnica TEXT NOT NULL DEFAULT '',
			transaction_id TEXT NOT NULL,
			transaction_status TEXT,
			amount BIGINT,
			currency TEXT,
			integrity_hash TEXT,
			end_to_end_id TEXT,
			received_at TIMESTAMPTZ NOT NULL,
			integrity_validation BOOLEAN,
			remote_timestamp TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS notifications_txid_idx ON notifications (transaction_id)`,
	}
	for _, stmt := range statements {
		if _, err := ps.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %v", err)
		}
	}
	return nil
}

func (ps *PostgresStorage) InsertTransaction(ctx context.Context, rec *models.TransactionRecord) error {
	_, err := ps.pool.Exec(ctx,
		`INSERT INTO transactions
			(transaction_id, vatsk, pokladnica, iban, amount, endpoint, client_ip,
			 status_code, duration_ms, response_timestamp, dispute, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		rec.TransactionID, rec.VATSK, rec.Pokladnica, rec.IBAN, rec.Amount,
		rec.Endpoint, rec.ClientIP, rec.StatusCode, rec.DurationMs,
		rec.ResponseTimestamp, rec.Dispute, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %v", err)
	}
	if ps.verbose {
		log.Printf("[STORAGE] Stored transaction %q", rec.TransactionID)
	}
	return nil
}

func (ps *PostgresStorage) InsertNotification(ctx context.Context, rec *models.NotificationRecord) error {
	_, err := ps.pool.Exec(ctx,
		`INSERT INTO notifications
			(topic, raw_payload, vatsk, pokladnica, transaction_id, transaction_status,
			 amount, currency, integrity_hash, end_to_end_id, received_at,
			 integrity_validation, remote_timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		rec.Topic, rec.RawPayload, rec.VATSK, rec.Pokladnica, rec.TransactionID,
		rec.TransactionStatus, rec.Amount, rec.Currency, rec.IntegrityHash,
		rec.EndToEndID, rec.ReceivedAt, rec.IntegrityValidation, rec.RemoteTimestamp)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %v", err)
	}
	return nil
}

const transactionColumns = `transaction_id, vatsk, pokladnica, iban, amount, endpoint,
	client_ip, status_code, duration_ms, response_timestamp, dispute, created_at`

func scanTransaction(row interface{ Scan(...any) error }) (*models.TransactionRecord, error) {
	var rec models.TransactionRecord
	err := row.Scan(&rec.TransactionID, &rec.VATSK, &rec.Pokladnica, &rec.IBAN,
		&rec.Amount, &rec.Endpoint, &rec.ClientIP, &rec.StatusCode,
		&rec.DurationMs, &rec.ResponseTimestamp, &rec.Dispute, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

const notificationColumns = `topic, raw_payload, vatsk, pokladnica, transaction_id,
	transaction_status, amount, currency, integrity_hash, end_to_end_id,
	received_at, integrity_validation, remote_timestamp`

func scanNotification(row interface{ Scan(...any) error }) (*models.NotificationRecord, error) {
	var rec models.NotificationRecord
	err := row.Scan(&rec.Topic, &rec.RawPayload, &rec.VATSK, &rec.Pokladnica,
		&rec.TransactionID, &rec.TransactionStatus, &rec.Amount, &rec.Currency,
		&rec.IntegrityHash, &rec.EndToEndID, &rec.ReceivedAt,
		&rec.IntegrityValidation, &rec.RemoteTimestamp)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (ps *PostgresStorage) GetTransaction(ctx context.Context, transactionID string) (*models.TransactionRecord, error) {
	if transactionID == "" {
		return nil, nil
	}
	rows, err := ps.pool.Query(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE transaction_id = $1 ORDER BY id LIMIT 1`,
		transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction: %v", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanTransaction(rows)
}

func (ps *PostgresStorage) GetNotificationsByTransaction(ctx context.Context, transactionID string) ([]*models.NotificationRecord, error) {
	rows, err := ps.pool.Query(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE transaction_id = $1 ORDER BY id`,
		transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %v", err)
	}
	defer rows.Close()

	var matches []*models.NotificationRecord
	for rows.Next() {
		rec, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, rec)
	}
	return matches, rows.Err()
}

func (ps *PostgresStorage) SetDispute(ctx context.Context, transactionID string, disputed bool) (bool, error) {
	if transactionID == "" {
		return false, nil
	}
	tag, err := ps.pool.Exec(ctx,
		`UPDATE transactions SET dispute = $2 WHERE transaction_id = $1`,
		transactionID, disputed)
	if err != nil {
		return false, fmt.Errorf("failed to update dispute flag: %v", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (ps *PostgresStorage) SetIntegrityValidation(ctx context.Context, transactionID string, isValid bool) (int, error) {
	tag, err := ps.pool.Exec(ctx,
		`UPDATE notifications SET integrity_validation = $2 WHERE transaction_id = $1`,
		transactionID, isValid)
	if err != nil {
		return 0, fmt.Errorf("failed to update integrity validation: %v", err)
	}
	return int(tag.RowsAffected()), nil
}

func (ps *PostgresStorage) TransactionsByDate(ctx context.Context, q models.DateQuery) ([]*models.TransactionRecord, error) {
	start, end, err := q.Bounds()
	if err != nil {
		return nil, err
	}
	rows, err := ps.pool.Query(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE created_at >= $1 AND created_at < $2
		   AND ($3 = '' OR pokladnica = $3)
		   AND ($4 = '' OR endpoint = $4)
		 ORDER BY id`,
		start, end, q.Pokladnica, q.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions by date: %v", err)
	}
	defer rows.Close()

	var matches []*models.TransactionRecord
	for rows.Next() {
		rec, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, rec)
	}
	return matches, rows.Err()
}

func (ps *PostgresStorage) NotificationsByDate(ctx context.Context, q models.DateQuery) ([]*models.NotificationRecord, error) {
	start, end, err := q.Bounds()
	if err != nil {
		return nil, err
	}
	rows, err := ps.pool.Query(ctx,
		`SELECT `+notificationColumns+` FROM notifications
		 WHERE received_at >= $1 AND received_at < $2
		   AND ($3 = '' OR pokladnica = $3)
		 ORDER BY id`,
		start, end, q.Pokladnica)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications by date: %v", err)
	}
	defer rows.Close()

	var matches []*models.NotificationRecord
	for rows.Next() {
		rec, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, rec)
	}
	return matches, rows.Err()
}
