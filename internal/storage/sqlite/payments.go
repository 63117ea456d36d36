package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/storage"
)

const paymentColumns = `id, debtor_id, creditor_id, group_id, year, month, amount, paid_at,
	notes, status, idempotency_key, created_by, created_at`

// CreatePayment inserts a payment and assigns its ID.
// A taken idempotency key surfaces as storage.ErrDuplicate.
func (s *SQLiteStore) CreatePayment(ctx context.Context, payment *models.Payment) error {
	if payment.CreatedAt == 0 {
		payment.CreatedAt = time.Now().Unix()
	}
	if payment.Status == "" {
		payment.Status = models.PaymentPending
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO payments (debtor_id, creditor_id, group_id, year, month, amount, paid_at,
			notes, status, idempotency_key, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.DebtorID,
		nullInt64(payment.CreditorID),
		nullInt64(payment.GroupID),
		payment.Year,
		payment.Month,
		payment.Amount,
		payment.PaidAt.Unix(),
		payment.Notes,
		string(payment.Status),
		nullString(payment.IdempotencyKey),
		nullInt64(payment.CreatedBy),
		payment.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("payment %q: %w", payment.IdempotencyKey, storage.ErrDuplicate)
		}
		return fmt.Errorf("failed to insert payment: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read payment id: %w", err)
	}
	payment.ID = id
	return nil
}

// GetPayment retrieves a payment by ID. Returns nil, nil if not found.
func (s *SQLiteStore) GetPayment(ctx context.Context, id int64) (*models.Payment, error) {
	payment, err := scanPayment(s.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return payment, nil
}

// ListPayments retrieves payments matching the filter ordered by payment date.
func (s *SQLiteStore) ListPayments(ctx context.Context, filter storage.PaymentFilter) ([]*models.Payment, error) {
	var where []string
	var args []any
	if filter.GroupID != nil {
		where = append(where, "group_id = ?")
		args = append(args, *filter.GroupID)
	}
	if filter.DebtorID != nil {
		where = append(where, "debtor_id = ?")
		args = append(args, *filter.DebtorID)
	}
	if filter.Year != 0 {
		where = append(where, "year = ?")
		args = append(args, filter.Year)
	}
	if filter.Month != 0 {
		where = append(where, "month = ?")
		args = append(args, filter.Month)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := `SELECT ` + paymentColumns + ` FROM payments`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY paid_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, payment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payments: %w", err)
	}
	return payments, nil
}

// ConfirmPayment marks a payment as confirmed. Confirming twice is a no-op.
func (s *SQLiteStore) ConfirmPayment(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE payments SET status = ? WHERE id = ?`,
		string(models.PaymentConfirmed), id)
	if err != nil {
		return fmt.Errorf("failed to confirm payment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("payment %d: %w", id, storage.ErrNotFound)
	}
	return nil
}

func scanPayment(row rowScanner) (*models.Payment, error) {
	payment := &models.Payment{}
	var creditorID, groupID, createdBy sql.NullInt64
	var key sql.NullString
	var status string
	var paidAt int64

	if err := row.Scan(
		&payment.ID,
		&payment.DebtorID,
		&creditorID,
		&groupID,
		&payment.Year,
		&payment.Month,
		&payment.Amount,
		&paidAt,
		&payment.Notes,
		&status,
		&key,
		&createdBy,
		&payment.CreatedAt,
	); err != nil {
		return nil, err
	}

	payment.CreditorID = int64Ptr(creditorID)
	payment.GroupID = int64Ptr(groupID)
	payment.CreatedBy = int64Ptr(createdBy)
	payment.IdempotencyKey = key.String
	payment.Status = models.PaymentStatus(status)
	payment.PaidAt = time.Unix(paidAt, 0).UTC()
	return payment, nil
}
