package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/settleup/internal/models"
	"github.com/mmynk/settleup/internal/storage"
)

// CreateExpense persists an expense and its participants in a single transaction.
func (s *SQLiteStore) CreateExpense(ctx context.Context, expense *models.Expense) error {
	if expense.CreatedAt == 0 {
		expense.CreatedAt = time.Now().Unix()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO expenses (group_id, payer_id, amount, description, expense_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		nullInt64(expense.GroupID),
		expense.PayerID,
		expense.Amount,
		expense.Description,
		expense.Date.Unix(),
		expense.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read expense id: %w", err)
	}

	for i := range expense.Participants {
		p := &expense.Participants[i]
		p.ExpenseID = id

		var amount decimal.NullDecimal
		if p.Amount != nil {
			amount = decimal.NewNullDecimal(*p.Amount)
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO expense_participants (expense_id, user_id, amount) VALUES (?, ?, ?)`,
			id, p.UserID, amount)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("participant %d listed twice: %w", p.UserID, storage.ErrDuplicate)
			}
			return fmt.Errorf("failed to insert participant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	expense.ID = id
	return nil
}

// GetExpense retrieves an expense with its participants. Returns nil, nil if not found.
func (s *SQLiteStore) GetExpense(ctx context.Context, id int64) (*models.Expense, error) {
	expense, err := scanExpense(s.db.QueryRowContext(ctx,
		`SELECT id, group_id, payer_id, amount, description, expense_date, created_at
		 FROM expenses WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	byID := map[int64]*models.Expense{expense.ID: expense}
	if err := s.loadParticipants(ctx, byID); err != nil {
		return nil, err
	}
	return expense, nil
}

// ListExpenses retrieves expenses ordered by date, each with its participants.
func (s *SQLiteStore) ListExpenses(ctx context.Context, filter storage.ExpenseFilter) ([]*models.Expense, error) {
	query := `SELECT id, group_id, payer_id, amount, description, expense_date, created_at FROM expenses`
	var args []any
	if filter.GroupID != nil {
		query += ` WHERE group_id = ?`
		args = append(args, *filter.GroupID)
	}
	query += ` ORDER BY expense_date, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*models.Expense
	byID := make(map[int64]*models.Expense)
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, expense)
		byID[expense.ID] = expense
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expenses: %w", err)
	}

	if err := s.loadParticipants(ctx, byID); err != nil {
		return nil, err
	}
	return expenses, nil
}

// DeleteExpense removes an expense; participants are removed by cascade.
func (s *SQLiteStore) DeleteExpense(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("expense %d: %w", id, storage.ErrNotFound)
	}
	return nil
}

func scanExpense(row rowScanner) (*models.Expense, error) {
	expense := &models.Expense{}
	var groupID sql.NullInt64
	var date int64
	if err := row.Scan(
		&expense.ID,
		&groupID,
		&expense.PayerID,
		&expense.Amount,
		&expense.Description,
		&date,
		&expense.CreatedAt,
	); err != nil {
		return nil, err
	}
	expense.GroupID = int64Ptr(groupID)
	expense.Date = time.Unix(date, 0).UTC()
	return expense, nil
}

// loadParticipants fills Participants for every expense in byID with one query.
func (s *SQLiteStore) loadParticipants(ctx context.Context, byID map[int64]*models.Expense) error {
	if len(byID) == 0 {
		return nil
	}

	args := make([]any, 0, len(byID))
	for id := range byID {
		args = append(args, id)
	}

	query := `SELECT expense_id, user_id, amount FROM expense_participants
		WHERE expense_id IN (?` + repeatPlaceholder(len(args)-1) + `)
		ORDER BY expense_id, user_id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p models.ExpenseParticipant
		var amount decimal.NullDecimal
		if err := rows.Scan(&p.ExpenseID, &p.UserID, &amount); err != nil {
			return fmt.Errorf("failed to scan participant: %w", err)
		}
		if amount.Valid {
			v := amount.Decimal
			p.Amount = &v
		}
		if e, ok := byID[p.ExpenseID]; ok {
			e.Participants = append(e.Participants, p)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating participants: %w", err)
	}
	return nil
}
