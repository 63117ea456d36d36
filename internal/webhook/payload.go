package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNoTransactions is returned for payloads without transaction data.
var ErrNoTransactions = errors.New("webhook: payload has no transactions")

var dateLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// TransactionID is the provider's transaction id, sent as a number or a string.
type TransactionID string

func (id *TransactionID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*id = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = TransactionID(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("webhook: invalid transaction id %s", data)
		}
		*id = TransactionID(n.String())
	}
	return nil
}

// Transaction is one bank transfer as delivered by the provider.
// Both the current field names and the legacy ones (tid, when,
// bank_sub_acc_id) are accepted; Normalize folds legacy fields in.
//
// Err is set when this element of the delivery could not be decoded; the
// other fields then hold whatever identification could be recovered.
type Transaction struct {
	ID                     TransactionID   `json:"id"`
	Reference              string          `json:"reference"`
	Description            string          `json:"description"`
	Amount                 decimal.Decimal `json:"amount"`
	TransactionDateTime    string          `json:"transactionDateTime"`
	AccountNumber          string          `json:"accountNumber"`
	BankName               string          `json:"bankName"`
	CounterAccountName     string          `json:"counterAccountName"`
	CounterAccountNumber   string          `json:"counterAccountNumber"`
	CounterAccountBankName string          `json:"counterAccountBankName"`

	LegacyTID        string `json:"tid"`
	LegacyWhen       string `json:"when"`
	LegacySubAccount string `json:"bank_sub_acc_id"`

	Err error `json:"-"`
}

// Normalize copies legacy fields into their current counterparts when unset.
func (t *Transaction) Normalize() {
	if t.Reference == "" {
		t.Reference = t.LegacyTID
	}
	if t.TransactionDateTime == "" {
		t.TransactionDateTime = t.LegacyWhen
	}
	if t.AccountNumber == "" {
		t.AccountNumber = t.LegacySubAccount
	}
	if t.Reference == "" {
		t.Reference = string(t.ID)
	}
}

// Time parses TransactionDateTime. Values without a zone are read in loc.
func (t Transaction) Time(loc *time.Location) (time.Time, error) {
	value := strings.TrimSpace(t.TransactionDateTime)
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range dateLayouts {
		if ts, err := time.ParseInLocation(layout, value, loc); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("webhook: unrecognized transaction time %q", value)
}

type envelope struct {
	Error int             `json:"error"`
	Data  json.RawMessage `json:"data"`
}

// DecodeTransactions reads the transactions of a delivery. The data field may
// be a single transaction or an array of them.
//
// Elements are decoded one by one: an element that does not decode is
// returned with Err set so that the rest of the delivery is still processed.
// An error is returned only when the envelope itself is unusable.
func DecodeTransactions(payload []byte) ([]Transaction, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("webhook: invalid payload: %w", err)
	}
	if env.Error != 0 {
		return nil, fmt.Errorf("webhook: provider reported error code %d", env.Error)
	}

	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, ErrNoTransactions
	}

	var elems []json.RawMessage
	if data[0] == '[' {
		if err := json.Unmarshal(data, &elems); err != nil {
			return nil, fmt.Errorf("webhook: invalid transaction list: %w", err)
		}
	} else {
		elems = append(elems, json.RawMessage(data))
	}
	if len(elems) == 0 {
		return nil, ErrNoTransactions
	}

	txns := make([]Transaction, 0, len(elems))
	for _, elem := range elems {
		txns = append(txns, decodeTransaction(elem))
	}
	return txns, nil
}

func decodeTransaction(elem json.RawMessage) Transaction {
	var txn Transaction
	if err := json.Unmarshal(elem, &txn); err != nil {
		txn = identify(elem)
		txn.Err = fmt.Errorf("webhook: invalid transaction: %w", err)
	}
	txn.Normalize()
	return txn
}

// identify recovers the identifying fields of an element that failed to decode.
func identify(elem json.RawMessage) Transaction {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(elem, &fields); err != nil {
		return Transaction{}
	}
	text := func(key string) string {
		var s string
		_ = json.Unmarshal(fields[key], &s)
		return s
	}

	var id TransactionID
	_ = id.UnmarshalJSON(fields["id"])
	return Transaction{
		ID:                   id,
		Reference:            text("reference"),
		Description:          text("description"),
		AccountNumber:        text("accountNumber"),
		CounterAccountNumber: text("counterAccountNumber"),
		LegacyTID:            text("tid"),
	}
}
