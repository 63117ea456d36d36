package webhook

import (
	"errors"
	"testing"
	"time"
)

func TestDecodeTransactions(t *testing.T) {
	t.Run("single transaction object", func(t *testing.T) {
		txns, err := DecodeTransactions([]byte(`{"error":0,"data":{
			"id":123,"reference":"FT24001","description":"ThanToanQVFB",
			"amount":150000,"transactionDateTime":"2024-03-05 10:30:00",
			"accountNumber":"0123456789","bankName":"VCB",
			"counterAccountName":"NGUYEN VAN A","counterAccountNumber":"999","counterAccountBankName":"TCB"}}`))
		if err != nil {
			t.Fatalf("DecodeTransactions() error = %v", err)
		}
		if len(txns) != 1 {
			t.Fatalf("expected 1 transaction, got %d", len(txns))
		}
		txn := txns[0]
		if txn.Reference != "FT24001" || txn.AccountNumber != "0123456789" || txn.CounterAccountName != "NGUYEN VAN A" {
			t.Errorf("unexpected transaction: %+v", txn)
		}
		if txn.Amount.String() != "150000" {
			t.Errorf("amount = %s, want 150000", txn.Amount)
		}
	})

	t.Run("legacy array with legacy fields", func(t *testing.T) {
		txns, err := DecodeTransactions([]byte(`{"error":0,"data":[
			{"id":1,"tid":"TID1","description":"a","amount":"1000.5","when":"2024-03-05 10:30:00","bank_sub_acc_id":"555"},
			{"id":2,"description":"b","amount":2000,"when":"2024-03-06 08:00:00"}]}`))
		if err != nil {
			t.Fatalf("DecodeTransactions() error = %v", err)
		}
		if len(txns) != 2 {
			t.Fatalf("expected 2 transactions, got %d", len(txns))
		}
		if txns[0].Reference != "TID1" || txns[0].AccountNumber != "555" || txns[0].TransactionDateTime == "" {
			t.Errorf("legacy fields not normalized: %+v", txns[0])
		}
		if txns[1].Reference != "2" {
			t.Errorf("reference should fall back to id, got %q", txns[1].Reference)
		}
	})

	t.Run("string id", func(t *testing.T) {
		txns, err := DecodeTransactions([]byte(`{"error":0,"data":[{"id":"TX-1","description":"a","amount":1000}]}`))
		if err != nil {
			t.Fatalf("DecodeTransactions() error = %v", err)
		}
		if txns[0].Err != nil || txns[0].ID != "TX-1" || txns[0].Reference != "TX-1" {
			t.Errorf("unexpected transaction: %+v", txns[0])
		}
	})

	t.Run("bad element does not fail the delivery", func(t *testing.T) {
		txns, err := DecodeTransactions([]byte(`{"error":0,"data":[
			{"id":1,"reference":"GOOD","amount":100000,"transactionDateTime":"2024-03-05 10:30:00"},
			{"id":2,"reference":"BAD","amount":"abc"},
			{"id":{"nested":true},"tid":"BADID","amount":5}]}`))
		if err != nil {
			t.Fatalf("DecodeTransactions() error = %v", err)
		}
		if len(txns) != 3 {
			t.Fatalf("expected 3 transactions, got %d", len(txns))
		}
		if txns[0].Err != nil || txns[0].Reference != "GOOD" || txns[0].Amount.IntPart() != 100000 {
			t.Errorf("valid element: %+v", txns[0])
		}
		if txns[1].Err == nil || txns[1].Reference != "BAD" {
			t.Errorf("bad amount: expected error with reference kept, got %+v", txns[1])
		}
		if txns[2].Err == nil || txns[2].Reference != "BADID" {
			t.Errorf("bad id: expected error with reference kept, got %+v", txns[2])
		}
	})

	t.Run("errors", func(t *testing.T) {
		for _, payload := range []string{`not json`, `{"error":1,"data":[]}`, `{"error":0}`, `{"error":0,"data":[]}`, `{"error":0,"data":null}`} {
			if _, err := DecodeTransactions([]byte(payload)); err == nil {
				t.Errorf("DecodeTransactions(%s) expected error", payload)
			}
		}
		if _, err := DecodeTransactions([]byte(`{"error":0,"data":[]}`)); !errors.Is(err, ErrNoTransactions) {
			t.Errorf("empty data error = %v, want %v", err, ErrNoTransactions)
		}
	})
}

func TestTransaction_Time(t *testing.T) {
	loc := time.FixedZone("ICT", 7*3600)

	tests := []struct {
		value string
		want  time.Time
	}{
		{"2024-03-05 10:30:00", time.Date(2024, 3, 5, 10, 30, 0, 0, loc)},
		{"2024-03-05T10:30:00Z", time.Date(2024, 3, 5, 10, 30, 0, 0, time.UTC)},
		{"2024-03-05", time.Date(2024, 3, 5, 0, 0, 0, 0, loc)},
	}
	for _, tt := range tests {
		got, err := Transaction{TransactionDateTime: tt.value}.Time(loc)
		if err != nil {
			t.Errorf("Time(%q) error = %v", tt.value, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("Time(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}

	if _, err := (Transaction{TransactionDateTime: "yesterday"}).Time(loc); err == nil {
		t.Error("expected error for unparseable time")
	}
}
