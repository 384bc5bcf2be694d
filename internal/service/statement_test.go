package service

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"pawpay/internal/clients"
	"pawpay/internal/domain"
	"pawpay/internal/repository"
)

type fakeStatementSource struct {
	lines []domain.StatementLine
	err   error
}

func (f *fakeStatementSource) ListLines(ctx context.Context, ex repository.Executor, clinicID string, from, to time.Time) ([]domain.StatementLine, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.lines, nil
}

func sampleStatementLines() []domain.StatementLine {
	seq := 1
	processed := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	payout := int64(30_336)
	transfer := "tr_1"
	return []domain.StatementLine{
		{
			PaymentID:         "pay-1",
			PlanID:            "plan-1",
			OwnerName:         "Jordan Blake",
			OwnerEmail:        "jordan@example.com",
			PetName:           "Biscuit",
			Type:              domain.PaymentDeposit,
			AmountCents:       31_800,
			ProcessedAt:       &processed,
			PayoutAmountCents: &payout,
			TransferID:        &transfer,
		},
		{
			PaymentID:   "pay-2",
			PlanID:      "plan-1",
			OwnerName:   "Jordan Blake",
			OwnerEmail:  "jordan@example.com",
			PetName:     "Biscuit",
			Type:        domain.PaymentInstallment,
			SequenceNum: &seq,
			AmountCents: 15_900,
			ProcessedAt: &processed,
		},
	}
}

func TestBuildStatementWorkbook(t *testing.T) {
	data, err := buildStatementWorkbook("clinic-1", sampleStatementLines())
	if err != nil {
		t.Fatalf("build workbook: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	sheet := "Statement"
	if header, _ := f.GetCellValue(sheet, "A1"); header != "Payment ID" {
		t.Fatalf("expected Payment ID header, got %q", header)
	}
	if owner, _ := f.GetCellValue(sheet, "C2"); owner != "Jordan Blake" {
		t.Fatalf("expected owner name in C2, got %q", owner)
	}
	if amount, _ := f.GetCellValue(sheet, "H2"); amount != "318" {
		t.Fatalf("expected deposit amount 318, got %q", amount)
	}
	if seq, _ := f.GetCellValue(sheet, "G3"); seq != "1" {
		t.Fatalf("expected installment sequence 1, got %q", seq)
	}

	// totals row sits one row below the last line
	if label, _ := f.GetCellValue(sheet, "A5"); label != "Total" {
		t.Fatalf("expected Total label in A5, got %q", label)
	}
	if total, _ := f.GetCellValue(sheet, "H5"); total != "477" {
		t.Fatalf("expected total 477, got %q", total)
	}
	if payout, _ := f.GetCellValue(sheet, "J5"); payout != "303.36" {
		t.Fatalf("expected payout total 303.36, got %q", payout)
	}
}

func TestStartStatementValidation(t *testing.T) {
	m := newMemStore()
	seedActiveClinic(m, "clinic-1")

	svc := NewStatementService(
		&fakeStatementSource{}, m, nil, nil, nil, nil, zap.NewNop(),
	)

	from := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	_, err := svc.StartStatement(context.Background(), "clinic-1", from, from)
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error for empty period, got %v", err)
	}

	_, err = svc.StartStatement(context.Background(), "clinic-missing", from, from.AddDate(0, 1, 0))
	if !domain.IsNotFound(err) {
		t.Fatalf("expected not found for unknown clinic, got %v", err)
	}
}

func TestRunStatementWritesWorkbookToLocalStorage(t *testing.T) {
	m := newMemStore()
	seedActiveClinic(m, "clinic-1")

	dir := t.TempDir()
	storage, err := clients.NewLocalStorage(dir, "/files", "")
	if err != nil {
		t.Fatalf("storage init: %v", err)
	}

	svc := NewStatementService(
		&fakeStatementSource{lines: sampleStatementLines()},
		m, nil, nil, storage, nil, zap.NewNop(),
	)

	status := &StatementStatus{
		Key:      "statements:test",
		ClinicID: "clinic-1",
		From:     time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		To:       time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Created:  time.Now().UTC(),
	}
	svc.runStatement(context.Background(), status)

	if status.Error != nil {
		t.Fatalf("unexpected statement error: %s", *status.Error)
	}
	if status.Progress != 100 {
		t.Fatalf("expected progress 100, got %v", status.Progress)
	}
	if status.FileURL == nil {
		t.Fatal("expected file URL")
	}
	if !strings.Contains(*status.FileURL, "statement_20260201_20260301.xlsx") {
		t.Fatalf("unexpected file URL %s", *status.FileURL)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read storage dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one stored file, got %d", len(entries))
	}
	if filepath.Ext(entries[0].Name()) != ".xlsx" {
		t.Fatalf("expected xlsx file, got %s", entries[0].Name())
	}
}

func TestRunStatementRecordsSourceFailure(t *testing.T) {
	m := newMemStore()
	seedActiveClinic(m, "clinic-1")

	svc := NewStatementService(
		&fakeStatementSource{err: os.ErrDeadlineExceeded},
		m, nil, nil, nil, nil, zap.NewNop(),
	)

	status := &StatementStatus{Key: "statements:test", ClinicID: "clinic-1"}
	svc.runStatement(context.Background(), status)

	if status.Error == nil {
		t.Fatal("expected recorded error")
	}
	if status.FileURL != nil {
		t.Fatal("expected no file URL on failure")
	}
}
