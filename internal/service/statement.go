package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"pawpay/internal/clients"
	"pawpay/internal/domain"
	"pawpay/internal/repository"
)

type StatementSource interface {
	ListLines(ctx context.Context, ex repository.Executor, clinicID string, from, to time.Time) ([]domain.StatementLine, error)
}

// StatementStatus tracks one asynchronous statement export in redis.
type StatementStatus struct {
	Key      string    `json:"key"`
	ClinicID string    `json:"clinic_id"`
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
	Progress float64   `json:"progress"`
	FileURL  *string   `json:"file_url"`
	Error    *string   `json:"error"`
	Created  time.Time `json:"created_at"`
}

const (
	statementSetKey = "statement_ids"
	statementTTL    = 48 * time.Hour
)

// StatementService generates per-clinic settlement statements as xlsx
// workbooks. Generation runs in the background; progress and the final file
// URL are tracked in redis and pushed over the clinic's websocket channel.
type StatementService struct {
	source  StatementSource
	clinics ClinicStore
	redis   *clients.RedisClient
	s3      *clients.S3Client
	storage *clients.StorageClient
	ws      *clients.WebSocketClient
	log     *zap.Logger
}

func NewStatementService(
	source StatementSource,
	clinics ClinicStore,
	redis *clients.RedisClient,
	s3 *clients.S3Client,
	storage *clients.StorageClient,
	ws *clients.WebSocketClient,
	log *zap.Logger,
) *StatementService {
	return &StatementService{
		source:  source,
		clinics: clinics,
		redis:   redis,
		s3:      s3,
		storage: storage,
		ws:      ws,
		log:     log,
	}
}

func (s *StatementService) saveStatus(ctx context.Context, st *StatementStatus) error {
	if s.redis == nil {
		return nil
	}

	data, err := json.Marshal(st)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, st.Key, string(data), statementTTL); err != nil {
		return err
	}
	return s.redis.SAdd(ctx, statementSetKey, st.Key)
}

// StartStatement validates the request and kicks off background generation,
// returning the statement id to poll.
func (s *StatementService) StartStatement(ctx context.Context, clinicID string, from, to time.Time) (string, error) {
	if !to.After(from) {
		return "", &domain.ValidationError{Field: "period", Message: "statement period end must be after start"}
	}
	if _, err := s.clinics.GetByID(ctx, nil, clinicID); err != nil {
		return "", err
	}

	statementID := fmt.Sprintf("statements:%s", uuid.NewString())
	now := time.Now().UTC()

	status := &StatementStatus{
		Key:      statementID,
		ClinicID: clinicID,
		From:     from,
		To:       to,
		Progress: 0,
		Created:  now,
	}
	_ = s.saveStatus(ctx, status)

	go s.runStatement(context.Background(), status)

	return statementID, nil
}

// GetStatement returns the current status of one statement export for a
// clinic.
func (s *StatementService) GetStatement(ctx context.Context, statementID, clinicID string) (*StatementStatus, error) {
	if s.redis == nil {
		return nil, errors.New("redis client not configured")
	}

	data, err := s.redis.Get(ctx, statementID)
	if err != nil {
		return nil, &domain.NotFoundError{Entity: "statement", ID: statementID}
	}

	var status StatementStatus
	if err := json.Unmarshal([]byte(data), &status); err != nil {
		return nil, fmt.Errorf("failed to parse statement status: %w", err)
	}
	if status.ClinicID != clinicID {
		return nil, &domain.NotFoundError{Entity: "statement", ID: statementID}
	}
	return &status, nil
}

// ListStatements returns a clinic's statement exports, newest first.
func (s *StatementService) ListStatements(ctx context.Context, clinicID string) ([]StatementStatus, error) {
	if s.redis == nil {
		return nil, errors.New("redis client not configured")
	}

	keys, err := s.redis.SMembers(ctx, statementSetKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get statement keys: %w", err)
	}

	var statuses []StatementStatus
	for _, key := range keys {
		data, err := s.redis.Get(ctx, key)
		if err != nil {
			continue
		}
		var status StatementStatus
		if err := json.Unmarshal([]byte(data), &status); err != nil {
			continue
		}
		if status.ClinicID == clinicID {
			statuses = append(statuses, status)
		}
	}

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Created.After(statuses[j].Created)
	})
	return statuses, nil
}

func (s *StatementService) runStatement(ctx context.Context, status *StatementStatus) {
	fail := func(err error) {
		msg := err.Error()
		status.Error = &msg
		_ = s.saveStatus(ctx, status)
		_ = s.ws.NotifyStatementFailed(ctx, status.ClinicID, status.Key, msg)
		s.log.Error("statement generation failed",
			zap.String("statement_id", status.Key),
			zap.String("clinic_id", status.ClinicID),
			zap.Error(err),
		)
	}

	lines, err := s.source.ListLines(ctx, nil, status.ClinicID, status.From, status.To)
	if err != nil {
		fail(err)
		return
	}

	status.Progress = 50
	_ = s.saveStatus(ctx, status)

	data, err := buildStatementWorkbook(status.ClinicID, lines)
	if err != nil {
		fail(err)
		return
	}

	status.Progress = 95
	_ = s.saveStatus(ctx, status)

	fileName := fmt.Sprintf("statement_%s_%s.xlsx", status.From.Format("20060102"), status.To.Format("20060102"))

	url, err := s.storeWorkbook(ctx, fileName, data)
	if err != nil {
		fail(err)
		return
	}

	status.FileURL = &url
	status.Progress = 100
	_ = s.saveStatus(ctx, status)

	_ = s.ws.NotifyStatementReady(ctx, status.ClinicID, status.Key, url, fileName)
	s.log.Info("statement ready",
		zap.String("statement_id", status.Key),
		zap.String("clinic_id", status.ClinicID),
		zap.Int("lines", len(lines)),
	)
}

// storeWorkbook prefers the object store; local disk is the fallback when
// no bucket is configured.
func (s *StatementService) storeWorkbook(ctx context.Context, fileName string, data []byte) (string, error) {
	if s.s3 != nil {
		key, err := s.s3.UploadStatement(ctx, fileName, data)
		if err != nil {
			return "", err
		}
		return s.s3.GetTemporaryURL(ctx, key, statementTTL)
	}
	if s.storage != nil {
		saved, err := s.storage.Save(ctx, fileName, data)
		if err != nil {
			return "", err
		}
		return s.storage.GetURL(saved), nil
	}
	return "", errors.New("no statement storage configured")
}

type statementColumn struct {
	Header string
	Value  func(l domain.StatementLine) any
}

var statementColumns = []statementColumn{
	{"Payment ID", func(l domain.StatementLine) any { return l.PaymentID }},
	{"Plan ID", func(l domain.StatementLine) any { return l.PlanID }},
	{"Owner", func(l domain.StatementLine) any { return l.OwnerName }},
	{"Owner Email", func(l domain.StatementLine) any { return l.OwnerEmail }},
	{"Pet", func(l domain.StatementLine) any { return l.PetName }},
	{"Type", func(l domain.StatementLine) any { return string(l.Type) }},
	{"Installment #", func(l domain.StatementLine) any {
		if l.SequenceNum == nil {
			return ""
		}
		return *l.SequenceNum
	}},
	{"Amount", func(l domain.StatementLine) any { return centsToDollars(l.AmountCents) }},
	{"Settled At", func(l domain.StatementLine) any {
		if l.ProcessedAt == nil {
			return ""
		}
		return l.ProcessedAt.Format("2006-01-02 15:04:05")
	}},
	{"Payout", func(l domain.StatementLine) any {
		if l.PayoutAmountCents == nil {
			return ""
		}
		return centsToDollars(*l.PayoutAmountCents)
	}},
	{"Transfer ID", func(l domain.StatementLine) any {
		if l.TransferID == nil {
			return ""
		}
		return *l.TransferID
	}},
}

func centsToDollars(cents int64) float64 {
	return float64(cents) / 100
}

func buildStatementWorkbook(clinicID string, lines []domain.StatementLine) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "Statement"
	f.SetSheetName(f.GetSheetName(0), sheet)

	_ = f.SetDocProps(&excelize.DocProperties{
		Creator: fmt.Sprintf("clinic_%s", clinicID),
	})

	for i, col := range statementColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, col.Header)
	}

	rowIdx := 2
	var totalCents, payoutCents int64
	for _, line := range lines {
		for colIdx, col := range statementColumns {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx)
			_ = f.SetCellValue(sheet, cell, col.Value(line))
		}
		totalCents += line.AmountCents
		if line.PayoutAmountCents != nil {
			payoutCents += *line.PayoutAmountCents
		}
		rowIdx++
	}

	// totals row
	labelCell, _ := excelize.CoordinatesToCellName(1, rowIdx+1)
	_ = f.SetCellValue(sheet, labelCell, "Total")
	amountCell, _ := excelize.CoordinatesToCellName(8, rowIdx+1)
	_ = f.SetCellValue(sheet, amountCell, centsToDollars(totalCents))
	payoutCell, _ := excelize.CoordinatesToCellName(10, rowIdx+1)
	_ = f.SetCellValue(sheet, payoutCell, centsToDollars(payoutCents))

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
