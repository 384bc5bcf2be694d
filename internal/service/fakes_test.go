package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pawpay/internal/clients"
	"pawpay/internal/domain"
	"pawpay/internal/repository"
)

// memStore is an in-memory implementation of every store interface plus the
// Transactor. Transact snapshots the state and restores it when fn fails, so
// atomicity assertions hold the same way they would against postgres.
type memStore struct {
	mu sync.Mutex

	clinics     map[string]domain.Clinic
	owners      map[string]domain.Owner
	plans       map[string]domain.Plan
	payments    map[string]domain.Payment
	payouts     map[string]domain.Payout
	collections map[string]domain.SoftCollection
	riskEntries []domain.RiskPoolEntry
	audits      []domain.AuditLogEntry

	// failOn maps "store.Method" to an injected error
	failOn map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		clinics:     map[string]domain.Clinic{},
		owners:      map[string]domain.Owner{},
		plans:       map[string]domain.Plan{},
		payments:    map[string]domain.Payment{},
		payouts:     map[string]domain.Payout{},
		collections: map[string]domain.SoftCollection{},
		failOn:      map[string]error{},
	}
}

func (m *memStore) fail(method string) error {
	return m.failOn[method]
}

func copyMap[V any](src map[string]V) map[string]V {
	dst := make(map[string]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (m *memStore) Transact(ctx context.Context, fn func(ex repository.Executor) error) error {
	m.mu.Lock()
	snapshot := &memStore{
		clinics:     copyMap(m.clinics),
		owners:      copyMap(m.owners),
		plans:       copyMap(m.plans),
		payments:    copyMap(m.payments),
		payouts:     copyMap(m.payouts),
		collections: copyMap(m.collections),
		riskEntries: append([]domain.RiskPoolEntry(nil), m.riskEntries...),
	}
	m.mu.Unlock()

	// audits are not part of the snapshot: the real store writes them on
	// the pool connection, outside the caller's transaction
	if err := fn(nil); err != nil {
		m.mu.Lock()
		m.clinics = snapshot.clinics
		m.owners = snapshot.owners
		m.plans = snapshot.plans
		m.payments = snapshot.payments
		m.payouts = snapshot.payouts
		m.collections = snapshot.collections
		m.riskEntries = snapshot.riskEntries
		m.mu.Unlock()
		return err
	}
	return nil
}

// ClinicStore

func (m *memStore) Create(ctx context.Context, ex repository.Executor, c *domain.Clinic) error {
	if err := m.fail("clinics.Create"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clinics[c.ID] = *c
	return nil
}

func (m *memStore) GetByID(ctx context.Context, ex repository.Executor, id string) (*domain.Clinic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clinics[id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "clinic", ID: id}
	}
	return &c, nil
}

func (m *memStore) SetStatus(ctx context.Context, ex repository.Executor, id string, status domain.ClinicStatus, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clinics[id]
	if !ok {
		return &domain.NotFoundError{Entity: "clinic", ID: id}
	}
	c.Status = status
	c.UpdatedAt = now
	m.clinics[id] = c
	return nil
}

func (m *memStore) SetPayoutAccount(ctx context.Context, ex repository.Executor, id, accountRef string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clinics[id]
	if !ok {
		return &domain.NotFoundError{Entity: "clinic", ID: id}
	}
	c.PayoutAccountID = &accountRef
	c.UpdatedAt = now
	m.clinics[id] = c
	return nil
}

// ownerStore wraps memStore because OwnerStore's method set collides with
// other stores' Create/GetByID signatures.
type ownerStore struct{ m *memStore }

func (s ownerStore) FindByClinicEmail(ctx context.Context, ex repository.Executor, clinicID, email string) (*domain.Owner, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, o := range s.m.owners {
		if o.ClinicID == clinicID && o.Email == email {
			return &o, nil
		}
	}
	return nil, &domain.NotFoundError{Entity: "owner", ID: email}
}

func (s ownerStore) GetByID(ctx context.Context, ex repository.Executor, id string) (*domain.Owner, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	o, ok := s.m.owners[id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "owner", ID: id}
	}
	return &o, nil
}

func (s ownerStore) Create(ctx context.Context, ex repository.Executor, o *domain.Owner) error {
	if err := s.m.fail("owners.Create"); err != nil {
		return err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.owners[o.ID] = *o
	return nil
}

func (s ownerStore) UpdateContact(ctx context.Context, ex repository.Executor, o *domain.Owner, now time.Time) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	stored, ok := s.m.owners[o.ID]
	if !ok {
		return &domain.NotFoundError{Entity: "owner", ID: o.ID}
	}
	stored.FullName = o.FullName
	stored.Phone = o.Phone
	stored.PetName = o.PetName
	stored.UpdatedAt = now
	s.m.owners[o.ID] = stored
	return nil
}

type planStore struct{ m *memStore }

func (s planStore) Create(ctx context.Context, ex repository.Executor, p *domain.Plan) error {
	if err := s.m.fail("plans.Create"); err != nil {
		return err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.plans[p.ID] = *p
	return nil
}

func (s planStore) GetByID(ctx context.Context, ex repository.Executor, id string) (*domain.Plan, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	p, ok := s.m.plans[id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "plan", ID: id}
	}
	return &p, nil
}

func (s planStore) SetStatus(ctx context.Context, ex repository.Executor, id string, status domain.PlanStatus, now time.Time) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	p, ok := s.m.plans[id]
	if !ok {
		return &domain.NotFoundError{Entity: "plan", ID: id}
	}
	p.Status = status
	p.UpdatedAt = now
	switch status {
	case domain.PlanDepositPaid, domain.PlanActive:
		if p.DepositPaidAt == nil {
			p.DepositPaidAt = &now
		}
	case domain.PlanCompleted:
		p.CompletedAt = &now
	}
	s.m.plans[id] = p
	return nil
}

func (s planStore) ApplyPayment(ctx context.Context, ex repository.Executor, id string, amountCents int64, nextPaymentAt *time.Time, now time.Time) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	p, ok := s.m.plans[id]
	if !ok {
		return &domain.NotFoundError{Entity: "plan", ID: id}
	}
	p.RemainingCents -= amountCents
	p.NextPaymentAt = nextPaymentAt
	p.UpdatedAt = now
	s.m.plans[id] = p
	return nil
}

func (s planStore) ListDelinquentWithoutCollection(ctx context.Context, ex repository.Executor, cutoff time.Time) ([]domain.Plan, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []domain.Plan
	for _, p := range s.m.plans {
		if !p.Payable() || p.NextPaymentAt == nil || !p.NextPaymentAt.Before(cutoff) {
			continue
		}
		active := false
		for _, c := range s.m.collections {
			if c.PlanID == p.ID && c.ActiveStage() {
				active = true
				break
			}
		}
		if !active {
			out = append(out, p)
		}
	}
	return out, nil
}

type paymentStore struct{ m *memStore }

func (s paymentStore) CreateBatch(ctx context.Context, ex repository.Executor, payments []domain.Payment) error {
	if err := s.m.fail("payments.CreateBatch"); err != nil {
		return err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, p := range payments {
		s.m.payments[p.ID] = p
	}
	return nil
}

func (s paymentStore) GetByID(ctx context.Context, ex repository.Executor, id string) (*domain.Payment, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	p, ok := s.m.payments[id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "payment", ID: id}
	}
	return &p, nil
}

func (s paymentStore) GetByProcessorRef(ctx context.Context, ex repository.Executor, ref string) (*domain.Payment, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, p := range s.m.payments {
		if p.ProcessorRef != nil && *p.ProcessorRef == ref {
			return &p, nil
		}
	}
	return nil, &domain.NotFoundError{Entity: "payment", ID: ref}
}

func (s paymentStore) ListByPlan(ctx context.Context, ex repository.Executor, planID string) ([]domain.Payment, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []domain.Payment
	for _, p := range s.m.payments {
		if p.PlanID == planID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s paymentStore) ListDue(ctx context.Context, ex repository.Executor, asOf time.Time, limit int) ([]domain.Payment, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []domain.Payment
	for _, p := range s.m.payments {
		if p.Status == domain.PaymentPending && !p.ScheduledAt.After(asOf) {
			out = append(out, p)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s paymentStore) SetStatus(ctx context.Context, ex repository.Executor, id string, status domain.PaymentStatus, now time.Time) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	p, ok := s.m.payments[id]
	if !ok {
		return &domain.NotFoundError{Entity: "payment", ID: id}
	}
	p.Status = status
	p.UpdatedAt = now
	if status == domain.PaymentSucceeded {
		p.ProcessedAt = &now
	}
	s.m.payments[id] = p
	return nil
}

func (s paymentStore) SetProcessorRef(ctx context.Context, ex repository.Executor, id, ref string, now time.Time) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	p, ok := s.m.payments[id]
	if !ok {
		return &domain.NotFoundError{Entity: "payment", ID: id}
	}
	p.ProcessorRef = &ref
	p.UpdatedAt = now
	s.m.payments[id] = p
	return nil
}

func (s paymentStore) MarkFailed(ctx context.Context, ex repository.Executor, id string, status domain.PaymentStatus, reason string, now time.Time) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	p, ok := s.m.payments[id]
	if !ok {
		return &domain.NotFoundError{Entity: "payment", ID: id}
	}
	p.Status = status
	p.FailureReason = &reason
	p.RetryCount++
	p.UpdatedAt = now
	s.m.payments[id] = p
	return nil
}

func (s paymentStore) WriteOffByPlan(ctx context.Context, ex repository.Executor, planID string, now time.Time) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for id, p := range s.m.payments {
		if p.PlanID == planID && p.Status != domain.PaymentSucceeded && p.Status != domain.PaymentWrittenOff {
			p.Status = domain.PaymentWrittenOff
			p.UpdatedAt = now
			s.m.payments[id] = p
		}
	}
	return nil
}

func (s paymentStore) OutstandingByPlan(ctx context.Context, ex repository.Executor, planID string) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var total int64
	for _, p := range s.m.payments {
		if p.PlanID == planID && p.Status != domain.PaymentSucceeded && p.Status != domain.PaymentWrittenOff {
			total += p.AmountCents
		}
	}
	return total, nil
}

type payoutStore struct{ m *memStore }

func (s payoutStore) Create(ctx context.Context, ex repository.Executor, p *domain.Payout) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, existing := range s.m.payouts {
		if existing.PaymentID == p.PaymentID {
			return &domain.ConflictError{Message: "payout already exists for payment " + p.PaymentID}
		}
	}
	s.m.payouts[p.ID] = *p
	return nil
}

func (s payoutStore) GetByID(ctx context.Context, ex repository.Executor, id string) (*domain.Payout, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	p, ok := s.m.payouts[id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "payout", ID: id}
	}
	return &p, nil
}

func (s payoutStore) FindByPaymentID(ctx context.Context, ex repository.Executor, paymentID string) (*domain.Payout, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, p := range s.m.payouts {
		if p.PaymentID == paymentID {
			return &p, nil
		}
	}
	return nil, nil
}

func (s payoutStore) ListPending(ctx context.Context, ex repository.Executor) ([]domain.Payout, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []domain.Payout
	for _, p := range s.m.payouts {
		if p.Status == domain.PayoutPending {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s payoutStore) MarkSucceeded(ctx context.Context, ex repository.Executor, id, transferID string, now time.Time) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	p, ok := s.m.payouts[id]
	if !ok {
		return &domain.NotFoundError{Entity: "payout", ID: id}
	}
	p.Status = domain.PayoutSucceeded
	p.TransferID = &transferID
	p.UpdatedAt = now
	s.m.payouts[id] = p
	return nil
}

func (s payoutStore) MarkFailed(ctx context.Context, ex repository.Executor, id, reason string, now time.Time) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	p, ok := s.m.payouts[id]
	if !ok {
		return &domain.NotFoundError{Entity: "payout", ID: id}
	}
	p.Status = domain.PayoutFailed
	p.LastError = &reason
	p.UpdatedAt = now
	s.m.payouts[id] = p
	return nil
}

type riskPoolStore struct{ m *memStore }

func (s riskPoolStore) Append(ctx context.Context, ex repository.Executor, e *domain.RiskPoolEntry) error {
	if err := s.m.fail("riskpool.Append"); err != nil {
		return err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.riskEntries = append(s.m.riskEntries, *e)
	return nil
}

func (s riskPoolStore) Balance(ctx context.Context, ex repository.Executor) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var balance int64
	for _, e := range s.m.riskEntries {
		switch e.Type {
		case domain.RiskPoolContribution, domain.RiskPoolRecovery:
			balance += e.AmountCents
		case domain.RiskPoolClaim:
			balance -= e.AmountCents
		}
	}
	return balance, nil
}

func (s riskPoolStore) OutstandingExposure(ctx context.Context, ex repository.Executor) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var exposure int64
	for _, p := range s.m.plans {
		switch p.Status {
		case domain.PlanPending, domain.PlanDepositPaid, domain.PlanActive:
			exposure += p.RemainingCents
		}
	}
	return exposure, nil
}

type collectionStore struct{ m *memStore }

func (s collectionStore) Create(ctx context.Context, ex repository.Executor, c *domain.SoftCollection) error {
	if err := s.m.fail("collections.Create"); err != nil {
		return err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.collections[c.ID] = *c
	return nil
}

func (s collectionStore) FindActiveByPlan(ctx context.Context, ex repository.Executor, planID string) (*domain.SoftCollection, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, c := range s.m.collections {
		if c.PlanID == planID && c.ActiveStage() {
			return &c, nil
		}
	}
	return nil, nil
}

func (s collectionStore) ListDueForEscalation(ctx context.Context, ex repository.Executor, asOf time.Time) ([]domain.SoftCollection, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []domain.SoftCollection
	for _, c := range s.m.collections {
		if c.ActiveStage() && c.NextEscalationAt != nil && !c.NextEscalationAt.After(asOf) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s collectionStore) SetStage(ctx context.Context, ex repository.Executor, id string, stage domain.CollectionStage, nextEscalationAt *time.Time, now time.Time) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	c, ok := s.m.collections[id]
	if !ok {
		return &domain.NotFoundError{Entity: "collection", ID: id}
	}
	c.Stage = stage
	c.NextEscalationAt = nextEscalationAt
	c.LastEscalatedAt = &now
	c.UpdatedAt = now
	s.m.collections[id] = c
	return nil
}

type auditStore struct{ m *memStore }

func (s auditStore) Append(ctx context.Context, ex repository.Executor, e *domain.AuditLogEntry) error {
	if err := s.m.fail("audit.Append"); err != nil {
		return err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.audits = append(s.m.audits, *e)
	return nil
}

func (m *memStore) auditActions(entityType string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.audits {
		if e.EntityType == entityType {
			out = append(out, e.Action)
		}
	}
	return out
}

// fakeProcessor counts calls and lets tests fail specific transfers.
type fakeProcessor struct {
	mu           sync.Mutex
	deposits     int
	installments int
	transfers    int
	transferKeys []string

	chargeErr      error
	failTransferTo map[string]bool // destinationRef -> fail
}

func (f *fakeProcessor) ChargeDeposit(ctx context.Context, customerRef string, amountCents int64) (clients.ChargeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.chargeErr != nil {
		return clients.ChargeResult{}, f.chargeErr
	}
	f.deposits++
	return clients.ChargeResult{Ref: fmt.Sprintf("ch_dep_%d", f.deposits), Status: "processing"}, nil
}

func (f *fakeProcessor) ChargeInstallment(ctx context.Context, customerRef string, amountCents int64, paymentMethodRef string) (clients.ChargeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.chargeErr != nil {
		return clients.ChargeResult{}, f.chargeErr
	}
	f.installments++
	return clients.ChargeResult{Ref: fmt.Sprintf("ch_inst_%d", f.installments), Status: "processing"}, nil
}

func (f *fakeProcessor) Transfer(ctx context.Context, destinationRef string, amountCents int64, idempotencyKey string, metadata map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTransferTo[destinationRef] {
		return "", &domain.ExternalServiceError{Op: "transfer", Err: errors.New("transfer declined")}
	}
	f.transfers++
	f.transferKeys = append(f.transferKeys, idempotencyKey)
	return fmt.Sprintf("tr_%d", f.transfers), nil
}
