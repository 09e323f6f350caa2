package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/craftlink/craftlink-backend/internal/gateway"
	"github.com/craftlink/craftlink-backend/internal/models"
	"github.com/craftlink/craftlink-backend/internal/notify"
	repo "github.com/craftlink/craftlink-backend/internal/repository"
)

// fakeStore is an in-memory repo.Store with the same CAS and upsert
// semantics as the postgres implementation. WithTx runs the callback
// against the same store; rollback is not simulated.
type fakeStore struct {
	mu sync.Mutex

	escrows  map[string]*models.Escrow // by id
	txns     []*models.Transaction
	bookings map[string]*models.Booking
	disputes map[string]*models.Dispute
	reports  map[string]*models.ReconciliationReport
	audits   []models.AuditLog
	users    map[string]*models.User

	seq int

	// failures configurable per test
	listEscrowsErr error
	listTxnsErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		escrows:  map[string]*models.Escrow{},
		bookings: map[string]*models.Booking{},
		disputes: map[string]*models.Dispute{},
		reports:  map[string]*models.ReconciliationReport{},
		users:    map[string]*models.User{},
	}
}

func (f *fakeStore) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%04d", prefix, f.seq)
}

func (f *fakeStore) Escrows() repo.Escrows           { return &fakeEscrows{f} }
func (f *fakeStore) Transactions() repo.Transactions { return &fakeTxns{f} }
func (f *fakeStore) Bookings() repo.Bookings         { return &fakeBookings{f} }
func (f *fakeStore) Disputes() repo.Disputes         { return &fakeDisputes{f} }
func (f *fakeStore) Reports() repo.Reports           { return &fakeReports{f} }
func (f *fakeStore) AuditLogs() repo.AuditLogs       { return &fakeAudits{f} }
func (f *fakeStore) Users() repo.Users               { return &fakeUsers{f} }

func (f *fakeStore) WithTx(ctx context.Context, fn func(repo.Store) error) error {
	return fn(f)
}

// addBooking seeds a booking and returns it.
func (f *fakeStore) addBooking(b models.Booking) models.Booking {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b.ID == "" {
		b.ID = f.nextID("bkg")
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	cp := b
	f.bookings[b.ID] = &cp
	return b
}

// addEscrow seeds an escrow in an arbitrary state.
func (f *fakeStore) addEscrow(e models.Escrow) models.Escrow {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e.ID == "" {
		e.ID = f.nextID("esc")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	cp := e
	f.escrows[e.ID] = &cp
	return e
}

func (f *fakeStore) addTxn(t models.Transaction) models.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.ID == "" {
		t.ID = f.nextID("txn")
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	cp := t
	f.txns = append(f.txns, &cp)
	return t
}

func (f *fakeStore) escrowByBooking(bookingID string) *models.Escrow {
	for _, e := range f.escrows {
		if e.BookingID == bookingID {
			return e
		}
	}
	return nil
}

func (f *fakeStore) auditCount(action string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, a := range f.audits {
		if a.Action == action {
			n++
		}
	}
	return n
}

func (f *fakeStore) txnCount(pred func(*models.Transaction) bool) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.txns {
		if pred(t) {
			n++
		}
	}
	return n
}

// ---------- escrows ----------

type fakeEscrows struct{ s *fakeStore }

func (r *fakeEscrows) UpsertPending(_ context.Context, e models.Escrow) (models.Escrow, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if existing := r.s.escrowByBooking(e.BookingID); existing != nil {
		if existing.State != models.EscrowPending {
			return models.Escrow{}, repo.ErrNoTransition
		}
		existing.Amount = e.Amount
		existing.Gateway = e.Gateway
		existing.GatewayReference = e.GatewayReference
		existing.Metadata = e.Metadata
		existing.UpdatedAt = time.Now()
		return *existing, nil
	}
	e.ID = r.s.nextID("esc")
	e.State = models.EscrowPending
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	cp := e
	r.s.escrows[e.ID] = &cp
	return e, nil
}

func (r *fakeEscrows) GetByID(_ context.Context, id string) (models.Escrow, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e, ok := r.s.escrows[id]; ok {
		return *e, nil
	}
	return models.Escrow{}, repo.ErrNotFound
}

func (r *fakeEscrows) GetByBookingID(_ context.Context, bookingID string) (models.Escrow, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e := r.s.escrowByBooking(bookingID); e != nil {
		return *e, nil
	}
	return models.Escrow{}, repo.ErrNotFound
}

func (r *fakeEscrows) GetByReference(_ context.Context, reference string) (models.Escrow, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.escrows {
		if e.GatewayReference != nil && *e.GatewayReference == reference {
			return *e, nil
		}
	}
	return models.Escrow{}, repo.ErrNotFound
}

func (r *fakeEscrows) SetReference(_ context.Context, id, reference string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.escrows[id]
	if !ok {
		return repo.ErrNotFound
	}
	e.GatewayReference = &reference
	return nil
}

func (r *fakeEscrows) TransitionState(_ context.Context, id string, from []models.EscrowState, to models.EscrowState) (models.Escrow, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.escrows[id]
	if !ok {
		return models.Escrow{}, repo.ErrNoTransition
	}
	for _, st := range from {
		if e.State == st {
			e.State = to
			e.UpdatedAt = time.Now()
			return *e, nil
		}
	}
	return models.Escrow{}, repo.ErrNoTransition
}

func (r *fakeEscrows) ListByState(_ context.Context, state models.EscrowState, afterID string, limit int) ([]models.Escrow, error) {
	if r.s.listEscrowsErr != nil {
		return nil, r.s.listEscrowsErr
	}
	return r.list(afterID, limit, func(e *models.Escrow) bool { return e.State == state }), nil
}

func (r *fakeEscrows) List(_ context.Context, afterID string, limit int) ([]models.Escrow, error) {
	if r.s.listEscrowsErr != nil {
		return nil, r.s.listEscrowsErr
	}
	return r.list(afterID, limit, func(*models.Escrow) bool { return true }), nil
}

func (r *fakeEscrows) list(afterID string, limit int, keep func(*models.Escrow) bool) []models.Escrow {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Escrow
	for _, e := range r.s.escrows {
		if e.ID > afterID && keep(e) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r *fakeEscrows) MarkReconciled(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.escrows[id]
	if !ok {
		return repo.ErrNotFound
	}
	e.Reconciled = true
	return nil
}

// ---------- transactions ----------

type fakeTxns struct{ s *fakeStore }

func (r *fakeTxns) Create(_ context.Context, t models.Transaction) (models.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t.Reference != nil {
		for _, ex := range r.s.txns {
			if ex.Reference != nil && *ex.Reference == *t.Reference {
				return models.Transaction{}, fmt.Errorf("duplicate reference %s", *t.Reference)
			}
		}
	}
	t.ID = r.s.nextID("txn")
	t.CreatedAt = time.Now()
	cp := t
	r.s.txns = append(r.s.txns, &cp)
	return t, nil
}

func (r *fakeTxns) UpsertByReference(ctx context.Context, t models.Transaction) (models.Transaction, bool, error) {
	r.s.mu.Lock()
	if t.Reference != nil {
		for _, ex := range r.s.txns {
			if ex.Reference != nil && *ex.Reference == *t.Reference {
				r.s.mu.Unlock()
				return *ex, false, nil
			}
		}
	}
	r.s.mu.Unlock()
	created, err := r.Create(ctx, t)
	return created, err == nil, err
}

func (r *fakeTxns) UpsertByIdempotencyKey(ctx context.Context, t models.Transaction) (models.Transaction, bool, error) {
	r.s.mu.Lock()
	if t.IdempotencyKey != nil {
		for _, ex := range r.s.txns {
			if ex.IdempotencyKey != nil && *ex.IdempotencyKey == *t.IdempotencyKey {
				r.s.mu.Unlock()
				return *ex, false, nil
			}
		}
	}
	r.s.mu.Unlock()
	created, err := r.Create(ctx, t)
	return created, err == nil, err
}

func (r *fakeTxns) GetByID(_ context.Context, id string) (models.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.txns {
		if t.ID == id {
			return *t, nil
		}
	}
	return models.Transaction{}, repo.ErrNotFound
}

func (r *fakeTxns) GetByReference(_ context.Context, reference string) (models.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.txns {
		if t.Reference != nil && *t.Reference == reference {
			return *t, nil
		}
	}
	return models.Transaction{}, repo.ErrNotFound
}

func (r *fakeTxns) SettleStatus(_ context.Context, id string, status models.TransactionStatus, raw json.RawMessage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.txns {
		if t.ID == id && t.Status == models.TxnPending {
			t.Status = status
			if raw != nil {
				t.GatewayResponse = raw
			}
		}
	}
	return nil
}

func (r *fakeTxns) Reclaim(_ context.Context, id, reference, note string) (models.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.txns {
		if t.ID == id && t.Status == models.TxnFailed {
			t.Status = models.TxnPending
			t.Reference = &reference
			t.Note = note
			return *t, nil
		}
	}
	return models.Transaction{}, repo.ErrNoTransition
}

func (r *fakeTxns) ListByBooking(_ context.Context, bookingID string, limit, offset int) ([]models.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Transaction
	for _, t := range r.s.txns {
		if t.BookingID == bookingID {
			out = append(out, *t)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeTxns) List(_ context.Context, afterID string, limit int) ([]models.Transaction, error) {
	if r.s.listTxnsErr != nil {
		return nil, r.s.listTxnsErr
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Transaction
	for _, t := range r.s.txns {
		if t.ID > afterID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeTxns) SuccessfulEscrowTxnExists(_ context.Context, bookingID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.txns {
		if t.BookingID == bookingID && t.Type == models.TxnEscrow && t.Status == models.TxnSuccess {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeTxns) GetSuccessfulEscrowTxn(_ context.Context, bookingID string) (models.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := len(r.s.txns) - 1; i >= 0; i-- {
		t := r.s.txns[i]
		if t.BookingID == bookingID && t.Type == models.TxnEscrow && t.Status == models.TxnSuccess {
			return *t, nil
		}
	}
	return models.Transaction{}, repo.ErrNotFound
}

// ---------- bookings ----------

type fakeBookings struct{ s *fakeStore }

func (r *fakeBookings) GetByID(_ context.Context, id string) (models.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if b, ok := r.s.bookings[id]; ok {
		return *b, nil
	}
	return models.Booking{}, repo.ErrNotFound
}

func (r *fakeBookings) Exists(_ context.Context, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.bookings[id]
	return ok, nil
}

func (r *fakeBookings) UpdatePayment(_ context.Context, id string, p repo.BookingPaymentPatch) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	if !ok {
		return repo.ErrNotFound
	}
	if p.PaymentStatus != nil {
		b.PaymentStatus = *p.PaymentStatus
	}
	if p.EscrowAmount != nil {
		b.EscrowAmount = *p.EscrowAmount
	}
	if p.EscrowID != nil {
		b.EscrowID = p.EscrowID
	}
	if p.PaymentReleased != nil {
		b.PaymentReleased = *p.PaymentReleased
	}
	if p.SettledAt != nil {
		b.SettledAt = p.SettledAt
	}
	return nil
}

func (r *fakeBookings) SetReviewed(_ context.Context, id string, customer, pro *bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	if !ok {
		return repo.ErrNotFound
	}
	if customer != nil {
		b.CustomerReviewed = *customer
	}
	if pro != nil {
		b.ProReviewed = *pro
	}
	return nil
}

// ---------- disputes ----------

type fakeDisputes struct{ s *fakeStore }

func (r *fakeDisputes) Create(_ context.Context, d models.Dispute) (models.Dispute, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d.ID = r.s.nextID("dsp")
	d.CreatedAt = time.Now()
	d.UpdatedAt = d.CreatedAt
	cp := d
	r.s.disputes[d.ID] = &cp
	return d, nil
}

func (r *fakeDisputes) GetByID(_ context.Context, id string) (models.Dispute, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if d, ok := r.s.disputes[id]; ok {
		return *d, nil
	}
	return models.Dispute{}, repo.ErrNotFound
}

func (r *fakeDisputes) GetActiveByBooking(_ context.Context, bookingID string) (models.Dispute, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, d := range r.s.disputes {
		if d.BookingID == bookingID && !d.Status.Terminal() {
			return *d, nil
		}
	}
	return models.Dispute{}, repo.ErrNotFound
}

func (r *fakeDisputes) AppendEvidence(_ context.Context, id string, ev models.Evidence) (models.Dispute, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.disputes[id]
	if !ok || d.Status.Terminal() {
		return models.Dispute{}, repo.ErrNoTransition
	}
	d.Evidence = append(d.Evidence, ev)
	d.UpdatedAt = time.Now()
	return *d, nil
}

func (r *fakeDisputes) TransitionStatus(_ context.Context, id string, from []models.DisputeStatus, to models.DisputeStatus) (models.Dispute, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.disputes[id]
	if !ok {
		return models.Dispute{}, repo.ErrNoTransition
	}
	for _, st := range from {
		if d.Status == st {
			d.Status = to
			d.UpdatedAt = time.Now()
			return *d, nil
		}
	}
	return models.Dispute{}, repo.ErrNoTransition
}

func (r *fakeDisputes) Resolve(_ context.Context, id string, from []models.DisputeStatus, resolution models.DisputeResolution, note, resolvedBy string) (models.Dispute, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.disputes[id]
	if !ok {
		return models.Dispute{}, repo.ErrNoTransition
	}
	for _, st := range from {
		if d.Status == st {
			now := time.Now()
			d.Status = models.DisputeResolved
			d.Resolution = &resolution
			d.ResolutionNote = note
			d.ResolvedBy = &resolvedBy
			d.ResolvedAt = &now
			d.UpdatedAt = now
			return *d, nil
		}
	}
	return models.Dispute{}, repo.ErrNoTransition
}

func (r *fakeDisputes) ListByBooking(_ context.Context, bookingID string) ([]models.Dispute, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Dispute
	for _, d := range r.s.disputes {
		if d.BookingID == bookingID {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ---------- reports / audit / users ----------

type fakeReports struct{ s *fakeStore }

func (r *fakeReports) Create(_ context.Context, rep models.ReconciliationReport) (models.ReconciliationReport, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rep.ID = r.s.nextID("rpt")
	rep.RunAt = time.Now()
	cp := rep
	r.s.reports[rep.ID] = &cp
	return rep, nil
}

func (r *fakeReports) GetByID(_ context.Context, id string) (models.ReconciliationReport, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if rep, ok := r.s.reports[id]; ok {
		return *rep, nil
	}
	return models.ReconciliationReport{}, repo.ErrNotFound
}

func (r *fakeReports) List(_ context.Context, limit, offset int) ([]models.ReconciliationReport, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.ReconciliationReport
	for _, rep := range r.s.reports {
		out = append(out, *rep)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeAudits struct{ s *fakeStore }

func (r *fakeAudits) Create(_ context.Context, l models.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l.ID = r.s.nextID("aud")
	l.CreatedAt = time.Now()
	r.s.audits = append(r.s.audits, l)
	return nil
}

type fakeUsers struct{ s *fakeStore }

func (r *fakeUsers) Create(_ context.Context, email, passwordHash, role string) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u := models.User{
		ID:           r.s.nextID("usr"),
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    time.Now(),
	}
	cp := u
	r.s.users[u.ID] = &cp
	return u, nil
}

func (r *fakeUsers) GetByEmail(_ context.Context, email string) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			return *u, nil
		}
	}
	return models.User{}, repo.ErrNotFound
}

func (r *fakeUsers) GetByID(_ context.Context, id string) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.users[id]; ok {
		return *u, nil
	}
	return models.User{}, repo.ErrNotFound
}

// ---------- gateway ----------

var errGatewayDown = errors.New("gateway unreachable")

// fakeAdapter is a scripted gateway.Adapter. ParseEvent expects the body
// shape {"type":..,"reference":..,"amount":..,"booking_id":..}.
type fakeAdapter struct {
	mu   sync.Mutex
	name string

	initResult gateway.InitializeResult
	initErr    error

	verifyResult gateway.VerifyResult
	verifyErr    error

	payoutSuccess bool
	payoutErr     error

	refundSuccess bool
	refundErr     error

	sigValid bool

	verifyCalls int
	payoutCalls int
	refundCalls int
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		name:          "fakepay",
		sigValid:      true,
		payoutSuccess: true,
		refundSuccess: true,
		initResult: gateway.InitializeResult{
			AuthorizationURL: "https://fakepay.test/authorize",
			Reference:        "esc_fixed",
		},
		verifyResult: gateway.VerifyResult{Status: "success"},
	}
}

func (a *fakeAdapter) Name() string { return a.name }

func (a *fakeAdapter) Initialize(_ context.Context, req gateway.InitializeRequest) (gateway.InitializeResult, error) {
	if a.initErr != nil {
		return gateway.InitializeResult{}, a.initErr
	}
	res := a.initResult
	if res.Reference == "" {
		res.Reference = req.Reference
	}
	return res, nil
}

func (a *fakeAdapter) Verify(_ context.Context, reference string) (gateway.VerifyResult, error) {
	a.mu.Lock()
	a.verifyCalls++
	a.mu.Unlock()
	if a.verifyErr != nil {
		return gateway.VerifyResult{}, a.verifyErr
	}
	res := a.verifyResult
	res.Reference = reference
	return res, nil
}

func (a *fakeAdapter) Payout(_ context.Context, req gateway.PayoutRequest) (gateway.PayoutResult, error) {
	a.mu.Lock()
	a.payoutCalls++
	a.mu.Unlock()
	if a.payoutErr != nil {
		return gateway.PayoutResult{}, a.payoutErr
	}
	return gateway.PayoutResult{Success: a.payoutSuccess, Reference: req.Reference}, nil
}

func (a *fakeAdapter) Refund(_ context.Context, req gateway.RefundRequest) (gateway.RefundResult, error) {
	a.mu.Lock()
	a.refundCalls++
	a.mu.Unlock()
	if a.refundErr != nil {
		return gateway.RefundResult{}, a.refundErr
	}
	return gateway.RefundResult{Success: a.refundSuccess, Reference: req.Reference}, nil
}

func (a *fakeAdapter) VerifyWebhookSignature(http.Header, []byte) bool { return a.sigValid }

func (a *fakeAdapter) ParseEvent(body []byte) (gateway.Event, error) {
	var payload struct {
		Type      string `json:"type"`
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"`
		BookingID string `json:"booking_id"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return gateway.Event{}, err
	}
	return gateway.Event{
		Type:      payload.Type,
		Reference: payload.Reference,
		Amount:    payload.Amount,
		BookingID: payload.BookingID,
		Raw:       body,
	}, nil
}

var fakeEvents = map[string]gateway.EventClass{
	"payment.success": gateway.EventSuccess,
	"payment.failed":  gateway.EventFailure,
}

func (a *fakeAdapter) Classify(eventType string) gateway.EventClass { return fakeEvents[eventType] }

func (a *fakeAdapter) EventMapping() map[string]gateway.EventClass { return fakeEvents }

// ---------- notifier / scorer ----------

type fakeNotifier struct {
	mu     sync.Mutex
	alerts []notify.AdminAlert
}

func (n *fakeNotifier) NotifyAdmins(_ context.Context, a notify.AdminAlert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, a)
	return nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.alerts)
}

type fakeScorer struct {
	mu    sync.Mutex
	calls []string
}

func (s *fakeScorer) RecalculateTrustScore(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, userID)
	return nil
}
