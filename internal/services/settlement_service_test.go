package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftlink/craftlink-backend/internal/gateway"
	"github.com/craftlink/craftlink-backend/internal/models"
	"github.com/craftlink/craftlink-backend/internal/worker"
)

type settlementEnv struct {
	*escrowEnv
	scorer *fakeScorer
	svc    *SettlementService
}

func newSettlementEnv(t *testing.T, grace time.Duration) *settlementEnv {
	t.Helper()
	store := newFakeStore()
	adapter := newFakeAdapter()
	reg, err := gateway.NewRegistry(adapter)
	require.NoError(t, err)
	notif := &fakeNotifier{}
	scorer := &fakeScorer{}
	wp := worker.NewPool(1)
	t.Cleanup(wp.Stop)

	escrowSvc := NewEscrowService(store, reg, notif, wp, false)
	svc := NewSettlementService(store, escrowSvc, scorer, wp, grace)
	return &settlementEnv{
		escrowEnv: &escrowEnv{store: store, adapter: adapter, notif: notif, svc: escrowSvc},
		scorer:    scorer,
		svc:       svc,
	}
}

func (e *settlementEnv) seedCompletedBooking(completedAgo time.Duration, customerReviewed, proReviewed bool) models.Booking {
	completed := time.Now().Add(-completedAgo)
	return e.store.addBooking(models.Booking{
		CustomerID:       "cust-1",
		CreativeID:       "pro-1",
		TotalAmount:      50000,
		Status:           "completed",
		PaymentStatus:    models.PaymentEscrowed,
		CompletedAt:      &completed,
		CustomerReviewed: customerReviewed,
		ProReviewed:      proReviewed,
	})
}

func TestSettleEscrow(t *testing.T) {
	t.Run("both reviews settle before the grace period", func(t *testing.T) {
		env := newSettlementEnv(t, 72*time.Hour)
		booking := env.seedCompletedBooking(time.Hour, true, true)
		esc := env.seedEscrow(booking.ID, models.EscrowHeld, 50000)

		res, err := env.svc.SettleEscrow(context.Background(), booking.ID)
		require.NoError(t, err)
		require.NotNil(t, res)
		assert.Equal(t, esc.ID, res.EscrowID)

		got, _ := env.store.Escrows().GetByID(context.Background(), esc.ID)
		assert.Equal(t, models.EscrowReleased, got.State)

		b, _ := env.store.Bookings().GetByID(context.Background(), booking.ID)
		assert.True(t, b.PaymentReleased)
		require.NotNil(t, b.SettledAt)

		// release entry plus the distinct payout entry
		releases := env.store.txnCount(func(tx *models.Transaction) bool { return tx.Type == models.TxnRelease })
		payouts := env.store.txnCount(func(tx *models.Transaction) bool { return tx.Type == models.TxnPayout })
		assert.Equal(t, 1, releases)
		assert.Equal(t, 1, payouts)
	})

	t.Run("grace period elapsing settles without reviews", func(t *testing.T) {
		env := newSettlementEnv(t, 72*time.Hour)
		booking := env.seedCompletedBooking(80*time.Hour, false, false)
		esc := env.seedEscrow(booking.ID, models.EscrowHeld, 50000)

		res, err := env.svc.SettleEscrow(context.Background(), booking.ID)
		require.NoError(t, err)
		require.NotNil(t, res)

		got, _ := env.store.Escrows().GetByID(context.Background(), esc.ID)
		assert.Equal(t, models.EscrowReleased, got.State)
	})

	t.Run("neither condition met is a silent skip", func(t *testing.T) {
		env := newSettlementEnv(t, 72*time.Hour)
		booking := env.seedCompletedBooking(time.Hour, true, false)
		esc := env.seedEscrow(booking.ID, models.EscrowHeld, 50000)

		res, err := env.svc.SettleEscrow(context.Background(), booking.ID)
		require.NoError(t, err)
		assert.Nil(t, res)

		got, _ := env.store.Escrows().GetByID(context.Background(), esc.ID)
		assert.Equal(t, models.EscrowHeld, got.State)
		assert.Equal(t, 0, env.adapter.payoutCalls)
	})

	t.Run("booking not yet completed never settles", func(t *testing.T) {
		env := newSettlementEnv(t, 72*time.Hour)
		booking := env.store.addBooking(models.Booking{
			CustomerID: "cust-1", CreativeID: "pro-1",
			CustomerReviewed: true, ProReviewed: true,
		})
		env.seedEscrow(booking.ID, models.EscrowHeld, 50000)

		res, err := env.svc.SettleEscrow(context.Background(), booking.ID)
		require.NoError(t, err)
		assert.Nil(t, res)
	})

	t.Run("disputed escrow is skipped", func(t *testing.T) {
		env := newSettlementEnv(t, 72*time.Hour)
		booking := env.seedCompletedBooking(100*time.Hour, true, true)
		esc := env.seedEscrow(booking.ID, models.EscrowDisputed, 50000)

		res, err := env.svc.SettleEscrow(context.Background(), booking.ID)
		require.NoError(t, err)
		assert.Nil(t, res)

		got, _ := env.store.Escrows().GetByID(context.Background(), esc.ID)
		assert.Equal(t, models.EscrowDisputed, got.State)
	})

	t.Run("settling twice moves money once", func(t *testing.T) {
		env := newSettlementEnv(t, 72*time.Hour)
		booking := env.seedCompletedBooking(time.Hour, true, true)
		env.seedEscrow(booking.ID, models.EscrowHeld, 50000)

		_, err := env.svc.SettleEscrow(context.Background(), booking.ID)
		require.NoError(t, err)

		res, err := env.svc.SettleEscrow(context.Background(), booking.ID)
		require.NoError(t, err)
		assert.Nil(t, res)
		assert.Equal(t, 1, env.adapter.payoutCalls)

		payouts := env.store.txnCount(func(tx *models.Transaction) bool { return tx.Type == models.TxnPayout })
		assert.Equal(t, 1, payouts)
	})

	t.Run("missing escrow is not found", func(t *testing.T) {
		env := newSettlementEnv(t, 72*time.Hour)
		_, err := env.svc.SettleEscrow(context.Background(), "missing")
		assert.True(t, models.IsKind(err, models.KindNotFound))
	})
}

func TestMarkReviewed(t *testing.T) {
	t.Run("second review triggers opportunistic settlement", func(t *testing.T) {
		env := newSettlementEnv(t, 72*time.Hour)
		booking := env.seedCompletedBooking(time.Hour, true, false)
		esc := env.seedEscrow(booking.ID, models.EscrowHeld, 50000)

		pro := true
		res, err := env.svc.MarkReviewed(context.Background(), booking.ID, nil, &pro)
		require.NoError(t, err)
		require.NotNil(t, res)

		got, _ := env.store.Escrows().GetByID(context.Background(), esc.ID)
		assert.Equal(t, models.EscrowReleased, got.State)
	})

	t.Run("first review records without settling", func(t *testing.T) {
		env := newSettlementEnv(t, 72*time.Hour)
		booking := env.seedCompletedBooking(time.Hour, false, false)
		env.seedEscrow(booking.ID, models.EscrowHeld, 50000)

		cust := true
		res, err := env.svc.MarkReviewed(context.Background(), booking.ID, &cust, nil)
		require.NoError(t, err)
		assert.Nil(t, res)

		b, _ := env.store.Bookings().GetByID(context.Background(), booking.ID)
		assert.True(t, b.CustomerReviewed)
		assert.False(t, b.ProReviewed)
	})

	t.Run("requires at least one flag", func(t *testing.T) {
		env := newSettlementEnv(t, 72*time.Hour)
		_, err := env.svc.MarkReviewed(context.Background(), "any", nil, nil)
		assert.True(t, models.IsKind(err, models.KindValidation))
	})

	t.Run("unknown booking is not found", func(t *testing.T) {
		env := newSettlementEnv(t, 72*time.Hour)
		cust := true
		_, err := env.svc.MarkReviewed(context.Background(), "missing", &cust, nil)
		assert.True(t, models.IsKind(err, models.KindNotFound))
	})
}

func TestAutoSettlePendingEscrows(t *testing.T) {
	t.Run("sweep settles eligible items and isolates failures", func(t *testing.T) {
		env := newSettlementEnv(t, 72*time.Hour)

		eligible := env.seedCompletedBooking(time.Hour, true, true)
		eligibleEsc := env.seedEscrow(eligible.ID, models.EscrowHeld, 10000)

		tooEarly := env.seedCompletedBooking(time.Hour, false, false)
		earlyEsc := env.seedEscrow(tooEarly.ID, models.EscrowHeld, 20000)

		// held escrow whose booking vanished settles with an error,
		// not by aborting the batch
		orphanEsc := env.seedEscrow("gone-booking", models.EscrowHeld, 30000)

		sum := env.svc.AutoSettlePendingEscrows(context.Background())
		assert.Equal(t, 3, sum.Processed)
		assert.Equal(t, 1, sum.Succeeded)
		assert.Equal(t, 1, sum.Failed)
		require.Len(t, sum.Errors, 1)

		got, _ := env.store.Escrows().GetByID(context.Background(), eligibleEsc.ID)
		assert.Equal(t, models.EscrowReleased, got.State)
		got, _ = env.store.Escrows().GetByID(context.Background(), earlyEsc.ID)
		assert.Equal(t, models.EscrowHeld, got.State)
		got, _ = env.store.Escrows().GetByID(context.Background(), orphanEsc.ID)
		assert.Equal(t, models.EscrowHeld, got.State)
	})

	t.Run("empty sweep is a no-op", func(t *testing.T) {
		env := newSettlementEnv(t, 72*time.Hour)
		sum := env.svc.AutoSettlePendingEscrows(context.Background())
		assert.Zero(t, sum.Processed)
		assert.Zero(t, sum.Failed)
	})
}
