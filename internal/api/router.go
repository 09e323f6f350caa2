package api

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/craftlink/craftlink-backend/internal/api/httpx"
	"github.com/craftlink/craftlink-backend/internal/api/validate"
	"github.com/craftlink/craftlink-backend/internal/config"
	"github.com/craftlink/craftlink-backend/internal/metrics"
	"github.com/craftlink/craftlink-backend/internal/middleware"
	"github.com/craftlink/craftlink-backend/internal/models"
	"github.com/craftlink/craftlink-backend/internal/services"
)

type RouterDeps struct {
	Cfg        config.Config
	Auth       *middleware.AuthMiddleware
	UserSvc    *services.UserService
	EscrowSvc  *services.EscrowService
	SettleSvc  *services.SettlementService
	DisputeSvc *services.DisputeService
	ReconSvc   *services.ReconciliationService
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recover, middleware.HTTPMetrics, middleware.RateLimit(d.Cfg.RateRPS))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	// health & metrics
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// ---------- auth ----------
		r.Post("/auth/login", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Email    string `json:"email"`
				Password string `json:"password"`
			}
			if err := httpx.Decode(r, &req); err != nil {
				httpx.WriteServiceError(w, err)
				return
			}
			tok, err := d.UserSvc.Login(r.Context(), req.Email, req.Password)
			if err != nil {
				httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password", nil)
				return
			}
			httpx.WriteJSON(w, http.StatusOK, map[string]string{"token": tok})
		})

		// ---------- webhooks ----------
		// Gateways retry on non-2xx, so everything except a bad signature is
		// acknowledged; the body carries the observable outcome.
		r.Post("/webhooks/{gateway}", func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
			if err != nil {
				httpx.WriteError(w, http.StatusBadRequest, "invalid_body", "unreadable body", nil)
				return
			}
			res, err := d.EscrowSvc.HandleWebhook(r.Context(), chi.URLParam(r, "gateway"), r.Header, body)
			if err != nil {
				httpx.WriteServiceError(w, err)
				return
			}
			if !res.Accepted {
				httpx.WriteJSON(w, http.StatusUnauthorized, res)
				return
			}
			httpx.WriteJSON(w, http.StatusOK, res)
		})

		// ---------- authenticated ----------
		r.Group(func(r chi.Router) {
			r.Use(d.Auth.Auth)

			// payments
			r.Post("/payments/initialize", func(w http.ResponseWriter, r *http.Request) {
				claims, _ := middleware.GetClaims(r.Context())
				var req struct {
					BookingID  string         `json:"booking_id"`
					Amount     int64          `json:"amount"`
					PayerEmail string         `json:"payer_email"`
					Gateway    string         `json:"gateway"`
					Metadata   map[string]any `json:"metadata"`
				}
				if err := httpx.Decode(r, &req); err != nil {
					httpx.WriteServiceError(w, err)
					return
				}
				if err := validate.Collect(
					validate.Required("booking_id", req.BookingID),
					validate.Required("gateway", req.Gateway),
					validate.MinInt("amount", req.Amount, 1),
				); err != nil {
					httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
					return
				}
				res, err := d.EscrowSvc.InitializeEscrow(r.Context(), services.InitializeEscrowRequest{
					BookingID:   req.BookingID,
					Amount:      req.Amount,
					PayerEmail:  req.PayerEmail,
					Gateway:     req.Gateway,
					Metadata:    req.Metadata,
					InitiatedBy: claims.UserID,
				})
				if err != nil {
					httpx.WriteServiceError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusCreated, res)
			})

			// bookings (payment-facing reads and the review hook)
			r.Get("/bookings/{bookingID}/escrow", func(w http.ResponseWriter, r *http.Request) {
				esc, err := d.EscrowSvc.GetByBookingID(r.Context(), chi.URLParam(r, "bookingID"))
				if err != nil {
					httpx.WriteServiceError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, esc)
			})

			r.Get("/bookings/{bookingID}/transactions", func(w http.ResponseWriter, r *http.Request) {
				limit, offset := pageParams(r, 50)
				txns, err := d.EscrowSvc.ListTransactions(r.Context(), chi.URLParam(r, "bookingID"), limit, offset)
				if err != nil {
					httpx.WriteServiceError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, txns)
			})

			// Review completion hook; settlement runs opportunistically so a
			// double-reviewed booking pays out without waiting for the sweep.
			r.Post("/bookings/{bookingID}/reviewed", func(w http.ResponseWriter, r *http.Request) {
				var req struct {
					Customer     *bool `json:"customer"`
					Professional *bool `json:"professional"`
				}
				if err := httpx.Decode(r, &req); err != nil {
					httpx.WriteServiceError(w, err)
					return
				}
				bookingID := chi.URLParam(r, "bookingID")
				res, err := d.SettleSvc.MarkReviewed(r.Context(), bookingID, req.Customer, req.Professional)
				if err != nil {
					httpx.WriteServiceError(w, err)
					return
				}
				if res == nil {
					httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
					return
				}
				httpx.WriteJSON(w, http.StatusOK, res)
			})

			// disputes
			r.Post("/disputes", func(w http.ResponseWriter, r *http.Request) {
				claims, _ := middleware.GetClaims(r.Context())
				var req struct {
					BookingID   string            `json:"booking_id"`
					Reason      string            `json:"reason"`
					Description string            `json:"description"`
					Evidence    []models.Evidence `json:"evidence"`
				}
				if err := httpx.Decode(r, &req); err != nil {
					httpx.WriteServiceError(w, err)
					return
				}
				dp, err := d.DisputeSvc.CreateDispute(r.Context(), services.CreateDisputeRequest{
					BookingID:   req.BookingID,
					InitiatorID: claims.UserID,
					Reason:      req.Reason,
					Description: req.Description,
					Evidence:    req.Evidence,
				})
				if err != nil {
					httpx.WriteServiceError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusCreated, dp)
			})

			r.Get("/disputes/{id}", func(w http.ResponseWriter, r *http.Request) {
				dp, err := d.DisputeSvc.GetDispute(r.Context(), chi.URLParam(r, "id"))
				if err != nil {
					httpx.WriteServiceError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, dp)
			})

			r.Post("/disputes/{id}/evidence", func(w http.ResponseWriter, r *http.Request) {
				claims, _ := middleware.GetClaims(r.Context())
				var req struct {
					Type string `json:"type"`
					URL  string `json:"url"`
					Note string `json:"note"`
				}
				if err := httpx.Decode(r, &req); err != nil {
					httpx.WriteServiceError(w, err)
					return
				}
				dp, err := d.DisputeSvc.AddEvidence(r.Context(), chi.URLParam(r, "id"), models.Evidence{
					Type:       req.Type,
					URL:        req.URL,
					Note:       req.Note,
					UploadedBy: claims.UserID,
					UploadedAt: time.Now().UTC(),
				})
				if err != nil {
					httpx.WriteServiceError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, dp)
			})

			r.Get("/bookings/{bookingID}/disputes", func(w http.ResponseWriter, r *http.Request) {
				dps, err := d.DisputeSvc.ListByBooking(r.Context(), chi.URLParam(r, "bookingID"))
				if err != nil {
					httpx.WriteServiceError(w, err)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, dps)
			})

			// ---------- admin ----------
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole("admin"))

				r.Post("/admin/users", func(w http.ResponseWriter, r *http.Request) {
					var req struct {
						Email    string `json:"email"`
						Password string `json:"password"`
						Role     string `json:"role"`
					}
					if err := httpx.Decode(r, &req); err != nil {
						httpx.WriteServiceError(w, err)
						return
					}
					u, err := d.UserSvc.CreateOperator(r.Context(), req.Email, req.Password, req.Role)
					if err != nil {
						httpx.WriteServiceError(w, err)
						return
					}
					httpx.WriteJSON(w, http.StatusCreated, u)
				})

				r.Post("/admin/escrows/{bookingID}/release", func(w http.ResponseWriter, r *http.Request) {
					claims, _ := middleware.GetClaims(r.Context())
					var req struct {
						Note string `json:"note"`
					}
					_ = httpx.Decode(r, &req)
					res, err := d.EscrowSvc.ReleaseFunds(r.Context(), chi.URLParam(r, "bookingID"), claims.UserID, req.Note)
					if err != nil {
						httpx.WriteServiceError(w, err)
						return
					}
					httpx.WriteJSON(w, http.StatusOK, res)
				})

				r.Post("/admin/escrows/{bookingID}/refund", func(w http.ResponseWriter, r *http.Request) {
					claims, _ := middleware.GetClaims(r.Context())
					var req struct {
						Reason string `json:"reason"`
					}
					_ = httpx.Decode(r, &req)
					res, err := d.EscrowSvc.RefundFunds(r.Context(), chi.URLParam(r, "bookingID"), claims.UserID, req.Reason)
					if err != nil {
						httpx.WriteServiceError(w, err)
						return
					}
					httpx.WriteJSON(w, http.StatusOK, res)
				})

				r.Post("/admin/escrows/{bookingID}/cancel", func(w http.ResponseWriter, r *http.Request) {
					claims, _ := middleware.GetClaims(r.Context())
					var req struct {
						Reason string `json:"reason"`
					}
					_ = httpx.Decode(r, &req)
					esc, err := d.EscrowSvc.CancelEscrow(r.Context(), chi.URLParam(r, "bookingID"), claims.UserID, req.Reason)
					if err != nil {
						httpx.WriteServiceError(w, err)
						return
					}
					httpx.WriteJSON(w, http.StatusOK, esc)
				})

				r.Post("/admin/disputes/{id}/review", func(w http.ResponseWriter, r *http.Request) {
					claims, _ := middleware.GetClaims(r.Context())
					dp, err := d.DisputeSvc.StartReview(r.Context(), chi.URLParam(r, "id"), claims.UserID)
					if err != nil {
						httpx.WriteServiceError(w, err)
						return
					}
					httpx.WriteJSON(w, http.StatusOK, dp)
				})

				r.Post("/admin/disputes/{id}/resolve", func(w http.ResponseWriter, r *http.Request) {
					claims, _ := middleware.GetClaims(r.Context())
					var req struct {
						Resolution    string `json:"resolution"`
						Note          string `json:"note"`
						RefundAmount  *int64 `json:"refund_amount"`
						ReleaseAmount *int64 `json:"release_amount"`
					}
					if err := httpx.Decode(r, &req); err != nil {
						httpx.WriteServiceError(w, err)
						return
					}
					dp, err := d.DisputeSvc.ResolveDispute(r.Context(), services.ResolveDisputeRequest{
						DisputeID:      chi.URLParam(r, "id"),
						ResolvedBy:     claims.UserID,
						Resolution:     models.DisputeResolution(req.Resolution),
						ResolutionNote: req.Note,
						RefundAmount:   req.RefundAmount,
						ReleaseAmount:  req.ReleaseAmount,
					})
					if err != nil {
						httpx.WriteServiceError(w, err)
						return
					}
					httpx.WriteJSON(w, http.StatusOK, dp)
				})

				r.Post("/admin/disputes/{id}/cancel", func(w http.ResponseWriter, r *http.Request) {
					claims, _ := middleware.GetClaims(r.Context())
					dp, err := d.DisputeSvc.CancelDispute(r.Context(), chi.URLParam(r, "id"), claims.UserID)
					if err != nil {
						httpx.WriteServiceError(w, err)
						return
					}
					httpx.WriteJSON(w, http.StatusOK, dp)
				})

				r.Post("/admin/settlements/{bookingID}", func(w http.ResponseWriter, r *http.Request) {
					res, err := d.SettleSvc.SettleEscrow(r.Context(), chi.URLParam(r, "bookingID"))
					if err != nil {
						httpx.WriteServiceError(w, err)
						return
					}
					if res == nil {
						httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "skipped"})
						return
					}
					httpx.WriteJSON(w, http.StatusOK, res)
				})

				r.Post("/admin/settlements/sweep", func(w http.ResponseWriter, r *http.Request) {
					sum := d.SettleSvc.AutoSettlePendingEscrows(r.Context())
					httpx.WriteJSON(w, http.StatusOK, sum)
				})

				r.Post("/admin/reconciliation/run", func(w http.ResponseWriter, r *http.Request) {
					claims, _ := middleware.GetClaims(r.Context())
					report, err := d.ReconSvc.Run(r.Context(), &claims.UserID)
					if err != nil {
						httpx.WriteServiceError(w, err)
						return
					}
					httpx.WriteJSON(w, http.StatusOK, report)
				})

				r.Get("/admin/reconciliation/reports", func(w http.ResponseWriter, r *http.Request) {
					limit, offset := pageParams(r, 20)
					reports, err := d.ReconSvc.ListReports(r.Context(), limit, offset)
					if err != nil {
						httpx.WriteServiceError(w, err)
						return
					}
					httpx.WriteJSON(w, http.StatusOK, reports)
				})

				r.Get("/admin/reconciliation/reports/{id}", func(w http.ResponseWriter, r *http.Request) {
					report, err := d.ReconSvc.GetReport(r.Context(), chi.URLParam(r, "id"))
					if err != nil {
						httpx.WriteServiceError(w, err)
						return
					}
					httpx.WriteJSON(w, http.StatusOK, report)
				})
			})
		})
	})

	return r
}

func pageParams(r *http.Request, defLimit int) (limit, offset int) {
	limit = defLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
