package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/qz-yi/Satha-Choice-sub000/internal/dispatch"
	"github.com/qz-yi/Satha-Choice-sub000/internal/models"
	"github.com/qz-yi/Satha-Choice-sub000/internal/observability"
	"github.com/qz-yi/Satha-Choice-sub000/internal/orders"
	"github.com/qz-yi/Satha-Choice-sub000/internal/payments"
	"github.com/qz-yi/Satha-Choice-sub000/internal/settings"
	"github.com/qz-yi/Satha-Choice-sub000/internal/storage"
	"github.com/qz-yi/Satha-Choice-sub000/internal/wallet"
)

// Deps is everything the API surface needs. Stripe is optional; its
// endpoints degrade to 503 when unset. The Kafka producer hangs off the
// gateway, which owns the location pipeline.
type Deps struct {
	Orders   *orders.Service
	Store    storage.RequestStore
	Drivers  storage.DriverDirectory
	Ledger   wallet.Ledger
	Settings *settings.Settings
	Gateway  *dispatch.Gateway
	Stripe   *payments.StripeClient
}

type Server struct {
	Deps
	logger *slog.Logger
	mux    *mux.Router
}

func NewServer(logger *slog.Logger, d Deps) *Server {
	s := &Server{Deps: d, logger: logger, mux: mux.NewRouter()}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.mux.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/requests", s.handleCreateRequest).Methods("POST")
	api.HandleFunc("/requests", s.handleListPending).Methods("GET")
	api.HandleFunc("/requests/{id}", s.handleGetRequest).Methods("GET")
	api.HandleFunc("/requests/{id}/accept", s.handleAcceptRequest).Methods("POST")
	api.HandleFunc("/requests/{id}/status", s.handleUpdateStatus).Methods("POST")

	api.HandleFunc("/drivers/{id}", s.handleGetDriver).Methods("GET")
	api.HandleFunc("/drivers/{id}/online", s.handleDriverOnline).Methods("POST")
	api.HandleFunc("/drivers/{id}/wallet", s.handleDriverWallet).Methods("GET")

	api.HandleFunc("/wallet/deposit-intents", s.handleCreateDepositIntent).Methods("POST")
	api.HandleFunc("/wallet/deposit-intents/{id}/confirm", s.handleConfirmDeposit).Methods("POST")

	admin := api.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/commission", s.handleGetCommission).Methods("GET")
	admin.HandleFunc("/commission", s.handleSetCommission).Methods("PUT")
	admin.HandleFunc("/drivers", s.handleListDrivers).Methods("GET")
	admin.HandleFunc("/drivers/{id}/status", s.handleSetDriverStatus).Methods("POST")
	admin.HandleFunc("/requests/{id}/assign", s.handleAssignRequest).Methods("POST")
	admin.HandleFunc("/requests/{id}", s.handleDeleteRequest).Methods("DELETE")
	admin.HandleFunc("/wallets/adjust", s.handleAdjustWallet).Methods("POST")

	s.mux.HandleFunc("/internal/driver/locations", s.handleDriverLocation).Methods("POST")
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError maps lifecycle and storage errors onto HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	var status int
	switch {
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, orders.ErrAlreadyTaken):
		status = http.StatusConflict
	case errors.Is(err, orders.ErrInsufficientFunds):
		status = http.StatusPaymentRequired
	case errors.Is(err, orders.ErrNotEligible), errors.Is(err, orders.ErrNotAssigned):
		status = http.StatusForbidden
	case errors.Is(err, orders.ErrInvalidStage):
		status = http.StatusUnprocessableEntity
	default:
		s.logger.Error("request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	var req models.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.City == "" || req.CustomerID == "" {
		http.Error(w, "city and customerId are required", http.StatusBadRequest)
		return
	}
	created, err := s.Store.Create(r.Context(), &req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	observability.RequestsCreated.Inc()
	// Broadcast after the write so reconnecting drivers can always reconcile
	// against the stored request.
	s.Gateway.Broadcaster.OnRequestCreated(r.Context(), created)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListPending(w http.ResponseWriter, r *http.Request) {
	cityName := r.URL.Query().Get("city")
	if cityName == "" {
		http.Error(w, "city query parameter is required", http.StatusBadRequest)
		return
	}
	list, err := s.Gateway.Broadcaster.PendingForCity(r.Context(), cityName)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if list == nil {
		list = []*models.Request{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := s.Orders.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleAcceptRequest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DriverID   string             `json:"driverId"`
		DriverInfo *models.DriverInfo `json:"driverInfo"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.DriverID == "" {
		http.Error(w, "driverId is required", http.StatusBadRequest)
		return
	}
	info := models.DriverInfo{}
	if body.DriverInfo != nil {
		info = *body.DriverInfo
	}
	req, err := s.Orders.Accept(r.Context(), mux.Vars(r)["id"], body.DriverID, info)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status   models.Status `json:"status"`
		DriverID string        `json:"driverId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.DriverID == "" {
		http.Error(w, "status and driverId are required", http.StatusBadRequest)
		return
	}
	orderID := mux.Vars(r)["id"]
	var (
		req *models.Request
		err error
	)
	if body.Status == models.StatusCompleted {
		req, err = s.Orders.Complete(r.Context(), orderID, body.DriverID)
	} else {
		req, err = s.Orders.UpdateStage(r.Context(), orderID, body.Status, body.DriverID, nil)
	}
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleGetDriver(w http.ResponseWriter, r *http.Request) {
	d, err := s.Drivers.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleDriverOnline(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Online bool `json:"online"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	d, err := s.Drivers.Update(r.Context(), mux.Vars(r)["id"], storage.DriverPatch{Online: &body.Online})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleDriverWallet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	balance, err := s.Ledger.Balance(r.Context(), models.OwnerDriver, id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	txs, err := s.Ledger.Transactions(r.Context(), models.OwnerDriver, id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"walletBalance": balance, "transactions": txs})
}

func (s *Server) handleCreateDepositIntent(w http.ResponseWriter, r *http.Request) {
	if s.Stripe == nil {
		http.Error(w, "card deposits not configured", http.StatusServiceUnavailable)
		return
	}
	var body struct {
		OwnerType models.OwnerType `json:"ownerType"`
		OwnerID   string           `json:"ownerId"`
		Amount    int64            `json:"amount"`
		Currency  string           `json:"currency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.OwnerID == "" || body.Amount <= 0 {
		http.Error(w, "ownerId and a positive amount are required", http.StatusBadRequest)
		return
	}
	if body.Currency == "" {
		body.Currency = "usd"
	}
	id, secret, err := s.Stripe.CreateDepositIntent(r.Context(), body.Amount, body.Currency, string(body.OwnerType), body.OwnerID)
	if err != nil {
		s.logger.Error("deposit intent failed", "owner_id", body.OwnerID, "error", err)
		http.Error(w, "payment provider error", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id, "clientSecret": secret})
}

// handleConfirmDeposit verifies the PaymentIntent with Stripe and credits
// the wallet with the amount actually received. Confirming an intent that
// has not succeeded yet is a 409, not a partial credit.
func (s *Server) handleConfirmDeposit(w http.ResponseWriter, r *http.Request) {
	if s.Stripe == nil {
		http.Error(w, "card deposits not configured", http.StatusServiceUnavailable)
		return
	}
	var body struct {
		OwnerType models.OwnerType `json:"ownerType"`
		OwnerID   string           `json:"ownerId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.OwnerID == "" {
		http.Error(w, "ownerId is required", http.StatusBadRequest)
		return
	}
	if body.OwnerType == "" {
		body.OwnerType = models.OwnerDriver
	}
	ok, received, err := s.Stripe.Verify(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "payment provider error", http.StatusBadGateway)
		return
	}
	if !ok {
		http.Error(w, "payment not completed", http.StatusConflict)
		return
	}
	tx, err := s.Orders.AdjustWallet(r.Context(), body.OwnerType, body.OwnerID, received, models.TxDeposit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleGetCommission(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int64{"commissionAmount": s.Settings.CommissionAmount()})
}

func (s *Server) handleSetCommission(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CommissionAmount int64 `json:"commissionAmount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.CommissionAmount < 0 {
		http.Error(w, "commissionAmount must be >= 0", http.StatusBadRequest)
		return
	}
	s.Settings.SetCommissionAmount(body.CommissionAmount)
	s.logger.Info("commission updated", "amount", body.CommissionAmount)
	writeJSON(w, http.StatusOK, map[string]int64{"commissionAmount": body.CommissionAmount})
}

func (s *Server) handleListDrivers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := s.Drivers.List(r.Context(), storage.DriverFilter{
		Status:     models.DriverStatus(q.Get("status")),
		City:       q.Get("city"),
		OnlineOnly: q.Get("online") == "true",
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if list == nil {
		list = []*models.Driver{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleSetDriverStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status models.DriverStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	switch body.Status {
	case models.DriverPendingApproval, models.DriverApproved, models.DriverBlocked:
	default:
		http.Error(w, "unknown driver status", http.StatusBadRequest)
		return
	}
	d, err := s.Drivers.Update(r.Context(), mux.Vars(r)["id"], storage.DriverPatch{Status: &body.Status})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleAssignRequest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DriverID string `json:"driverId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.DriverID == "" {
		http.Error(w, "driverId is required", http.StatusBadRequest)
		return
	}
	req, err := s.Orders.Reassign(r.Context(), mux.Vars(r)["id"], body.DriverID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleDeleteRequest(w http.ResponseWriter, r *http.Request) {
	if err := s.Orders.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAdjustWallet(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OwnerType models.OwnerType       `json:"ownerType"`
		OwnerID   string                 `json:"ownerId"`
		Amount    int64                  `json:"amount"`
		Kind      models.TransactionKind `json:"kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.OwnerID == "" {
		http.Error(w, "ownerId is required", http.StatusBadRequest)
		return
	}
	if body.OwnerType == "" {
		body.OwnerType = models.OwnerDriver
	}
	switch body.Kind {
	case models.TxDeposit, models.TxAdjustment, models.TxCommission, models.TxFee:
	default:
		http.Error(w, "unknown transaction kind", http.StatusBadRequest)
		return
	}
	tx, err := s.Orders.AdjustWallet(r.Context(), body.OwnerType, body.OwnerID, body.Amount, body.Kind)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// handleDriverLocation is the REST fallback for clients without a live
// connection. It feeds the same gateway pipeline as the socket path, so
// the displacement throttle and room fan-out apply either way.
func (s *Server) handleDriverLocation(w http.ResponseWriter, r *http.Request) {
	var p dispatch.LocationPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.DriverID == "" {
		http.Error(w, "driverId is required", http.StatusBadRequest)
		return
	}
	s.Gateway.IngestLocation(r.Context(), p)
	w.WriteHeader(http.StatusNoContent)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWS upgrades the connection and starts the session pumps. Drivers
// identify with driver_id; customers connect anonymously and gain scope by
// joining an order room.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	driverID := r.URL.Query().Get("driver_id")
	role := r.URL.Query().Get("role")
	if role == "" {
		if driverID != "" {
			role = "driver"
		} else {
			role = "customer"
		}
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "upgrade failed", http.StatusBadRequest)
		return
	}
	sess := dispatch.NewSession(storage.NewID(), driverID, role, conn)
	// The request context dies with this handler; the pumps own the
	// connection lifetime.
	ctx := context.WithoutCancel(r.Context())
	s.Gateway.Connect(ctx, sess)
	go sess.WritePump()
	go sess.ReadPump(ctx, s.Gateway, s.logger)
}
