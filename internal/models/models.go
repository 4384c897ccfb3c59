package models

import "time"

// Status is the stored lifecycle of a tow request. The dropoff/payment
// sub-phase shown in driver apps is client-side UI state, never persisted.
type Status string

const (
	StatusPending    Status = "pending"
	StatusAccepted   Status = "accepted"
	StatusArrived    Status = "arrived"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// ValidStatus reports whether s is one of the stored request statuses.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusAccepted, StatusArrived, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentWallet PaymentMethod = "wallet"
)

type Coord struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Request is a single towing job. DriverID is empty iff Status is pending;
// once set it never reverts for that request.
type Request struct {
	ID             string        `json:"id"`
	Status         Status        `json:"status"`
	City           string        `json:"city"`
	Pickup         Coord         `json:"pickup"`
	PickupAddress  string        `json:"pickupAddress"`
	Dropoff        Coord         `json:"dropoff"`
	DropoffAddress string        `json:"dropoffAddress"`
	DriverID       string        `json:"driverId,omitempty"`
	CustomerID     string        `json:"customerId"`
	CustomerPhone  string        `json:"customerPhone"`
	Price          int64         `json:"price"`
	PaymentMethod  PaymentMethod `json:"paymentMethod"`
	CreatedAt      time.Time     `json:"createdAt"`
}

type DriverStatus string

const (
	DriverPendingApproval DriverStatus = "pending_approval"
	DriverApproved        DriverStatus = "approved"
	DriverBlocked         DriverStatus = "blocked"
)

// Driver is the durable driver record. WalletBalance is a cached projection
// of the wallet ledger, updated together with every ledger append.
type Driver struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Phone         string       `json:"phone"`
	AvatarURL     string       `json:"avatarUrl"`
	VehicleType   string       `json:"vehicleType"`
	Status        DriverStatus `json:"status"`
	Online        bool         `json:"online"`
	City          string       `json:"city"`
	WalletBalance int64        `json:"walletBalance"`
}

// DriverInfo is the payload carried by order-accepted events so the
// customer side can render the assigned driver immediately.
type DriverInfo struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Phone       string  `json:"phone"`
	Avatar      string  `json:"avatar"`
	VehicleType string  `json:"vehicleType"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
}

// Info projects the event-facing subset of a driver record with the last
// known coordinates attached.
func (d *Driver) Info(lat, lng float64) DriverInfo {
	return DriverInfo{
		ID:          d.ID,
		Name:        d.Name,
		Phone:       d.Phone,
		Avatar:      d.AvatarURL,
		VehicleType: d.VehicleType,
		Lat:         lat,
		Lng:         lng,
	}
}

type OwnerType string

const (
	OwnerDriver   OwnerType = "driver"
	OwnerCustomer OwnerType = "customer"
)

type TransactionKind string

const (
	TxDeposit    TransactionKind = "deposit"
	TxFee        TransactionKind = "fee"
	TxCommission TransactionKind = "commission"
	TxAdjustment TransactionKind = "adjustment"
)

// Transaction is one wallet ledger entry. The sum of an owner's entries is
// the wallet balance; any cached balance is a projection of that sum.
type Transaction struct {
	ID        string          `json:"id"`
	OwnerType OwnerType       `json:"ownerType"`
	OwnerID   string          `json:"ownerId"`
	Amount    int64           `json:"amount"`
	Kind      TransactionKind `json:"kind"`
	CreatedAt time.Time       `json:"createdAt"`
}

// LocationSample is the last known position of a driver, kept only while a
// live connection exists.
type LocationSample struct {
	DriverID string    `json:"driverId"`
	Lat      float64   `json:"lat"`
	Lng      float64   `json:"lng"`
	Heading  float64   `json:"heading"`
	Name     string    `json:"name,omitempty"`
	Avatar   string    `json:"avatar,omitempty"`
	Updated  time.Time `json:"updated"`
}
