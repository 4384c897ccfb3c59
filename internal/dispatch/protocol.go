package dispatch

import (
	"encoding/json"

	"github.com/qz-yi/Satha-Choice-sub000/internal/models"
)

// Wire event names. These are the contract with deployed driver/customer
// apps and must not change.
const (
	// outbound
	EventNewRequestAvailable  = "new_request_available"
	EventStatusChanged        = "status_changed"
	EventDriverLocationUpdate = "driver_location_update"
	EventReceiveMessage       = "receive_message"

	// inbound
	EventJoinOrder         = "join_order"
	EventAcceptOrder       = "accept_order"
	EventUpdateOrderStatus = "update_order_status"
	EventSendMessage       = "send_message"
	EventNewRequestCreated = "new_request_created"
)

// OrderStatusEvent is the per-order variant of the status event name.
func OrderStatusEvent(orderID string) string { return "order_status_" + orderID }

// Envelope frames every message on the live channel.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func encodeEvent(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// StatusPayload is the status_changed / order_status_{id} body.
type StatusPayload struct {
	Status     models.Status      `json:"status"`
	DriverInfo *models.DriverInfo `json:"driverInfo,omitempty"`
}

// JoinPayload identifies the room to join. Older client builds send a bare
// order-id string instead of the object form; both are accepted.
type JoinPayload struct {
	OrderID string `json:"orderId"`
}

type AcceptPayload struct {
	OrderID    string             `json:"orderId"`
	DriverID   string             `json:"driverId"`
	DriverInfo *models.DriverInfo `json:"driverInfo,omitempty"`
}

type UpdateStatusPayload struct {
	OrderID    string             `json:"orderId"`
	Status     models.Status      `json:"status"`
	DriverID   string             `json:"driverId,omitempty"`
	DriverInfo *models.DriverInfo `json:"driverInfo,omitempty"`
}

// LocationPayload flows driver→server→room. Heading defaults to 0 when the
// device cannot provide one.
type LocationPayload struct {
	OrderID      string  `json:"orderId"`
	DriverID     string  `json:"driverId"`
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	Heading      float64 `json:"heading"`
	DriverName   string  `json:"driverName,omitempty"`
	DriverAvatar string  `json:"driverAvatar,omitempty"`
}

// ChatPayload is relayed verbatim; there is no persistence or replay.
type ChatPayload struct {
	OrderID         string `json:"orderId"`
	Sender          string `json:"sender"` // "customer" or "driver"
	Text            string `json:"text"`
	ClientTimestamp int64  `json:"clientTimestamp,omitempty"`
}
