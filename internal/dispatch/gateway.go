package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/qz-yi/Satha-Choice-sub000/internal/geo"
	"github.com/qz-yi/Satha-Choice-sub000/internal/models"
	"github.com/qz-yi/Satha-Choice-sub000/internal/observability"
	"github.com/qz-yi/Satha-Choice-sub000/internal/orders"
	"github.com/qz-yi/Satha-Choice-sub000/internal/presence"
	"github.com/qz-yi/Satha-Choice-sub000/internal/storage"
)

// LocationPublisher forwards location samples to the ingest stream.
// Optional; delivery failures never interrupt the live channel.
type LocationPublisher interface {
	PublishLocation(s models.LocationSample) error
}

// Gateway routes inbound live-channel events to the lifecycle service, the
// room router and the presence registry.
type Gateway struct {
	Registry    *SessionRegistry
	Rooms       *RoomRouter
	Broadcaster *Broadcaster
	Orders      *orders.Service
	Presence    presence.Registry
	Store       storage.RequestStore
	Locations   LocationPublisher
	// MinMoveMeters bounds location fan-out volume: samples closer than
	// this to the last propagated one are dropped.
	MinMoveMeters float64
	Logger        *slog.Logger
}

func (g *Gateway) Connect(ctx context.Context, s *Session) {
	g.Registry.Add(s)
	observability.LiveConnections.Inc()
	g.Logger.Info("session connected", "session_id", s.ID, "driver_id", s.DriverID, "role", s.Role)
}

// Disconnect removes the session from rooms, the driver index and the
// presence registry. The driver's online flag is untouched: going offline
// is an explicit driver action, and a transient network drop must not
// silently take a driver off the roster.
func (g *Gateway) Disconnect(ctx context.Context, s *Session) {
	g.Rooms.DropSession(s)
	g.Registry.Remove(s)
	if s.DriverID != "" {
		// Keep presence if a newer session already replaced this one.
		if _, ok := g.Registry.Driver(s.DriverID); !ok {
			_ = g.Presence.Remove(ctx, s.DriverID)
		}
	}
	s.close()
	observability.LiveConnections.Dec()
	g.Logger.Info("session disconnected", "session_id", s.ID, "driver_id", s.DriverID)
}

func (g *Gateway) Dispatch(ctx context.Context, s *Session, env Envelope) {
	observability.SocketEvents.WithLabelValues(env.Event).Inc()
	switch env.Event {
	case EventJoinOrder:
		g.handleJoin(s, env.Data)
	case EventAcceptOrder:
		g.handleAccept(ctx, s, env.Data)
	case EventUpdateOrderStatus:
		g.handleUpdateStatus(ctx, s, env.Data)
	case EventDriverLocationUpdate:
		g.handleLocation(ctx, s, env.Data)
	case EventSendMessage:
		g.handleChat(s, env.Data)
	case EventNewRequestCreated:
		g.handleRequestCreated(ctx, env.Data)
	default:
		g.Logger.Debug("unknown event", "event", env.Event, "session_id", s.ID)
	}
}

func (g *Gateway) handleJoin(s *Session, data json.RawMessage) {
	var p JoinPayload
	if err := json.Unmarshal(data, &p); err != nil || p.OrderID == "" {
		// bare string form
		var id string
		if err := json.Unmarshal(data, &id); err != nil || id == "" {
			return
		}
		p.OrderID = id
	}
	g.Rooms.Join(p.OrderID, s)
}

func (g *Gateway) handleAccept(ctx context.Context, s *Session, data json.RawMessage) {
	var p AcceptPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	driverID := p.DriverID
	if driverID == "" {
		driverID = s.DriverID
	}
	info := models.DriverInfo{}
	if p.DriverInfo != nil {
		info = *p.DriverInfo
	}
	if info.Lat == 0 && info.Lng == 0 {
		if sample, ok := g.Presence.Get(ctx, driverID); ok {
			info.Lat, info.Lng = sample.Lat, sample.Lng
		}
	}

	_, err := g.Orders.Accept(ctx, p.OrderID, driverID, info)
	if err != nil {
		g.Logger.Info("accept rejected", "order_id", p.OrderID, "driver_id", driverID, "reason", err)
		// Tell the losing driver where the order actually stands.
		if errors.Is(err, orders.ErrAlreadyTaken) {
			if cur, getErr := g.Store.Get(ctx, p.OrderID); getErr == nil {
				s.EnqueueEvent(OrderStatusEvent(p.OrderID), StatusPayload{Status: cur.Status})
			}
		}
		return
	}
	// The winner joins the room so both parties observe the same stream
	// from here on.
	g.Rooms.Join(p.OrderID, s)
}

func (g *Gateway) handleUpdateStatus(ctx context.Context, s *Session, data json.RawMessage) {
	var p UpdateStatusPayload
	if err := json.Unmarshal(data, &p); err != nil || p.OrderID == "" {
		return
	}
	driverID := p.DriverID
	if driverID == "" {
		driverID = s.DriverID
	}
	var err error
	if p.Status == models.StatusCompleted {
		_, err = g.Orders.Complete(ctx, p.OrderID, driverID)
	} else {
		_, err = g.Orders.UpdateStage(ctx, p.OrderID, p.Status, driverID, p.DriverInfo)
	}
	if err != nil {
		g.Logger.Warn("status update rejected", "order_id", p.OrderID, "status", p.Status, "driver_id", driverID, "reason", err)
	}
}

func (g *Gateway) handleLocation(ctx context.Context, s *Session, data json.RawMessage) {
	var p LocationPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	if p.DriverID == "" {
		p.DriverID = s.DriverID
	}
	g.IngestLocation(ctx, p)
}

// IngestLocation runs one location sample through the shared pipeline:
// displacement throttle, presence update, Kafka publish and room fan-out.
// Both the socket path and the REST fallback land here.
func (g *Gateway) IngestLocation(ctx context.Context, p LocationPayload) {
	if p.DriverID == "" {
		return
	}

	// Drop jitter: propagate only once the driver moved far enough from
	// the last sample that went out.
	if last, ok := g.Presence.Get(ctx, p.DriverID); ok {
		if geo.Haversine(last.Lat, last.Lng, p.Lat, p.Lng) < g.MinMoveMeters {
			return
		}
	}

	sample := models.LocationSample{
		DriverID: p.DriverID,
		Lat:      p.Lat,
		Lng:      p.Lng,
		Heading:  p.Heading,
		Name:     p.DriverName,
		Avatar:   p.DriverAvatar,
		Updated:  time.Now(),
	}
	if err := g.Presence.Update(ctx, sample); err != nil {
		g.Logger.Warn("presence update failed", "driver_id", p.DriverID, "error", err)
	}
	if g.Locations != nil {
		if err := g.Locations.PublishLocation(sample); err != nil {
			g.Logger.Warn("location publish failed", "driver_id", p.DriverID, "error", err)
		}
	}
	if p.OrderID != "" {
		g.Rooms.Broadcast(p.OrderID, EventDriverLocationUpdate, p)
	}
}

func (g *Gateway) handleChat(s *Session, data json.RawMessage) {
	var p ChatPayload
	if err := json.Unmarshal(data, &p); err != nil || p.OrderID == "" {
		return
	}
	// Relay verbatim to the other party; nothing is queued for absent
	// members and the sender gets no delivery error either way.
	g.Rooms.BroadcastExcept(p.OrderID, s, EventReceiveMessage, ChatPayload{
		OrderID: p.OrderID,
		Sender:  p.Sender,
		Text:    p.Text,
	})
}

func (g *Gateway) handleRequestCreated(ctx context.Context, data json.RawMessage) {
	var req models.Request
	if err := json.Unmarshal(data, &req); err != nil || req.ID == "" {
		return
	}
	// The store is authoritative; the socket payload only triggers the
	// broadcast after the REST path persisted the request.
	if stored, err := g.Store.Get(ctx, req.ID); err == nil {
		req = *stored
	}
	g.Broadcaster.OnRequestCreated(ctx, &req)
}
