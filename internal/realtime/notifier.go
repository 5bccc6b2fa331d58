package realtime

import (
	"context"

	"lodgetix/internal/shared/constants"
	"lodgetix/pkg/logger"
)

// Notifier publishes ticket row changes onto the realtime channels. It
// implements the ticket engine's RowChangeNotifier; delivery is
// fire-and-forget and never fails the mutation that triggered it.
type Notifier struct {
	manager *ChannelManager
}

func NewNotifier(manager *ChannelManager) *Notifier {
	return &Notifier{manager: manager}
}

// NotifyAvailabilityChange publishes on availability-{eventId}-{defId}.
// Subscribers re-query counts on receipt.
func (n *Notifier) NotifyAvailabilityChange(ctx context.Context, eventID, ticketDefinitionID string) {
	channel := constants.BuildAvailabilityChannel(eventID, ticketDefinitionID)
	msg := AvailabilityChangeMessage{
		EventID:            eventID,
		TicketDefinitionID: ticketDefinitionID,
		Timestamp:          nowMillis(),
	}

	if err := n.manager.Publish(ctx, channel, Envelope{Event: "availability-change", Payload: msg}); err != nil {
		logger.GetDefault().WithError(err).Warn("failed to publish availability change", "channel", channel)
	}
}

// NotifyReservationChange publishes on ticket-updates-{reservationId}
func (n *Notifier) NotifyReservationChange(ctx context.Context, reservationID, status string, ticketIDs []string) {
	channel := constants.BuildTicketUpdatesChannel(reservationID)
	msg := TicketUpdateMessage{
		ReservationID: reservationID,
		Status:        status,
		TicketIDs:     ticketIDs,
		Timestamp:     nowMillis(),
	}

	if err := n.manager.Publish(ctx, channel, Envelope{Event: "ticket-update", Payload: msg}); err != nil {
		logger.GetDefault().WithError(err).Warn("failed to publish reservation change", "channel", channel)
	}
}

// BroadcastSystemStatus publishes a status message on system-tickets-{eventId}
func (n *Notifier) BroadcastSystemStatus(ctx context.Context, msg SystemStatusMessage) {
	if msg.Timestamp == 0 {
		msg.Timestamp = nowMillis()
	}
	channel := constants.BuildSystemChannel(msg.EventID)

	if err := n.manager.Publish(ctx, channel, Envelope{Event: constants.SystemStatusEventName, Payload: msg}); err != nil {
		logger.GetDefault().WithError(err).Warn("failed to publish system status", "channel", channel)
	}
}
