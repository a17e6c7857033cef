/*
Package notification delivers and manages per-user notifications.

# Delivery

Engine.Deliver fans one payload out to its target:

  - a single user: exactly one insert, without checking that the user exists
  - broadcast: every active user, inserted in sequential batches of at most
    BatchSize rows

A failing batch aborts the broadcast. Batches already inserted stay
committed; the returned error wraps a *PartialDeliveryError carrying the
delivered count.

# Inbox

Inbox serves the owner's view of their notifications: paged listing,
unread count, marking read and deletion. Mutations check ownership.

# Usage

	engine := notification.NewEngine(st, users, logger).WithMetrics(metrics)
	result, err := engine.Deliver(ctx, notification.Payload{
		Type:    notification.TypeEmergency,
		Title:   "M6.2 earthquake",
		Message: "Move away from damaged buildings",
	}, notification.Broadcast())
*/
package notification
