// Package notifyq implements a durable, tenant-scoped notification delivery queue.
//
// Producers call Enqueue to persist a pending record. Delivery workers call
// ClaimDue to atomically move due records to sending, hand them to a channel
// sender, and report the outcome with MarkSent or RecordFailureAndMaybeRetry.
// Failed attempts are rescheduled with exponential backoff (5m, 15m, 45m, ...)
// until MaxAttempts is reached, after which the record is failed.
//
// # Lifecycle
//
//	pending --claim--> sending --deliver--> sent
//	                   sending --fail-----> pending (budget left) | failed
//	pending, failed --cancel--> cancelled
//
// Any other change is rejected with a *TransitionError. Cancel on a sent or
// cancelled record is a successful no-op.
//
// # Storage
//
// Queue talks to a Store. Every Store call is one round-trip and evaluates the
// current time on the store side. MemoryStorage is included for tests and local
// development; the pgstore and mongostore subpackages provide durable backends.
// The storetest subpackage holds the conformance suite every Store must pass.
//
// # Usage
//
//	store := notifyq.NewMemoryStorage()
//	q, err := notifyq.NewQueue(store, notifyq.WithLogger(log))
//	if err != nil {
//	    return err
//	}
//
//	id, err := q.Enqueue(ctx, notifyq.EnqueueRequest{
//	    TenantID:  tenantID,
//	    Channel:   notifyq.ChannelEmail,
//	    Recipient: "user@example.com",
//	    Subject:   "Your invoice",
//	    Body:      "<p>Thanks!</p>",
//	})
//
//	records, err := q.ClaimDue(ctx, 20, notifyq.WithClaimChannels(notifyq.ChannelEmail))
//
// # Maintenance
//
// Janitor periodically runs Cleanup, which removes sent and cancelled records
// past the retention period, and ReapStuck, which releases records stuck in
// sending after a worker crash.
//
// # Priority
//
// Priority is validated and stored but does not affect claim ordering yet.
package notifyq
