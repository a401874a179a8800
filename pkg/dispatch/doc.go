// Package dispatch moves due notifications from a notifyq.Queue to channel senders.
//
// A Worker claims records for the channels it has senders for, delivers each
// one in its own goroutine up to MaxConcurrent at a time and reports the
// outcome back to the queue: MarkSent on success, RecordFailureAndMaybeRetry
// with the error text otherwise. Retry timing belongs to the queue; senders
// should not retry internally.
//
// Claim errors do not stop the worker. The poll interval doubles after each
// consecutive failure, up to MaxClaimBackoff, and resets on the next success.
//
// # Usage
//
//	w, err := dispatch.NewWorker(queue,
//		dispatch.WithConfig(cfg),
//		dispatch.WithLogger(log),
//	)
//	if err != nil {
//		return err
//	}
//	if err := w.RegisterSender(emailSender, smsGateway, inAppPublisher); err != nil {
//		return err
//	}
//
//	g.Go(w.Run(ctx))
//
// # Shutdown
//
// Stop stops claiming and waits for in-flight sends. Sends and outcome reports
// run on a context detached from the worker, bounded by SendTimeout, so a
// record claimed right before shutdown is still reported instead of waiting
// for the lease reaper.
package dispatch
