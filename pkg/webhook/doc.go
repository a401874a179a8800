// Package webhook posts notifications to HTTP gateways.
//
// The sms and push channels have no provider SDK in this service. Instead each
// channel is pointed at a gateway URL that accepts a signed JSON body and
// forwards it to the carrier or push service. GatewaySender adapts a gateway
// to the dispatch.Sender interface.
//
// Client.Post makes exactly one request. The notification queue decides when
// to try again, so there is no retry loop here.
//
//	sender, err := webhook.NewGatewaySender(notifyq.ChannelSMS, cfg.SMSURL, cfg.Options()...)
//
// # Error classification
//
// Non-2xx responses are wrapped in ErrPermanentFailure for 4xx codes that
// will not change on resend and in ErrTemporaryFailure for everything else,
// including 408, 425 and 429. Network errors are temporary; a request that
// runs past its timeout fails with ErrTimeout. Either way the queue records
// the attempt, so the distinction is mostly useful in logs and hooks.
//
// # Request signing
//
// WithSignature adds three headers:
//
//	X-Webhook-Signature: hex HMAC-SHA256(secret, timestamp + "." + body)
//	X-Webhook-Timestamp: unix seconds
//	X-Webhook-ID:        random id for this request
//
// Gateways verify with ExtractSignatureHeaders and VerifySignature:
//
//	sig, err := webhook.ExtractSignatureHeaders(r.Header)
//	err = webhook.VerifySignature(secret, body, sig, 5*time.Minute)
//
// Gateway requests also carry X-Notification-ID, X-Tenant-ID and
// X-Delivery-Attempt. A record may be delivered more than once, so gateways
// should drop duplicates by notification id.
//
// # Circuit breaker
//
// A CircuitBreaker shared by all sends to one endpoint fails fast after
// consecutive temporary failures and lets trial requests through once the
// recovery timeout passes. 4xx rejections count as successes because the
// endpoint answered.
package webhook
