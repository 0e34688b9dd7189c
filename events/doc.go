// Package events carries impression and conversion events over NATS JetStream.
//
// A Publisher writes events to "<prefix>.impression" and "<prefix>.conversion"
// with the event id as the Nats-Msg-Id header, so the stream's duplicate window
// drops client retries. A Consumer runs one durable pull consumer and feeds
// each event to a Recorder, normally a *vario.Service.
//
// Delivery policy of the Consumer:
//   - unknown experiment or variant: the message is terminated
//   - store outage on an impression: acked and dropped, impressions are best-effort
//   - store outage on a conversion: redelivered after NakDelay, up to MaxDeliver
package events
