// Package testing provides test utilities for the vario library.
//
// This package offers helpers for setting up test environments, particularly
// embedded NATS servers for repository, sticky store and event tests. It
// follows Go's convention of providing testing utilities in a dedicated
// package (similar to net/http/httptest).
//
// Key utilities:
//   - StartEmbeddedNATS: Single NATS server with JetStream
//   - Connect: Additional client connection to a running server
//   - CreateJetStreamKV: Convenience wrapper for KV bucket creation
//   - NewExperiment: Experiment fixture with given variant weights
//   - NewTestLogger: types.Logger writing to testing.T
//
// Example usage:
//
//	import (
//	    "testing"
//	    variotest "github.com/arloliu/vario/testing"
//	)
//
//	func TestMyComponent(t *testing.T) {
//	    _, nc := variotest.StartEmbeddedNATS(t)
//	    // Use nc for your tests
//	}
package testing
