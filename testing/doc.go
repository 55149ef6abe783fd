// Package testing provides test utilities for leadflow.
//
// It offers an embedded NATS server with JetStream, KV bucket helpers and loggers
// for tests, in the spirit of net/http/httptest.
//
// Key utilities:
//   - StartEmbeddedNATS: Single NATS server with JetStream
//   - NewJetStream: JetStream context bound to a test connection
//   - CreateJetStreamKV: In-memory KV bucket for store tests
//   - NewTestLogger / NewRecordingLogger: Loggers for test output and assertions
//
// Example usage:
//
//	import (
//	    "testing"
//	    leadflowtest "github.com/arloliu/leadflow/testing"
//	)
//
//	func TestMyComponent(t *testing.T) {
//	    _, nc := leadflowtest.StartEmbeddedNATS(t)
//	    kv := leadflowtest.CreateJetStreamKV(t, nc, "crm")
//	    // Use kv for your tests
//	}
package testing
