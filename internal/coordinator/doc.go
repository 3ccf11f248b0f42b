// Package coordinator turns inbound obtain and purge requests into calls on
// the decision engine and the storage layer. It is the only place that writes
// outcomes into the ResultMap and the only place that forwards failures to
// the error sink.
package coordinator
