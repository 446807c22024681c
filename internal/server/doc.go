// Package server implements an HTTP/1.1 server with three interchangeable
// concurrency models behind one contract: a bounded worker pool, a gnet
// event loop, and a hybrid that splits connection I/O from handler compute.
//
// Admission is a weighted-semaphore permit taken before accept and released
// when the connection finishes, so every mode honors the same ceiling.
// Shutdown drains in-flight connections up to a deadline and force-closes
// the rest.
package server
