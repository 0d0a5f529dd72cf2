// Package mongostore implements taskq.Store on MongoDB using the v2 driver.
//
// Pick and mark run inside a multi-document transaction, which requires a
// replica set or sharded cluster. Task ids are allocated from a counters
// collection so that the id tie-break keeps insertion order.
package mongostore
