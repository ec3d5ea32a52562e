/*
Package observability exposes Kleiō runtime metrics as Prometheus
collectors: reservation outcomes, heartbeats, run durations and a live
gauge of trials per status backed by the report store.
*/
package observability
