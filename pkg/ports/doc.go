/*
Package ports defines the driven-port interfaces of Kleiō.

The producer and consumer depend only on these interfaces; the adapters
under internal/adapters provide the memory, file and Redis
implementations. This keeps the coordination logic independent of the
storage backend, following Hexagonal Architecture principles.
*/
package ports
