/*
Package consumer executes reserved trials.

The tracked command runs as a child process inside a per-trial working
directory, with KLEIO_TRIAL_ID and the store coordinates in its
environment so the process can log statistics against its own trial.
Stdout and stderr are streamed line by line into the event log. A
heartbeat goroutine refreshes the running claim; losing the claim means
an external actor requested a stop, and the child is terminated.
*/
package consumer
