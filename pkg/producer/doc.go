/*
Package producer builds trials out of user command lines.

A Producer normalizes the command line, captures the version and host
fingerprints, computes the trial identity and registers it, resuming the
existing trial when an identical command was already tracked. Resume
runs conflict detection: code or environment drift since the original
run aborts unless explicitly allowed. Branch forks a child trial whose
view of history is the parent's, clipped at the branch point.
*/
package producer
