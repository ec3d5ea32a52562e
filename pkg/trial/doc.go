/*
Package trial provides the store-backed operations on a registered trial:
lifecycle transitions (reserve, run, complete, ...), tag management,
output and statistic logging, and the lineage-aware read view used by
branched trials.

A Handle is the writable side held by the process that reserved the
trial. A View is read-only and, for branched lineages, clips each
ancestor's history at its branch point so the child sees exactly the
past it forked from.
*/
package trial
