// Package internaldefs maps engine counters onto labeled metric families and
// holds the latency bucket bounds, so both exporters publish identical series.
package internaldefs
