// SPDX-License-Identifier: MPL-2.0

// Package benchmark provides benchmarks for PGO profile generation.
// These benchmarks cover the hot paths of a server start:
//   - CUE configuration loading and schema validation
//   - base/override config resolution
//   - the bind outcome race between ready and failure
//   - a full HTTP start/stop cycle on an ephemeral port
//
// To generate a profile, run:
//
//	go test ./internal/benchmark -run '^$' -bench . -cpuprofile default.pgo
package benchmark
