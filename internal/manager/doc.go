// Package manager owns the primary inpainting backend and coordinates hot
// swaps of it. It is structured into small files by concern:
//
//   - manager.go: core Manager type, constructor, read-only getters.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - types.go: Snapshot, Capabilities, Status and Output.
//   - backend.go: the Backend contract and Factory.
//   - errors.go: error types and helpers (IsResourceExhausted, IsUnknownBackend, ...).
//   - switch.go: Activate/Switch, the all-or-nothing swap.
//   - infer.go: Infer and Reclaim against the active snapshot.
//   - hd.go: the Original/Resize/Crop strategies applied around a backend call.
//   - builtin_cv2.go, builtin_fill.go: in-process backends that need no runtime.
//   - adapter_runner.go: backends served by an external HTTP runner.
//   - events.go, eventpub_memory.go: lifecycle event publishing.
//   - metrics.go: Prometheus collectors for switches and backend calls.
//
// The active backend lives in an immutable Snapshot published through an
// atomic pointer. A swap builds the replacement completely before publishing
// it, so concurrent Infer calls observe either the old or the new backend and
// never a partially constructed one. External packages should use public
// methods only (NewWithConfig, Activate, Switch, Infer, Reclaim, ScanAvailable).
package manager
