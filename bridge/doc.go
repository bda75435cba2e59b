// Package bridge loads a libretro core compiled to WebAssembly and drives
// it through the standard callback protocol: six host callbacks, the
// environment negotiation commands, frame stepping, and serialization.
//
// Cores are wasm32 reactor modules built against the retroemu glue shim.
// The shim exports the retro_* entry points plus malloc/free, imports the
// six host callbacks from module "env", and reserves fixed function-table
// slots for them so the host can hand retro_set_* ordinary C function
// pointers. Structured data crosses the boundary through the core's own
// linear memory using the wasm32 C ABI layouts in layout.go.
//
// All protocol logic runs against two narrow seams, guestMemory and
// coreCalls, so it can be exercised in tests without a wasm runtime.
package bridge
