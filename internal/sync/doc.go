// Package sync pulls employee rosters and attendance punches from the
// registered devices through the device gateway and stores them.
//
// Each engine runs at most one pass at a time. A pass enumerates the target
// devices, fetches each one in turn through the shared request queue,
// normalizes the payload and writes it in chunks. A failing device is logged
// and skipped; only an invalid or unknown machine number fails the pass.
package sync
