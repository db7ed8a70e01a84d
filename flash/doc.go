// Package flash drives one upload of a built image to the target chip.
//
// A Session is an explicit state machine:
//
//	idle → locating → waiting_for_reset → uploading → done
//	          ↓    ↑
//	        polling            (auto-detect only, until a device appears)
//
// Any phase may end in failed. In manual mode (explicit device path) an
// absent device fails immediately without polling. Polling and the reset
// settle wait are cancellable through the context; cancellation fails the
// session with ErrCancelled.
//
// The session never spawns processes itself: device discovery goes through
// a Locator and the upload through a Flasher, so every transition can be
// exercised without hardware.
package flash
