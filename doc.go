// Package cmdlist provides backend-agnostic GPU command recording.
//
// # Overview
//
// cmdlist accepts a sequence of rendering operations (pipeline and resource
// binds, draws, clears, buffer and texture updates and copies) and turns
// them into correct, batched calls against a native graphics backend. Two
// backend shapes are covered:
//
//   - immediate: commands are issued directly against a live device, but
//     expensive state changes (passes, bindings, viewport arrays) are
//     tracked with dirty flags and coalesced lazily before each draw.
//   - deferred: commands recorded on arbitrary goroutines are captured into
//     an ordered entry log and later replayed, verbatim and in order, on
//     the one goroutine permitted to touch the device.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/cmdlist/driver"
//	    _ "github.com/gogpu/cmdlist/driver/memdrv"
//	    "github.com/gogpu/cmdlist/immediate"
//	)
//
//	drv, _ := driver.Open("mem")
//	dev := immediate.NewDevice(drv)
//	cl := dev.NewList("frame")
//
//	cl.Begin()
//	cl.SetFramebuffer(fb)
//	cl.ClearColorTarget(0, gputypes.Color{R: 1})
//	cl.SetPipeline(pipe)
//	cl.Draw(3, 1, 0, 0)
//	cl.End()
//	dev.Submit(cl)
//	dev.WaitForIdle()
//
// # Architecture
//
//	            +------------------+      +------------------+
//	            |  immediate.List  |      |  deferred.List   |
//	            | (state machine)  |      |  (entry log)     |
//	            +--------+---------+      +--------+---------+
//	                     |                         | Replay
//	        binding.Table|                +--------v---------+
//	        staging.Pool |                | cmdlist.CommandList
//	                     |                |   (any target)   |
//	            +--------v---------+      +------------------+
//	            |  driver.Device   |
//	            | (native surface) |
//	            +------------------+
//
// This package holds the shared vocabulary: the [CommandList] operation
// surface, resource layout and set types, the [Pipeline] description, and
// alignment validation. The backends live in the immediate and deferred
// sub-packages; native surfaces live under driver.
//
// # Thread Safety
//
// No CommandList is safe for concurrent use; each instance belongs to one
// goroutine at a time. Deferred lists make the hardware thread-safe by
// confinement: recording never touches the device, and one executor
// goroutine replays.
package cmdlist
