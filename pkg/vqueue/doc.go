// Package vqueue implements a priority scheduler for audio commands on a
// single call.
//
// Callers submit textual "molecule" commands — a priority, a set of mode
// flags, and a sequence of play / record / dtmf atoms. The [Parser] lowers
// a command line to a [Molecule], the [Scheduler] queues it into one of
// [NumPriorities] FIFO lanes and executes atoms against the call's playback
// and capture devices through the contracts in
// [github.com/MrWong99/voxqueue/pkg/audio].
//
// Because a call has exactly one playback and one capture channel, molecules
// compete: a higher-priority arrival preempts the running molecule, and the
// interrupted molecule's interrupt policy (discard, pause, mute, restart,
// dont_interrupt) decides whether it is dropped, resumed in place, caught up
// to virtual time, restarted, or shielded from preemption in the first
// place. The loop flag repeats a molecule until cancelled; dtmf_stop cancels
// it when a live digit arrives from the caller.
//
// Command grammar and lifecycle are documented on [Parser.Parse] and
// [Scheduler].
package vqueue
