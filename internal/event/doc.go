// Package event provides the synchronous publish/subscribe bus at the
// center of the viewer's coordination layer.
//
// All cross-component communication flows through the bus: UI layers raise
// intent events (load.requested, select.requested), coordinators react and
// mutate canonical state, and change notifications (state.changed,
// selection.changed, load.completed) flow back out. Delivery is synchronous
// and ordered; events published from inside a handler are queued and
// delivered breadth-first after the triggering dispatch completes, which
// keeps cyclic event chains off the call stack and bounds fan-out.
package event
