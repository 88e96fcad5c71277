// Package events carries pipeline and scheduler notifications.
//
// The pipeline reports stage transitions through StageObserver and the
// scheduler reports run progress through ProgressObserver. Observers are
// notification-only: nothing they do feeds back into control flow.
//
// InMemoryEventEmitter adapts both observer interfaces into Event values and
// fans them out to registered EventHandlers, such as LogHandler.
package events
