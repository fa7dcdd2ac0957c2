// Package service coordinates one merge session between the backend client
// and the filter and overlay state.
//
// # Workflow
//
// A Workflow is created per session and passed by reference to whatever
// drives it (the CLI, tests). It owns the loaded records, the FilterSet,
// the conflict overlay, the selected ids and the merge result, so no
// package-level state is involved. The steps run in order:
//
//	LoadRecords -> Filtered -> CheckConflicts -> (edit Overlay) -> Merge -> Deploy
//
// Close abandons the session and cancels in-flight calls, which releases
// their readiness channels and progress timers.
//
// # Event System
//
// Steps publish events on an EventBus: records_loaded, conflicts_loaded,
// merged, deployed and workflow_abandoned. ProgressSink turns the client's
// progress signal into progress events.
package service
