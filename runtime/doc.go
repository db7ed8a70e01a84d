// Package runtime composes the build pipeline, the device locator and the
// flash session into flint's commands.
//
// Every operation reports a types.Outcome; Classify maps errors to outcome
// statuses and ExitCode maps statuses to process exit codes:
//
//	success 0, build_failed 1, tool_missing 2, device_not_found 3,
//	upload_failed 4, stale_artifact 5, invalid_config 6, cancelled 130
package runtime
