// Package toolchain sequences the external compile and package stages that
// turn a firmware source into a flashable image.
//
// Stages run through a Runner so tests can substitute fakes for the real
// compiler. The pipeline guarantees:
//   - no stage runs unless every required tool resolves (precheck)
//   - package never runs on a missing or stale intermediate image
//   - a final image only appears under its real name after a successful
//     package stage (temp file + rename)
//   - a failed compile leaves no image or manifest from an earlier build
package toolchain
