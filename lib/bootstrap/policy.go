// Copyright 2026 The Cubeboot Authors
// SPDX-License-Identifier: Apache-2.0

package bootstrap

// Policy is the failure policy applied at one external call site. The
// shell ancestry of this entrypoint suppressed errors with "|| true";
// here every call site names its policy explicitly, so a reader can
// tell a tolerated failure from a fatal one without tracing control
// flow.
type Policy int

const (
	// PolicyIgnore drops the error after a debug log. Used where
	// failure is an expected branch: a missing activation marker, an
	// absent optional manifest, a rasterio without bundled data.
	PolicyIgnore Policy = iota

	// PolicyWarn logs the error at warning level and continues. Used
	// for the database stage and boot-state handling, which must never
	// break a boot.
	PolicyWarn

	// PolicyAbort propagates the error and ends the sequence. Used for
	// everything that makes the container unsafe to hand to tests:
	// identity mutation, privilege drop, artifact write, exec.
	PolicyAbort
)

func (p Policy) String() string {
	switch p {
	case PolicyIgnore:
		return "ignore"
	case PolicyWarn:
		return "warn"
	case PolicyAbort:
		return "abort"
	default:
		return "unknown"
	}
}

// handle applies a policy to the outcome of a call site. A nil error
// always returns nil. Under PolicyIgnore and PolicyWarn the error is
// logged with the given message and attributes and swallowed; under
// PolicyAbort it is returned unchanged for the caller to propagate.
func (s *Sequencer) handle(policy Policy, err error, message string, attrs ...any) error {
	if err == nil {
		return nil
	}
	attrs = append(attrs, "error", err)
	switch policy {
	case PolicyIgnore:
		s.Logger.Debug(message, attrs...)
		return nil
	case PolicyWarn:
		s.Logger.Warn(message, attrs...)
		return nil
	default:
		return err
	}
}
