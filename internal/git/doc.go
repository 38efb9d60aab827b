// Package git keeps a local checkout of the documentation source repository
// in sync with its remote before an index build.
//
// A missing workspace is cloned on the configured branch. An existing one is
// fetched and hard-reset to the remote branch head, so local edits in the
// workspace never survive a sync. Transient transport failures are retried
// with the configured backoff policy; authentication, missing repositories
// and unsupported protocols are permanent and fail immediately.
package git
