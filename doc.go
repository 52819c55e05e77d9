// Package session provides the authentication session core for mobile
// clients: a lifecycle state machine, the multi-step sign-in protocol
// (credentials, optional one-time passcode, optional email verification),
// and the reactive plumbing that keeps the rest of the app in sync.
//
// Session lifecycle:
//   - Manager owns the single session State record and mediates every
//     state-changing network operation against the backend Gateway. An
//     explicit transition table guards lifecycle changes, and a generation
//     counter discards stale completions so a late login response can never
//     clobber a user-initiated logout.
//   - Credentials survive process restarts through a CredentialStore; the
//     boot-time Initialize call restores a cached session when the stored
//     access token is still valid.
//
// Reactive consumers:
//   - Synchronizer observes the Manager and drives a stack-based Navigator,
//     resetting the screen stack to match the lifecycle. A structural
//     comparison key suppresses redundant navigation so republished state
//     never causes re-entrant loops.
//   - Prefetcher warms role-specific dashboard data once a session becomes
//     fully authenticated. Warmups are best-effort and never run for a
//     partially authenticated principal.
//
// Notifications:
//   - Feed is an in-process toast channel used by the Manager (and any
//     screen) to surface outcomes. It is display-agnostic: whichever layer
//     renders toasts owns the dismiss timers.
package session
