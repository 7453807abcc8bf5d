// Package dedupe provides a thread-safe TTL cache of recently seen keys.
//
// The dev server marks an account ID each time it resends an invitation and
// refuses another resend for the same account until the mark expires:
//
//	guard := dedupe.New(30*time.Second, 10000)
//	defer guard.Close()
//
//	if guard.CheckAndMark(accountID) {
//	    // resent too recently
//	}
//
// CheckAndMark is atomic, so concurrent callers cannot both see a key as new.
// Forget releases a key early, for example when the guarded operation failed.
package dedupe
