package pathsync

// ConflictWinner identifies which side a conflict resolution kept.
type ConflictWinner string

const (
	WinnerLocal  ConflictWinner = "local"
	WinnerRemote ConflictWinner = "remote"
)

// ConflictDecision records the outcome of resolving one local/remote pair.
type ConflictDecision struct {
	Winner ConflictWinner `json:"winner"`
	Reason string         `json:"reason"`
}

// ResolveConflict picks between a local and a remote snapshot of the same
// tuple using last-writer-wins on the effective timestamp (completion time
// if set, otherwise start time). A side with no timestamp at all loses to
// one that has any. On equal timestamps the remote wins, so every device
// resolving the same pair converges on the same answer. When neither side
// carries a timestamp the side with recorded responses wins, defaulting to
// local, so answers saved before any status transition are never discarded.
//
// Resolution is whole-snapshot: the winner replaces the loser entirely,
// responses included. Merging per-field would interleave answer histories
// from different devices.
func ResolveConflict(local, remote *ActivityProgress) (*ActivityProgress, ConflictDecision) {
	if local == nil && remote == nil {
		return nil, ConflictDecision{Winner: WinnerRemote, Reason: "both empty"}
	}
	if local == nil {
		return remote, ConflictDecision{Winner: WinnerRemote, Reason: "no local snapshot"}
	}
	if remote == nil {
		return local, ConflictDecision{Winner: WinnerLocal, Reason: "no remote snapshot"}
	}

	localTS, localOK := local.EffectiveTimestamp()
	remoteTS, remoteOK := remote.EffectiveTimestamp()

	switch {
	case !localOK && !remoteOK:
		if len(remote.Responses) > 0 && len(local.Responses) == 0 {
			return remote, ConflictDecision{Winner: WinnerRemote, Reason: "neither side timestamped, remote has responses"}
		}
		return local, ConflictDecision{Winner: WinnerLocal, Reason: "neither side timestamped"}
	case !localOK:
		return remote, ConflictDecision{Winner: WinnerRemote, Reason: "local not timestamped"}
	case !remoteOK:
		return local, ConflictDecision{Winner: WinnerLocal, Reason: "remote not timestamped"}
	}

	if remoteTS.Before(localTS) {
		return local, ConflictDecision{Winner: WinnerLocal, Reason: "local is newer"}
	}
	if remoteTS.After(localTS) {
		return remote, ConflictDecision{Winner: WinnerRemote, Reason: "remote is newer"}
	}
	return remote, ConflictDecision{Winner: WinnerRemote, Reason: "equal timestamps"}
}
