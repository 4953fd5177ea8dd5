package core

// Fuse reduces the three stage outcomes to the overall session verdict.
// The verdict is a strict AND: any single failed stage fails the session.
// The returned slice names the failed stages for diagnostics and is nil
// when the verdict is true. No other component may override this result.
func Fuse(faceLiveness, voiceMatch, lipSync bool) (bool, []Stage) {
	var failed []Stage
	if !faceLiveness {
		failed = append(failed, StageFaceLiveness)
	}
	if !voiceMatch {
		failed = append(failed, StageVoiceMatch)
	}
	if !lipSync {
		failed = append(failed, StageLipSync)
	}
	return len(failed) == 0, failed
}
