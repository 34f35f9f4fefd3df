package extractor

// needsReseek decides whether target can be reached from the current cursor
// or whether the demuxer must seek and the decoder be recreated.
func needsReseek(target int64, cur *CursorState, cache *FrameCache, threshold int64) bool {
	if !cur.HasPrevious {
		return true
	}
	if cur.PreviousTarget > target {
		return true
	}
	return !cache.Near(target, threshold)
}
