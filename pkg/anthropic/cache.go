package anthropic

// CachedSystem builds a single system block with an ephemeral cache
// breakpoint. The classifier's account roster is identical across every
// document in a pass, so repeated calls hit the warm prefix.
func CachedSystem(text string) []SystemBlock {
	return []SystemBlock{{
		Text:         text,
		CacheControl: &CacheControl{TTL: "5m"},
	}}
}
