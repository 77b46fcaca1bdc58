package anthropic

// Cache TTLs accepted by the API.
const (
	CacheTTL5m = "5m"
	CacheTTL1h = "1h"
)

// minCacheableChars approximates the API's 1024-token minimum for a cache
// breakpoint. Shorter prompts are sent without cache control.
const minCacheableChars = 4096

// BuildCachedSystemBlocks constructs system content blocks with a cache
// breakpoint. Extraction prompts are identical across documents of a class,
// so consecutive calls hit the warm cache. Empty ttl means 5m.
func BuildCachedSystemBlocks(text, ttl string) []SystemBlock {
	if text == "" {
		return nil
	}
	if len(text) < minCacheableChars {
		return []SystemBlock{{Text: text}}
	}
	if ttl == "" {
		ttl = CacheTTL5m
	}
	return []SystemBlock{
		{
			Text: text,
			CacheControl: &CacheControl{
				TTL: ttl,
			},
		},
	}
}
