// Package source implements dictionary lookup and streaming sources.
package source

import "github.com/ZaguanLabs/lexicache"

// Source answers lookups both in one piece and incrementally.
type Source interface {
	lexicache.LookupSource
	lexicache.StreamSource
}

var (
	_ Source = (*OpenAISource)(nil)
	_ Source = (*MockSource)(nil)
)
