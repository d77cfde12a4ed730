// Package lexicache provides a versioned, client-side cache for dictionary
// lookups.
//
// Each lookup key (a termKey derived from term, language and flavor) holds
// every known content version of that lookup plus the id of the version
// currently treated as active. Results arrive either complete from a
// LookupSource or incrementally from a StreamSource; both are merged through
// the same registry functions and persisted through a store built on a
// storage backend that degrades to memory when durable storage fails.
//
// Basic usage:
//
//	import (
//	    "context"
//	    "github.com/ZaguanLabs/lexicache"
//	    "github.com/ZaguanLabs/lexicache/source"
//	    "github.com/ZaguanLabs/lexicache/storage"
//	    "go.uber.org/zap"
//	)
//
//	func main() {
//	    resolver := storage.NewResolver(storage.SQLiteOpener("lexicache.db"))
//	    words := lexicache.NewWordCacheStore(resolver, zap.NewNop())
//
//	    src := source.NewOpenAISource(source.OpenAIConfig{
//	        APIKey: os.Getenv("OPENAI_API_KEY"),
//	    })
//
//	    d := lexicache.NewDictionary(words,
//	        lexicache.WithLookupSource(src),
//	        lexicache.WithStreamSource(src),
//	    )
//
//	    v, err := d.Lookup(context.Background(), lexicache.LookupRequest{
//	        Term: "hello", Language: "en", Flavor: lexicache.FlavorMonolingual,
//	    })
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(v.Content)
//	}
package lexicache
