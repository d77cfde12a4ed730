package prefs

import (
	"go.uber.org/zap"

	"github.com/ZaguanLabs/lexicache/storage"
	"github.com/ZaguanLabs/lexicache/store"
)

// Speech rate bounds.
const (
	MinRate     = 0.5
	MaxRate     = 2.0
	DefaultRate = 1.0
)

// Voice is the preferred text-to-speech voice per language.
type Voice struct {
	// Voices maps a normalized language code to a voice name.
	Voices map[string]string `json:"voices"`
	Rate   float64           `json:"rate"`
}

// VoiceStore is the persisted container for Voice.
type VoiceStore = store.Store[Voice]

// NewVoiceStore creates the voice preference store. Older snapshots without
// a rate rehydrate with DefaultRate.
func NewVoiceStore(resolver *storage.Resolver, logger *zap.Logger) *VoiceStore {
	return store.New(storage.StoreVoice, resolver, newVoice,
		store.WithLogger[Voice](orNop(logger)),
	)
}

func newVoice() Voice {
	return Voice{Voices: map[string]string{}, Rate: DefaultRate}
}

// SetVoice sets the voice for language. An empty name removes it.
func SetVoice(s *VoiceStore, language, name string) {
	s.SetState(func(v Voice) Voice {
		voices := make(map[string]string, len(v.Voices)+1)
		for k, n := range v.Voices {
			voices[k] = n
		}
		if name == "" {
			delete(voices, language)
		} else {
			voices[language] = name
		}
		v.Voices = voices
		return v
	})
}

// SetRate sets the speech rate, clamped to [MinRate, MaxRate].
func SetRate(s *VoiceStore, rate float64) {
	rate = min(max(rate, MinRate), MaxRate)
	s.SetState(func(v Voice) Voice {
		v.Rate = rate
		return v
	})
}
