package forecast

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"fixturecast/ml"
)

// Bundle is a trained model together with the label codec and feature schema
// it was fit with. Predictions are only meaningful against the same bundle.
type Bundle struct {
	ID        uuid.UUID
	Model     ml.Classifier
	Schema    *ml.FeatureSchema
	Codec     *ml.LabelCodec
	Metrics   ml.Metrics
	TrainRows int
	TestRows  int
	TrainedAt time.Time
}

func (b *Bundle) Space() ml.ColumnSpace {
	return b.Schema.Space
}

// Slot holds the bundle currently in use by a long-running caller.
type Slot struct {
	mu     sync.RWMutex
	bundle *Bundle
}

// Install replaces the current bundle. A nil bundle is ignored so a failed
// retrain never clears a working model.
func (s *Slot) Install(b *Bundle) {
	if b == nil {
		return
	}
	s.mu.Lock()
	s.bundle = b
	s.mu.Unlock()
}

func (s *Slot) Current() *Bundle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bundle
}
