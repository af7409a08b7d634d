package internal

import (
	"chat-guard/classifier"
	"chat-guard/contract"
	"chat-guard/errors"
	"chat-guard/moderation"
	"fmt"
	"log/slog"
)

// Predictor is the classifier picked from configuration along with a reader
// for its counters. Stats is nil for the keyword classifier.
type Predictor struct {
	contract.Classifier
	Stats func() classifier.Stats
}

// NewPredictor builds the classifier selected by config.Mode.
func NewPredictor(log *slog.Logger, config ClassifierConfig) (Predictor, error) {
	switch config.Mode {
	case ClassifierModeProcess:
		command, args := config.CommandLine()
		bridge := classifier.NewBridge(log, classifier.Options{
			Command:       command,
			Args:          args,
			Timeout:       config.Timeout,
			MaxConcurrent: config.MaxConcurrent,
		})
		return Predictor{Classifier: bridge, Stats: bridge.Stats}, nil
	case ClassifierModeKeywords:
		words, err := moderation.LoadWords(config.KeywordsPath)
		if err != nil {
			return Predictor{}, err
		}
		moderator, err := moderation.NewModerator(words, log)
		if err != nil {
			return Predictor{}, err
		}
		log.Info("Keyword classifier ready", "words", len(words), "path", config.KeywordsPath)
		return Predictor{Classifier: moderation.NewKeywordClassifier(moderator, log)}, nil
	default:
		return Predictor{}, fmt.Errorf("%w: %q", errors.ErrClassifierMode, config.Mode)
	}
}
