package moderation

import (
	"bufio"
	"chat-guard/contract"
	"chat-guard/domain"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

var _ contract.Classifier = (*KeywordClassifier)(nil)

// KeywordClassifier is an in-process stand-in for the predictor: any
// dictionary hit is spam with full confidence, anything else is ham.
type KeywordClassifier struct {
	moderator *Moderator
	log       *slog.Logger
}

func NewKeywordClassifier(moderator *Moderator, log *slog.Logger) *KeywordClassifier {
	return &KeywordClassifier{moderator: moderator, log: log}
}

func (k *KeywordClassifier) ClassifyIfEnabled(_ context.Context, message string, enabled bool) *domain.Classification {
	if !enabled {
		return nil
	}
	res := k.Classify(message)
	return &res
}

func (k *KeywordClassifier) Classify(message string) domain.Classification {
	if hits := k.moderator.Match(message); len(hits) > 0 {
		k.log.Debug("Keyword hit", "fragments", hits)
		return domain.Classification{Label: domain.LabelSpam, Confidence: 1.0}
	}
	return domain.Classification{Label: domain.LabelHam, Confidence: 1.0}
}

// ReadWords reads one word per line. Blank lines and lines starting with '#' are ignored.
func ReadWords(r io.Reader) ([]string, error) {
	var words []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return words, nil
}

// LoadWords reads the word list stored at path.
func LoadWords(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open keywords %s: %w", path, err)
	}
	defer f.Close()
	return ReadWords(f)
}
