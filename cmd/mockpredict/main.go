// Command mockpredict is a stand-in spam predictor for local runs and tests.
//
// It speaks the predictor protocol: the message is the last argument and the
// verdict is printed as a single "label|confidence" line.
package main

import (
	"chat-guard/moderation"
	"flag"
	"fmt"
	"log/slog"
	"os"
)

var defaultWords = []string{"viagra", "casino", "lottery", "free money", "click here"}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("error|0.0")
		os.Exit(2)
	}
	message := os.Args[len(os.Args)-1]

	flags := flag.NewFlagSet("mockpredict", flag.ContinueOnError)
	wordsPath := flags.String("words", "", "file with one spam word per line")
	confidence := flags.Float64("confidence", 0.99, "confidence printed with every verdict")
	if err := flags.Parse(os.Args[1 : len(os.Args)-1]); err != nil {
		fmt.Println("error|0.0")
		os.Exit(2)
	}

	words := defaultWords
	if *wordsPath != "" {
		loaded, err := moderation.LoadWords(*wordsPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			fmt.Println("error|0.0")
			os.Exit(1)
		}
		words = loaded
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	moderator, err := moderation.NewModerator(words, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Println("error|0.0")
		os.Exit(1)
	}

	label := "ham"
	if len(moderator.Match(message)) > 0 {
		label = "spam"
	}
	fmt.Printf("%s|%.2f\n", label, *confidence)
}
