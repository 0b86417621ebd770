package moderation

import (
	"bufio"
	"bytes"
	"embed"
	"io/fs"
	"strings"

	"emolab/errors"
)

//go:embed censored/*
var censoredFolder embed.FS

// WordList carries the loaded dictionary plus metadata for startup logging.
type WordList struct {
	Words     []string
	Languages []string
}

// LoadEmbedded parses the embedded per-language dictionaries (one word or
// phrase per line) into a deduplicated list.
func LoadEmbedded() (*WordList, error) {
	return load(censoredFolder, "censored")
}

func load(f embed.FS, path string) (*WordList, error) {
	entries, err := fs.ReadDir(f, path)
	if err != nil {
		return nil, err
	}

	var languages []string
	unique := make(map[string]struct{})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		languages = append(languages, strings.TrimSuffix(entry.Name(), ".txt"))

		data, err := f.ReadFile(path + "/" + entry.Name())
		if err != nil {
			return nil, err
		}

		// Scanner handles both \n and \r\n endings.
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" {
				unique[line] = struct{}{}
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
	}

	if len(unique) == 0 {
		return nil, errors.ErrEmptyWords
	}

	words := make([]string, 0, len(unique))
	for w := range unique {
		words = append(words, w)
	}
	return &WordList{Words: words, Languages: languages}, nil
}
