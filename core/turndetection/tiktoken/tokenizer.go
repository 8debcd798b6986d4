// Package tiktoken counts context tokens with a BPE encoding instead of the
// word based approximation.
package tiktoken

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const DefaultEncoding = "cl100k_base"

// Tokenizer loads its encoding lazily, the first use may download the BPE
// ranks.
type Tokenizer struct {
	encoding string

	once    sync.Once
	enc     *tiktoken.Tiktoken
	initErr error
}

func NewTokenizer(encoding string) *Tokenizer {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	return &Tokenizer{encoding: encoding}
}

func (t *Tokenizer) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

// Load forces the encoding to be loaded so failures show up at startup.
func (t *Tokenizer) Load() error {
	return t.init()
}

// Split returns the decoded bytes of every token. When the encoding cannot
// be loaded it panics, the turn detector treats that as a scoring fault.
func (t *Tokenizer) Split(text string) []string {
	if err := t.init(); err != nil {
		panic(err)
	}

	tokens := t.enc.Encode(text, nil, nil)
	pieces := make([]string, len(tokens))
	for i, token := range tokens {
		pieces[i] = t.enc.Decode([]int{token})
	}
	return pieces
}

func (t *Tokenizer) CountTokens(text string) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}
	return len(t.enc.Encode(text, nil, nil)), nil
}
