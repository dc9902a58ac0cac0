// Package tokens estimates how many model tokens a string consumes.
package tokens

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktokenloader "github.com/pkoukk/tiktoken-go-loader"
	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// ErrUnsupportedModel is returned when no tokenizer is known for a model.
var ErrUnsupportedModel = errors.New("unsupported model")

//nolint:gochecknoglobals // BPE ranks are embedded, the loader must never hit the network.
var setOfflineLoader sync.Once

type encoder interface {
	count(text string) (int, error)
}

type bpeEncoder struct {
	tke *tiktoken.Tiktoken
}

func (e bpeEncoder) count(text string) (int, error) {
	return len(e.tke.Encode(text, nil, nil)), nil
}

type hfEncoder struct {
	tk *tokenizer.Tokenizer
}

func (e hfEncoder) count(text string) (int, error) {
	en, err := e.tk.EncodeSingle(text, false)
	if err != nil {
		return 0, fmt.Errorf("encode: %w", err)
	}
	return len(en.Ids), nil
}

// Counter maps model names to their tokenizers. It is safe for concurrent use.
type Counter struct {
	mu       sync.Mutex
	encoders map[string]encoder
}

// NewCounter builds a counter. files maps extra model names to Hugging Face
// tokenizer.json files; OpenAI models are resolved on first use.
func NewCounter(files map[string]string) (*Counter, error) {
	setOfflineLoader.Do(func() {
		tiktoken.SetBpeLoader(tiktokenloader.NewOfflineLoader())
	})

	c := &Counter{encoders: make(map[string]encoder, len(files))}

	for model, path := range files {
		model = strings.TrimSpace(model)
		path = strings.TrimSpace(path)
		if model == "" || path == "" {
			continue
		}

		tk, err := pretrained.FromFile(path)
		if err != nil {
			return nil, fmt.Errorf("load tokenizer file (model = %s, path = %s): %w", model, path, err)
		}
		c.encoders[model] = hfEncoder{tk: tk}
	}

	return c, nil
}

// Count returns the number of tokens text takes for model.
func (c *Counter) Count(text, model string) (int, error) {
	enc, err := c.encoderFor(model)
	if err != nil {
		return 0, err
	}

	n, err := enc.count(text)
	if err != nil {
		return 0, fmt.Errorf("count tokens (model = %s): %w", model, err)
	}
	return n, nil
}

func (c *Counter) encoderFor(model string) (encoder, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if enc, ok := c.encoders[model]; ok {
		return enc, nil
	}

	tke, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, fmt.Errorf("%w: %s (%v)", ErrUnsupportedModel, model, err)
	}

	enc := bpeEncoder{tke: tke}
	c.encoders[model] = enc

	return enc, nil
}
