package ai

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// encoders caches tokenizers per model; a nil entry marks an unknown model.
var encoders sync.Map

func encoderFor(model string) *tiktoken.Tiktoken {
	if v, ok := encoders.Load(model); ok {
		enc, _ := v.(*tiktoken.Tiktoken)
		return enc
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc = nil
	}
	encoders.Store(model, enc)
	return enc
}

// EstimateTokens approximates the token count of text for model.
// Models without a known tokenizer fall back to four runes per token.
func EstimateTokens(model, text string) int {
	if text == "" {
		return 0
	}
	if enc := encoderFor(model); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	n := utf8.RuneCountInString(text) / 4
	if n == 0 {
		n = 1
	}
	return n
}

// estimateUsage builds a usage record for calls that did not report one.
func estimateUsage(req Request, completion string) Usage {
	prompt := EstimateTokens(req.Model, req.SystemInstruction)
	for _, m := range TrimHistory(req.History, req.MaxHistory) {
		prompt += EstimateTokens(req.Model, m.Text)
	}
	out := EstimateTokens(req.Model, completion)
	return Usage{
		PromptTokens:     prompt,
		CompletionTokens: out,
		TotalTokens:      prompt + out,
		Estimated:        true,
	}
}
