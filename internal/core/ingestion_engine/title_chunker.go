package ingestion_engine

import "strings"

// TitleChunker groups layout elements into contiguous chunks under three
// joint constraints: a hard character budget per chunk, a soft threshold
// after which the next element opens a new chunk, and a title boundary
// that opens a new chunk unless the current one is still under the combine
// threshold. A trailing chunk below the combine threshold is merged into
// its predecessor when the result fits the hard budget.
//
// Chunking is deterministic, and every produced Chunk references its
// origin elements through a subslice of the input.
type TitleChunker struct {
	maxCharacters  int
	newAfterNChars int
	combineUnder   int
}

func NewTitleChunker(cfg *PipelineConfig) *TitleChunker {
	return &TitleChunker{
		maxCharacters:  cfg.MaxCharacters,
		newAfterNChars: cfg.NewAfterNChars,
		combineUnder:   cfg.CombineTextUnderNChars,
	}
}

// window is a half-open element range [start, end) with its joined text.
type window struct {
	start, end int
	text       string
}

// BuildChunks walks the elements once, closing the current window at
// boundaries, then merges a short trailing window and splits any window
// whose single text element exceeds the hard budget.
func (c *TitleChunker) BuildChunks(elements []LayoutElement) []Chunk {
	if len(elements) == 0 {
		return nil
	}

	var (
		windows []window
		parts   []string
		start   int
		curLen  int
	)

	flush := func(end int) {
		if end <= start {
			return
		}
		windows = append(windows, window{start: start, end: end, text: strings.Join(parts, "\n\n")})
		parts = nil
		curLen = 0
		start = end
	}

	for idx := range elements {
		el := &elements[idx]
		elText := strings.TrimSpace(el.Text)
		elLen := runeLen(elText)

		if curLen > 0 {
			sep := 0
			if elLen > 0 {
				sep = 2
			}
			switch {
			case el.Kind == KindTitle && curLen >= c.combineUnder:
				flush(idx)
			case curLen >= c.newAfterNChars:
				flush(idx)
			case curLen+sep+elLen > c.maxCharacters:
				flush(idx)
			}
		}

		if elText != "" {
			if curLen > 0 {
				curLen += 2
			}
			parts = append(parts, elText)
			curLen += elLen
		}
	}
	flush(len(elements))

	windows = c.mergeTrailing(windows)

	var chunks []Chunk
	for _, w := range windows {
		chunks = append(chunks, c.expand(w, elements)...)
	}
	return chunks
}

// mergeTrailing folds a short final window into its predecessor when the
// combined text still fits the hard budget.
func (c *TitleChunker) mergeTrailing(windows []window) []window {
	n := len(windows)
	if n < 2 {
		return windows
	}
	last, prev := windows[n-1], windows[n-2]

	lastLen := runeLen(last.text)
	if lastLen == 0 || lastLen >= c.combineUnder {
		return windows
	}
	merged := prev.text
	if merged == "" {
		merged = last.text
	} else {
		merged = merged + "\n\n" + last.text
	}
	if runeLen(merged) > c.maxCharacters {
		return windows
	}

	windows[n-2] = window{start: prev.start, end: last.end, text: merged}
	return windows[:n-1]
}

// expand turns one window into chunks. A window whose text exceeds the
// hard budget holds exactly one oversized element by construction; its
// text is split at rune boundaries unless the element carries a table or
// image payload, which is indivisible.
func (c *TitleChunker) expand(w window, elements []LayoutElement) []Chunk {
	origin := elements[w.start:w.end]
	page := elements[w.start].Page

	if runeLen(w.text) <= c.maxCharacters || hasPayload(origin) {
		return []Chunk{{Text: w.text, Page: page, Elements: origin}}
	}

	var out []Chunk
	for _, part := range splitRunes(w.text, c.maxCharacters) {
		out = append(out, Chunk{Text: part, Page: page, Elements: origin})
	}
	return out
}

func hasPayload(elements []LayoutElement) bool {
	for i := range elements {
		if elements[i].Kind == KindTable || elements[i].Kind == KindImage {
			return true
		}
	}
	return false
}

func splitRunes(s string, n int) []string {
	r := []rune(s)
	var out []string
	for len(r) > n {
		out = append(out, string(r[:n]))
		r = r[n:]
	}
	if len(r) > 0 {
		out = append(out, string(r))
	}
	return out
}
