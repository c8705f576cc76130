package httpclient

import (
	"io"
	"math"
)

// progressReader reports every read through fn.
type progressReader struct {
	r      io.Reader
	total  int64
	loaded int64
	fn     func(ProgressEvent)
}

func newProgressReader(r io.Reader, total int64, fn func(ProgressEvent)) *progressReader {
	return &progressReader{r: r, total: total, fn: fn}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.loaded += int64(n)
		p.fn(NewProgressEvent(p.loaded, p.total))
	}
	return n, err
}

// NewProgressEvent computes the fraction for loaded out of total bytes.
// An unknown or non-positive total yields a zero fraction.
func NewProgressEvent(loaded, total int64) ProgressEvent {
	ev := ProgressEvent{Loaded: loaded, Total: total}
	if total > 0 {
		ev.Progress = NormalizeProgress(float64(loaded) / float64(total))
	}
	return ev
}

// NormalizeProgress maps a reported progress value onto [0, 1].
// Values above 1 are read as percentages; NaN and negatives become 0.
func NormalizeProgress(v float64) float64 {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v <= 1:
		return v
	case v <= 100:
		return v / 100
	default:
		return 1
	}
}
