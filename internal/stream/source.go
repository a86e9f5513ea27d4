// Package stream decodes a dblp-style XML dump one record at a time.
//
// The document is never materialized: every child element of the root
// (article, inproceedings, ...) is decoded on its own, converted to a
// model.PublicationRecord and handed to the caller's handler before the
// next one is read.
package stream

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"github.com/ppiankov/pubcredit/internal/model"
)

// ErrFatal marks failures of the underlying stream. Records after the
// failure point are unreachable and the run must not publish output.
var ErrFatal = errors.New("fatal stream error")

// FatalError wraps a decompression, container or truncation failure
type FatalError struct {
	Source string
	Offset int64 // decoded bytes consumed when the failure surfaced
	Err    error
}

func (e *FatalError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("%v at offset %d: %v", ErrFatal, e.Offset, e.Err)
	}
	return fmt.Sprintf("%v in %s at offset %d: %v", ErrFatal, e.Source, e.Offset, e.Err)
}

func (e *FatalError) Unwrap() []error { return []error{ErrFatal, e.Err} }

// MalformedError describes a single record that was skipped
type MalformedError struct {
	Key    string
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed record %q: %s", e.Key, e.Reason)
}

// Handler receives records in document order. Returning an error stops
// the stream and Each returns that error unchanged.
type Handler func(rec *model.PublicationRecord) error

// Option configures a Source
type Option func(*Source)

// WithMalformed sets the callback for skipped records
func WithMalformed(fn func(*MalformedError)) Option {
	return func(s *Source) { s.onMalformed = fn }
}

// WithProgress logs progress at most once per interval. Zero disables it.
func WithProgress(interval time.Duration) Option {
	return func(s *Source) { s.progress = interval }
}

// WithLogger overrides slog.Default
func WithLogger(l *slog.Logger) Option {
	return func(s *Source) { s.logger = l }
}

// Source is a single-pass record stream
type Source struct {
	name        string
	codec       Codec
	r           io.Reader
	closers     []io.Closer
	onMalformed func(*MalformedError)
	progress    time.Duration
	logger      *slog.Logger
	used        bool
}

// NewSource wraps r, detecting its compression. name only labels errors
// and log lines.
func NewSource(r io.Reader, name string, opts ...Option) (*Source, error) {
	dr, codec, closer, err := decompress(r)
	if err != nil {
		var fe *FatalError
		if errors.As(err, &fe) {
			fe.Source = name
		}
		return nil, err
	}

	s := &Source{name: name, codec: codec, r: dr, logger: slog.Default()}
	if closer != nil {
		s.closers = append(s.closers, closer)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Name returns the label given at construction
func (s *Source) Name() string { return s.name }

// Codec returns the detected compression
func (s *Source) Codec() Codec { return s.codec }

// Close releases the decoder and the underlying file
func (s *Source) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Each decodes the stream and calls h for every record. It returns nil
// once the root element closes, ctx.Err() on cancellation, the handler's
// error, or a *FatalError. A Source can be consumed once.
func (s *Source) Each(ctx context.Context, h Handler) error {
	if s.used {
		return errors.New("stream already consumed")
	}
	s.used = true

	d := xml.NewDecoder(s.r)
	d.Strict = true
	d.Entity = xml.HTMLEntity
	d.CharsetReader = charset.NewReaderLabel

	progress := rate.Sometimes{Interval: s.progress}
	var records, skipped int64
	depth := 0
	closed := false
	start := time.Now()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			if depth > 0 || !closed {
				return s.fatal(d, io.ErrUnexpectedEOF)
			}
			break
		}
		if err != nil {
			return s.fatal(d, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				depth++
				continue
			}

			var raw xmlRecord
			if err := d.DecodeElement(&raw, &t); err != nil {
				return s.fatal(d, err)
			}

			rec, merr := raw.record()
			if merr != nil {
				skipped++
				if s.onMalformed != nil {
					s.onMalformed(merr)
				}
				continue
			}

			records++
			if err := h(rec); err != nil {
				return err
			}

			if s.progress > 0 {
				progress.Do(func() {
					s.logger.Info("stream progress",
						"source", s.name,
						"records", records,
						"offset", d.InputOffset(),
						"elapsed", time.Since(start).Round(time.Second))
				})
			}
		case xml.EndElement:
			depth--
			if depth == 0 {
				closed = true
			}
		}
	}

	s.logger.Debug("stream finished",
		"source", s.name,
		"codec", s.codec,
		"records", records,
		"malformed", skipped,
		"elapsed", time.Since(start))
	return nil
}

func (s *Source) fatal(d *xml.Decoder, err error) error {
	return &FatalError{Source: s.name, Offset: d.InputOffset(), Err: err}
}

// xmlRecord mirrors one dump element. Scalar fields are slices so that a
// repeated field is detected instead of silently overwritten.
type xmlRecord struct {
	XMLName   xml.Name
	Key       string      `xml:"key,attr"`
	Authors   []xmlPerson `xml:"author"`
	Titles    []xmlMarkup `xml:"title"`
	Booktitle []string    `xml:"booktitle"`
	Journal   []string    `xml:"journal"`
	Year      []string    `xml:"year"`
	Volume    []string    `xml:"volume"`
	Number    []string    `xml:"number"`
	Pages     []string    `xml:"pages"`
	URL       []string    `xml:"url"`
}

type xmlPerson struct {
	Text  string     `xml:",chardata"`
	Attrs []xml.Attr `xml:",any,attr"`
}

type xmlMarkup struct {
	Inner string `xml:",innerxml"`
}

func (x *xmlRecord) record() (*model.PublicationRecord, *MalformedError) {
	rec := &model.PublicationRecord{Key: x.Key, Kind: x.XMLName.Local}

	fields := []struct {
		name string
		vals []string
		dst  *string
	}{
		{"booktitle", x.Booktitle, nil},
		{"journal", x.Journal, nil},
		{"year", x.Year, &rec.Year},
		{"volume", x.Volume, &rec.Volume},
		{"number", x.Number, &rec.Number},
		{"pages", x.Pages, &rec.Pages},
		{"url", x.URL, &rec.URL},
	}
	for _, f := range fields {
		v, ok := single(f.vals)
		if !ok {
			return nil, &MalformedError{Key: x.Key, Reason: fmt.Sprintf("conflicting %s values %q", f.name, f.vals)}
		}
		if f.dst != nil {
			*f.dst = v
		}
	}

	// booktitle wins over journal
	if bt, _ := single(x.Booktitle); bt != "" {
		rec.Venue = bt
	} else {
		rec.Venue, _ = single(x.Journal)
	}

	if len(x.Titles) > 0 {
		rec.Title = stripMarkup(x.Titles[0].Inner)
	}

	rec.Authors = x.authorField()
	return rec, nil
}

// authorField maps decoded author elements onto the tagged variant.
// An author element with attributes (orcid, aux) becomes a node.
func (x *xmlRecord) authorField() model.AuthorField {
	switch len(x.Authors) {
	case 0:
		return model.NoAuthors()
	case 1:
		p := x.Authors[0]
		if len(p.Attrs) == 0 {
			return model.SingleAuthor(p.Text)
		}
		return model.SingleStructuredAuthor(p.node())
	}

	items := make([]model.AuthorItem, 0, len(x.Authors))
	for _, p := range x.Authors {
		if len(p.Attrs) == 0 {
			items = append(items, model.NameItem(p.Text))
			continue
		}
		items = append(items, model.NodeItem(p.node()))
	}
	return model.AuthorSequence(items...)
}

func (p xmlPerson) node() model.TextNode {
	attrs := make(map[string]string, len(p.Attrs))
	for _, a := range p.Attrs {
		attrs[a.Name.Local] = a.Value
	}
	return model.TextNode{Text: p.Text, Attrs: attrs}
}

// single returns the trimmed value of a field that may appear at most
// once. Repeats of the same value are tolerated.
func single(vals []string) (string, bool) {
	if len(vals) == 0 {
		return "", true
	}
	first := strings.TrimSpace(vals[0])
	for _, v := range vals[1:] {
		if strings.TrimSpace(v) != first {
			return "", false
		}
	}
	return first, true
}

// stripMarkup returns the text content of an inline-markup fragment such
// as "On <i>k</i>-SAT", resolving entities along the way
func stripMarkup(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return strings.Join(strings.Fields(fragment), " ")
	}

	z := html.NewTokenizer(strings.NewReader(fragment))
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.TextToken:
			b.Write(z.Text())
		}
	}
}
