package ledger

import (
	"bufio"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/zeebo/blake3"
)

// Header is the column layout of an emitted ledger
var Header = []string{
	"name",
	"area",
	"year",
	"first_author_count",
	"all_publication_count",
	"weighted_publication_count",
}

// AreaHeader is the column layout of an emitted area tally
var AreaHeader = []string{"Area", "Year", "PublicationCount"}

// WriteCSV writes rows in snapshot order. Fractional columns use a fixed
// number of decimals so the output is byte-identical across runs.
func WriteCSV(w io.Writer, snap Snapshot, precision int) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range snap.Rows {
		rec := []string{
			r.Author,
			r.Area,
			strconv.Itoa(r.Year),
			strconv.FormatFloat(r.First, 'f', precision, 64),
			strconv.FormatInt(r.All, 10),
			strconv.FormatFloat(r.Weighted, 'f', precision, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteAreaCSV writes the per-(area, year) publication tally
func WriteAreaCSV(w io.Writer, t AreaTally) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(AreaHeader); err != nil {
		return err
	}
	for _, r := range t.Rows() {
		if err := cw.Write([]string{r.Area, strconv.Itoa(r.Year), strconv.FormatInt(r.Count, 10)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses an emitted ledger. Rows are returned in file order.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) != len(Header) {
		return nil, fmt.Errorf("unexpected header %q", strings.Join(header, ","))
	}
	for i, h := range Header {
		if strings.TrimSpace(header[i]) != h {
			return nil, fmt.Errorf("unexpected column %d %q, want %q", i+1, header[i], h)
		}
	}

	var rows []Row
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		row, err := parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
}

func parseRow(rec []string) (Row, error) {
	year, err := strconv.Atoi(rec[2])
	if err != nil {
		return Row{}, fmt.Errorf("year: %w", err)
	}
	first, err := strconv.ParseFloat(rec[3], 64)
	if err != nil {
		return Row{}, fmt.Errorf("first_author_count: %w", err)
	}
	all, err := strconv.ParseInt(rec[4], 10, 64)
	if err != nil {
		return Row{}, fmt.Errorf("all_publication_count: %w", err)
	}
	weighted, err := strconv.ParseFloat(rec[5], 64)
	if err != nil {
		return Row{}, fmt.Errorf("weighted_publication_count: %w", err)
	}
	return Row{
		Key:      Key{Author: rec[0], Area: rec[1], Year: year},
		First:    first,
		All:      all,
		Weighted: weighted,
	}, nil
}

// Published describes a file written by Publish
type Published struct {
	Path   string
	Bytes  int64
	Digest string // hex blake3 of the content
}

// Publish writes path atomically: content goes to a temporary file in the
// same directory, is synced, and is renamed over path only if write
// succeeds. On error nothing is left behind.
func Publish(path string, write func(w io.Writer) error) (Published, error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return Published{}, fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	hasher := blake3.New()
	counter := &countingWriter{}
	bw := bufio.NewWriterSize(io.MultiWriter(tmp, hasher, counter), 1<<16)

	if err := write(bw); err != nil {
		return Published{}, err
	}
	if err := bw.Flush(); err != nil {
		return Published{}, fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		return Published{}, fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return Published{}, fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return Published{}, fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return Published{}, fmt.Errorf("publish %s: %w", path, err)
	}
	committed = true

	return Published{Path: path, Bytes: counter.n, Digest: hex.EncodeToString(hasher.Sum(nil))}, nil
}

// WriteDigest writes "<digest>  <basename>\n" next to p as p.Path+".b3"
func WriteDigest(p Published) error {
	line := fmt.Sprintf("%s  %s\n", p.Digest, filepath.Base(p.Path))
	_, err := Publish(p.Path+".b3", func(w io.Writer) error {
		_, err := io.WriteString(w, line)
		return err
	})
	return err
}

// Digest returns the hex blake3 of r's content
func Digest(r io.Reader) (string, error) {
	h := blake3.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

type countingWriter struct {
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}
