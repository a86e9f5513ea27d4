package stream

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec names the compression of a dump
type Codec string

const (
	CodecPlain Codec = "plain"
	CodecGzip  Codec = "gzip"
	CodecZstd  Codec = "zstd"
	CodecLZ4   Codec = "lz4"
)

var (
	magicGzip = []byte{0x1f, 0x8b}
	magicZstd = []byte{0x28, 0xb5, 0x2f, 0xfd}
	magicLZ4  = []byte{0x04, 0x22, 0x4d, 0x18}
)

const readBufferSize = 1 << 20

// Detect peeks at the first bytes of br without consuming them
func Detect(br *bufio.Reader) (Codec, error) {
	head, err := br.Peek(4)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	switch {
	case bytes.HasPrefix(head, magicGzip):
		return CodecGzip, nil
	case bytes.HasPrefix(head, magicZstd):
		return CodecZstd, nil
	case bytes.HasPrefix(head, magicLZ4):
		return CodecLZ4, nil
	default:
		return CodecPlain, nil
	}
}

// Open opens a dump file. "-" reads standard input. The compression is
// detected from the content, not the file name.
func Open(path string, opts ...Option) (*Source, error) {
	var f *os.File
	if path == "-" {
		f = os.Stdin
	} else {
		var err error
		f, err = os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open dump: %w", err)
		}
	}

	src, err := NewSource(f, path, opts...)
	if err != nil {
		if f != os.Stdin {
			_ = f.Close()
		}
		return nil, err
	}
	if f != os.Stdin {
		src.closers = append(src.closers, f)
	}
	return src, nil
}

// decompress wraps r according to its magic bytes. The returned closer
// releases decoder resources; it does not close r.
func decompress(r io.Reader) (io.Reader, Codec, io.Closer, error) {
	br := bufio.NewReaderSize(r, readBufferSize)
	codec, err := Detect(br)
	if err != nil {
		return nil, "", nil, &FatalError{Err: fmt.Errorf("read header: %w", err)}
	}

	switch codec {
	case CodecGzip:
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, codec, nil, &FatalError{Err: fmt.Errorf("gzip header: %w", err)}
		}
		return zr, codec, zr, nil
	case CodecZstd:
		zr, err := zstd.NewReader(br, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, codec, nil, &FatalError{Err: fmt.Errorf("zstd header: %w", err)}
		}
		return zr, codec, closerFunc(zr.Close), nil
	case CodecLZ4:
		return lz4.NewReader(br), codec, nil, nil
	default:
		return br, codec, nil, nil
	}
}

type closerFunc func()

func (f closerFunc) Close() error {
	f()
	return nil
}
