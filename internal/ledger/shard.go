package ledger

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/fxamacker/cbor/v2"
)

// ShardVersion is bumped whenever the shard layout changes
const ShardVersion = 1

// encMode uses Core Deterministic Encoding (RFC 8949 §4.2): the same
// ledger always produces the same shard bytes.
var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("ledger: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{MaxArrayElements: 1 << 27, MaxMapPairs: 1 << 27}.DecMode()
	if err != nil {
		panic("ledger: CBOR decoder initialization failed: " + err.Error())
	}
}

// Shard is a ledger in transit between a count run and a merge run.
// It keeps exact credit, so merging shards loses nothing.
type Shard struct {
	Ledger   *Ledger
	Areas    AreaTally
	Sources  []string
	Counters map[string]int64
}

type shardFile struct {
	Version  int              `cbor:"1,keyasint"`
	Sources  []string         `cbor:"2,keyasint,omitempty"`
	Cells    []shardCell      `cbor:"3,keyasint"`
	Areas    []shardArea      `cbor:"4,keyasint,omitempty"`
	Counters map[string]int64 `cbor:"5,keyasint,omitempty"`
}

type shardCell struct {
	Key  Key  `cbor:"1,keyasint"`
	Cell Cell `cbor:"2,keyasint"`
}

type shardArea struct {
	Area  string `cbor:"1,keyasint"`
	Year  int    `cbor:"2,keyasint"`
	Count int64  `cbor:"3,keyasint"`
}

// EncodeShard writes s to w
func EncodeShard(w io.Writer, s Shard) error {
	f := shardFile{Version: ShardVersion, Sources: s.Sources, Counters: s.Counters}

	if s.Ledger != nil {
		keys := make([]Key, 0, len(s.Ledger.cells))
		for k := range s.Ledger.cells {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

		f.Cells = make([]shardCell, 0, len(keys))
		for _, k := range keys {
			f.Cells = append(f.Cells, shardCell{Key: k, Cell: *s.Ledger.cells[k]})
		}
	}
	for _, r := range s.Areas.Rows() {
		f.Areas = append(f.Areas, shardArea{Area: r.Area, Year: r.Year, Count: r.Count})
	}

	return encMode.NewEncoder(w).Encode(f)
}

// DecodeShard reads one shard from r
func DecodeShard(r io.Reader) (Shard, error) {
	var f shardFile
	if err := decMode.NewDecoder(r).Decode(&f); err != nil {
		return Shard{}, fmt.Errorf("decode shard: %w", err)
	}
	if f.Version != ShardVersion {
		return Shard{}, fmt.Errorf("unsupported shard version %d", f.Version)
	}

	l := New()
	for _, sc := range f.Cells {
		if _, dup := l.cells[sc.Key]; dup {
			return Shard{}, fmt.Errorf("duplicate cell %v", sc.Key)
		}
		c := newCell()
		c.merge(&sc.Cell)
		for d := range c.First {
			if d <= 0 {
				return Shard{}, errors.New("invalid denominator in shard")
			}
		}
		for d := range c.Weighted {
			if d <= 0 {
				return Shard{}, errors.New("invalid denominator in shard")
			}
		}
		l.cells[sc.Key] = c
	}

	areas := AreaTally{}
	for _, a := range f.Areas {
		areas[AreaYear{Area: a.Area, Year: a.Year}] += a.Count
	}

	return Shard{Ledger: l, Areas: areas, Sources: f.Sources, Counters: f.Counters}, nil
}

// ReadShard decodes the shard file at path
func ReadShard(path string) (Shard, error) {
	f, err := os.Open(path)
	if err != nil {
		return Shard{}, fmt.Errorf("open shard: %w", err)
	}
	defer func() { _ = f.Close() }()

	s, err := DecodeShard(f)
	if err != nil {
		return Shard{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// MergeShards reduces shards in slice order into one
func MergeShards(shards ...Shard) Shard {
	out := Shard{Ledger: New(), Areas: AreaTally{}, Counters: map[string]int64{}}
	for _, s := range shards {
		if s.Ledger != nil {
			out.Ledger.Merge(s.Ledger)
		}
		out.Areas.Merge(s.Areas)
		out.Sources = append(out.Sources, s.Sources...)
		for k, v := range s.Counters {
			out.Counters[k] += v
		}
	}
	return out
}
