package model

// PublicationRecord is one bibliographic item as it appears in the dump.
// Records are created by the stream source and dropped after the handler
// returns; nothing keeps a reference to them.
type PublicationRecord struct {
	Key     string      `json:"key,omitempty"`  // dblp key, e.g. "conf/popl/Smith24"
	Kind    string      `json:"kind,omitempty"` // element name: article, inproceedings, ...
	Venue   string      `json:"venue"`          // booktitle, or journal when booktitle is absent
	Year    string      `json:"year"`           // raw text; parsed by the engine
	Volume  string      `json:"volume,omitempty"`
	Number  string      `json:"number,omitempty"`
	Pages   string      `json:"pages,omitempty"` // "start-end"
	URL     string      `json:"url,omitempty"`
	Title   string      `json:"title,omitempty"` // markup already stripped
	Authors AuthorField `json:"-"`
}

// AuthorKind tags the shape of a raw author field
type AuthorKind int

const (
	AuthorsAbsent           AuthorKind = iota // no author element at all
	AuthorsSingle                             // one plain name
	AuthorsSingleStructured                   // one name carried by a node with attributes
	AuthorsSequence                           // ordered list of names and/or nodes
)

func (k AuthorKind) String() string {
	switch k {
	case AuthorsSingle:
		return "single"
	case AuthorsSingleStructured:
		return "single_structured"
	case AuthorsSequence:
		return "sequence"
	default:
		return "absent"
	}
}

// TextNode is a structured author entry: the display text plus whatever
// attributes the source attached to it (orcid, aux, ...).
type TextNode struct {
	Text  string
	Attrs map[string]string
}

// AuthorItem is one element of a sequence. Exactly one of Name or Node
// is meaningful; Node wins when non-nil.
type AuthorItem struct {
	Name string
	Node *TextNode
}

// AuthorField is the tagged author variant. Use the constructors rather
// than building it by hand.
type AuthorField struct {
	Kind  AuthorKind
	Name  string       // AuthorsSingle
	Node  *TextNode    // AuthorsSingleStructured
	Items []AuthorItem // AuthorsSequence
}

// NoAuthors returns the absent variant.
func NoAuthors() AuthorField {
	return AuthorField{Kind: AuthorsAbsent}
}

// SingleAuthor returns a single plain-name variant.
func SingleAuthor(name string) AuthorField {
	return AuthorField{Kind: AuthorsSingle, Name: name}
}

// SingleStructuredAuthor returns a single-node variant.
func SingleStructuredAuthor(node TextNode) AuthorField {
	return AuthorField{Kind: AuthorsSingleStructured, Node: &node}
}

// AuthorSequence returns a sequence variant.
func AuthorSequence(items ...AuthorItem) AuthorField {
	return AuthorField{Kind: AuthorsSequence, Items: items}
}

// NameItem wraps a plain name for use in a sequence.
func NameItem(name string) AuthorItem {
	return AuthorItem{Name: name}
}

// NodeItem wraps a structured node for use in a sequence.
func NodeItem(node TextNode) AuthorItem {
	return AuthorItem{Node: &node}
}
