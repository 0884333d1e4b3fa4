// Package tokenizer turns Markdown text into the token tree consumed by the
// mention extractor.
//
// The tree is a closed set of variants: *Block, *Text, *WikiLink, *Tag,
// *Link and *LinkClose. A standard link is flattened into its sibling list as
// a *Link, the tokens of its label, then a *LinkClose.
package tokenizer

// Tokenizer produces a token tree for one document.
type Tokenizer interface {
	Tokenize(src []byte) ([]Token, error)
}

// Token is implemented only by the variants of this package.
type Token interface {
	// Line is the 1-based source line the token starts on.
	Line() int
	isToken()
}

// Block is any container node the extractor does not interpret itself.
type Block struct {
	Type     string
	Pos      int
	Children []Token
}

// Text is literal inline text.
type Text struct {
	Content string
	Pos     int
}

// WikiLink is a [[target]] or [[target|display]] token.
type WikiLink struct {
	Payload string
	Pos     int
}

// Tag is a #tag token; Name excludes the leading '#'.
type Tag struct {
	Name string
	Pos  int
}

// Link is the opening token of a standard Markdown link.
type Link struct {
	Href string
	ID   string
	Pos  int
}

// LinkClose ends the label of the nearest preceding *Link.
type LinkClose struct {
	Pos int
}

func (t *Block) Line() int     { return t.Pos }
func (t *Text) Line() int      { return t.Pos }
func (t *WikiLink) Line() int  { return t.Pos }
func (t *Tag) Line() int       { return t.Pos }
func (t *Link) Line() int      { return t.Pos }
func (t *LinkClose) Line() int { return t.Pos }

func (*Block) isToken()     {}
func (*Text) isToken()      {}
func (*WikiLink) isToken()  {}
func (*Tag) isToken()       {}
func (*Link) isToken()      {}
func (*LinkClose) isToken() {}
