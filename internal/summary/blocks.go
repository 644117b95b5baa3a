package summary

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// BlockType classifies an editor block.
type BlockType string

// Block types emitted by the converters.
const (
	BlockHeading    BlockType = "HEADING"
	BlockBulletList BlockType = "BULLET_LIST"
	BlockError      BlockType = "error"
)

// Block is one rich-text editor block.
type Block struct {
	Source  string    `json:"source,omitempty"`
	Type    BlockType `json:"type"`
	Body    *Node     `json:"body,omitempty"`
	Message string    `json:"message,omitempty"`
}

// Node is a node of the editor document tree.
type Node struct {
	Type    string         `json:"type"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Content []Node         `json:"content,omitempty"`
	Text    string         `json:"text,omitempty"`
	Marks   []Mark         `json:"marks,omitempty"`
}

// Mark decorates a text node.
type Mark struct {
	Type  string         `json:"type"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

const blockSource = "custom"

// StreamErrorMessage is the client-facing text of a failed stream.
const StreamErrorMessage = "An internal error occurred during summary generation."

// ErrorBlock is the terminal block of a failed stream.
func ErrorBlock() Block {
	return Block{Type: BlockError, Message: StreamErrorMessage}
}

// Valid reports whether b is a content block.
func (b Block) Valid() bool {
	return (b.Type == BlockHeading || b.Type == BlockBulletList) && b.Body != nil
}

func headingBlock(title string) Block {
	return Block{
		Source: blockSource,
		Type:   BlockHeading,
		Body: &Node{
			Type:    "heading",
			Attrs:   map[string]any{"level": 2},
			Content: []Node{{Type: "text", Text: title}},
		},
	}
}

func textNode(text string, cites []Citation) Node {
	n := Node{Type: "text", Text: text}
	if len(cites) > 0 {
		n.Marks = []Mark{{Type: "timestamp", Attrs: map[string]any{"source_segments": cites}}}
	}
	return n
}

func bulletBlock(items []Node) Block {
	return Block{
		Source: blockSource,
		Type:   BlockBulletList,
		Body:   &Node{Type: "bulletList", Content: items},
	}
}

func listItem(text string, cites []Citation) Node {
	return Node{
		Type: "listItem",
		Content: []Node{{
			Type:    "paragraph",
			Content: []Node{textNode(text, cites)},
		}},
	}
}

// orderedSections returns the keys of s in render order. Keys with no
// known title follow in their own order.
func orderedSections(s Summary) []string {
	var keys []string
	seen := map[string]bool{}
	for _, k := range sectionOrder {
		if _, ok := s[k]; ok {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	var rest []string
	for k := range s {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

func sectionTitle(l Locale, key string) string {
	if t := SectionTitle(l, key); t != "" {
		return t
	}
	return key
}

// ToBlocks converts a summary into a heading and bullet list per section.
// An empty section gets a single placeholder item.
func ToBlocks(s Summary, l Locale) []Block {
	var blocks []Block
	for _, key := range orderedSections(s) {
		blocks = append(blocks, headingBlock(sectionTitle(l, key)))
		points := s[key]
		if len(points) == 0 {
			blocks = append(blocks, bulletBlock([]Node{listItem(NoItemsMessage(l), nil)}))
			continue
		}
		items := make([]Node, len(points))
		for i, p := range points {
			items[i] = listItem(p.Point, p.SourceSegments)
		}
		blocks = append(blocks, bulletBlock(items))
	}
	return blocks
}

// ToMarkdown renders a summary as the chunks a streaming model would emit:
// "## title" and "- point [ids]" blocks, each followed by a blank line.
func ToMarkdown(s Summary, l Locale) []string {
	var chunks []string
	for _, key := range orderedSections(s) {
		chunks = append(chunks, "## "+sectionTitle(l, key)+"\n\n")
		points := s[key]
		if len(points) == 0 {
			chunks = append(chunks, "- "+NoItemsMessage(l)+"\n\n")
			continue
		}
		for _, p := range points {
			line := "- " + p.Point
			if len(p.SourceSegments) > 0 {
				ids := make([]string, len(p.SourceSegments))
				for i, c := range p.SourceSegments {
					ids[i] = strconv.FormatInt(int64(c.StartMs), 10)
				}
				line += " [" + strings.Join(ids, ", ") + "]"
			}
			chunks = append(chunks, line+"\n\n")
		}
	}
	return chunks
}

var citationRe = regexp.MustCompile(`\[([\d, ]+)\]$`)

// citationSpan is the width assumed for a cited segment when only its
// start is known.
const citationSpan = 1000

// ParseBlock converts one markdown block. It reports false for blocks that
// are neither a "## " heading nor a "- " bullet.
func ParseBlock(md string) (Block, bool) {
	md = strings.TrimSpace(md)
	switch {
	case strings.HasPrefix(md, "## "):
		return headingBlock(strings.TrimSpace(md[3:])), true
	case strings.HasPrefix(md, "- "):
		text := strings.TrimSpace(md[2:])
		var cites []Citation
		if m := citationRe.FindStringSubmatchIndex(text); m != nil {
			for _, id := range strings.Split(text[m[2]:m[3]], ",") {
				n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
				if err != nil {
					continue
				}
				cites = append(cites, Citation{StartMs: Millis(n), EndMs: Millis(n + citationSpan)})
			}
			text = strings.TrimSpace(text[:m[0]])
		}
		return bulletBlock([]Node{listItem(text, cites)}), true
	}
	return Block{}, false
}

// Parser turns a stream of markdown chunks into blocks. Blocks are
// separated by a blank line.
type Parser struct {
	buf strings.Builder
}

// Feed appends a chunk and returns every block it completed.
func (p *Parser) Feed(chunk string) []Block {
	p.buf.WriteString(chunk)
	rest := p.buf.String()

	var out []Block
	for {
		block, after, found := strings.Cut(rest, "\n\n")
		if !found {
			break
		}
		if b, ok := ParseBlock(block); ok {
			out = append(out, b)
		}
		rest = after
	}
	p.buf.Reset()
	p.buf.WriteString(rest)
	return out
}

// Flush parses whatever remains once the stream has ended.
func (p *Parser) Flush() []Block {
	rest := p.buf.String()
	p.buf.Reset()
	if b, ok := ParseBlock(rest); ok {
		return []Block{b}
	}
	return nil
}
