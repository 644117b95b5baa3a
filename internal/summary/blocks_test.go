package summary_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d9705996/huddle/internal/summary"
)

func sample() summary.Summary {
	return summary.Summary{
		"todaysPlans": {},
		"yesterdaysWork": {
			{Point: "Shipped login", SourceSegments: []summary.Citation{{StartMs: 1000, EndMs: 2000}, {StartMs: 5000, EndMs: 6000}}},
		},
	}
}

func TestToBlocks(t *testing.T) {
	blocks := summary.ToBlocks(sample(), summary.LocaleEN)
	require.Len(t, blocks, 4)

	assert.Equal(t, summary.BlockHeading, blocks[0].Type)
	assert.Equal(t, "custom", blocks[0].Source)
	assert.Equal(t, "Yesterday's Work", blocks[0].Body.Content[0].Text)
	assert.Equal(t, 2, blocks[0].Body.Attrs["level"])

	list := blocks[1]
	assert.Equal(t, summary.BlockBulletList, list.Type)
	text := list.Body.Content[0].Content[0].Content[0]
	assert.Equal(t, "Shipped login", text.Text)
	require.Len(t, text.Marks, 1)
	assert.Equal(t, "timestamp", text.Marks[0].Type)

	assert.Equal(t, "Today's Plans", blocks[2].Body.Content[0].Text)
	empty := blocks[3].Body.Content[0].Content[0].Content[0]
	assert.Equal(t, "No specific items noted in transcript for this section.", empty.Text)
	assert.Empty(t, empty.Marks)
}

func TestToBlocks_Localized(t *testing.T) {
	blocks := summary.ToBlocks(summary.Summary{"blockers": {}}, summary.LocaleRU)
	require.Len(t, blocks, 2)
	assert.Equal(t, "Блокеры", blocks[0].Body.Content[0].Text)
}

func TestToMarkdown(t *testing.T) {
	got := strings.Join(summary.ToMarkdown(sample(), summary.LocaleEN), "")
	want := "## Yesterday's Work\n\n- Shipped login [1000, 5000]\n\n## Today's Plans\n\n- No specific items noted in transcript for this section.\n\n"
	assert.Equal(t, want, got)
}

func TestParseBlock(t *testing.T) {
	b, ok := summary.ParseBlock("## Blockers")
	require.True(t, ok)
	assert.Equal(t, summary.BlockHeading, b.Type)
	assert.Equal(t, "Blockers", b.Body.Content[0].Text)

	b, ok = summary.ParseBlock("- CI is red [12345, 54321]")
	require.True(t, ok)
	text := b.Body.Content[0].Content[0].Content[0]
	assert.Equal(t, "CI is red", text.Text)
	cites := text.Marks[0].Attrs["source_segments"].([]summary.Citation)
	assert.Equal(t, []summary.Citation{{StartMs: 12345, EndMs: 13345}, {StartMs: 54321, EndMs: 55321}}, cites)

	b, ok = summary.ParseBlock("- no citation")
	require.True(t, ok)
	assert.Empty(t, b.Body.Content[0].Content[0].Content[0].Marks)

	_, ok = summary.ParseBlock("Here is your summary:")
	assert.False(t, ok)
}

func TestParser_SplitsAcrossChunks(t *testing.T) {
	var p summary.Parser
	var got []summary.Block
	for _, c := range []string{"## Bl", "ockers\n", "\n- a [1]\n\n- b", " [2]"} {
		got = append(got, p.Feed(c)...)
	}
	require.Len(t, got, 2)
	got = append(got, p.Flush()...)
	require.Len(t, got, 3)
	assert.Equal(t, "b", got[2].Body.Content[0].Content[0].Content[0].Text)
}

func TestParser_SeveralBlocksInOneChunk(t *testing.T) {
	var p summary.Parser
	got := p.Feed("## A\n\n- x\n\n## B\n\n")
	assert.Len(t, got, 3)
	assert.Empty(t, p.Flush())
}

func TestMarkdownRoundTrip(t *testing.T) {
	var p summary.Parser
	var blocks []summary.Block
	for _, c := range summary.ToMarkdown(sample(), summary.LocaleEN) {
		blocks = append(blocks, p.Feed(c)...)
	}
	blocks = append(blocks, p.Flush()...)
	require.Len(t, blocks, 4)
	for _, b := range blocks {
		assert.True(t, b.Valid())
	}
}

func TestErrorBlockJSON(t *testing.T) {
	b, err := json.Marshal(summary.ErrorBlock())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","message":"An internal error occurred during summary generation."}`, string(b))
	assert.False(t, summary.ErrorBlock().Valid())
}

func TestLocale(t *testing.T) {
	assert.Equal(t, summary.LocaleUA, summary.ParseLocale("UA"))
	assert.Equal(t, summary.LocaleEN, summary.ParseLocale("de"))
	assert.Equal(t, "You MUST write the summary in Russian.", summary.LocaleInstruction(summary.LocaleRU))
	assert.Equal(t, "blockers", summary.TitlesToKeys(summary.LocaleEN)["Blockers"])
}
