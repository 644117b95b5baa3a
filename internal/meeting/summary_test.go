package meeting_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/d9705996/huddle/internal/apperr"
	"github.com/d9705996/huddle/internal/meeting"
	"github.com/d9705996/huddle/internal/model"
	"github.com/d9705996/huddle/internal/summary"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ciSummary = summary.Summary{
	"blockers": {{Point: "CI is red", SourceSegments: []summary.Citation{{StartMs: 0, EndMs: 1000}}}},
}

// transcribedNote is a note by owner with n transcribed assets.
func (f *fixture) transcribedNote(t *testing.T, n int) *meeting.Note {
	t.Helper()
	note := f.note(t, f.owner, func(in *meeting.CreateInput) { in.ParticipantsInSystem = []string{f.alice.ID} })
	for range n {
		_, a := f.upload(t, f.owner, note.ID)
		require.NoError(t, f.svc.UploadTranscription(context.Background(), f.as(f.owner), a.ID, meeting.TranscriptionInput{Segments: twoSegments}))
	}
	return note
}

func drain(ch <-chan summary.Block) []summary.Block {
	var out []summary.Block
	for b := range ch {
		out = append(out, b)
	}
	return out
}

func blockCount(t *testing.T, raw json.RawMessage) int {
	t.Helper()
	var blocks []summary.Block
	require.NoError(t, json.Unmarshal(raw, &blocks))
	return len(blocks)
}

func TestGenerateSummary(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.llm.Summary = ciSummary
	f.llm.Usage = summary.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}
	n := f.transcribedNote(t, 1)

	got, err := f.svc.GenerateSummary(ctx, f.as(f.alice), n.ID, summary.LocaleEN)
	require.NoError(t, err)
	assert.Equal(t, model.InteractionAIGenerated, got.InteractionStatus)
	assert.Contains(t, string(got.GlobalSummaryJSON), "CI is red")
	assert.Equal(t, 8, blockCount(t, got.AdditionalBlocksAfter))
	assert.Equal(t, []string{"create_daily_standup_summary"}, f.llm.Tools())

	var stored model.AssetSummary
	require.NoError(t, f.gdb.First(&stored, "asset_id = ?", got.Assets[0].ID).Error)
	assert.Equal(t, "fake-model", stored.ModelUsed)
	assert.Equal(t, model.MeetingDaily, stored.TemplateUsed)
	assert.Equal(t, 15, stored.TotalTokens)

	// Same inputs within a day are not summarized again.
	again, err := f.svc.GenerateSummary(ctx, f.as(f.owner), n.ID, summary.LocaleEN)
	require.NoError(t, err)
	assert.Equal(t, got.AdditionalBlocksAfter, again.AdditionalBlocksAfter)
	assert.Len(t, f.llm.Prompts(), 1)

	// Another locale renders again from the stored asset summary.
	ua, err := f.svc.GenerateSummary(ctx, f.as(f.owner), n.ID, summary.LocaleUA)
	require.NoError(t, err)
	assert.Contains(t, string(ua.AdditionalBlocksAfter), "Блокери")
	assert.Len(t, f.llm.Prompts(), 1)
}

func TestGenerateSummary_InProgress(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.llm.Summary = ciSummary
	n := f.transcribedNote(t, 1)

	_, err := f.svc.GenerateSummary(ctx, f.as(f.owner), n.ID, summary.LocaleEN)
	require.NoError(t, err)
	keys := f.redis.Keys()
	require.Len(t, keys, 1)
	require.NoError(t, f.redis.Set(keys[0], "running"))

	_, err = f.svc.GenerateSummary(ctx, f.as(f.owner), n.ID, summary.LocaleEN)
	assert.True(t, apperr.HasCode(err, "SUMMARY_GENERATION_IN_PROGRESS"))
}

func TestGenerateSummary_FailureReleasesMarker(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	n := f.transcribedNote(t, 1)
	f.llm.Err = errors.New("model down")

	_, err := f.svc.GenerateSummary(ctx, f.as(f.owner), n.ID, summary.LocaleEN)
	assert.True(t, apperr.HasCode(err, "SUMMARIZATION_FAILED"))
	assert.Empty(t, f.redis.Keys())

	f.llm.Err = nil
	f.llm.Summary = ciSummary
	got, err := f.svc.GenerateSummary(ctx, f.as(f.owner), n.ID, summary.LocaleEN)
	require.NoError(t, err)
	assert.Equal(t, model.InteractionAIGenerated, got.InteractionStatus)
}

func TestGenerateSummary_SeveralAssets(t *testing.T) {
	f := setup(t)
	f.llm.Summary = ciSummary
	n := f.transcribedNote(t, 2)

	got, err := f.svc.GenerateSummary(context.Background(), f.as(f.owner), n.ID, summary.LocaleEN)
	require.NoError(t, err)
	assert.Len(t, f.llm.Tools(), 3, "one call per asset and one to combine")
	assert.Contains(t, string(got.GlobalSummaryJSON), "CI is red")

	var stored int64
	require.NoError(t, f.gdb.Model(&model.AssetSummary{}).Count(&stored).Error)
	assert.EqualValues(t, 2, stored)
}

func TestGenerateSummary_Rejects(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	n := f.note(t, f.owner, nil)
	f.upload(t, f.owner, n.ID)

	_, err := f.svc.GenerateSummary(ctx, f.as(f.owner), n.ID, summary.LocaleEN)
	assert.True(t, apperr.HasCode(err, "NO_ASSETS_WITH_VALID_TRANSCRIPTION"))
	_, err = f.svc.GenerateSummary(ctx, f.as(f.bob), n.ID, summary.LocaleEN)
	assert.True(t, apperr.HasCode(err, "USER_NOT_ALLOWED_MEETING_NOTE"))
	_, err = f.svc.StreamSummary(ctx, f.as(f.bob), n.ID, summary.LocaleEN)
	assert.True(t, apperr.HasCode(err, "USER_NOT_ALLOWED_MEETING_NOTE"))
	_, err = f.svc.StreamSummary(ctx, f.as(f.owner), n.ID, summary.LocaleEN)
	assert.True(t, apperr.HasCode(err, "NO_ASSETS_WITH_VALID_TRANSCRIPTION"))
	assert.Empty(t, f.llm.Prompts())
}

func TestStreamSummary_SingleAsset(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.llm.Summary = ciSummary
	n := f.transcribedNote(t, 1)

	ch, err := f.svc.StreamSummary(ctx, f.as(f.owner), n.ID, summary.LocaleEN)
	require.NoError(t, err)
	blocks := drain(ch)
	require.Len(t, blocks, 8)
	for _, b := range blocks {
		assert.True(t, b.Valid(), "%+v", b)
	}
	assert.Equal(t, summary.BlockHeading, blocks[0].Type)
	assert.Zero(t, f.llm.Streams())

	got, err := f.svc.Get(ctx, f.as(f.owner), n.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InteractionAIGenerated, got.InteractionStatus)
	assert.Equal(t, 8, blockCount(t, got.AdditionalBlocksAfter))
	assert.Contains(t, string(got.GlobalSummaryJSON), "CI is red")
}

func TestStreamSummary_Combined(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.llm.Summary = ciSummary
	f.llm.Chunks = []string{"## Blockers\n", "\n- CI is red [0]\n\n- Deploy", " waits [1000, 2000]"}
	n := f.transcribedNote(t, 2)

	ch, err := f.svc.StreamSummary(ctx, f.as(f.alice), n.ID, summary.LocaleEN)
	require.NoError(t, err)
	blocks := drain(ch)
	require.Len(t, blocks, 3)
	assert.Equal(t, summary.BlockHeading, blocks[0].Type)
	assert.Equal(t, summary.BlockBulletList, blocks[1].Type)
	assert.Equal(t, summary.BlockBulletList, blocks[2].Type)
	assert.Equal(t, 1, f.llm.Streams())

	got, err := f.svc.Get(ctx, f.as(f.owner), n.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, blockCount(t, got.AdditionalBlocksAfter))
	assert.Nil(t, got.GlobalSummaryJSON)
}

func TestStreamSummary_FailureEndsWithErrorBlock(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	n := f.transcribedNote(t, 1)
	f.llm.Err = errors.New("model down")

	ch, err := f.svc.StreamSummary(ctx, f.as(f.owner), n.ID, summary.LocaleEN)
	require.NoError(t, err)
	assert.Equal(t, []summary.Block{summary.ErrorBlock()}, drain(ch))

	got, err := f.svc.Get(ctx, f.as(f.owner), n.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InteractionPending, got.InteractionStatus)
	assert.Nil(t, got.AdditionalBlocksAfter)
}

func TestStreamSummary_Cancelled(t *testing.T) {
	f := setup(t)
	f.llm.Summary = ciSummary
	n := f.transcribedNote(t, 1)
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := f.svc.StreamSummary(ctx, f.as(f.owner), n.ID, summary.LocaleEN)
	require.NoError(t, err)
	cancel()
	for b := range ch {
		assert.NotEqual(t, summary.BlockError, b.Type)
	}
}
