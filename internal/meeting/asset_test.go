package meeting_test

import (
	"context"
	"strings"
	"testing"

	"github.com/d9705996/huddle/internal/apperr"
	"github.com/d9705996/huddle/internal/db/dbtest"
	"github.com/d9705996/huddle/internal/meeting"
	"github.com/d9705996/huddle/internal/model"
	"github.com/d9705996/huddle/internal/summary"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var twoSegments = []summary.Segment{
	{StartMs: 0, EndMs: 1000, Text: " Hello "},
	{StartMs: 1000, EndMs: 2500, Text: "world"},
}

func (f *fixture) upload(t *testing.T, by *model.User, noteID string) (*meeting.AssetUploadURL, model.MeetingAsset) {
	t.Helper()
	u, err := f.svc.GenerateAssetUploadURL(context.Background(), f.as(by), noteID, meeting.AssetUpload{
		FileName: "call.mp4", FileType: "video/mp4", FileSize: 1 << 20,
	})
	require.NoError(t, err)
	var a model.MeetingAsset
	require.NoError(t, f.gdb.First(&a, "id = ?", u.AssetID).Error)
	return u, a
}

func TestGenerateAssetUploadURL(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	n := f.note(t, f.owner, func(in *meeting.CreateInput) { in.ParticipantsInSystem = []string{f.alice.ID} })

	u, a := f.upload(t, f.alice, n.ID)
	prefix := "meetings-notes/" + n.ID + "/assets/"
	assert.True(t, strings.HasPrefix(a.S3Key, prefix), a.S3Key)
	assert.True(t, strings.HasSuffix(a.S3Key, "/call.mp4"), a.S3Key)
	assert.Len(t, strings.TrimSuffix(strings.TrimPrefix(a.S3Key, prefix), "/call.mp4"), 32)
	assert.Equal(t, "https://cdn.test/put/1/"+a.S3Key, u.PresignedURL)
	assert.Equal(t, model.AssetVideo, a.Type)
	assert.Equal(t, model.AssetCompleted, a.Status)
	assert.Equal(t, f.acme.ID, a.CompanyID)
	assert.Equal(t, f.alice.ID, a.UploadedByID)

	got, err := f.svc.Get(ctx, f.as(f.owner), n.ID)
	require.NoError(t, err)
	require.Len(t, got.Assets, 1)
	assert.Equal(t, a.ID, got.Assets[0].ID)
	assert.False(t, got.Assets[0].HasTranscription)

	_, err = f.svc.GenerateAssetUploadURL(ctx, f.as(f.bob), n.ID, meeting.AssetUpload{FileName: "x.mp3", FileType: "audio/mpeg", FileSize: 1})
	assert.True(t, apperr.HasCode(err, "USER_NOT_ALLOWED_MEETING_NOTE"))
}

func TestGenerateAssetUploadURL_Rejects(t *testing.T) {
	f := setup(t)
	n := f.note(t, f.owner, nil)
	tests := []struct {
		name string
		in   meeting.AssetUpload
		code string
	}{
		{"path in name", meeting.AssetUpload{FileName: "../call.mp4", FileType: "video/mp4", FileSize: 1}, "VALIDATION_FAILED"},
		{"empty name", meeting.AssetUpload{FileName: " ", FileType: "video/mp4", FileSize: 1}, "VALIDATION_FAILED"},
		{"empty file", meeting.AssetUpload{FileName: "call.mp4", FileType: "video/mp4"}, "VALIDATION_FAILED"},
		{"too large", meeting.AssetUpload{FileName: "call.mp4", FileType: "video/mp4", FileSize: meeting.MaxAssetSize + 1}, "FILE_TOO_LARGE"},
		{"document", meeting.AssetUpload{FileName: "notes.pdf", FileType: "application/pdf", FileSize: 1}, "INVALID_FILE_TYPE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.GenerateAssetUploadURL(context.Background(), f.as(f.owner), n.ID, tt.in)
			assert.True(t, apperr.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestGetAssetAccessURL(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	n := f.note(t, f.owner, nil)
	other := f.note(t, f.owner, nil)
	_, a := f.upload(t, f.owner, n.ID)

	acc, err := f.svc.GetAssetAccessURL(ctx, f.as(f.owner), n.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/get/1/"+a.S3Key, acc.PresignedURL)
	assert.Nil(t, acc.Transcription)
	assert.Nil(t, acc.StructuredTranscription)

	_, err = f.svc.GetAssetAccessURL(ctx, f.as(f.owner), other.ID, a.ID)
	assert.True(t, apperr.HasCode(err, "ASSET_NOT_FOUND"))
	_, err = f.svc.GetAssetAccessURL(ctx, f.as(f.bob), n.ID, a.ID)
	assert.True(t, apperr.HasCode(err, "USER_NOT_ALLOWED_MEETING_NOTE"))

	require.NoError(t, f.gdb.Model(&a).Update("status", model.AssetUploading).Error)
	_, err = f.svc.GetAssetAccessURL(ctx, f.as(f.owner), n.ID, a.ID)
	assert.True(t, apperr.HasCode(err, "ASSET_NOT_READY"))
}

func TestTranscription(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	n := f.note(t, f.owner, func(in *meeting.CreateInput) { in.ParticipantsInSystem = []string{f.alice.ID} })
	_, a := f.upload(t, f.owner, n.ID)

	_, err := f.svc.GetStructuredTranscription(ctx, f.as(f.owner), a.ID)
	assert.True(t, apperr.HasCode(err, "TRANSCRIPTION_NOT_AVAILABLE"))

	err = f.svc.UploadTranscription(ctx, f.as(f.alice), a.ID, meeting.TranscriptionInput{})
	assert.True(t, apperr.HasCode(err, "VALIDATION_FAILED"))
	err = f.svc.UploadTranscription(ctx, f.as(f.bob), a.ID, meeting.TranscriptionInput{Segments: twoSegments})
	assert.True(t, apperr.HasCode(err, "USER_NOT_ALLOWED_MEETING_NOTE"))
	err = f.svc.UploadTranscription(ctx, f.as(f.alice), "missing", meeting.TranscriptionInput{Segments: twoSegments})
	assert.True(t, apperr.HasCode(err, "ASSET_NOT_FOUND"))

	require.NoError(t, f.svc.UploadTranscription(ctx, f.as(f.alice), a.ID, meeting.TranscriptionInput{Segments: twoSegments}))

	segments, err := f.svc.GetStructuredTranscription(ctx, f.as(f.owner), a.ID)
	require.NoError(t, err)
	assert.Equal(t, twoSegments, segments)

	acc, err := f.svc.GetAssetAccessURL(ctx, f.as(f.alice), n.ID, a.ID)
	require.NoError(t, err)
	require.NotNil(t, acc.Transcription)
	assert.Equal(t, "Hello world", *acc.Transcription)
	assert.JSONEq(t, `[{"start_ms":0,"end_ms":1000,"text":" Hello "},{"start_ms":1000,"end_ms":2500,"text":"world"}]`,
		string(acc.StructuredTranscription))

	got, err := f.svc.Get(ctx, f.as(f.owner), n.ID)
	require.NoError(t, err)
	assert.True(t, got.Assets[0].HasTranscription)

	require.NoError(t, f.svc.UploadTranscription(ctx, f.as(f.owner), a.ID, meeting.TranscriptionInput{Segments: twoSegments, Text: "edited"}))
	acc, err = f.svc.GetAssetAccessURL(ctx, f.as(f.owner), n.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "edited", *acc.Transcription)
}

func TestTranscription_UnlinkedAsset(t *testing.T) {
	f := setup(t)
	a := &model.MeetingAsset{
		CompanyID: f.acme.ID, UploadedByID: f.owner.ID, FileName: "a.mp3", FileType: "audio/mpeg",
		FileSize: 1, S3Key: "k", Type: model.AssetAudio, Status: model.AssetCompleted,
	}
	dbtest.Create(t, f.gdb, a)

	err := f.svc.UploadTranscription(context.Background(), f.as(f.owner), a.ID, meeting.TranscriptionInput{Segments: twoSegments})
	assert.True(t, apperr.HasCode(err, "ASSET_NOT_LINKED"))
	err = f.svc.DeleteAsset(context.Background(), f.as(f.owner), a.ID)
	assert.True(t, apperr.HasCode(err, "DONT_HAVE_ACCESS"))
}

func TestDeleteAsset(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	n := f.note(t, f.alice, func(in *meeting.CreateInput) { in.ParticipantsInSystem = []string{f.bob.ID} })
	_, a := f.upload(t, f.bob, n.ID)
	dbtest.Create(t, f.gdb, &model.AssetSummary{AssetID: a.ID, SummaryJSON: []byte(`{}`), ModelUsed: "m", TemplateUsed: model.MeetingDaily})

	err := f.svc.DeleteAsset(ctx, f.as(f.bob), a.ID)
	assert.True(t, apperr.HasCode(err, "ACCESS_DENIED"), "uploading is not enough")
	err = f.svc.DeleteAsset(ctx, f.as(f.owner), "missing")
	assert.True(t, apperr.HasCode(err, "ASSET_NOT_FOUND"))

	f.store.RemoveErr = assert.AnError
	require.NoError(t, f.svc.DeleteAsset(ctx, f.as(f.manager), a.ID))
	assert.Equal(t, []string{a.S3Key}, f.store.Removed())

	for _, m := range []any{&model.MeetingAsset{}, &model.MeetingNoteAsset{}, &model.AssetSummary{}} {
		var count int64
		require.NoError(t, f.gdb.Model(m).Count(&count).Error)
		assert.Zero(t, count, "%T", m)
	}
}

func TestDeleteAsset_ByNoteAuthor(t *testing.T) {
	f := setup(t)
	n := f.note(t, f.alice, nil)
	_, a := f.upload(t, f.alice, n.ID)
	require.NoError(t, f.svc.DeleteAsset(context.Background(), f.as(f.alice), a.ID))
	assert.Equal(t, []string{a.S3Key}, f.store.Removed())
}
