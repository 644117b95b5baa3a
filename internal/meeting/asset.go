package meeting

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/d9705996/huddle/internal/apperr"
	"github.com/d9705996/huddle/internal/db"
	"github.com/d9705996/huddle/internal/model"
	"github.com/d9705996/huddle/internal/policy"
	"github.com/d9705996/huddle/internal/storage"
	"github.com/d9705996/huddle/internal/summary"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MaxAssetSize is the largest accepted upload.
const MaxAssetSize = 200 << 20

var allowedAssetTypes = map[string]bool{
	"video/mp4":  true,
	"video/webm": true,
	"audio/mpeg": true,
	"audio/wav":  true,
	"audio/aac":  true,
}

// AssetUpload describes a file the client is about to upload.
type AssetUpload struct {
	FileName string
	FileType string
	FileSize int64
}

// AssetUploadURL is a presigned PUT for a new asset.
type AssetUploadURL struct {
	PresignedURL string `json:"presignedUrl"`
	AssetID      string `json:"assetId"`
}

// AssetAccess is a presigned download with the asset's transcriptions.
type AssetAccess struct {
	PresignedURL            string          `json:"presignedUrl"`
	Transcription           *string         `json:"transcription"`
	StructuredTranscription json.RawMessage `json:"structuredTranscription"`
}

// TranscriptionInput is an uploaded transcript. Text defaults to the
// segment texts joined by spaces.
type TranscriptionInput struct {
	Segments []summary.Segment
	Text     string
}

func assetType(mime string) model.AssetType {
	switch {
	case strings.HasPrefix(mime, "video/"):
		return model.AssetVideo
	case strings.HasPrefix(mime, "audio/"):
		return model.AssetAudio
	default:
		return model.AssetDocument
	}
}

// GenerateAssetUploadURL registers an asset on a note and presigns its
// upload into the private bucket.
func (s *Service) GenerateAssetUploadURL(ctx context.Context, by policy.Subject, noteID string, in AssetUpload) (*AssetUploadURL, error) {
	name := strings.TrimSpace(in.FileName)
	switch {
	case name == "" || strings.ContainsAny(name, "/\\"):
		return nil, apperr.Validation("fileName is invalid")
	case in.FileSize <= 0:
		return nil, apperr.Validation("fileSize must be positive")
	case in.FileSize > MaxAssetSize:
		return nil, apperr.FileTooLarge()
	case !allowedAssetTypes[in.FileType]:
		return nil, apperr.InvalidFileType()
	}
	n, err := s.access(ctx, by, noteID)
	if err != nil {
		return nil, err
	}

	key := storage.ObjectKey(storage.FolderMeetingNotes, n.ID, "assets/"+storage.RandomHex(16)+"/"+name)
	asset := model.MeetingAsset{
		CompanyID:    n.CompanyID,
		UploadedByID: by.UserID,
		FileName:     name,
		FileType:     in.FileType,
		FileSize:     in.FileSize,
		S3Key:        key,
		Type:         assetType(in.FileType),
		Status:       model.AssetCompleted,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&asset).Error; err != nil {
			return fmt.Errorf("create asset: %w", err)
		}
		if err := tx.Create(&model.MeetingNoteAsset{MeetingNoteID: n.ID, AssetID: asset.ID}).Error; err != nil {
			return fmt.Errorf("link asset: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	u, err := s.store.PresignPut(ctx, storage.Private, key)
	if err != nil {
		return nil, fmt.Errorf("presign asset upload: %w", err)
	}
	return &AssetUploadURL{PresignedURL: u, AssetID: asset.ID}, nil
}

// GetAssetAccessURL presigns a download of a completed asset of a note.
func (s *Service) GetAssetAccessURL(ctx context.Context, by policy.Subject, noteID, assetID string) (*AssetAccess, error) {
	n, err := s.access(ctx, by, noteID)
	if err != nil {
		return nil, err
	}
	var a model.MeetingAsset
	err = s.db.WithContext(ctx).
		Select("meeting_assets.*").
		Joins("JOIN meeting_note_assets ON meeting_note_assets.asset_id = meeting_assets.id").
		Where("meeting_assets.id = ? AND meeting_note_assets.meeting_note_id = ?", assetID, n.ID).
		First(&a).Error
	if db.IsNotFound(err) {
		return nil, apperr.AssetNotFound()
	}
	if err != nil {
		return nil, fmt.Errorf("load asset: %w", err)
	}
	if a.Status != model.AssetCompleted {
		return nil, apperr.AssetNotReady()
	}
	u, err := s.store.PresignGet(ctx, storage.Private, a.S3Key)
	if err != nil {
		return nil, fmt.Errorf("presign asset download: %w", err)
	}
	return &AssetAccess{
		PresignedURL:            u,
		Transcription:           a.Transcription,
		StructuredTranscription: rawJSON(a.StructuredTranscription),
	}, nil
}

// noteOfAsset loads an asset and the first note it is linked to, and checks
// that the requester can read that note.
func (s *Service) noteOfAsset(ctx context.Context, by policy.Subject, assetID string) (*model.MeetingAsset, *model.MeetingNote, error) {
	var a model.MeetingAsset
	err := s.db.WithContext(ctx).First(&a, "id = ? AND company_id = ?", assetID, by.CompanyID).Error
	if db.IsNotFound(err) {
		return nil, nil, apperr.AssetNotFound()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load asset: %w", err)
	}
	var link model.MeetingNoteAsset
	err = s.db.WithContext(ctx).Where("asset_id = ?", a.ID).Order("created_at").First(&link).Error
	if db.IsNotFound(err) {
		return nil, nil, apperr.AssetNotLinked()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load asset link: %w", err)
	}
	n, err := s.access(ctx, by, link.MeetingNoteID)
	if err != nil {
		return nil, nil, err
	}
	return &a, n, nil
}

// UploadTranscription stores the transcript of an asset and marks it
// completed.
func (s *Service) UploadTranscription(ctx context.Context, by policy.Subject, assetID string, in TranscriptionInput) error {
	if len(in.Segments) == 0 {
		return apperr.Validation("segments must not be empty")
	}
	a, _, err := s.noteOfAsset(ctx, by, assetID)
	if err != nil {
		return err
	}
	segments, err := json.Marshal(in.Segments)
	if err != nil {
		return fmt.Errorf("encode segments: %w", err)
	}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		parts := make([]string, len(in.Segments))
		for i, seg := range in.Segments {
			parts[i] = strings.TrimSpace(seg.Text)
		}
		text = strings.Join(parts, " ")
	}
	if err := s.db.WithContext(ctx).Model(&model.MeetingAsset{}).
		Where("id = ?", a.ID).
		Updates(map[string]any{
			"structured_transcription": datatypes.JSON(segments),
			"transcription":            text,
			"status":                   model.AssetCompleted,
			"updated_at":               s.now(),
		}).Error; err != nil {
		return fmt.Errorf("store transcription: %w", err)
	}
	s.log.InfoContext(ctx, "transcription uploaded", "asset_id", a.ID, "segments", len(in.Segments))
	return nil
}

// GetStructuredTranscription returns the transcript segments of an asset.
func (s *Service) GetStructuredTranscription(ctx context.Context, by policy.Subject, assetID string) ([]summary.Segment, error) {
	a, _, err := s.noteOfAsset(ctx, by, assetID)
	if err != nil {
		return nil, err
	}
	segments, err := decodeSegments(a.StructuredTranscription)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, apperr.TranscriptionNotAvailable()
	}
	return segments, nil
}

func decodeSegments(j datatypes.JSON) ([]summary.Segment, error) {
	if len(j) == 0 {
		return nil, nil
	}
	var segments []summary.Segment
	if err := json.Unmarshal(j, &segments); err != nil {
		return nil, fmt.Errorf("decode transcription: %w", err)
	}
	return segments, nil
}

// DeleteAsset removes an asset from every note. The author of a linked note,
// an OWNER or a COMPANY_MANAGER may do it. The stored object is removed on a
// best-effort basis.
func (s *Service) DeleteAsset(ctx context.Context, by policy.Subject, assetID string) error {
	var a model.MeetingAsset
	err := s.db.WithContext(ctx).First(&a, "id = ?", assetID).Error
	if db.IsNotFound(err) {
		return apperr.AssetNotFound()
	}
	if err != nil {
		return fmt.Errorf("load asset: %w", err)
	}
	var authors []string
	if err := s.db.WithContext(ctx).Model(&model.MeetingNote{}).
		Joins("JOIN meeting_note_assets ON meeting_note_assets.meeting_note_id = meeting_notes.id").
		Where("meeting_note_assets.asset_id = ? AND meeting_notes.company_id = ?", a.ID, by.CompanyID).
		Pluck("meeting_notes.author_id", &authors).Error; err != nil {
		return fmt.Errorf("load asset notes: %w", err)
	}
	if len(authors) == 0 {
		return apperr.DontHaveAccess()
	}
	isAuthor := false
	for _, id := range authors {
		isAuthor = isAuthor || id == by.UserID
	}
	if !isAuthor && !policy.HasRole(by.Role, model.RoleOwner, model.RoleCompanyManager) {
		return apperr.AccessDenied()
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("asset_id = ?", a.ID).Delete(&model.MeetingNoteAsset{}).Error; err != nil {
			return fmt.Errorf("unlink asset: %w", err)
		}
		if err := tx.Where("asset_id = ?", a.ID).Delete(&model.AssetSummary{}).Error; err != nil {
			return fmt.Errorf("delete asset summary: %w", err)
		}
		if err := tx.Delete(&model.MeetingAsset{}, "id = ?", a.ID).Error; err != nil {
			return fmt.Errorf("delete asset: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := s.store.Remove(ctx, storage.Private, a.S3Key); err != nil {
		s.log.WarnContext(ctx, "orphaned asset object", "asset_id", a.ID, "key", a.S3Key, "err", err)
	}
	return nil
}
