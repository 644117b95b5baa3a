package meeting

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/d9705996/huddle/internal/apperr"
	"github.com/d9705996/huddle/internal/cache"
	"github.com/d9705996/huddle/internal/model"
	"github.com/d9705996/huddle/internal/policy"
	"github.com/d9705996/huddle/internal/summary"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm/clause"
)

const (
	summaryKeyPrefix  = "summary-gen-status-"
	summaryDoneTTL    = 24 * time.Hour
	summaryRunningTTL = 10 * time.Minute
	markerRunning     = "running"
	markerDone        = "done"
	streamBuffer      = 16
	maxParallelAssets = 4
)

// transcribed is a linked asset with a usable transcript.
type transcribed struct {
	asset    model.MeetingAsset
	segments []summary.Segment
	cached   *model.AssetSummary
}

// fingerprint identifies one summarization input set.
func fingerprint(noteID string, l summary.Locale, t model.MeetingType, assets []transcribed) string {
	ids := make([]string, len(assets))
	for i, a := range assets {
		ids[i] = a.asset.ID
	}
	slices.Sort(ids)
	b, _ := json.Marshal(struct {
		NoteID   string            `json:"noteId"`
		Locale   summary.Locale    `json:"locale"`
		Type     model.MeetingType `json:"type"`
		AssetIDs []string          `json:"assetIds"`
	}{noteID, l, t, ids})
	sum := sha256.Sum256(b)
	return summaryKeyPrefix + hex.EncodeToString(sum[:])
}

// transcribedAssets loads the note's assets that carry transcript segments,
// oldest first, with their cached summaries.
func (s *Service) transcribedAssets(ctx context.Context, noteID string) ([]transcribed, error) {
	var rows []assetRow
	if err := s.db.WithContext(ctx).Table("meeting_note_assets").
		Select("meeting_note_assets.meeting_note_id, meeting_assets.*").
		Joins("JOIN meeting_assets ON meeting_assets.id = meeting_note_assets.asset_id").
		Where("meeting_note_assets.meeting_note_id = ?", noteID).
		Order("meeting_assets.created_at").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("load note assets: %w", err)
	}
	var out []transcribed
	for _, r := range rows {
		segments, err := decodeSegments(r.StructuredTranscription)
		if err != nil {
			s.log.WarnContext(ctx, "skip asset with unreadable transcription", "asset_id", r.ID, "err", err)
			continue
		}
		if len(segments) > 0 {
			out = append(out, transcribed{asset: r.MeetingAsset, segments: segments})
		}
	}
	if len(out) == 0 {
		return nil, apperr.NoAssetsWithTranscription()
	}

	ids := make([]string, len(out))
	for i, t := range out {
		ids[i] = t.asset.ID
	}
	var cached []model.AssetSummary
	if err := s.db.WithContext(ctx).Where("asset_id IN ?", ids).Find(&cached).Error; err != nil {
		return nil, fmt.Errorf("load asset summaries: %w", err)
	}
	for i := range out {
		for j := range cached {
			if cached[j].AssetID == out[i].asset.ID {
				out[i].cached = &cached[j]
			}
		}
	}
	return out, nil
}

// assetResults runs the map phase: one summary per asset, reusing a stored
// summary made with the note's meeting type. New summaries are stored.
func (s *Service) assetResults(ctx context.Context, n *model.MeetingNote, assets []transcribed, l summary.Locale) ([]summary.Result, error) {
	tmpl := summary.TemplateFor(n.Type)
	results := make([]summary.Result, len(assets))
	fresh := make([]bool, len(assets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelAssets)
	for i, a := range assets {
		if a.cached != nil && a.cached.TemplateUsed == n.Type {
			var sum summary.Summary
			if err := json.Unmarshal(a.cached.SummaryJSON, &sum); err == nil {
				results[i] = summary.Result{Summary: sum, Usage: summary.Usage{
					PromptTokens:     a.cached.PromptTokens,
					CompletionTokens: a.cached.CompletionTokens,
					TotalTokens:      a.cached.TotalTokens,
				}}
				continue
			}
		}
		fresh[i] = true
		g.Go(func() error {
			res, err := s.engine.Summarize(gctx, a.segments, tmpl, l)
			if err != nil {
				return fmt.Errorf("summarize asset %s: %w", a.asset.ID, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, a := range assets {
		if !fresh[i] {
			continue
		}
		if err := s.storeAssetSummary(ctx, a.asset.ID, n.Type, results[i]); err != nil {
			return nil, err
		}
	}
	return results, nil
}

func (s *Service) storeAssetSummary(ctx context.Context, assetID string, t model.MeetingType, res summary.Result) error {
	b, err := json.Marshal(res.Summary)
	if err != nil {
		return fmt.Errorf("encode asset summary: %w", err)
	}
	row := model.AssetSummary{
		AssetID:          assetID,
		SummaryJSON:      datatypes.JSON(b),
		ModelUsed:        s.engine.Model(),
		TemplateUsed:     t,
		PromptTokens:     res.Usage.PromptTokens,
		CompletionTokens: res.Usage.CompletionTokens,
		TotalTokens:      res.Usage.TotalTokens,
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "asset_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"summary_json", "model_used", "template_used",
			"prompt_tokens", "completion_tokens", "total_tokens", "updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("store asset summary: %w", err)
	}
	return nil
}

// saveSummary writes generated blocks to the note and marks it AI_GENERATED.
// A nil global summary clears the stored one.
func (s *Service) saveSummary(ctx context.Context, noteID string, global summary.Summary, blocks []summary.Block) error {
	after, err := json.Marshal(orEmpty(blocks))
	if err != nil {
		return fmt.Errorf("encode summary blocks: %w", err)
	}
	var globalJSON any
	if global != nil {
		b, err := json.Marshal(global)
		if err != nil {
			return fmt.Errorf("encode global summary: %w", err)
		}
		globalJSON = datatypes.JSON(b)
	}
	if err := s.db.WithContext(ctx).Model(&model.MeetingNote{}).
		Where("id = ?", noteID).
		Updates(map[string]any{
			"additional_blocks_after": datatypes.JSON(after),
			"global_summary_json":     globalJSON,
			"interaction_status":      model.InteractionAIGenerated,
			"updated_at":              s.now(),
		}).Error; err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	return nil
}

// GenerateSummary summarizes every transcribed asset of a note, combines
// the results and stores them on the note. The same inputs are summarized
// at most once a day; a concurrent run with the same inputs is rejected.
func (s *Service) GenerateSummary(ctx context.Context, by policy.Subject, noteID string, l summary.Locale) (*Note, error) {
	n, err := s.access(ctx, by, noteID)
	if err != nil {
		return nil, err
	}
	assets, err := s.transcribedAssets(ctx, n.ID)
	if err != nil {
		return nil, err
	}
	key := fingerprint(n.ID, l, n.Type, assets)
	claimed, err := s.kv.SetNX(ctx, key, markerRunning, summaryRunningTTL)
	if err != nil {
		return nil, err
	}
	if !claimed {
		v, err := s.kv.Get(ctx, key)
		switch {
		case err == nil && v == markerDone:
			return s.one(ctx, n)
		case err != nil && !errors.Is(err, cache.ErrMiss):
			return nil, err
		}
		return nil, apperr.SummaryInProgress()
	}

	if err := s.summarize(ctx, n, assets, l); err != nil {
		if _, derr := s.kv.Del(context.WithoutCancel(ctx), key); derr != nil {
			s.log.ErrorContext(ctx, "release summary marker", "note_id", n.ID, "err", derr)
		}
		return nil, err
	}
	if err := s.kv.Set(ctx, key, markerDone, summaryDoneTTL); err != nil {
		s.log.ErrorContext(ctx, "mark summary done", "note_id", n.ID, "err", err)
	}
	if n, err = s.find(ctx, by.CompanyID, n.ID); err != nil {
		return nil, err
	}
	return s.one(ctx, n)
}

func (s *Service) summarize(ctx context.Context, n *model.MeetingNote, assets []transcribed, l summary.Locale) error {
	results, err := s.assetResults(ctx, n, assets, l)
	if err != nil {
		return err
	}
	final, err := s.engine.Combine(ctx, results, summary.TemplateFor(n.Type), l)
	if err != nil {
		return err
	}
	if err := s.saveSummary(ctx, n.ID, final.Summary, summary.ToBlocks(final.Summary, l)); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "summary generated", "note_id", n.ID, "assets", len(assets), "total_tokens", final.Usage.TotalTokens)
	return nil
}

// StreamSummary validates access and inputs, then produces summary blocks
// on the returned channel as they become available. A failure ends the
// stream with an error block; only a complete stream is stored on the note.
// Cancelling ctx aborts generation and closes the channel.
func (s *Service) StreamSummary(ctx context.Context, by policy.Subject, noteID string, l summary.Locale) (<-chan summary.Block, error) {
	n, err := s.access(ctx, by, noteID)
	if err != nil {
		return nil, err
	}
	assets, err := s.transcribedAssets(ctx, n.ID)
	if err != nil {
		return nil, err
	}
	out := make(chan summary.Block, streamBuffer)
	go func() {
		defer close(out)
		send := func(b summary.Block) error {
			select {
			case out <- b:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := s.stream(ctx, n, assets, l, send); err != nil {
			if ctx.Err() != nil {
				s.log.InfoContext(ctx, "summary stream cancelled", "note_id", n.ID)
				return
			}
			s.log.ErrorContext(ctx, "summary stream", "note_id", n.ID, "err", err)
			_ = send(summary.ErrorBlock())
		}
	}()
	return out, nil
}

var errInvalidBlock = errors.New("meeting: invalid summary block")

func (s *Service) stream(ctx context.Context, n *model.MeetingNote, assets []transcribed, l summary.Locale, send func(summary.Block) error) error {
	results, err := s.assetResults(ctx, n, assets, l)
	if err != nil {
		return err
	}

	var (
		blocks []summary.Block
		parser summary.Parser
	)
	emit := func(bs []summary.Block) error {
		for _, b := range bs {
			if !b.Valid() {
				return errInvalidBlock
			}
			blocks = append(blocks, b)
			if err := send(b); err != nil {
				return err
			}
		}
		return nil
	}
	feed := func(chunk string) error { return emit(parser.Feed(chunk)) }

	var global summary.Summary
	if len(results) == 1 {
		global = results[0].Summary
		for _, chunk := range summary.ToMarkdown(global, l) {
			if err := feed(chunk); err != nil {
				return err
			}
		}
	} else if err := s.engine.StreamCombine(ctx, results, l, feed); err != nil {
		return err
	}
	if err := emit(parser.Flush()); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.saveSummary(ctx, n.ID, global, blocks); err != nil {
		s.log.ErrorContext(ctx, "store streamed summary", "note_id", n.ID, "err", err)
		return nil
	}
	s.log.InfoContext(ctx, "summary streamed", "note_id", n.ID, "assets", len(assets), "blocks", len(blocks))
	return nil
}
