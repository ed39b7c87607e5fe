package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/timmy/musiclip/internal/domain"
	"github.com/timmy/musiclip/internal/logger"
	"github.com/timmy/musiclip/internal/source"
)

// IngestService drives tracks through download, conversion, upload,
// embedding and indexing.
type IngestService struct {
	resolver     source.Resolver
	materializer AudioMaterializer
	store        AudioStore
	embedder     AudioEmbedder
	vectors      VectorStore
	recorder     RunRecorder
	logger       *logger.Logger
	workers      int
	verifyWrites bool
	locks        *keyedLock
	now          func() time.Time
}

// IngestConfig holds configuration for the ingest service
type IngestConfig struct {
	Workers      int
	VerifyWrites bool
}

// IngestOptions controls idempotence for one run.
type IngestOptions struct {
	// SkipExisting skips tracks that are already indexed.
	SkipExisting bool
	// OverrideExisting reprocesses indexed tracks even when SkipExisting is set.
	OverrideExisting bool
	// OnOutcome, when set, is called once per track as it reaches a terminal
	// state. Calls are serialized.
	OnOutcome func(*domain.TrackOutcome)
}

// DefaultIngestOptions skips already-indexed tracks.
func DefaultIngestOptions() IngestOptions {
	return IngestOptions{SkipExisting: true}
}

func (o IngestOptions) skipIndexed() bool {
	return o.SkipExisting && !o.OverrideExisting
}

// NewIngestService creates a new ingest service
func NewIngestService(
	resolver source.Resolver,
	materializer AudioMaterializer,
	store AudioStore,
	embedder AudioEmbedder,
	vectors VectorStore,
	log *logger.Logger,
	cfg *IngestConfig,
) *IngestService {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &IngestService{
		resolver:     resolver,
		materializer: materializer,
		store:        store,
		embedder:     embedder,
		vectors:      vectors,
		logger:       log,
		workers:      workers,
		verifyWrites: cfg.VerifyWrites,
		locks:        newKeyedLock(),
		now:          time.Now,
	}
}

// SetRunRecorder enables the run ledger. Recording is best effort.
func (s *IngestService) SetRunRecorder(r RunRecorder) {
	s.recorder = r
}

// log returns a logger from context if available, otherwise returns the service logger
func (s *IngestService) log(ctx context.Context) *logger.Logger {
	return logger.FromContextOr(ctx, s.logger)
}

// Ingest resolves a playlist and processes every track. The report is always
// returned; the error is non-nil when resolution failed, either before the
// first track or while paging, or when ctx was cancelled.
func (s *IngestService) Ingest(ctx context.Context, playlistID string, opts IngestOptions) (*domain.IngestionReport, error) {
	report := domain.NewIngestionReport(uuid.New().String(), playlistID)
	ctx = s.log(ctx).WithFields(logger.Fields{
		logger.FieldPlaylistID: playlistID,
		logger.FieldComponent:  "ingest",
	}).WithContext(ctx)
	ctx = logger.SetRunID(ctx, report.RunID)

	s.log(ctx).WithFields(logger.Fields{
		"skip_existing":     opts.SkipExisting,
		"override_existing": opts.OverrideExisting,
		"workers":           s.workers,
	}).Info("Starting ingestion")

	stream, err := s.resolver.Resolve(ctx, playlistID)
	if err != nil {
		s.log(ctx).WithError(err).Error("Failed to resolve playlist")
		report.SetError(err)
		return s.finish(ctx, report), err
	}

	s.run(ctx, report, stream, opts)
	return s.finish(ctx, report), report.Err
}

// IngestTrack resolves a single song and runs it through the pipeline.
func (s *IngestService) IngestTrack(ctx context.Context, trackID string, opts IngestOptions) (*domain.IngestionReport, error) {
	report := domain.NewIngestionReport(uuid.New().String(), "")
	ctx = logger.SetRunID(logger.SetComponent(s.log(ctx).WithContext(ctx), "ingest"), report.RunID)

	d, err := s.resolver.ResolveTrack(ctx, trackID)
	if err != nil {
		s.log(ctx).WithField(logger.FieldTrackID, trackID).WithError(err).Error("Failed to resolve track")
		report.SetError(err)
		return s.finish(ctx, report), err
	}

	s.run(ctx, report, source.NewStaticStream([]domain.TrackDescriptor{d}), opts)
	return s.finish(ctx, report), report.Err
}

func (s *IngestService) run(ctx context.Context, report *domain.IngestionReport, stream *source.TrackStream, opts IngestOptions) {
	pool, err := ants.NewPool(s.workers)
	if err != nil {
		report.SetError(fmt.Errorf("failed to create worker pool: %w", err))
		return
	}
	defer pool.Release()

	// In-flight tracks finish even if ctx is cancelled mid-run.
	trackCtx := context.WithoutCancel(ctx)

	var (
		wg     sync.WaitGroup
		emitMu sync.Mutex
	)
	record := func(o *domain.TrackOutcome) {
		report.Record(o)
		if opts.OnOutcome != nil {
			emitMu.Lock()
			opts.OnOutcome(o)
			emitMu.Unlock()
		}
	}

	for pos := 0; ; pos++ {
		if err := ctx.Err(); err != nil {
			report.SetError(fmt.Errorf("ingestion interrupted: %w", err))
			break
		}
		d, ok, err := stream.Next(ctx)
		if err != nil {
			s.log(ctx).WithError(err).Error("Failed to fetch next tracks, stopping run")
			report.SetError(err)
			break
		}
		if !ok {
			break
		}

		wg.Add(1)
		task := func() {
			defer wg.Done()
			record(s.processTrack(trackCtx, pos, d, opts))
		}
		if err := pool.Submit(task); err != nil {
			// Pool closed or overloaded: run inline so the track still gets an outcome.
			task()
		}
	}
	wg.Wait()
}

func (s *IngestService) finish(ctx context.Context, report *domain.IngestionReport) *domain.IngestionReport {
	report.Finish()

	logger.With(logger.Fields{
		"indexed": report.Count(domain.StateIndexed),
		"skipped": report.Skipped(),
		"failed":  report.Failed(),
	}).WithCount(report.Total()).
		WithDuration(report.Duration().Milliseconds()).
		Info(ctx, "Ingestion finished")

	if s.recorder != nil {
		if err := s.recorder.RecordRun(context.WithoutCancel(ctx), report); err != nil {
			s.log(ctx).WithError(err).Warn("Failed to record ingestion run")
		}
	}
	return report
}

// processTrack runs one descriptor to a terminal state.
func (s *IngestService) processTrack(ctx context.Context, pos int, d domain.TrackDescriptor, opts IngestOptions) *domain.TrackOutcome {
	start := time.Now()
	o := domain.NewTrackOutcome(pos, d)
	ctx = logger.WithField(ctx, logger.FieldTrackID, d.ID)

	unlock := s.locks.Lock(d.ID)
	defer unlock()

	defer func() {
		o.Duration = time.Since(start)
		entry := logger.With(logger.Fields{"position": o.Position}).
			WithStatus(string(o.State)).
			WithDuration(o.Duration.Milliseconds())
		if o.Err != nil {
			entry.With(logger.Fields{"error_kind": string(o.ErrorKind)}).Warn(ctx, "Track failed: %v", o.Err)
		} else {
			entry.Debug(ctx, "Track done")
		}
	}()

	o.Advance(domain.StateResolved)

	prior := priorPresent
	existed, err := s.vectors.Exists(ctx, d.ID)
	switch {
	case err != nil:
		s.log(ctx).WithError(err).Warn("Failed to check existing track, processing anyway")
		prior = priorUnknown
	case !existed:
		prior = priorAbsent
	}
	if prior == priorPresent && opts.skipIndexed() {
		o.Advance(domain.StateSkippedExisting)
		return o
	}
	if !d.HasPreview() {
		o.Advance(domain.StateSkippedNoPreview)
		return o
	}

	// No rollback needed if this fails since nothing has been persisted yet
	clip, err := s.materializer.Materialize(ctx, d)
	if err != nil {
		switch domain.KindOf(err) {
		case domain.KindConversion:
			o.Advance(domain.StateMaterialized)
		case domain.KindDownload:
		default:
			err = domain.NewError(domain.KindDownload, "ingest.materialize", err)
		}
		o.Fail(err)
		return o
	}
	o.Advance(domain.StateMaterialized)
	o.Advance(domain.StateNormalized)

	if err := s.store.Put(ctx, clip.Key, clip.Data, clip.ContentType); err != nil {
		o.Fail(ensureKind(domain.KindUpload, "ingest.upload", err))
		return o
	}
	o.Advance(domain.StateUploaded)
	s.log(ctx).WithFields(logger.Fields{
		"storage_key":    clip.Key,
		logger.FieldSize: clip.Size(),
	}).Debug("Uploaded clip")

	vector, err := s.embedder.EmbedAudio(ctx, clip.Key, clip.Data)
	if err != nil {
		s.rollback(ctx, d.ID, clip.Key, prior, false)
		o.Fail(ensureKind(domain.KindEmbedding, "ingest.embed", err))
		return o
	}
	o.Advance(domain.StateEmbedded)

	track := &domain.IndexedTrack{
		ID:         d.ID,
		Vector:     vector,
		Metadata:   d.Metadata,
		StorageKey: clip.Key,
		IndexedAt:  s.now().UTC(),
	}
	if written, err := s.index(ctx, track); err != nil {
		s.rollback(ctx, d.ID, clip.Key, prior, written)
		o.Fail(err)
		return o
	}
	o.Advance(domain.StateIndexed)
	return o
}

// index upserts track and, with verifyWrites, reads it back. written reports
// whether the upsert itself succeeded, even when verification then failed.
func (s *IngestService) index(ctx context.Context, track *domain.IndexedTrack) (written bool, err error) {
	const op = "ingest.index"
	if err := s.vectors.Upsert(ctx, track); err != nil {
		return false, ensureKind(domain.KindIndexWrite, op, err)
	}
	if !s.verifyWrites {
		return true, nil
	}
	ok, err := s.vectors.Exists(ctx, track.ID)
	if err != nil {
		return true, domain.NewError(domain.KindIndexWrite, op, fmt.Errorf("failed to verify write: %w", err))
	}
	if !ok {
		return true, domain.Errorf(domain.KindIndexWrite, op, "track %s not visible after write", track.ID)
	}
	return true, nil
}

// priorEntry is what the pre-check learned about an existing index entry.
type priorEntry int

const (
	priorAbsent priorEntry = iota
	priorPresent
	priorUnknown
)

// rollback undoes a failed track after upload. The clip is deleted only when no
// index entry can reference it: the track had no entry before this run and any
// point written by this run was removed first.
func (s *IngestService) rollback(ctx context.Context, trackID, key string, prior priorEntry, pointWritten bool) {
	log := s.log(ctx).WithFields(logger.Fields{"storage_key": key})
	if prior != priorAbsent {
		log.Debug("Keeping clip referenced by an existing entry")
		return
	}
	if pointWritten {
		if err := s.vectors.Delete(ctx, trackID); err != nil {
			log.WithError(err).Error("Failed to rollback index write, keeping clip")
			return
		}
	}
	if err := s.store.Delete(ctx, key); err != nil {
		log.WithError(err).Error("Failed to rollback storage upload")
	}
}

// ensureKind classifies err as kind unless it already is.
func ensureKind(kind domain.ErrorKind, op string, err error) error {
	if domain.KindOf(err) == kind {
		return err
	}
	return domain.NewError(kind, op, err)
}
