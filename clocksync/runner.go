package clocksync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type RunnerConfig struct {
	Devices []Device
	// Timeout bounds each device fetch. Zero means no bound.
	Timeout   time.Duration
	CachePath string
	OutputDir string
	// SafetyCeiling is the most candidates one pass may upload. Zero or less disables the valve.
	SafetyCeiling int
	// Since drops events older than now-Since before normalization. Zero disables the filter.
	Since  time.Duration
	DryRun bool
	// Export modes write diagnostic artifacts and end the pass before the upload phase.
	ExportSimple     bool
	ExportNormalized bool
	// SyslogAddr enables a per-pass heartbeat when set.
	SyslogAddr   string
	JobLabel     string
	ServiceLabel string
	Logger       zerolog.Logger
	Now          func() time.Time
}

// PassResult counts what happened during one pass.
type PassResult struct {
	PassID        string
	StartedAt     time.Time
	Duration      time.Duration
	DryRun        bool
	DevicesFailed int
	Fetched       int
	FilteredOut   int
	Normalized    int
	Invalid       int
	Cached        int
	Duplicates    int
	Candidates    int
	Uploaded      int
	AlreadyExists int
	Rejected      int
	Transient     int
	// Activity feeds the scheduler: uploaded records, or would-be uploads under dry-run.
	Activity     int
	ArtifactPath string
}

// Runner sequences the sync pipeline: fetch, filter, normalize, dedupe, safety
// check, upload, then persist the artifact and the dedup cache.
type Runner struct {
	cfg       RunnerConfig
	devices   DeviceClient
	gate      *UploadGate
	cache     *DedupCache
	heartbeat HeartbeatSender
	log       zerolog.Logger
	now       func() time.Time
}

func NewRunner(cfg RunnerConfig, devices DeviceClient, ledger Ledger) (*Runner, error) {
	if devices == nil {
		return nil, fmt.Errorf("DeviceClient is required")
	}
	if ledger == nil && !cfg.DryRun && !cfg.ExportSimple && !cfg.ExportNormalized {
		return nil, fmt.Errorf("Ledger is required unless running dry-run or export-only")
	}
	if len(cfg.Devices) == 0 {
		return nil, fmt.Errorf("at least one device is required")
	}
	if strings.TrimSpace(cfg.CachePath) == "" {
		return nil, fmt.Errorf("CachePath is required")
	}
	if strings.TrimSpace(cfg.OutputDir) == "" {
		return nil, fmt.Errorf("OutputDir is required")
	}
	if cfg.JobLabel == "" {
		cfg.JobLabel = heartbeatAppName
	}
	if cfg.ServiceLabel == "" {
		cfg.ServiceLabel = "attendance"
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	r := &Runner{
		cfg:     cfg,
		devices: devices,
		cache:   NewDedupCache(cfg.CachePath, cfg.Logger),
		log:     cfg.Logger.With().Str("component", "runner").Logger(),
		now:     now,
	}
	if ledger != nil {
		r.gate = NewUploadGate(ledger, cfg.Logger)
	}
	if strings.TrimSpace(cfg.SyslogAddr) != "" {
		r.heartbeat = NewSyslogClient(cfg.SyslogAddr)
	}
	return r, nil
}

// RunOnce executes one pass. Per-device and per-record failures are logged and
// counted; only a safety abort or a cache write failure is returned as an error.
func (r *Runner) RunOnce(ctx context.Context) (res PassResult, err error) {
	res = PassResult{PassID: uuid.NewString(), StartedAt: r.now(), DryRun: r.cfg.DryRun}
	log := r.log.With().Str("pass_id", res.PassID).Logger()
	defer func() {
		res.Duration = r.now().Sub(res.StartedAt)
		r.sendHeartbeat(log, res, err)
	}()
	stamp := ArtifactStamp(res.StartedAt)

	raw := r.fetchAll(ctx, log, &res)

	if r.cfg.Since > 0 {
		cutoff := res.StartedAt.Add(-r.cfg.Since)
		kept := raw[:0]
		for _, ev := range raw {
			if ev.Timestamp.Before(cutoff) {
				continue
			}
			kept = append(kept, ev)
		}
		res.FilteredOut = len(raw) - len(kept)
		raw = kept
		log.Info().Time("cutoff", cutoff).Int("dropped", res.FilteredOut).Msg("applied since filter")
	}

	records := make([]NormalizedRecord, 0, len(raw))
	for _, ev := range raw {
		rec, nerr := Normalize(ev)
		if nerr != nil {
			res.Invalid++
			log.Warn().Err(nerr).Str("user_id", string(ev.SubjectID)).Time("timestamp", ev.Timestamp).Msg("skip invalid record")
			continue
		}
		records = append(records, rec)
	}
	res.Normalized = len(records)

	if r.cfg.ExportSimple || r.cfg.ExportNormalized {
		return res, r.export(log, stamp, raw, records)
	}

	cached := r.cache.Load()
	candidates := make([]NormalizedRecord, 0, len(records))
	queued := IDSet{}
	for _, rec := range records {
		if cached.Has(rec.ID) {
			res.Cached++
			continue
		}
		if queued.Has(rec.ID) {
			res.Duplicates++
			continue
		}
		queued.Add(rec.ID)
		candidates = append(candidates, rec)
	}
	res.Candidates = len(candidates)
	log.Info().Int("normalized", res.Normalized).Int("invalid", res.Invalid).Int("cached", res.Cached).Int("candidates", res.Candidates).Msg("candidates selected")

	if CheckSafety(len(candidates), r.cfg.SafetyCeiling) == Abort {
		log.Error().Int("candidates", len(candidates)).Int("ceiling", r.cfg.SafetyCeiling).Msg("upload phase skipped by safety valve; cache untouched")
		return res, fmt.Errorf("%w: %d pending uploads exceed ceiling %d", ErrSafetyAbort, len(candidates), r.cfg.SafetyCeiling)
	}

	if r.cfg.DryRun {
		res.Activity = len(candidates)
		log.Info().Int("would_upload", res.Activity).Msg("dry run complete")
		return res, nil
	}

	uploaded := IDSet{}
	existing := IDSet{}
	newRecords := make([]NormalizedRecord, 0, len(candidates))
	for _, rec := range candidates {
		sr := r.gate.Submit(ctx, rec)
		switch sr.Outcome {
		case OutcomeUploaded:
			res.Uploaded++
			uploaded.Add(rec.ID)
			newRecords = append(newRecords, rec)
		case OutcomeAlreadyExists:
			res.AlreadyExists++
			existing.Add(rec.ID)
		case OutcomeRejected:
			res.Rejected++
			log.Error().Err(sr.Err).Str("doc_id", rec.ID).Msg("upload rejected")
		case OutcomeTransientError:
			res.Transient++
			log.Error().Err(sr.Err).Str("doc_id", rec.ID).Msg("upload failed, will retry next pass")
		}
	}
	res.Activity = res.Uploaded

	if len(newRecords) > 0 {
		p, werr := writeArtifact(r.cfg.OutputDir, uploadedArtifactPrefix, stamp, newRecords)
		if werr != nil {
			log.Error().Err(werr).Msg("write uploaded artifact")
		} else {
			res.ArtifactPath = p
		}
	}

	merged := cached.Union(uploaded, existing)
	if len(merged) > len(cached) {
		if serr := r.cache.Save(merged); serr != nil {
			return res, fmt.Errorf("save cache: %w", serr)
		}
	}
	log.Info().
		Int("uploaded", res.Uploaded).
		Int("already_exists", res.AlreadyExists).
		Int("rejected", res.Rejected).
		Int("transient", res.Transient).
		Int("cache_size", len(merged)).
		Msg("upload complete")
	return res, nil
}

func (r *Runner) fetchAll(ctx context.Context, log zerolog.Logger, res *PassResult) []RawEvent {
	var all []RawEvent
	for _, dev := range r.cfg.Devices {
		events, err := r.fetchDevice(ctx, dev)
		if err != nil {
			res.DevicesFailed++
			log.Error().Err(err).Str("device", dev.Name).Str("address", dev.Address).Msg("device fetch failed")
			continue
		}
		log.Info().Str("device", dev.Name).Int("records", len(events)).Msg("retrieved records")
		all = append(all, events...)
	}
	res.Fetched = len(all)
	return all
}

func (r *Runner) fetchDevice(ctx context.Context, dev Device) ([]RawEvent, error) {
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}
	events, err := r.devices.FetchEvents(ctx, dev)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDeviceUnreachable, dev.Name, err)
	}
	return events, nil
}

func (r *Runner) export(log zerolog.Logger, stamp string, raw []RawEvent, records []NormalizedRecord) error {
	var errs []error
	if r.cfg.ExportSimple {
		simple := make([]SimpleRecord, 0, len(raw))
		for _, ev := range raw {
			simple = append(simple, ToSimpleView(ev))
		}
		p, err := writeArtifact(r.cfg.OutputDir, simpleArtifactPrefix, stamp, simple)
		if err != nil {
			errs = append(errs, fmt.Errorf("export simple: %w", err))
		} else {
			log.Info().Str("path", p).Int("records", len(simple)).Msg("exported simplified logs")
		}
	}
	if r.cfg.ExportNormalized {
		p, err := writeArtifact(r.cfg.OutputDir, normalizedArtifactPrefix, stamp, records)
		if err != nil {
			errs = append(errs, fmt.Errorf("export normalized: %w", err))
		} else {
			log.Info().Str("path", p).Int("records", len(records)).Msg("exported normalized logs")
		}
	}
	return errors.Join(errs...)
}

func (r *Runner) sendHeartbeat(log zerolog.Logger, res PassResult, runErr error) {
	if r.heartbeat == nil {
		return
	}
	status := "ok"
	if runErr != nil {
		status = "error"
	}
	sd := buildStructuredData("iclock", map[string]string{
		"job":     r.cfg.JobLabel,
		"service": r.cfg.ServiceLabel,
		"status":  status,
		"pass_id": res.PassID,
	})
	if err := r.heartbeat.SendRFC5424Timeout(heartbeatAppName, sd, heartbeatMessage(res, runErr), 3*time.Second); err != nil {
		log.Warn().Err(err).Msg("heartbeat send failed")
	}
}

// RunLoop runs passes until ctx is cancelled, sleeping between them for the
// interval chosen by sched. Cancellation is observed between passes only.
func (r *Runner) RunLoop(ctx context.Context, sched *Scheduler) error {
	passCtx := context.WithoutCancel(ctx)
	for {
		if ctx.Err() != nil {
			return nil
		}
		res, err := r.RunOnce(passCtx)
		if err != nil {
			r.log.Error().Err(err).Str("pass_id", res.PassID).Msg("pass failed")
		}
		wait := sched.Next(res.Activity)
		r.log.Debug().Dur("sleep", wait).Int("activity", res.Activity).Msg("next pass scheduled")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			r.log.Info().Msg("sync loop stopped")
			return nil
		case <-timer.C:
		}
	}
}
