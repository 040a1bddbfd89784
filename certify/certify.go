// Package certify drives the end-to-end pipeline: read sources, fingerprint,
// build the manifest, issue a receipt, and anchor it. Each stage either
// completes or fails with a StageError naming where the pipeline stopped;
// stages are never skipped.
package certify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"daugherty.co/certify/fingerprint"
	"daugherty.co/certify/ledger"
	"daugherty.co/certify/manifest"
	"daugherty.co/certify/receipt"
	"daugherty.co/certify/verify"
)

// EngineName identifies the certifying engine in receipts.
const EngineName = "daugherty-engine"

// Stage is a checkpoint in the certification pipeline.
type Stage string

const (
	StageInit          Stage = "INIT"
	StageFingerprinted Stage = "FINGERPRINTED"
	StageManifested    Stage = "MANIFESTED"
	StageCertified     Stage = "CERTIFIED"
	StageAnchored      Stage = "ANCHORED"
	StageVerifiable    Stage = "VERIFIABLE"
)

// StageError records the stage a pipeline run failed in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("certify: stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageFailed(s Stage, err error) error { return &StageError{Stage: s, Err: err} }

// Pipeline holds the fixed inputs of a certification run.
type Pipeline struct {
	Config *manifest.Config
	Root   string

	// Workers bounds parallel fingerprinting; zero means GOMAXPROCS.
	Workers int

	// Clock supplies receipt timestamps. Nil means time.Now.
	Clock func() time.Time
}

func (p *Pipeline) workers() int {
	if p.Workers > 0 {
		return p.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func (p *Pipeline) now() time.Time {
	if p.Clock != nil {
		return p.Clock()
	}
	return time.Now()
}

// loadFiles reads every configured file under Root. Files that do not exist
// are omitted so that manifest construction can classify them as missing.
func (p *Pipeline) loadFiles() ([]fingerprint.SourceFile, error) {
	specs, err := p.Config.Files()
	if err != nil {
		return nil, err
	}
	files := make([]fingerprint.SourceFile, 0, len(specs))
	for _, spec := range specs {
		content, err := os.ReadFile(filepath.Join(p.Root, filepath.FromSlash(spec.Path)))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("read %s: %w", spec.Path, err)
		}
		files = append(files, fingerprint.SourceFile{
			Path:     spec.Path,
			Content:  content,
			Kind:     spec.Kind,
			Layers:   spec.Layers,
			Critical: spec.Critical,
		})
	}
	return files, nil
}

// Compute fingerprints the configured sources and builds the manifest.
func (p *Pipeline) Compute(ctx context.Context) (*manifest.Manifest, error) {
	files, err := p.loadFiles()
	if err != nil {
		return nil, stageFailed(StageInit, err)
	}
	fps, err := fingerprint.All(ctx, files, p.workers())
	if err != nil {
		return nil, stageFailed(StageFingerprinted, err)
	}
	m, err := manifest.Build(p.Config, fps)
	if err != nil {
		return nil, stageFailed(StageManifested, err)
	}
	return m, nil
}

// WriteBaseline computes the current manifest and persists it as the trusted
// baseline at path.
func (p *Pipeline) WriteBaseline(ctx context.Context, path string) (*manifest.Manifest, error) {
	m, err := p.Compute(ctx)
	if err != nil {
		return nil, err
	}
	if err := manifest.Save(path, m); err != nil {
		return nil, stageFailed(StageManifested, err)
	}
	return m, nil
}

// Verify recomputes the current state and compares it to the baseline at
// path.
func (p *Pipeline) Verify(ctx context.Context, path string, mode verify.Mode) (verify.Result, error) {
	baseline, err := manifest.Load(path)
	if err != nil {
		return verify.Result{}, stageFailed(StageInit, err)
	}
	files, err := p.loadFiles()
	if err != nil {
		return verify.Result{}, stageFailed(StageInit, err)
	}
	fps, err := fingerprint.All(ctx, files, p.workers())
	if err != nil {
		return verify.Result{}, stageFailed(StageFingerprinted, err)
	}
	return verify.Local(baseline, p.Config, fps, mode)
}

// StatusReport is a quick fingerprint comparison without per-layer detail.
type StatusReport struct {
	Current  manifest.MasterFingerprint
	Baseline manifest.MasterFingerprint
	Match    bool
}

// Status compares the current master fingerprint against the baseline's.
func (p *Pipeline) Status(ctx context.Context, path string) (StatusReport, error) {
	baseline, err := manifest.Load(path)
	if err != nil {
		return StatusReport{}, stageFailed(StageInit, err)
	}
	m, err := p.Compute(ctx)
	if err != nil {
		return StatusReport{}, err
	}
	rep := StatusReport{
		Current:  manifest.Master(m),
		Baseline: manifest.Master(baseline),
	}
	rep.Match = rep.Current.Equal(rep.Baseline)
	return rep, nil
}

// CertifyOptions carries the per-run inputs of receipt issuance.
type CertifyOptions struct {
	EngineVersion string
	Validation    map[string]bool
	Receipt       receipt.RenderOptions

	// Ledger, when non-nil, anchors the receipt after issuance. Anchoring
	// failure does not fail the run: the receipt is already valid, and the
	// anchor can be retried later.
	Ledger ledger.Client
}

// Outcome reports how far a certification run progressed.
type Outcome struct {
	Stage    Stage
	Manifest *manifest.Manifest
	Receipt  *receipt.Receipt
	Document []byte
	TxID     string
	Warnings []string
}

// Certify runs the full pipeline: fingerprint, manifest, receipt, and, when a
// ledger client is configured, anchor.
func (p *Pipeline) Certify(ctx context.Context, opts CertifyOptions) (*Outcome, error) {
	m, err := p.Compute(ctx)
	if err != nil {
		return nil, err
	}
	out := &Outcome{Stage: StageManifested, Manifest: m}

	rcpt, doc, err := receipt.Generate(EngineName, opts.EngineVersion, opts.Validation, manifest.Master(m), p.now(), opts.Receipt)
	if err != nil {
		return nil, stageFailed(StageCertified, err)
	}
	out.Stage = StageCertified
	out.Receipt = rcpt
	out.Document = doc

	if fb := m.FallbackPaths(); len(fb) > 0 {
		out.Warnings = append(out.Warnings,
			fmt.Sprintf("%d file(s) fingerprinted from raw bytes", len(fb)))
	}

	if opts.Ledger == nil {
		return out, nil
	}

	md := ledger.Metadata{
		EngineVersion:    opts.EngineVersion,
		ValidationPassed: rcpt.Passed(),
		Fingerprint:      rcpt.Fingerprint.Aggregate,
	}
	txID, err := opts.Ledger.Anchor(ctx, rcpt.ContentHash, md)
	if err != nil {
		// Deferred anchor: the receipt stands on its own; record the
		// failure and leave the pipeline at CERTIFIED.
		var stageErr *StageError
		if errors.As(err, &stageErr) {
			err = stageErr.Err
		}
		out.Warnings = append(out.Warnings,
			fmt.Sprintf("anchoring deferred: %v", err))
		return out, nil
	}
	out.Stage = StageAnchored
	out.TxID = txID

	return out, nil
}

// Anchor submits an already-issued receipt document to the ledger. It exists
// so a deferred anchor can be completed without re-certifying.
func Anchor(ctx context.Context, client ledger.Client, doc []byte) (string, error) {
	rcpt, err := receipt.Parse(doc)
	if err != nil {
		return "", stageFailed(StageCertified, err)
	}
	if err := receipt.VerifyContentHash(doc); err != nil {
		return "", stageFailed(StageCertified, err)
	}
	md := ledger.Metadata{
		EngineVersion:    rcpt.EngineVersion,
		ValidationPassed: rcpt.Passed(),
		Fingerprint:      rcpt.Fingerprint.Aggregate,
	}
	txID, err := client.Anchor(ctx, rcpt.ContentHash, md)
	if err != nil {
		return "", stageFailed(StageAnchored, err)
	}
	return txID, nil
}

// VerifyAnchor checks a receipt document against its anchored record and
// reports whether the pipeline has reached the VERIFIABLE stage.
func VerifyAnchor(ctx context.Context, client ledger.Client, txID string, doc []byte) (verify.LedgerResult, Stage, error) {
	res, err := verify.Ledger(ctx, client, txID, doc)
	if err != nil {
		return verify.LedgerResult{}, StageAnchored, err
	}
	stage := StageAnchored
	if res.Status == verify.StatusAuthentic {
		stage = StageVerifiable
	}
	return res, stage, nil
}
