// Package mint orchestrates the full minting workflow as an explicit
// state machine: export the artifact, upload content, upload metadata,
// mint, persist the record. One run may be in flight at a time; the
// caller observes stage transitions through an event channel.
package mint

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vanta-studio/vanta/internal/ipfs"
	"github.com/vanta-studio/vanta/internal/log"
	"github.com/vanta-studio/vanta/internal/nft"
	"github.com/vanta-studio/vanta/internal/records"
)

// Stage is the pipeline's position in the mint workflow.
type Stage int

const (
	Idle Stage = iota
	Exporting
	UploadingContent
	UploadingMetadata
	Minting
	Succeeded
	Failed
)

func (s Stage) String() string {
	switch s {
	case Idle:
		return "idle"
	case Exporting:
		return "exporting"
	case UploadingContent:
		return "uploading content"
	case UploadingMetadata:
		return "uploading metadata"
	case Minting:
		return "minting"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Terminal reports whether the stage ends a run. A new run may only
// start after the caller acknowledges a terminal stage back to Idle.
func (s Stage) Terminal() bool {
	return s == Succeeded || s == Failed
}

// FailureKind identifies which stage a run failed in.
type FailureKind int

const (
	FailExport FailureKind = iota
	FailUpload
	FailMetadata
	FailMint
)

func (k FailureKind) String() string {
	switch k {
	case FailExport:
		return "export"
	case FailUpload:
		return "upload"
	case FailMetadata:
		return "metadata upload"
	case FailMint:
		return "mint"
	default:
		return fmt.Sprintf("failure(%d)", int(k))
	}
}

// Failure carries the failing stage and its underlying cause.
type Failure struct {
	Kind FailureKind
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// ErrBusy is reported when a run is started while another is in
// flight or its outcome has not been acknowledged.
var ErrBusy = errors.New("mint already in progress")

// Renderer produces the artifact bytes for one run. Rendering happens
// on the caller's thread before the run goes asynchronous; drawing
// surfaces are rarely safe to touch from a background goroutine.
type Renderer interface {
	Export() ([]byte, error)
}

// Uploader stores content and metadata documents, returning URIs.
// Satisfied by *ipfs.Client.
type Uploader interface {
	Upload(ctx context.Context, data []byte) (string, error)
	UploadJSON(ctx context.Context, doc any) (string, error)
}

// Minter mints a token for a metadata URI. Satisfied by *nft.Gateway.
type Minter interface {
	Mint(ctx context.Context, metadataURI string, recipient *common.Address) (*nft.MintResult, error)
}

// RecordSink persists the outcome of a successful mint. Satisfied by
// *records.Store.
type RecordSink interface {
	Append(rec records.Record) error
}

// NetworkSource names the network a record was minted on. Satisfied by
// *wallet.State.
type NetworkSource interface {
	CurrentNetwork() string
}

// Request describes one mint run.
type Request struct {
	Name        string
	Description string
	ImageFile   string
	Recipient   *common.Address // nil mints to the wallet's own address
	Attributes  []ipfs.Attribute
}

// Event is one observed stage transition. Record is set only on
// Succeeded, Failure only on Failed.
type Event struct {
	Job     uuid.UUID
	Stage   Stage
	Record  *records.Record
	Failure *Failure
}

// eventBuffer bounds the event channel. The consumer is the
// presentation loop; a full buffer loses progress events rather than
// blocking the worker, but terminal outcomes are always delivered.
const eventBuffer = 16

// Pipeline runs mints one at a time and reports transitions on a
// single-consumer channel.
type Pipeline struct {
	uploader Uploader
	minter   Minter
	sink     RecordSink
	networks NetworkSource
	log      zerolog.Logger

	events chan Event

	mu    sync.Mutex
	stage Stage
	job   uuid.UUID
}

// NewPipeline wires the pipeline to its collaborators.
func NewPipeline(uploader Uploader, minter Minter, sink RecordSink, networks NetworkSource) *Pipeline {
	return &Pipeline{
		uploader: uploader,
		minter:   minter,
		sink:     sink,
		networks: networks,
		log:      log.Mint,
		events:   make(chan Event, eventBuffer),
		stage:    Idle,
	}
}

// Events is the transition stream. Single consumer; the caller drains
// it from its presentation loop.
func (p *Pipeline) Events() <-chan Event {
	return p.events
}

// Stage returns the pipeline's current stage.
func (p *Pipeline) Stage() Stage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stage
}

// Start begins one run. Export happens synchronously on the caller's
// thread; the remaining stages run on a background goroutine whose
// progress is delivered through Events. Returns ErrBusy while a run is
// in flight or unacknowledged.
func (p *Pipeline) Start(ctx context.Context, req Request, renderer Renderer) (uuid.UUID, error) {
	p.mu.Lock()
	if p.stage != Idle {
		p.mu.Unlock()
		return uuid.Nil, ErrBusy
	}
	job := uuid.New()
	p.job = job
	p.transition(Exporting)
	p.mu.Unlock()
	p.log.Info().Str("job", job.String()).Str("name", req.Name).Msg("mint started")

	artifact, err := renderer.Export()
	if err != nil {
		p.fail(&Failure{Kind: FailExport, Err: err})
		return job, nil
	}

	go p.run(ctx, req, artifact)
	return job, nil
}

// run executes the asynchronous stages.
func (p *Pipeline) run(ctx context.Context, req Request, artifact []byte) {
	p.advance(UploadingContent)
	imageURI, err := p.uploader.Upload(ctx, artifact)
	if err != nil {
		p.fail(&Failure{Kind: FailUpload, Err: err})
		return
	}

	p.advance(UploadingMetadata)
	doc := ipfs.NewMetadata(req.Name, req.Description, imageURI, req.Attributes)
	metadataURI, err := p.uploader.UploadJSON(ctx, doc)
	if err != nil {
		p.fail(&Failure{Kind: FailMetadata, Err: err})
		return
	}

	p.advance(Minting)
	result, err := p.minter.Mint(ctx, metadataURI, req.Recipient)
	if err != nil {
		p.fail(&Failure{Kind: FailMint, Err: err})
		return
	}

	rec := records.Record{
		Name:        req.Name,
		Description: req.Description,
		TokenID:     result.TokenID,
		TxHash:      result.TxHash,
		Contract:    result.Contract,
		MetadataURI: metadataURI,
		ImageFile:   req.ImageFile,
		Network:     p.networks.CurrentNetwork(),
		CreatedAt:   time.Now().UTC(),
	}
	// The mint is already confirmed on chain; a record write failure
	// must not turn the run into a failure.
	if err := p.sink.Append(rec); err != nil {
		p.log.Error().Err(err).Str("token_id", rec.TokenID).Msg("record write failed after confirmed mint")
	}

	p.mu.Lock()
	p.log.Info().Str("job", p.job.String()).Str("token_id", rec.TokenID).Msg("mint succeeded")
	p.stage = Succeeded
	ev := Event{Job: p.job, Stage: Succeeded, Record: &rec}
	p.mu.Unlock()
	p.deliver(ev)
}

// Acknowledge returns the pipeline to Idle from a terminal stage so a
// new run may start. Reports false when there is nothing to
// acknowledge.
func (p *Pipeline) Acknowledge() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.stage.Terminal() {
		return false
	}
	p.stage = Idle
	p.job = uuid.Nil
	return true
}

func (p *Pipeline) advance(stage Stage) {
	p.mu.Lock()
	p.transition(stage)
	p.mu.Unlock()
}

func (p *Pipeline) fail(f *Failure) {
	p.log.Warn().Err(f.Err).Str("stage", f.Kind.String()).Msg("mint failed")
	p.mu.Lock()
	p.stage = Failed
	ev := Event{Job: p.job, Stage: Failed, Failure: f}
	p.mu.Unlock()
	p.deliver(ev)
}

// transition records a progress stage and emits it; the caller holds
// p.mu. A lagging consumer loses progress events rather than stalling
// the run.
func (p *Pipeline) transition(stage Stage) {
	p.stage = stage
	select {
	case p.events <- Event{Job: p.job, Stage: stage}:
	default:
		p.log.Warn().Str("stage", stage.String()).Msg("progress event dropped, consumer lagging")
	}
}

// deliver blocks until the consumer takes the event. Terminal outcomes
// are part of the channel contract and are never dropped; the stage is
// already recorded under p.mu before the send, so Stage and Acknowledge
// stay responsive while the consumer catches up.
func (p *Pipeline) deliver(ev Event) {
	p.events <- ev
}
