// Package pipeline turns uploaded CVs into stored, searchable corpora.
package pipeline

import (
	"context"
	"fmt"
	"slices"
	"unicode/utf8"

	"cv-chat-go/internal/config"
	"cv-chat-go/internal/model"
	"cv-chat-go/internal/repository"
	"cv-chat-go/pkg/embedding"
	"cv-chat-go/pkg/log"
	"cv-chat-go/pkg/vectorstore"
)

// Stage names the ingestion step that failed.
type Stage string

const (
	StageExtract    Stage = "extract"
	StageCollection Stage = "create_collection"
	StageChunk      Stage = "chunk"
	StageEmbed      Stage = "embed"
	StageStore      Stage = "store"
)

// IngestError keeps the failing stage together with its cause.
type IngestError struct {
	Stage Stage
	Err   error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingestion failed at %s: %v", e.Stage, e.Err)
}

func (e *IngestError) Unwrap() error {
	return e.Err
}

// Extractor returns the plain text of a document.
type Extractor interface {
	Extract(ctx context.Context, fileName string, data []byte) (string, error)
}

// Document is an upload waiting to be ingested.
type Document struct {
	Name     string
	FileName string
	Data     []byte
	// ObjectKey is recorded on the corpus when the original was archived.
	ObjectKey string
}

// StateFunc is told about every state transition of one ingestion. err is
// only set together with model.StateFailed.
type StateFunc func(state model.IngestionState, corpusID uint, err error)

// Processor runs the ingestion state machine
// Received → TextExtracted → Chunked → Embedded → Stored → Complete.
type Processor struct {
	extractor Extractor
	embedder  embedding.Client
	index     vectorstore.Index
	corpora   repository.CorpusRepository

	chunker          *Chunker
	minChunkLength   int
	dimension        int
	batchSize        int
	collectionPrefix string
}

func NewProcessor(
	extractor Extractor,
	embedder embedding.Client,
	index vectorstore.Index,
	corpora repository.CorpusRepository,
	chunkingCfg config.ChunkingConfig,
	embeddingCfg config.EmbeddingConfig,
	collectionPrefix string,
) *Processor {
	minLength := chunkingCfg.MinChunkLength
	if minLength <= 0 {
		minLength = DefaultMinChunkLength
	}
	return &Processor{
		extractor:        extractor,
		embedder:         embedder,
		index:            index,
		corpora:          corpora,
		chunker:          NewChunker(chunkingCfg.ChunkSize, chunkingCfg.Overlap),
		minChunkLength:   minLength,
		dimension:        embeddingCfg.Dimensions,
		batchSize:        embeddingCfg.BatchSize,
		collectionPrefix: collectionPrefix,
	}
}

// Ingest stores doc as a new corpus. On failure the error is an *IngestError
// and no corpus row or collection is left behind, unless removing the
// collection itself fails, which is logged.
func (p *Processor) Ingest(ctx context.Context, doc Document, onState StateFunc) (*model.Corpus, error) {
	if onState == nil {
		onState = func(model.IngestionState, uint, error) {}
	}
	fail := func(stage Stage, err error) (*model.Corpus, error) {
		ierr := &IngestError{Stage: stage, Err: err}
		onState(model.StateFailed, 0, ierr)
		return nil, ierr
	}

	log.Infof("[Processor] start ingesting '%s' (%s, %d bytes)", doc.Name, doc.FileName, len(doc.Data))
	onState(model.StateReceived, 0, nil)

	text, err := p.extractor.Extract(ctx, doc.FileName, doc.Data)
	if err != nil {
		log.Errorf("[Processor] text extraction failed for '%s': %v", doc.FileName, err)
		return fail(StageExtract, err)
	}
	log.Infof("[Processor] extracted %d characters", utf8.RuneCountInString(text))
	onState(model.StateTextExtracted, 0, nil)

	collection := vectorstore.NewCollectionName(p.collectionPrefix)
	if err := p.index.CreateCollection(ctx, collection, p.dimension); err != nil {
		log.Errorf("[Processor] failed to create collection %s: %v", collection, err)
		return fail(StageCollection, err)
	}

	chunks := slices.Collect(FilterShort(p.chunker.Chunks(text), p.minChunkLength))
	log.Infof("[Processor] %d chunks survive the %d character minimum", len(chunks), p.minChunkLength)
	if len(chunks) == 0 {
		log.Warnf("[Processor] '%s' produced no usable chunks, the corpus will be empty", doc.FileName)
	}
	onState(model.StateChunked, 0, nil)

	vectors, err := embedding.EmbedAll(ctx, p.embedder, chunks, p.batchSize)
	if err != nil {
		p.dropCollection(collection)
		log.Errorf("[Processor] embedding failed: %v", err)
		return fail(StageEmbed, err)
	}
	onState(model.StateEmbedded, 0, nil)

	corpus, points := p.assemble(doc, collection, chunks, vectors)
	err = p.corpora.CreateWithSegments(ctx, corpus, func(ctx context.Context, _ *model.Corpus) error {
		if len(points) == 0 {
			return nil
		}
		return p.index.Upsert(ctx, collection, points)
	})
	if err != nil {
		p.dropCollection(collection)
		log.Errorf("[Processor] storing corpus '%s' failed: %v", doc.Name, err)
		return fail(StageStore, err)
	}
	onState(model.StateStored, corpus.ID, nil)

	log.Infof("[Processor] corpus %d stored with %d segments in %s", corpus.ID, len(corpus.Segments), collection)
	onState(model.StateComplete, corpus.ID, nil)
	return corpus, nil
}

// assemble pairs every chunk with its vector under one fresh point id. The
// length check is repeated so no segment below the minimum is ever stored.
func (p *Processor) assemble(doc Document, collection string, chunks []string, vectors [][]float32) (*model.Corpus, []vectorstore.Point) {
	corpus := &model.Corpus{
		Name:           doc.Name,
		CollectionName: collection,
		ObjectKey:      doc.ObjectKey,
		Segments:       make([]model.Segment, 0, len(chunks)),
	}
	points := make([]vectorstore.Point, 0, len(chunks))
	for i, chunk := range chunks {
		if !LongEnough(chunk, p.minChunkLength) {
			continue
		}
		index := len(corpus.Segments)
		pointID := vectorstore.NewPointID()
		corpus.Segments = append(corpus.Segments, model.Segment{ChunkIndex: index, ChunkText: chunk, PointID: pointID})
		points = append(points, vectorstore.Point{
			ID:      pointID,
			Vector:  vectors[i],
			Payload: vectorstore.Payload{Text: chunk, ChunkIndex: index},
		})
	}
	return corpus, points
}

// dropCollection removes a collection that no corpus row will reference.
func (p *Processor) dropCollection(collection string) {
	// the request context may already be cancelled
	if err := p.index.DeleteCollection(context.Background(), collection); err != nil {
		log.Errorw("[Processor] orphaned vector collection left behind", "collection", collection, "error", err)
	}
}
