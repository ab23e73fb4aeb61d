package service

import (
	"context"
	"fmt"
	"time"

	"cv-chat-go/internal/repository"
	"cv-chat-go/pkg/log"
	"cv-chat-go/pkg/vectorstore"

	"github.com/robfig/cron/v3"
)

// Divergence describes a corpus whose segments and vector points disagree.
type Divergence struct {
	CorpusID   uint   `json:"cv_id"`
	Collection string `json:"collection"`
	Problem    string `json:"problem"`
}

// AuditService compares every corpus with its vector collection and logs
// what it finds. It never repairs anything.
type AuditService struct {
	corpora repository.CorpusRepository
	index   vectorstore.Index
	cron    *cron.Cron
}

func NewAuditService(corpora repository.CorpusRepository, index vectorstore.Index) *AuditService {
	return &AuditService{corpora: corpora, index: index, cron: cron.New()}
}

// Run audits all corpora once.
func (a *AuditService) Run(ctx context.Context) ([]Divergence, error) {
	corpora, err := a.corpora.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cvs: %w", err)
	}

	var found []Divergence
	for _, c := range corpora {
		report := func(problem string) {
			found = append(found, Divergence{CorpusID: c.ID, Collection: c.CollectionName, Problem: problem})
			log.Warnw("[Audit] divergence", "cv_id", c.ID, "collection", c.CollectionName, "problem", problem)
		}

		exists, err := a.index.CollectionExists(ctx, c.CollectionName)
		if err != nil {
			return found, fmt.Errorf("check collection %s: %w", c.CollectionName, err)
		}
		if !exists {
			report("collection missing")
			continue
		}

		points, err := a.index.Count(ctx, c.CollectionName)
		if err != nil {
			return found, fmt.Errorf("count points in %s: %w", c.CollectionName, err)
		}
		segments, err := a.corpora.CountSegments(ctx, c.ID)
		if err != nil {
			return found, fmt.Errorf("count segments of cv %d: %w", c.ID, err)
		}
		if int64(points) != segments {
			report(fmt.Sprintf("%d segments but %d points", segments, points))
		}
	}
	log.Infof("[Audit] checked %d cvs, %d divergences", len(corpora), len(found))
	return found, nil
}

// Start runs the audit on the given cron schedule until Stop.
func (a *AuditService) Start(schedule string) error {
	_, err := a.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if _, err := a.Run(ctx); err != nil {
			log.Error("[Audit] run failed", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid audit schedule %q: %w", schedule, err)
	}
	a.cron.Start()
	log.Infof("[Audit] scheduled with '%s'", schedule)
	return nil
}

func (a *AuditService) Stop() {
	<-a.cron.Stop().Done()
}
