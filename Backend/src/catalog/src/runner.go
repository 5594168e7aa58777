package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
)

const (
	SectionCRUD      = "Basic CRUD"
	SectionAdvanced  = "Advanced queries"
	SectionAggregate = "Aggregation pipelines"
	SectionIndexing  = "Indexing"
)

// Step is one operation of the sequence. Run returns the typed result that
// the renderer prints.
type Step struct {
	Name    string
	Section string
	Label   string
	Run     func(ctx context.Context) (any, error)
}

type StepResult struct {
	Section  string
	Step     string
	Label    string
	Value    any
	Duration time.Duration
}

// Runner executes the fixed sequence against one collection, one step at a
// time. The first failing step ends the run.
type Runner struct {
	Repo    Repository
	Queries Queries
	Render  Renderer
	Service *Service
	Journal *Journal
	RunID   string
	// per-step deadline, 0 = none
	OpTimeout time.Duration
}

func (r *Runner) Steps() []Step {
	q := r.Queries
	steps := []Step{
		{
			Name: "books-by-genre", Section: SectionCRUD,
			Label: fmt.Sprintf("Books in genre %q", q.Genre),
			Run: func(ctx context.Context) (any, error) {
				return r.Repo.ByGenre(ctx, q.Genre)
			},
		},
		{
			Name: "books-published-after", Section: SectionCRUD,
			Label: fmt.Sprintf("Books published after %d", q.PublishedAfter),
			Run: func(ctx context.Context) (any, error) {
				return r.Repo.PublishedAfter(ctx, q.PublishedAfter)
			},
		},
		{
			Name: "books-by-author", Section: SectionCRUD,
			Label: fmt.Sprintf("Books by %s", q.Author),
			Run: func(ctx context.Context) (any, error) {
				return r.Repo.ByAuthor(ctx, q.Author)
			},
		},
		{
			Name: "update-price", Section: SectionCRUD,
			Label: fmt.Sprintf("Update price of %q", q.UpdateTitle),
			Run: func(ctx context.Context) (any, error) {
				st, err := r.Repo.UpdatePrice(ctx, q.UpdateTitle, q.NewPrice)
				if err != nil {
					return nil, err
				}
				r.Service.OnPriceUpdated(ctx, st)
				return st, nil
			},
		},
		{
			Name: "delete-book", Section: SectionCRUD,
			Label: fmt.Sprintf("Delete %q", q.DeleteTitle),
			Run: func(ctx context.Context) (any, error) {
				st, err := r.Repo.DeleteByTitle(ctx, q.DeleteTitle)
				if err != nil {
					return nil, err
				}
				r.Service.OnDeleted(ctx, st)
				return st, nil
			},
		},
		{
			Name: "in-stock-after", Section: SectionAdvanced,
			Label: fmt.Sprintf("In stock and published after %d", q.InStockAfter),
			Run: func(ctx context.Context) (any, error) {
				return r.Repo.InStockPublishedAfter(ctx, q.InStockAfter)
			},
		},
		{
			Name: "projection", Section: SectionAdvanced,
			Label: "Projection (title, author, price)",
			Run: func(ctx context.Context) (any, error) {
				return r.Repo.Summaries(ctx)
			},
		},
		{
			Name: "sort-price-asc", Section: SectionAdvanced,
			Label: "Books sorted by price, ascending",
			Run: func(ctx context.Context) (any, error) {
				return r.Repo.SortedByPrice(ctx, true)
			},
		},
		{
			Name: "sort-price-desc", Section: SectionAdvanced,
			Label: "Books sorted by price, descending",
			Run: func(ctx context.Context) (any, error) {
				return r.Repo.SortedByPrice(ctx, false)
			},
		},
	}

	for page := 1; page <= q.Pages; page++ {
		skip, limit := pageWindow(int64(page), q.PageSize)
		steps = append(steps, Step{
			Name: fmt.Sprintf("page-%d", page), Section: SectionAdvanced,
			Label: fmt.Sprintf("Page %d (%d books)", page, limit),
			Run: func(ctx context.Context) (any, error) {
				return r.Repo.Page(ctx, skip, limit)
			},
		})
	}

	titleIdx := bson.D{{Key: "title", Value: 1}}
	authorYearIdx := bson.D{{Key: "author", Value: 1}, {Key: "published_year", Value: -1}}

	return append(steps,
		Step{
			Name: "avg-price-by-genre", Section: SectionAggregate,
			Label: "Average price by genre",
			Run: func(ctx context.Context) (any, error) {
				return r.Repo.AvgPriceByGenre(ctx)
			},
		},
		Step{
			Name: "top-author", Section: SectionAggregate,
			Label: "Author with the most books",
			Run: func(ctx context.Context) (any, error) {
				return r.Repo.TopAuthors(ctx, 1)
			},
		},
		Step{
			Name: "books-by-decade", Section: SectionAggregate,
			Label: "Books per publication decade",
			Run: func(ctx context.Context) (any, error) {
				return r.Repo.CountByDecade(ctx)
			},
		},
		Step{
			Name: "index-title", Section: SectionIndexing,
			Label: "Index on title",
			Run: func(ctx context.Context) (any, error) {
				return r.Repo.CreateIndex(ctx, titleIdx)
			},
		},
		Step{
			Name: "index-author-year", Section: SectionIndexing,
			Label: "Compound index on author and published_year",
			Run: func(ctx context.Context) (any, error) {
				return r.Repo.CreateIndex(ctx, authorYearIdx)
			},
		},
		Step{
			Name: "explain-title", Section: SectionIndexing,
			Label: fmt.Sprintf("Explain find title %q", q.ExplainTitle),
			Run: func(ctx context.Context) (any, error) {
				return r.Repo.ExplainByTitle(ctx, q.ExplainTitle)
			},
		},
	)
}

// Run executes the steps in order and stops at the first failure, which is
// returned as ErrOperation.
func (r *Runner) Run(ctx context.Context) error {
	section := ""
	for _, s := range r.Steps() {
		if s.Section != section {
			section = s.Section
			r.Render.Section(section)
		}

		res, err := r.runStep(ctx, s)
		if err != nil {
			r.Render.Failure(s, err)
			return ErrOperation{Step: s.Name, Err: err}
		}
		r.Render.Result(res)
	}
	return nil
}

func (r *Runner) runStep(ctx context.Context, s Step) (StepResult, error) {
	if err := ctx.Err(); err != nil {
		return StepResult{}, err
	}
	if r.OpTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.OpTimeout)
		defer cancel()
	}

	start := time.Now()
	v, err := s.Run(ctx)
	took := time.Since(start)

	sr := StepRun{
		RunID:     r.RunID,
		Step:      s.Name,
		Section:   s.Section,
		Status:    "ok",
		Duration:  took,
		StartedAt: start,
	}
	if err != nil {
		sr.Status = "failed"
		sr.Error = err.Error()
	}
	// the step context may be expired; the journal write must still land
	if jerr := r.Journal.Record(context.Background(), sr); jerr != nil {
		log.Warn().Err(jerr).Str("step", s.Name).Msg("journal write failed")
	}

	if err != nil {
		log.Error().Err(err).Str("step", s.Name).Dur("took", took).Msg("step failed")
		return StepResult{}, err
	}
	log.Debug().Str("step", s.Name).Dur("took", took).Msg("step done")
	return StepResult{
		Section:  s.Section,
		Step:     s.Name,
		Label:    s.Label,
		Value:    v,
		Duration: took,
	}, nil
}
