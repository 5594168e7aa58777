package main

import (
	"context"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
)

// fakeRepo answers every call with canned values and records the call order.
// failOn makes the named method return err.
type fakeRepo struct {
	calls  []string
	failOn string
	err    error

	updated UpdateStatus
	deleted DeleteStatus
	books   []Book
}

func (f *fakeRepo) hit(name string) error {
	f.calls = append(f.calls, name)
	if name == f.failOn {
		return f.err
	}
	return nil
}

func (f *fakeRepo) ByGenre(ctx context.Context, genre string) ([]Book, error) {
	return f.books, f.hit("ByGenre")
}

func (f *fakeRepo) PublishedAfter(ctx context.Context, year int) ([]Book, error) {
	return f.books, f.hit("PublishedAfter")
}

func (f *fakeRepo) ByAuthor(ctx context.Context, author string) ([]Book, error) {
	return f.books, f.hit("ByAuthor")
}

func (f *fakeRepo) InStockPublishedAfter(ctx context.Context, year int) ([]Book, error) {
	return f.books, f.hit("InStockPublishedAfter")
}

func (f *fakeRepo) Summaries(ctx context.Context) ([]BookSummary, error) {
	return []BookSummary{}, f.hit("Summaries")
}

func (f *fakeRepo) SortedByPrice(ctx context.Context, ascending bool) ([]Book, error) {
	return f.books, f.hit(fmt.Sprintf("SortedByPrice(%v)", ascending))
}

func (f *fakeRepo) Page(ctx context.Context, skip, limit int64) ([]Book, error) {
	return f.books, f.hit(fmt.Sprintf("Page(%d,%d)", skip, limit))
}

func (f *fakeRepo) UpdatePrice(ctx context.Context, title string, price float64) (UpdateStatus, error) {
	st := f.updated
	st.Title, st.Price = title, price
	return st, f.hit("UpdatePrice")
}

func (f *fakeRepo) DeleteByTitle(ctx context.Context, title string) (DeleteStatus, error) {
	st := f.deleted
	st.Title = title
	return st, f.hit("DeleteByTitle")
}

func (f *fakeRepo) AvgPriceByGenre(ctx context.Context) ([]GenrePrice, error) {
	return []GenrePrice{}, f.hit("AvgPriceByGenre")
}

func (f *fakeRepo) TopAuthors(ctx context.Context, n int64) ([]AuthorCount, error) {
	return []AuthorCount{}, f.hit(fmt.Sprintf("TopAuthors(%d)", n))
}

func (f *fakeRepo) CountByDecade(ctx context.Context) ([]DecadeCount, error) {
	return []DecadeCount{}, f.hit("CountByDecade")
}

func (f *fakeRepo) CreateIndex(ctx context.Context, keys bson.D) (IndexStatus, error) {
	name := ""
	for i, k := range keys {
		if i > 0 {
			name += "_"
		}
		name += fmt.Sprintf("%s_%v", k.Key, k.Value)
	}
	return IndexStatus{Name: name, Keys: keys}, f.hit("CreateIndex(" + name + ")")
}

func (f *fakeRepo) ExplainByTitle(ctx context.Context, title string) (ExplainReport, error) {
	return ExplainReport{Stage: "COLLSCAN"}, f.hit("ExplainByTitle")
}

func (f *fakeRepo) Seed(ctx context.Context, books []Book) (int64, error) {
	return int64(len(books)), f.hit("Seed")
}

// recordingRenderer keeps everything the runner asked to print.
type recordingRenderer struct {
	messages []string
	sections []string
	results  []StepResult
	failures []string
}

func (r *recordingRenderer) Message(msg string)   { r.messages = append(r.messages, msg) }
func (r *recordingRenderer) Section(title string) { r.sections = append(r.sections, title) }
func (r *recordingRenderer) Result(res StepResult) {
	r.results = append(r.results, res)
}
func (r *recordingRenderer) Failure(step Step, err error) {
	r.failures = append(r.failures, step.Name)
}

type published struct {
	key  string
	body []byte
}

type fakeEvents struct {
	mu   sync.Mutex
	sent []published
	err  error
}

func (e *fakeEvents) Publish(ctx context.Context, key string, body []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.sent = append(e.sent, published{key: key, body: body})
	return nil
}
