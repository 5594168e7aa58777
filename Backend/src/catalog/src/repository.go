package main

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Repository is every database call the query sequence makes.
type Repository interface {
	ByGenre(ctx context.Context, genre string) ([]Book, error)
	PublishedAfter(ctx context.Context, year int) ([]Book, error)
	ByAuthor(ctx context.Context, author string) ([]Book, error)
	InStockPublishedAfter(ctx context.Context, year int) ([]Book, error)
	Summaries(ctx context.Context) ([]BookSummary, error)
	SortedByPrice(ctx context.Context, ascending bool) ([]Book, error)
	Page(ctx context.Context, skip, limit int64) ([]Book, error)

	UpdatePrice(ctx context.Context, title string, price float64) (UpdateStatus, error)
	DeleteByTitle(ctx context.Context, title string) (DeleteStatus, error)

	AvgPriceByGenre(ctx context.Context) ([]GenrePrice, error)
	TopAuthors(ctx context.Context, n int64) ([]AuthorCount, error)
	CountByDecade(ctx context.Context) ([]DecadeCount, error)

	CreateIndex(ctx context.Context, keys bson.D) (IndexStatus, error)
	ExplainByTitle(ctx context.Context, title string) (ExplainReport, error)

	Seed(ctx context.Context, books []Book) (int64, error)
}

type mongoRepo struct{ coll *mongo.Collection }

func NewMongoRepo(coll *mongo.Collection) Repository { return &mongoRepo{coll: coll} }

func (r *mongoRepo) find(ctx context.Context, filter bson.D, opts ...*options.FindOptions) ([]Book, error) {
	cur, err := r.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	return decodeAll[Book](ctx, cur)
}

func (r *mongoRepo) ByGenre(ctx context.Context, genre string) ([]Book, error) {
	return r.find(ctx, bson.D{{Key: "genre", Value: genre}})
}

func (r *mongoRepo) PublishedAfter(ctx context.Context, year int) ([]Book, error) {
	return r.find(ctx, bson.D{{Key: "published_year", Value: bson.D{{Key: "$gt", Value: year}}}})
}

func (r *mongoRepo) ByAuthor(ctx context.Context, author string) ([]Book, error) {
	return r.find(ctx, bson.D{{Key: "author", Value: author}})
}

func (r *mongoRepo) InStockPublishedAfter(ctx context.Context, year int) ([]Book, error) {
	return r.find(ctx, bson.D{
		{Key: "in_stock", Value: true},
		{Key: "published_year", Value: bson.D{{Key: "$gt", Value: year}}},
	})
}

func (r *mongoRepo) Summaries(ctx context.Context) ([]BookSummary, error) {
	projection := bson.D{
		{Key: "_id", Value: 0},
		{Key: "title", Value: 1},
		{Key: "author", Value: 1},
		{Key: "price", Value: 1},
	}
	cur, err := r.coll.Find(ctx, bson.D{}, options.Find().SetProjection(projection))
	if err != nil {
		return nil, err
	}
	return decodeAll[BookSummary](ctx, cur)
}

func (r *mongoRepo) SortedByPrice(ctx context.Context, ascending bool) ([]Book, error) {
	dir := -1
	if ascending {
		dir = 1
	}
	return r.find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "price", Value: dir}}))
}

// Page reads a skip/limit window in _id order so consecutive windows neither
// overlap nor leave gaps.
func (r *mongoRepo) Page(ctx context.Context, skip, limit int64) ([]Book, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetSkip(skip).
		SetLimit(limit)
	return r.find(ctx, bson.D{}, opts)
}

func (r *mongoRepo) UpdatePrice(ctx context.Context, title string, price float64) (UpdateStatus, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.D{{Key: "title", Value: title}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "price", Value: price}}}},
	)
	if err != nil {
		return UpdateStatus{}, err
	}
	return UpdateStatus{Title: title, Price: price, Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}

func (r *mongoRepo) DeleteByTitle(ctx context.Context, title string) (DeleteStatus, error) {
	res, err := r.coll.DeleteOne(ctx, bson.D{{Key: "title", Value: title}})
	if err != nil {
		return DeleteStatus{}, err
	}
	return DeleteStatus{Title: title, Deleted: res.DeletedCount}, nil
}

func (r *mongoRepo) AvgPriceByGenre(ctx context.Context) ([]GenrePrice, error) {
	cur, err := r.coll.Aggregate(ctx, avgPriceByGenrePipeline())
	if err != nil {
		return nil, err
	}
	return decodeAll[GenrePrice](ctx, cur)
}

func (r *mongoRepo) TopAuthors(ctx context.Context, n int64) ([]AuthorCount, error) {
	cur, err := r.coll.Aggregate(ctx, topAuthorsPipeline(n))
	if err != nil {
		return nil, err
	}
	return decodeAll[AuthorCount](ctx, cur)
}

func (r *mongoRepo) CountByDecade(ctx context.Context) ([]DecadeCount, error) {
	cur, err := r.coll.Aggregate(ctx, decadePipeline())
	if err != nil {
		return nil, err
	}
	return decodeAll[DecadeCount](ctx, cur)
}

// CreateIndex declares an index. The server treats an identical existing
// index as already satisfied.
func (r *mongoRepo) CreateIndex(ctx context.Context, keys bson.D) (IndexStatus, error) {
	name, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: keys})
	if err != nil {
		return IndexStatus{}, err
	}
	return IndexStatus{Name: name, Keys: keys}, nil
}

func (r *mongoRepo) ExplainByTitle(ctx context.Context, title string) (ExplainReport, error) {
	cmd := bson.D{
		{Key: "explain", Value: bson.D{
			{Key: "find", Value: r.coll.Name()},
			{Key: "filter", Value: bson.D{{Key: "title", Value: title}}},
		}},
		{Key: "verbosity", Value: "executionStats"},
	}
	raw, err := r.coll.Database().RunCommand(ctx, cmd).Raw()
	if err != nil {
		return ExplainReport{}, err
	}
	return parseExplain(raw)
}

// Seed upserts books keyed by title. Existing documents are left untouched.
func (r *mongoRepo) Seed(ctx context.Context, books []Book) (int64, error) {
	if len(books) == 0 {
		return 0, nil
	}
	models := make([]mongo.WriteModel, 0, len(books))
	for _, b := range books {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.D{{Key: "title", Value: b.Title}}).
			SetUpdate(bson.D{{Key: "$setOnInsert", Value: b}}).
			SetUpsert(true))
	}
	res, err := r.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true))
	if err != nil {
		return 0, err
	}
	return res.UpsertedCount, nil
}

func decodeAll[T any](ctx context.Context, cur *mongo.Cursor) ([]T, error) {
	defer cur.Close(ctx)
	out := []T{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

func parseExplain(raw bson.Raw) (ExplainReport, error) {
	var rep ExplainReport
	if err := bson.Unmarshal(raw, &rep.Raw); err != nil {
		return rep, fmt.Errorf("decode explain: %w", err)
	}

	if stats, err := raw.LookupErr("executionStats"); err == nil {
		if doc, ok := stats.DocumentOK(); ok {
			rep.ReturnedDocs = rawInt(doc.Lookup("nReturned"))
			rep.KeysExamined = rawInt(doc.Lookup("totalKeysExamined"))
			rep.DocsExamined = rawInt(doc.Lookup("totalDocsExamined"))
			rep.ExecutionMillis = rawInt(doc.Lookup("executionTimeMillis"))
		}
	}

	plan, err := raw.LookupErr("queryPlanner", "winningPlan")
	if err != nil {
		return rep, nil
	}
	doc, ok := plan.DocumentOK()
	if !ok {
		return rep, nil
	}
	// Slot-based engine plans nest the classic tree under queryPlan.
	if qp, err := doc.LookupErr("queryPlan"); err == nil {
		if d, ok := qp.DocumentOK(); ok {
			doc = d
		}
	}

	var stages []string
	for doc != nil {
		if s, ok := doc.Lookup("stage").StringValueOK(); ok {
			stages = append(stages, s)
		}
		if name, ok := doc.Lookup("indexName").StringValueOK(); ok && rep.IndexName == "" {
			rep.IndexName = name
		}
		next, err := doc.LookupErr("inputStage")
		if err != nil {
			break
		}
		d, ok := next.DocumentOK()
		if !ok {
			break
		}
		doc = d
	}
	rep.Stage = strings.Join(stages, " > ")
	return rep, nil
}

func rawInt(v bson.RawValue) int64 {
	switch v.Type {
	case bson.TypeInt32:
		return int64(v.Int32())
	case bson.TypeInt64:
		return v.Int64()
	case bson.TypeDouble:
		return int64(v.Double())
	}
	return 0
}
