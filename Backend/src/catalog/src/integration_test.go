//go:build integration

package main

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// startMongo runs a throwaway MongoDB and returns a connected client.
func startMongo(t *testing.T) *mongo.Client {
	t.Helper()
	ctx := context.Background()

	container, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = container.Terminate(ctx)
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := Connect(ctx, Config{MongoURI: uri, ConnectTimeout: 30 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })
	return client
}

func freshRepo(t *testing.T, client *mongo.Client, name string, books []Book) (Repository, *mongo.Collection) {
	t.Helper()
	coll := client.Database("catalog_it").Collection(name)
	require.NoError(t, coll.Drop(context.Background()))
	repo := NewMongoRepo(coll)
	n, err := repo.Seed(context.Background(), books)
	require.NoError(t, err)
	require.EqualValues(t, len(books), n)
	return repo, coll
}

func titles(books []Book) []string {
	out := make([]string, 0, len(books))
	for _, b := range books {
		out = append(out, b.Title)
	}
	return out
}

func TestIntegration_Properties(t *testing.T) {
	client := startMongo(t)
	ctx := context.Background()

	t.Run("filters", func(t *testing.T) {
		repo, _ := freshRepo(t, client, "filters", []Book{
			{Title: "A", Genre: "Fiction", PublishedYear: 1950, Price: 1},
			{Title: "B", Genre: "Fiction", PublishedYear: 1951, Price: 2},
			{Title: "C", Genre: "Poetry", PublishedYear: 2015, Price: 3, InStock: true},
			{Title: "D", Genre: "Fiction", PublishedYear: 2012, Price: 4, InStock: false},
		})

		fiction, err := repo.ByGenre(ctx, "Fiction")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"A", "B", "D"}, titles(fiction))

		after, err := repo.PublishedAfter(ctx, 1950)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"B", "C", "D"}, titles(after), "1950 itself is excluded")

		recent, err := repo.InStockPublishedAfter(ctx, 2010)
		require.NoError(t, err)
		assert.Equal(t, []string{"C"}, titles(recent))
	})

	t.Run("update then delete", func(t *testing.T) {
		repo, _ := freshRepo(t, client, "mutations", fixtureBooks)

		st, err := repo.UpdatePrice(ctx, "1984", 12.50)
		require.NoError(t, err)
		assert.EqualValues(t, 1, st.Matched)

		orwell, err := repo.ByAuthor(ctx, "George Orwell")
		require.NoError(t, err)
		for _, b := range orwell {
			if b.Title == "1984" {
				assert.EqualValues(t, 12.50, b.Price)
			}
		}

		del, err := repo.DeleteByTitle(ctx, "Moby Dick")
		require.NoError(t, err)
		assert.EqualValues(t, 1, del.Deleted)

		all, err := repo.SortedByPrice(ctx, true)
		require.NoError(t, err)
		assert.NotContains(t, titles(all), "Moby Dick")

		again, err := repo.DeleteByTitle(ctx, "Moby Dick")
		require.NoError(t, err)
		assert.Zero(t, again.Deleted)
	})

	t.Run("sorting", func(t *testing.T) {
		repo, _ := freshRepo(t, client, "sorting", fixtureBooks)

		asc, err := repo.SortedByPrice(ctx, true)
		require.NoError(t, err)
		for i := 1; i < len(asc); i++ {
			assert.LessOrEqual(t, asc[i-1].Price, asc[i].Price)
		}

		desc, err := repo.SortedByPrice(ctx, false)
		require.NoError(t, err)
		for i := 1; i < len(desc); i++ {
			assert.GreaterOrEqual(t, desc[i-1].Price, desc[i].Price)
		}
	})

	t.Run("pagination", func(t *testing.T) {
		repo, coll := freshRepo(t, client, "pagination", fixtureBooks)

		skip, limit := pageWindow(1, 5)
		first, err := repo.Page(ctx, skip, limit)
		require.NoError(t, err)
		skip, limit = pageWindow(2, 5)
		second, err := repo.Page(ctx, skip, limit)
		require.NoError(t, err)
		require.Len(t, first, 5)
		require.Len(t, second, 5)

		byID := map[any]bool{}
		for _, b := range append(first, second...) {
			byID[b.ID] = true
		}
		assert.Len(t, byID, 10, "no overlap between pages")

		cur, err := coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
		require.NoError(t, err)
		var all []Book
		require.NoError(t, cur.All(ctx, &all))
		require.Len(t, all, len(fixtureBooks))
		assert.Equal(t, titles(all[:10]), titles(append(first, second...)), "pages follow _id order without gaps")
	})

	t.Run("aggregations", func(t *testing.T) {
		repo, _ := freshRepo(t, client, "aggregations", []Book{
			{Title: "F1", Author: "X", Genre: "Fiction", PublishedYear: 1954, Price: 10},
			{Title: "F2", Author: "X", Genre: "Fiction", PublishedYear: 1959, Price: 20},
			{Title: "N1", Author: "Y", Genre: "Nonfiction", PublishedYear: 1961, Price: 30},
		})

		avg, err := repo.AvgPriceByGenre(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []GenrePrice{{Genre: "Fiction", AvgPrice: 15}, {Genre: "Nonfiction", AvgPrice: 30}}, avg)

		top, err := repo.TopAuthors(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, []AuthorCount{{Author: "X", Count: 2}}, top)

		decades, err := repo.CountByDecade(ctx)
		require.NoError(t, err)
		assert.Equal(t, []DecadeCount{{Decade: decade(1950), Count: 2}, {Decade: decade(1960), Count: 1}}, decades)
	})

	t.Run("indexes are idempotent", func(t *testing.T) {
		repo, coll := freshRepo(t, client, "indexes", fixtureBooks)

		for i := 0; i < 2; i++ {
			_, err := repo.CreateIndex(ctx, bson.D{{Key: "title", Value: 1}})
			require.NoError(t, err)
			_, err = repo.CreateIndex(ctx, bson.D{{Key: "author", Value: 1}, {Key: "published_year", Value: -1}})
			require.NoError(t, err)
		}

		specs, err := coll.Indexes().ListSpecifications(ctx)
		require.NoError(t, err)
		var names []string
		for _, s := range specs {
			names = append(names, s.Name)
		}
		assert.ElementsMatch(t, []string{"_id_", "title_1", "author_1_published_year_-1"}, names)

		rep, err := repo.ExplainByTitle(ctx, "1984")
		require.NoError(t, err)
		assert.Equal(t, "title_1", rep.IndexName)
		assert.EqualValues(t, 1, rep.ReturnedDocs)
	})

	t.Run("seed is idempotent", func(t *testing.T) {
		repo, _ := freshRepo(t, client, "seed", fixtureBooks)
		n, err := repo.Seed(ctx, fixtureBooks)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestIntegration_FullRun(t *testing.T) {
	client := startMongo(t)
	ctx := context.Background()
	repo, _ := freshRepo(t, client, "books", fixtureBooks)

	rec := &recordingRenderer{}
	r := &Runner{Repo: repo, Queries: DefaultQueries(), Render: rec, RunID: "it"}
	require.NoError(t, r.Run(ctx))
	require.Len(t, rec.results, len(expectedSteps))

	for _, res := range rec.results {
		books, ok := res.Value.([]Book)
		if !ok || res.Section == SectionCRUD {
			continue
		}
		assert.NotContains(t, titles(books), "Moby Dick", res.Step)
	}

	// a second run is still clean: the update and delete match nothing new
	// and the indexes already exist
	r.Render = NewRenderer("text", io.Discard)
	require.NoError(t, r.Run(ctx))
}
