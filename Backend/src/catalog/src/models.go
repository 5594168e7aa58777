package main

import (
	"fmt"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Book is one document of the books collection. Nothing enforces the shape;
// missing fields decode as zero values and _id keeps whatever type the
// document was stored with.
type Book struct {
	ID            any    `bson:"_id,omitempty"`
	Title         string `bson:"title"`
	Author        string `bson:"author"`
	Genre         string `bson:"genre"`
	PublishedYear int    `bson:"published_year"`
	Price         Price  `bson:"price"`
	InStock       bool   `bson:"in_stock"`
	Pages         int    `bson:"pages,omitempty"`
	Publisher     string `bson:"publisher,omitempty"`
}

// Price is a stored amount. It decodes from any numeric BSON type, Decimal128
// included, and encodes as a double.
type Price float64

func (p *Price) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	v := bson.RawValue{Type: t, Value: data}
	switch t {
	case bson.TypeDouble:
		*p = Price(v.Double())
	case bson.TypeInt32:
		*p = Price(v.Int32())
	case bson.TypeInt64:
		*p = Price(v.Int64())
	case bson.TypeDecimal128:
		dec := v.Decimal128()
		f, err := strconv.ParseFloat(dec.String(), 64)
		if err != nil {
			return fmt.Errorf("price %s: %w", dec, err)
		}
		*p = Price(f)
	case bson.TypeNull, bson.TypeUndefined:
		*p = 0
	default:
		return fmt.Errorf("cannot decode %s into a price", t)
	}
	return nil
}

// BookSummary is what the projection step returns (no _id).
type BookSummary struct {
	Title  string  `bson:"title"`
	Author string  `bson:"author"`
	Price  Price  `bson:"price"`
}

type GenrePrice struct {
	Genre    string `bson:"_id"`
	AvgPrice Price  `bson:"avgPrice"`
}

type AuthorCount struct {
	Author string `bson:"_id"`
	Count  int64  `bson:"count"`
}

// DecadeCount is one decade bucket. Decade is nil for books without a
// published_year.
type DecadeCount struct {
	Decade *int  `bson:"_id"`
	Count  int64 `bson:"count"`
}

type UpdateStatus struct {
	Title    string  `bson:"title"`
	Price    float64 `bson:"price"`
	Matched  int64   `bson:"matched"`
	Modified int64   `bson:"modified"`
}

type DeleteStatus struct {
	Title   string `bson:"title"`
	Deleted int64  `bson:"deleted"`
}

type IndexStatus struct {
	Name string `bson:"name"`
	Keys bson.D `bson:"keys"`
}

// ExplainReport keeps the executionStats fields worth showing plus the raw
// server answer.
type ExplainReport struct {
	Stage           string `bson:"stage"`
	IndexName       string `bson:"indexName,omitempty"`
	ReturnedDocs    int64  `bson:"nReturned"`
	KeysExamined    int64  `bson:"totalKeysExamined"`
	DocsExamined    int64  `bson:"totalDocsExamined"`
	ExecutionMillis int64  `bson:"executionTimeMillis"`
	Raw             bson.M `bson:"raw"`
}
