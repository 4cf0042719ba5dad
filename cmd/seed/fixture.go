package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"

	"mediatheque/internal/models"
	"mediatheque/internal/services"
)

// fixture is the seed file layout. Loans reference subscribers and documents by their
// position in the file.
type fixture struct {
	Subscribers []subscriberFixture `json:"subscribers" yaml:"subscribers"`
	Documents   []documentFixture   `json:"documents" yaml:"documents"`
	Loans       []loanFixture       `json:"loans" yaml:"loans"`
}

type subscriberFixture struct {
	Name      string `json:"name" yaml:"name"`
	FirstName string `json:"first_name" yaml:"first_name"`
	Email     string `json:"email" yaml:"email"`
	Address   string `json:"address" yaml:"address"`
	Phone     string `json:"phone" yaml:"phone"`
}

type documentFixture struct {
	Title       string `json:"title" yaml:"title"`
	Author      string `json:"author" yaml:"author"`
	Type        string `json:"type" yaml:"type"`
	ISBN        string `json:"isbn" yaml:"isbn"`
	PublishedAt string `json:"published_at" yaml:"published_at"`
}

type loanFixture struct {
	Subscriber int  `json:"subscriber" yaml:"subscriber"`
	Document   int  `json:"document" yaml:"document"`
	Returned   bool `json:"returned" yaml:"returned"`
}

// decodeFixture reads YAML for .yaml/.yml files and JSON for anything else.
func decodeFixture(name string, r io.Reader) (*fixture, error) {
	var f fixture
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		if err := yaml.NewDecoder(r).Decode(&f); err != nil {
			return nil, fmt.Errorf("decode yaml fixture: %w", err)
		}
	default:
		if err := jsoniter.ConfigCompatibleWithStandardLibrary.NewDecoder(r).Decode(&f); err != nil {
			return nil, fmt.Errorf("decode json fixture: %w", err)
		}
	}
	return &f, f.validate()
}

func (f *fixture) validate() error {
	for i, l := range f.Loans {
		if l.Subscriber < 0 || l.Subscriber >= len(f.Subscribers) {
			return fmt.Errorf("loan %d: subscriber index %d out of range", i, l.Subscriber)
		}
		if l.Document < 0 || l.Document >= len(f.Documents) {
			return fmt.Errorf("loan %d: document index %d out of range", i, l.Document)
		}
	}
	return nil
}

type seedResult struct {
	Subscribers, Documents, Loans int
}

// apply imports the fixture through the service layer, so every record gets the same
// defaults and checks as one created over the API.
func (f *fixture) apply(ctx context.Context, directory services.SubscriberDirectory, catalog services.Catalog, ledger services.LoanLedger) (seedResult, error) {
	var res seedResult

	subscriberIDs := make([]uuid.UUID, len(f.Subscribers))
	for i, s := range f.Subscribers {
		id, err := directory.RegisterSubscriber(ctx, &models.Subscriber{
			Name:      s.Name,
			FirstName: s.FirstName,
			Email:     s.Email,
			Address:   s.Address,
			Phone:     s.Phone,
		})
		if err != nil {
			return res, fmt.Errorf("subscriber %d: %w", i, err)
		}
		subscriberIDs[i] = id
		res.Subscribers++
	}

	documentIDs := make([]uuid.UUID, len(f.Documents))
	for i, d := range f.Documents {
		document := &models.Document{Title: d.Title, Author: d.Author, Type: d.Type, ISBN: d.ISBN}
		if d.PublishedAt != "" {
			published, err := models.ParseTimestamp(d.PublishedAt)
			if err != nil {
				return res, fmt.Errorf("document %d: %w", i, err)
			}
			document.PublishedAt = &published
		}
		id, err := catalog.CreateDocument(ctx, document)
		if err != nil {
			return res, fmt.Errorf("document %d: %w", i, err)
		}
		documentIDs[i] = id
		res.Documents++
	}

	for i, l := range f.Loans {
		loan, err := ledger.CreateLoan(ctx, subscriberIDs[l.Subscriber], documentIDs[l.Document])
		if err != nil {
			log.Printf("[WARN] seed: skipping loan %d: %v", i, err)
			continue
		}
		if l.Returned {
			if _, err := ledger.ReturnLoan(ctx, loan.ID); err != nil {
				return res, fmt.Errorf("loan %d: %w", i, err)
			}
		}
		res.Loans++
	}
	return res, nil
}
