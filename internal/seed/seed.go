// Package seed loads editor fixtures from YAML and replays them through the
// document service, so seeded documents obey the same rules as edited ones.
package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mantavyam/pitch-note-pilot/internal/document"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type File struct {
	Documents []Document `yaml:"documents"`
}

type Document struct {
	Date       string `yaml:"date"`
	YoutubeURL string `yaml:"youtube_url"`
	// KeepStarter keeps the starter node every new document gets.
	KeepStarter bool   `yaml:"keep_starter"`
	Nodes       []Node `yaml:"nodes"`
}

type Node struct {
	Title     string    `yaml:"title"`
	Collapsed bool      `yaml:"collapsed"`
	SubNodes  []SubNode `yaml:"subnodes"`
}

type SubNode struct {
	Type    document.SubNodeType   `yaml:"type"`
	Content document.ContentRecord `yaml:"content"`
}

// Parse decodes a fixture file, rejecting unknown keys.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	return &f, nil
}

func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed %s: %w", path, err)
	}
	return Parse(data)
}

// Apply creates every document in f and returns them as stored. Seeding does
// not count as an unsaved edit.
func Apply(ctx context.Context, svc document.Service, f *File, log zerolog.Logger) ([]*document.Document, error) {
	created := make([]*document.Document, 0, len(f.Documents))
	for i, entry := range f.Documents {
		doc, err := applyDocument(ctx, svc, entry)
		if err != nil {
			return created, fmt.Errorf("seed document %d (%s): %w", i, entry.Date, err)
		}
		log.Debug().Str("document_id", doc.ID).Int("nodes", doc.Metadata.TotalNodes).Msg("document seeded")
		created = append(created, doc)
	}

	if len(created) > 0 {
		unsaved := false
		if _, err := svc.UpdateEditor(ctx, document.EditorPatch{HasUnsavedChanges: &unsaved}); err != nil {
			return created, err
		}
	}
	return created, nil
}

func applyDocument(ctx context.Context, svc document.Service, entry Document) (*document.Document, error) {
	doc, err := svc.CreateDocument(ctx, document.CreateDocumentData{
		Date:       entry.Date,
		YoutubeURL: entry.YoutubeURL,
	})
	if err != nil {
		return nil, err
	}

	if !entry.KeepStarter {
		for _, n := range doc.Nodes {
			if err := svc.DeleteNode(ctx, doc.ID, n.ID); err != nil {
				return nil, err
			}
		}
	}

	withoutTemplate := false
	for _, ns := range entry.Nodes {
		node, err := svc.AddNode(ctx, doc.ID, document.AddNodeData{
			Title:               ns.Title,
			WithStarterTemplate: &withoutTemplate,
		})
		if err != nil {
			return nil, err
		}
		if ns.Collapsed {
			collapsed := true
			if _, err := svc.UpdateNode(ctx, doc.ID, node.ID, document.NodePatch{Collapsed: &collapsed}); err != nil {
				return nil, err
			}
		}
		for _, ss := range ns.SubNodes {
			if _, err := svc.AddSubNode(ctx, doc.ID, node.ID, document.AddSubNodeData{
				Type:    ss.Type,
				Content: ss.Content,
			}); err != nil {
				return nil, err
			}
		}
	}

	return svc.GetDocument(ctx, doc.ID)
}
