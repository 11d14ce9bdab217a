package pricing

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/genops-ai/genops-go/models"
)

// fileSchema is the YAML layout of a pricing override file. Rates are USD
// per one million tokens, matching how providers publish them.
type fileSchema struct {
	Models []fileEntry `yaml:"models"`
}

type fileEntry struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	InputPer1M  float64 `yaml:"input_per_1m_usd"`
	OutputPer1M float64 `yaml:"output_per_1m_usd"`
	Currency    string  `yaml:"currency"`
}

// LoadFile parses a YAML pricing override file.
func LoadFile(path string) ([]models.PricingEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pricing file %q: %w", path, err)
	}

	var doc fileSchema
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse pricing file %q: %w", path, err)
	}
	if len(doc.Models) == 0 {
		return nil, fmt.Errorf("pricing file %q contains no models", path)
	}

	entries := make([]models.PricingEntry, 0, len(doc.Models))
	for i, fe := range doc.Models {
		currency := fe.Currency
		if currency == "" {
			currency = "USD"
		}
		e := models.PricingEntry{
			Provider:         fe.Provider,
			Model:            fe.Model,
			InputPerMillion:  models.FromUSD(fe.InputPer1M),
			OutputPerMillion: models.FromUSD(fe.OutputPer1M),
			Currency:         currency,
		}
		if err := e.Valid(); err != nil {
			return nil, fmt.Errorf("pricing file %q entry %d: %w", path, i, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Watcher hot-reloads a pricing override file into a table. A bad file keeps
// the last good table and logs a warning.
type Watcher struct {
	table  *Table
	path   string
	logger *zap.Logger
	fw     *fsnotify.Watcher
	done   chan struct{}
}

// NewWatcher merges the file once and starts watching it for changes.
// Close stops the watch goroutine.
func NewWatcher(table *Table, path string, logger *zap.Logger) (*Watcher, error) {
	entries, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if err := table.Merge(entries); err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	// Watch the directory, not the file: editors replace files on save and
	// the original inode stops emitting events.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %q: %w", filepath.Dir(path), err)
	}

	w := &Watcher{
		table:  table,
		path:   path,
		logger: logger,
		fw:     fw,
		done:   make(chan struct{}),
	}
	go w.run()

	logger.Info("watching pricing file", zap.String("path", path), zap.Int("entries", len(entries)))
	return w, nil
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Rename) {
				continue
			}
			w.reload()
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("pricing watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	entries, err := LoadFile(w.path)
	if err != nil {
		w.logger.Warn("pricing reload failed, keeping previous table", zap.Error(err))
		return
	}
	if err := w.table.Merge(entries); err != nil {
		w.logger.Warn("pricing reload failed, keeping previous table", zap.Error(err))
		return
	}
	w.logger.Info("pricing table reloaded", zap.String("path", w.path), zap.Int("entries", len(entries)))
}

// Close stops watching. Safe to call once.
func (w *Watcher) Close(ctx context.Context) error {
	if err := w.fw.Close(); err != nil {
		return err
	}
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
