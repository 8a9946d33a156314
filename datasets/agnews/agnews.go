// Package agnews implements the AG News topic classification dataset:
// 4 classes of news text distributed as train and test CSV files.
package agnews

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lorafine/classifier/datasets"
)

// Label values. Upstream CSV uses 1-based class indices; these are the
// 0-based labels the classifier trains on.
const (
	World = iota
	Sports
	Business
	SciTech
)

// Labels maps label values to display names.
var Labels = [4]string{"World", "Sports", "Business", "Sci/Tech"}

// NumLabels is the number of topic classes.
const NumLabels = 4

// DefaultBaseURL hosts the canonical AG News CSV files.
const DefaultBaseURL = "https://raw.githubusercontent.com/mhjabreel/CharCnn_Keras/master/data/ag_news_csv"

var splitFiles = map[string]string{
	"train": "train.csv",
	"test":  "test.csv",
}

// Download fetches the named splits into dir, skipping files already
// cached there.
func Download(ctx context.Context, dir, baseURL string, splits ...string) error {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, split := range splits {
		name, ok := splitFiles[split]
		if !ok {
			return fmt.Errorf("agnews: unknown split %q", split)
		}
		dest := filepath.Join(dir, name)
		if _, err := os.Stat(dest); err == nil {
			continue
		}
		if err := fetch(ctx, baseURL+"/"+name, dest); err != nil {
			return fmt.Errorf("agnews: downloading %s split: %w", split, err)
		}
	}
	return nil
}

func fetch(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	tmp := dest + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dest)
}

// Load reads the named splits from dir. Files must already be present;
// use Download first.
func Load(dir string, splits ...string) (map[string]datasets.Split, error) {
	out := make(map[string]datasets.Split, len(splits))
	for _, split := range splits {
		name, ok := splitFiles[split]
		if !ok {
			return nil, fmt.Errorf("agnews: unknown split %q", split)
		}
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("agnews: split %s not available: %w", split, err)
		}
		s, err := parse(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("agnews: parsing %s split: %w", split, err)
		}
		out[split] = s
	}
	return out, nil
}

// parse reads AG News CSV records: class index 1..4, title,
// description. The example text is the title and description joined
// with a space.
func parse(r io.Reader) (datasets.Split, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3
	var s datasets.Split
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		class, err := strconv.Atoi(strings.TrimSpace(rec[0]))
		if err != nil || class < 1 || class > NumLabels {
			return nil, fmt.Errorf("record %d: bad class %q", len(s)+1, rec[0])
		}
		s = append(s, datasets.Example{
			Text:  strings.TrimSpace(rec[1] + " " + rec[2]),
			Label: class - 1,
		})
	}
	return s, nil
}
