package ingest

import (
	"fmt"
	"regexp"

	"schola/types"
)

var templateFieldRe = regexp.MustCompile(`\{([^{}]+)\}`)

// expandTemplate substitutes {column} placeholders with row values. A
// placeholder naming a column the row does not have is a configuration
// error that aborts the whole file.
func expandTemplate(template string, row map[string]string) (string, error) {
	var missing string
	out := templateFieldRe.ReplaceAllStringFunc(template, func(m string) string {
		key := m[1 : len(m)-1]
		val, ok := row[key]
		if !ok && missing == "" {
			missing = key
		}
		return val
	})
	if missing != "" {
		return "", fmt.Errorf("csv template references column %q which is not present in the row", missing)
	}
	return out, nil
}

// CSVSections yields one section per CSV row: the search key column is
// embedded, the templated multi-field string is what gets returned to the
// user. The file URL carries no page anchor.
func CSVSections(rows []map[string]string, searchKey, outTemplate, fileURL, filename string) types.SectionSeq {
	return func(yield func(types.Section, error) bool) {
		for i, row := range rows {
			key, ok := row[searchKey]
			if !ok {
				yield(types.Section{}, fmt.Errorf("csv search key column %q not found in row %d", searchKey, i))
				return
			}
			content, err := expandTemplate(outTemplate, row)
			if err != nil {
				yield(types.Section{}, err)
				return
			}
			sec := types.Section{
				ID:        sectionID(filename, i),
				SearchKey: key,
				Content:   content,
				FileURL:   fileURL,
			}
			if !yield(sec, nil) {
				return
			}
		}
	}
}

// NonSlicedSection yields a single whole-document section, for formats
// that are not sliceable or when slicing is disabled.
func NonSlicedSection(text, fileURL, filename string) types.SectionSeq {
	return func(yield func(types.Section, error) bool) {
		yield(types.Section{
			ID:        documentID(filename),
			SearchKey: text,
			Content:   text,
			FileURL:   fileURL,
		}, nil)
	}
}

// chainSections concatenates section streams into one lazy stream.
func chainSections(seqs ...types.SectionSeq) types.SectionSeq {
	return func(yield func(types.Section, error) bool) {
		for _, seq := range seqs {
			for sec, err := range seq {
				if !yield(sec, err) {
					return
				}
				if err != nil {
					return
				}
			}
		}
	}
}
