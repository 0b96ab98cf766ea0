package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Source dataset column names. mapHeaders lowercases, so these are the
// lookup keys.
var requiredColumns = []string{
	"item", "value_b", "weight_c", "volume_v",
	"transferable_t", "lowerbound_l", "requirement_r", "shareable_a",
}

// LoadFile reads an item catalog CSV from disk.
func LoadFile(path string) ([]Item, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open catalog: %w", err)
	}
	defer file.Close()

	items, err := Load(file)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return items, nil
}

// Load reads an item catalog from a CSV stream. Malformed input (missing
// column, non-numeric cell, negative quantity) fails with a descriptive
// error; nothing is coerced silently.
func Load(r io.Reader) ([]Item, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("unable to read header: %w", err)
	}
	index := mapHeaders(header)

	missing := missingHeaders(requiredColumns, index)
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}

	var items []Item
	line := 1
	for {
		line++
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		item, err := parseItem(record, index)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		items = append(items, item)
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("catalog contains no items")
	}

	return items, nil
}

func mapHeaders(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		index[key] = i
	}
	return index
}

func missingHeaders(required []string, index map[string]int) []string {
	var missing []string
	for _, key := range required {
		if _, ok := index[key]; !ok {
			missing = append(missing, key)
		}
	}
	return missing
}

func parseItem(record []string, index map[string]int) (Item, error) {
	get := func(key string) (string, error) {
		pos := index[key]
		if pos >= len(record) {
			return "", fmt.Errorf("column %s is out of range", key)
		}
		return strings.TrimSpace(record[pos]), nil
	}

	number := func(key string) (float64, error) {
		raw, err := get(key)
		if err != nil {
			return 0, err
		}
		val, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, fmt.Errorf("column %s has non-numeric value %q", key, raw)
		}
		return val, nil
	}

	name, err := get("item")
	if err != nil {
		return Item{}, err
	}
	if name == "" {
		return Item{}, fmt.Errorf("missing item name")
	}

	item := Item{Name: name}
	if item.Value, err = number("value_b"); err != nil {
		return Item{}, err
	}
	if item.Weight, err = number("weight_c"); err != nil {
		return Item{}, err
	}
	if item.Volume, err = number("volume_v"); err != nil {
		return Item{}, err
	}
	if item.MinCoverage, err = number("lowerbound_l"); err != nil {
		return Item{}, err
	}
	if item.Requirement, err = number("requirement_r"); err != nil {
		return Item{}, err
	}
	if item.Shareability, err = number("shareable_a"); err != nil {
		return Item{}, err
	}

	transferable, err := number("transferable_t")
	if err != nil {
		return Item{}, err
	}
	switch transferable {
	case 0:
		item.Transferable = 0
	case 1:
		item.Transferable = 1
	default:
		return Item{}, fmt.Errorf("column transferable_t must be 0 or 1, got %v", transferable)
	}

	if item.Value < 0 || item.Weight < 0 || item.Volume < 0 ||
		item.MinCoverage < 0 || item.Requirement < 0 {
		return Item{}, fmt.Errorf("item %s has negative quantities", name)
	}
	if item.Shareability <= 0 {
		return Item{}, fmt.Errorf("item %s: shareable_a must be positive, got %v", name, item.Shareability)
	}

	return item, nil
}
