package replay

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/danielpatrickdp/potability/internal/params"
)

// NameColumn is the optional CSV column holding a case name.
const NameColumn = "name"

// #region export

// Export reads measurements from CSV and records the pipeline's current
// outcome for each row. The header must name every parameter (any case);
// other columns are ignored. Empty cells and "nan" are undefined.
func Export(ctx context.Context, p Inferer, r io.Reader, description string) (*Fixture, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	var missing []string
	for _, name := range params.Names() {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("csv header: %w", &params.ShapeError{Missing: missing})
	}
	nameCol, hasName := cols[NameColumn]

	f := &Fixture{Description: description}
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", row, err)
		}

		set := make(params.Set, params.Count)
		for _, name := range params.Names() {
			v, err := parseCell(rec[cols[name]])
			if err != nil {
				return nil, fmt.Errorf("row %d %s: %w", row, name, err)
			}
			set[name] = v
		}

		name := fmt.Sprintf("row_%d", row)
		if hasName && rec[nameCol] != "" {
			name = rec[nameCol]
		}

		res, err := p.Infer(ctx, set)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		fc := FixtureCase{Name: name, Params: fixtureParams(set)}
		if res.Valid() {
			fc.ExpectedVerdict = string(res.Verdict)
		} else {
			fc.ExpectedViolations = res.Violations.Messages()
		}
		f.Cases = append(f.Cases, fc)
	}
	return f, nil
}

func parseCell(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// #endregion export
