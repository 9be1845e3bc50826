package merge

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"giftprobe/internal/domain/catalog"
)

// ErrNoIDColumn means a human score sheet has neither a test id nor a query column.
var ErrNoIDColumn = errors.New("human scores: no Test_ID or Query column")

// HumanSheet describes the columns of a human score CSV.
type HumanSheet struct {
	IDColumn    string
	QueryColumn string
	ScoreColumn string
	// TopK is the number of Gift_k_Good columns considered.
	TopK int
}

// DefaultHumanSheet matches the eval_for_human_scoring.csv template.
func DefaultHumanSheet(topK int) HumanSheet {
	return HumanSheet{IDColumn: "Test_ID", QueryColumn: "Query", ScoreColumn: "Score", TopK: topK}
}

// HumanScores holds human judgements keyed by test id, and by query text for
// rows that carry no id.
type HumanScores struct {
	ByID    map[string]float64
	ByQuery map[string]float64
}

// Lookup returns the human score for record. An id match wins over a query
// match; queries compare by catalog.Key.
func (h HumanScores) Lookup(record catalog.ScoreRecord) (float64, bool) {
	if score, ok := h.ByID[record.TestCaseID]; ok {
		return score, true
	}
	if q := catalog.Key(record.TestCase.OriginalQuery); q != "" {
		if score, ok := h.ByQuery[q]; ok {
			return score, true
		}
	}
	return 0, false
}

// Len counts the judged rows.
func (h HumanScores) Len() int { return len(h.ByID) + len(h.ByQuery) }

// ParseYesNo maps a spreadsheet cell to a judgement.
func ParseYesNo(cell string) (good bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(cell)) {
	case "yes", "y", "1", "true", "t":
		return true, true
	case "no", "n", "0", "false", "f":
		return false, true
	}
	return false, false
}

// LoadHumanScoresFile reads path with sheet.
func LoadHumanScoresFile(path string, sheet HumanSheet) (HumanScores, error) {
	f, err := os.Open(path)
	if err != nil {
		return HumanScores{}, fmt.Errorf("open human scores: %w", err)
	}
	defer f.Close()
	return LoadHumanScores(f, sheet)
}

// LoadHumanScores reads a CSV of human judgements. A numeric score column
// wins when filled; otherwise the score is the share of Gift_k_Good cells
// marked yes out of TopK. Rows with no recognisable value, or with neither an
// id nor a query, are skipped.
func LoadHumanScores(r io.Reader, sheet HumanSheet) (HumanScores, error) {
	if sheet.TopK <= 0 {
		sheet.TopK = 3
	}
	reader := csv.NewReader(skipBOM(r))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return HumanScores{}, nil
		}
		return HumanScores{}, fmt.Errorf("read human scores header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	column := func(name string) int {
		if name == "" {
			return -1
		}
		if col, ok := index[strings.ToLower(name)]; ok {
			return col
		}
		return -1
	}
	idCol, queryCol := column(sheet.IDColumn), column(sheet.QueryColumn)
	if idCol < 0 && queryCol < 0 {
		return HumanScores{}, ErrNoIDColumn
	}
	scoreCol, hasScore := index[strings.ToLower(sheet.ScoreColumn)]
	goodCols := make([]int, 0, sheet.TopK)
	for k := 1; k <= sheet.TopK; k++ {
		if col, ok := index[strings.ToLower(fmt.Sprintf("Gift_%d_Good", k))]; ok {
			goodCols = append(goodCols, col)
		}
	}

	cell := func(row []string, col int) string {
		if col >= 0 && col < len(row) {
			return strings.TrimSpace(row[col])
		}
		return ""
	}

	scores := HumanScores{ByID: make(map[string]float64), ByQuery: make(map[string]float64)}
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return HumanScores{}, fmt.Errorf("read human scores line %d: %w", line, err)
		}
		target := scores.ByID
		key := cell(row, idCol)
		if key == "" {
			target, key = scores.ByQuery, catalog.Key(cell(row, queryCol))
		}
		if key == "" {
			continue
		}
		if hasScore {
			if v, err := strconv.ParseFloat(cell(row, scoreCol), 64); err == nil && v >= 0 && v <= 1 {
				target[key] = v
				continue
			}
		}
		good, judged := 0, 0
		for _, col := range goodCols {
			if yes, ok := ParseYesNo(cell(row, col)); ok {
				judged++
				if yes {
					good++
				}
			}
		}
		if judged > 0 {
			target[key] = float64(good) / float64(sheet.TopK)
		}
	}
	return scores, nil
}

func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if b, err := br.Peek(3); err == nil && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		_, _ = br.Discard(3)
	}
	return br
}
